package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jafsabakes/bakery-api/app/api"
	"github.com/jafsabakes/bakery-api/app/config"
	"github.com/rs/zerolog"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "bearer"

	AuthorizationPayloadKey ctxKey = "authorization_payload"
)

const (
	msgNotAuthenticated = "Authentication credentials were not provided."
	msgInvalidToken     = "Given token not valid for any token type"
	msgForbidden        = "You do not have permission to perform this action."
)

// StaffClaims is the access token payload issued by the identity provider.
type StaffClaims struct {
	UserID      any    `json:"user_id,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	jwt.RegisteredClaims
}

func (c *StaffClaims) Staff() bool {
	return c.IsStaff || c.IsSuperuser
}

// AccessPolicyMiddleware enforces the configured access policy.
// allow_any lets everything through. admin_or_read_only lets safe methods
// through and requires a staff bearer token for the rest.
func AccessPolicyMiddleware(policy string, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if policy != config.PolicyAdminOrReadOnly {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := checkBearerToken(r, secret)
			if err != nil {
				zerolog.Ctx(r.Context()).Info().Err(err).Str("method", r.Method).Msg("write rejected")
				msg := msgInvalidToken
				if errors.Is(err, errNoCredentials) {
					msg = msgNotAuthenticated
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				api.ErrorResponse(w, http.StatusUnauthorized, msg)
				return
			}
			if !claims.Staff() {
				zerolog.Ctx(r.Context()).Info().Str("subject", claims.Subject).Msg("write rejected, not staff")
				api.ErrorResponse(w, http.StatusForbidden, msgForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), AuthorizationPayloadKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetStaffClaims returns the claims stored by AccessPolicyMiddleware, or nil.
func GetStaffClaims(ctx context.Context) *StaffClaims {
	claims, _ := ctx.Value(AuthorizationPayloadKey).(*StaffClaims)
	return claims
}

var errNoCredentials = errors.New("authorization header is not provided")

func checkBearerToken(r *http.Request, secret []byte) (*StaffClaims, error) {
	authorizationHeader := r.Header.Get(AuthorizationHeaderKey)
	if authorizationHeader == "" {
		return nil, errNoCredentials
	}

	fields := strings.Fields(authorizationHeader)
	if len(fields) != 2 {
		return nil, errors.New("invalid authorization header format")
	}
	if strings.ToLower(fields[0]) != AuthorizationTypeBearer {
		return nil, fmt.Errorf("unsupported authorization type %s", fields[0])
	}

	claims := &StaffClaims{}
	_, err := jwt.ParseWithClaims(fields[1], claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, fmt.Errorf("token type %q is not an access token", claims.TokenType)
	}
	return claims, nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
