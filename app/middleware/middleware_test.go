package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jafsabakes/bakery-api/app/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

// --- Helpers ---

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func signToken(t *testing.T, claims StaffClaims, key []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func claimsFor(staff, superuser bool, expiresIn time.Duration) StaffClaims {
	return StaffClaims{
		UserID:      1,
		TokenType:   "access",
		IsStaff:     staff,
		IsSuperuser: superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var errResp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	return errResp["error"]
}

// --- Tests ---

func TestRequestIdMiddleware(t *testing.T) {
	var seen string
	handler := RequestIdMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("Generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.NotEmpty(t, seen)
		assert.NotEqual(t, "unknown", seen)
		assert.Equal(t, seen, rec.Header().Get(RequestHeader))
	})

	t.Run("Keeps the caller id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestHeader))
	})
}

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := RequestIdMiddleware(LoggerMiddleware(&logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest("POST", "/products/?active=true", nil)
	req.Header.Set(RequestHeader, "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inside, access map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inside))
	require.NoError(t, json.Unmarshal(lines[1], &access))

	assert.Equal(t, "req-1", inside["request_id"])
	assert.Equal(t, "request completed", access["message"])
	assert.Equal(t, "POST", access["method"])
	assert.Equal(t, "/products/?active=true", access["url"])
	assert.Equal(t, float64(http.StatusTeapot), access["status"])
}

func TestStatusRecorderDefaultsToOK(t *testing.T) {
	recorder := &StatusRecorder{ResponseWriter: httptest.NewRecorder()}
	_, err := recorder.Write([]byte("hi"))
	require.NoError(t, err)
	recorder.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, recorder.Status())
}

func TestRecoverMiddleware(t *testing.T) {
	handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decodeError(t, rec))
}

func TestAllowedHostsMiddleware(t *testing.T) {
	testCases := []struct {
		name               string
		hosts              []string
		host               string
		expectedStatusCode int
	}{
		{name: "Wildcard", hosts: []string{"*"}, host: "anything.test", expectedStatusCode: http.StatusOK},
		{name: "Exact host", hosts: []string{"jafsabakes.in"}, host: "jafsabakes.in", expectedStatusCode: http.StatusOK},
		{name: "Exact host with port", hosts: []string{"jafsabakes.in"}, host: "jafsabakes.in:8080", expectedStatusCode: http.StatusOK},
		{name: "Case insensitive", hosts: []string{"jafsabakes.in"}, host: "JafsaBakes.IN", expectedStatusCode: http.StatusOK},
		{name: "Subdomain pattern", hosts: []string{".jafsabakes.in"}, host: "www.jafsabakes.in", expectedStatusCode: http.StatusOK},
		{name: "Subdomain pattern matches apex", hosts: []string{".jafsabakes.in"}, host: "jafsabakes.in", expectedStatusCode: http.StatusOK},
		{name: "Pattern with port", hosts: []string{"localhost:8000"}, host: "localhost:9000", expectedStatusCode: http.StatusBadRequest},
		{name: "Unknown host", hosts: []string{"jafsabakes.in"}, host: "evil.test", expectedStatusCode: http.StatusBadRequest},
		{name: "No hosts configured", hosts: nil, host: "jafsabakes.in", expectedStatusCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AllowedHostsMiddleware(tc.hosts)(http.HandlerFunc(okHandler))
			req := httptest.NewRequest("GET", "/products/", nil)
			req.Host = tc.host
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedStatusCode, rec.Code)
		})
	}
}

func TestAccessPolicyMiddleware(t *testing.T) {
	testCases := []struct {
		name               string
		policy             string
		method             string
		authorization      string
		expectedStatusCode int
		expectedError      string
	}{
		{
			name:               "Allow any lets anonymous writes through",
			policy:             config.PolicyAllowAny,
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "Anonymous read",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "Anonymous options",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "OPTIONS",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "Anonymous write",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "POST",
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      msgNotAuthenticated,
		},
		{
			name:               "Wrong scheme",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "DELETE",
			authorization:      "Basic dXNlcjpwYXNz",
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      msgInvalidToken,
		},
		{
			name:               "Garbage token",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "PUT",
			authorization:      "Bearer not-a-jwt",
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      msgInvalidToken,
		},
		{
			name:               "Token signed with another key",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "POST",
			authorization:      "Bearer " + signToken(t, claimsFor(true, false, time.Hour), []byte("other")),
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      msgInvalidToken,
		},
		{
			name:               "Expired token",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "POST",
			authorization:      "Bearer " + signToken(t, claimsFor(true, false, -time.Minute), testSecret),
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      msgInvalidToken,
		},
		{
			name:   "Refresh token",
			policy: config.PolicyAdminOrReadOnly,
			method: "POST",
			authorization: "Bearer " + signToken(t, func() StaffClaims {
				c := claimsFor(true, false, time.Hour)
				c.TokenType = "refresh"
				return c
			}(), testSecret),
			expectedStatusCode: http.StatusUnauthorized,
			expectedError:      msgInvalidToken,
		},
		{
			name:               "Authenticated non staff",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "PATCH",
			authorization:      "Bearer " + signToken(t, claimsFor(false, false, time.Hour), testSecret),
			expectedStatusCode: http.StatusForbidden,
			expectedError:      msgForbidden,
		},
		{
			name:               "Staff",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "POST",
			authorization:      "Bearer " + signToken(t, claimsFor(true, false, time.Hour), testSecret),
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "Superuser",
			policy:             config.PolicyAdminOrReadOnly,
			method:             "DELETE",
			authorization:      "bearer " + signToken(t, claimsFor(false, true, time.Hour), testSecret),
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			var claims *StaffClaims
			handler := AccessPolicyMiddleware(tc.policy, testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims = GetStaffClaims(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tc.method, "/products/", nil)
			if tc.authorization != "" {
				req.Header.Set(AuthorizationHeaderKey, tc.authorization)
			}
			rec := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.expectedError != "" {
				assert.Equal(t, tc.expectedError, decodeError(t, rec))
			}
			if tc.expectedStatusCode == http.StatusOK && tc.authorization != "" {
				require.NotNil(t, claims)
				assert.True(t, claims.Staff())
			}
		})
	}
}
