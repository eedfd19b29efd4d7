package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// PolicyAllowAny lets every request through.
	PolicyAllowAny = "allow_any"
	// PolicyAdminOrReadOnly opens safe methods to everyone and writes to staff.
	PolicyAdminOrReadOnly = "admin_or_read_only"

	MediaLocal      = "local"
	MediaCloudinary = "cloudinary"
)

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DbDriver   string `mapstructure:"DB_DRIVER"`
	DbName     string `mapstructure:"POSTGRES_DB"`
	DbHost     string `mapstructure:"POSTGRES_HOST"`
	DbPort     string `mapstructure:"POSTGRES_PORT"`
	DbUser     string `mapstructure:"POSTGRES_USER"`
	DbPas      string `mapstructure:"POSTGRES_PASSWORD"`
	DbSSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	SqlitePath string `mapstructure:"SQLITE_PATH"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	CorsAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	AllowedHosts       []string `mapstructure:"ALLOWED_HOSTS"`

	AccessPolicy    string `mapstructure:"ACCESS_POLICY"`
	AuthTokenSecret string `mapstructure:"AUTH_TOKEN_SECRET"`

	MediaBackend   string `mapstructure:"MEDIA_BACKEND"`
	MediaRoot      string `mapstructure:"MEDIA_ROOT"`
	MediaURL       string `mapstructure:"MEDIA_URL"`
	MediaServe     bool   `mapstructure:"MEDIA_SERVE"`
	CloudinaryURL  string `mapstructure:"CLOUDINARY_URL"`
	MaxUploadBytes int64  `mapstructure:"MAX_UPLOAD_BYTES"`

	ExposeErrorDetails bool `mapstructure:"EXPOSE_ERROR_DETAILS"`

	// Warnings collects the adjustments made while normalizing values.
	Warnings []string `mapstructure:"-"`
}

var defaults = map[string]any{
	"SERVER_PORT":          "8080",
	"DB_DRIVER":            DriverPostgres,
	"POSTGRES_DB":          "bakery",
	"POSTGRES_HOST":        "127.0.0.1",
	"POSTGRES_PORT":        "5432",
	"POSTGRES_USER":        "postgres",
	"POSTGRES_PASSWORD":    "",
	"POSTGRES_SSLMODE":     "disable",
	"SQLITE_PATH":          "bakery.db",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"CORS_ALLOWED_ORIGINS": "http://localhost:5173",
	"ALLOWED_HOSTS":        "*",
	"ACCESS_POLICY":        PolicyAllowAny,
	"AUTH_TOKEN_SECRET":    "",
	"MEDIA_BACKEND":        MediaLocal,
	"MEDIA_ROOT":           "media",
	"MEDIA_URL":            "/media/",
	"MEDIA_SERVE":          false,
	"CLOUDINARY_URL":       "",
	"MAX_UPLOAD_BYTES":     int64(5 << 20),
	"EXPOSE_ERROR_DETAILS": false,
}

// Load reads the optional env files (".env" when none are given), then the
// process environment. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cf := &Config{}
	if err := v.Unmarshal(cf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cf.normalize()
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

// Validate rejects unknown enum values and settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error

	switch c.DbDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DbDriver))
	}

	switch c.AccessPolicy {
	case PolicyAllowAny:
	case PolicyAdminOrReadOnly:
		if c.AuthTokenSecret == "" {
			errs = append(errs, errors.New("AUTH_TOKEN_SECRET is required when ACCESS_POLICY is admin_or_read_only"))
		}
	default:
		errs = append(errs, fmt.Errorf("ACCESS_POLICY must be %q or %q, got %q", PolicyAllowAny, PolicyAdminOrReadOnly, c.AccessPolicy))
	}

	switch c.MediaBackend {
	case MediaLocal:
	case MediaCloudinary:
		if c.CloudinaryURL == "" {
			errs = append(errs, errors.New("CLOUDINARY_URL is required when MEDIA_BACKEND is cloudinary"))
		}
	default:
		errs = append(errs, fmt.Errorf("MEDIA_BACKEND must be %q or %q, got %q", MediaLocal, MediaCloudinary, c.MediaBackend))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) normalize() {
	c.DbDriver = strings.ToLower(strings.TrimSpace(c.DbDriver))
	c.AccessPolicy = strings.ToLower(strings.TrimSpace(c.AccessPolicy))
	c.MediaBackend = strings.ToLower(strings.TrimSpace(c.MediaBackend))

	if !strings.HasPrefix(c.MediaURL, "/") {
		c.MediaURL = "/" + c.MediaURL
	}
	if !strings.HasSuffix(c.MediaURL, "/") {
		c.MediaURL += "/"
	}

	origins := make([]string, 0, len(c.CorsAllowedOrigins))
	for _, origin := range splitList(c.CorsAllowedOrigins) {
		origins = append(origins, strings.TrimRight(origin, "/"))
	}
	c.CorsAllowedOrigins = origins

	hosts := make([]string, 0, len(c.AllowedHosts))
	for _, entry := range splitList(c.AllowedHosts) {
		host := NormalizeHost(entry)
		if host == "" {
			c.Warnings = append(c.Warnings, fmt.Sprintf("ALLOWED_HOSTS entry %q dropped: no host", entry))
			continue
		}
		if host != entry {
			c.Warnings = append(c.Warnings, fmt.Sprintf("ALLOWED_HOSTS entry %q normalized to %q", entry, host))
		}
		hosts = append(hosts, host)
	}
	c.AllowedHosts = hosts
}

// NormalizeHost reduces an allowed-host entry to a bare lower-case host.
// Entries written as URLs ("https://example.com/") keep only their host.
func NormalizeHost(entry string) string {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if strings.Contains(entry, "://") {
		u, err := url.Parse(entry)
		if err != nil {
			return ""
		}
		entry = u.Host
	}
	if i := strings.IndexByte(entry, '/'); i >= 0 {
		entry = entry[:i]
	}
	return entry
}

// splitList flattens comma separated items; viper only splits plain strings.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
