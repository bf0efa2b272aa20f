package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gazette/internal/policy"
	"github.com/starford/gazette/internal/storage"
	"github.com/starford/gazette/internal/token"
)

const minSecretLen = 16

// Config represents the application configuration. YAML sets the base
// values; GAZETTE_* environment variables override them.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Auth    AuthConfig        `yaml:"auth"`
	Web     WebConfig         `yaml:"web"`
	Seed    SeedConfig        `yaml:"seed"`
	CORS    CORSConfig        `yaml:"cors"`
	MCP     MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Web.Validate(); err != nil {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" env:"GAZETTE_LOG_LEVEL"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" env:"GAZETTE_HTTP_PORT"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where stories are persisted.
//
// Driver is one of "json" (default), "sqlite" or "memory". Watch reloads
// the catalog when the JSON file is edited by another process.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"GAZETTE_STORAGE_DRIVER"`
	Path   string `yaml:"path"   env:"GAZETTE_STORAGE_PATH"`
	Reset  bool   `yaml:"reset"  env:"GAZETTE_STORAGE_RESET"`
	Watch  bool   `yaml:"watch"  env:"GAZETTE_STORAGE_WATCH"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = storage.DriverJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.In(storage.DriverJSON, storage.DriverSQLite, storage.DriverMemory)),
		validation.Field(&c.Path, validation.When(c.Driver != storage.DriverMemory, validation.Required)),
	)
}

// Options converts the configuration for storage.Open.
func (c *StorageConfig) Options() storage.Options {
	return storage.Options{Driver: c.Driver, Path: c.Path, Reset: c.Reset}
}

// AuthConfig configures access tokens for the REST API.
type AuthConfig struct {
	Secret     string        `yaml:"secret"      env:"GAZETTE_AUTH_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl"   env:"GAZETTE_TOKEN_TTL"`
	LoginRate  float64       `yaml:"login_rate"  env:"GAZETTE_LOGIN_RATE"`
	LoginBurst int           `yaml:"login_burst" env:"GAZETTE_LOGIN_BURST"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.TokenTTL == 0 {
		c.TokenTTL = token.DefaultTTL
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Secret, validation.Required, validation.Length(minSecretLen, 0)),
		validation.Field(&c.TokenTTL, validation.Min(time.Second)),
		validation.Field(&c.LoginRate, validation.Min(0.0)),
		validation.Field(&c.LoginBurst, validation.Min(0)),
	)
}

// WebConfig configures the HTML application session cookie.
type WebConfig struct {
	SessionSecret string `yaml:"session_secret" env:"GAZETTE_SESSION_SECRET"`
	CookieName    string `yaml:"cookie_name"    env:"GAZETTE_COOKIE_NAME"`
	SecureCookie  bool   `yaml:"secure_cookie"  env:"GAZETTE_COOKIE_SECURE"`
}

// Validate validates the web configuration.
func (c *WebConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SessionSecret, validation.Required, validation.Length(minSecretLen, 0)),
	)
}

// SeedConfig names a directory of Markdown stories imported into an empty catalog.
type SeedConfig struct {
	Dir string `yaml:"dir" env:"GAZETTE_SEED_DIR"`
}

// CORSConfig lists the origins allowed to call the REST API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"GAZETTE_CORS_ORIGINS" envSeparator:","`
}

// MCPConfig is the actor MCP tools act for.
type MCPConfig struct {
	User string `yaml:"user" env:"GAZETTE_MCP_USER"`
	Role string `yaml:"role" env:"GAZETTE_MCP_ROLE"`
}

// Actor returns the configured MCP actor.
func (c *MCPConfig) Actor() (policy.Actor, error) {
	a := policy.Actor{Username: c.User, Role: policy.ParseRole(c.Role)}
	if a.Role != policy.Guest && a.Anonymous() {
		return policy.Actor{}, errors.New("mcp: a user is required for the author and subscriber roles")
	}
	return a, nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 3000,
			},
		},
		Storage: StorageConfig{
			Driver: storage.DriverJSON,
			Path:   "./data/stories.json",
			Watch:  true,
		},
		Auth: AuthConfig{
			TokenTTL:   token.DefaultTTL,
			LoginRate:  5,
			LoginBurst: 10,
		},
		Web: WebConfig{
			CookieName: "gazette_session",
		},
		Seed: SeedConfig{
			Dir: "./seed",
		},
		MCP: MCPConfig{
			Role: policy.Guest.String(),
		},
	}
}
