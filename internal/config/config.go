// Package config loads canopy.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/canopyhq/canopy/pkg/cookie"
	"github.com/canopyhq/canopy/pkg/db"
	"github.com/canopyhq/canopy/pkg/logger"
	"github.com/canopyhq/canopy/pkg/mailer"
	"github.com/canopyhq/canopy/pkg/mode"
	"github.com/canopyhq/canopy/pkg/redis"
	"github.com/canopyhq/canopy/pkg/storage"
)

var (
	ErrRead    = errors.New("config: failed to read file")
	ErrParse   = errors.New("config: failed to parse")
	ErrInvalid = errors.New("config: invalid")
)

// Guest policies for Application.Guest.
const (
	GuestDeny  = "deny"
	GuestAllow = "allow"
)

// Session stores for Session.Store.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Application Application    `yaml:"application"`
	Plugins     Plugins        `yaml:"plugins"`
	Database    db.Config      `yaml:"database"`
	Redis       redis.Config   `yaml:"redis"`
	Storage     storage.Config `yaml:"storage"`
	Session     Session        `yaml:"session"`
	Server      Server         `yaml:"server"`
	Log         logger.Config  `yaml:"log"`
	Cache       Cache          `yaml:"cache"`
	Mail        mailer.Config  `yaml:"mail"`
}

// Application controls how requests are dispatched.
type Application struct {
	// Namespace holds the built-in units and is applied to modes without one.
	Namespace   string `yaml:"namespace" env:"APP_NAMESPACE" envDefault:"canopy"`
	DefaultMode string `yaml:"default_mode" env:"APP_DEFAULT_MODE" envDefault:"user.response"`

	// ModeFilter is a prefix every requested mode must carry. Empty allows all.
	ModeFilter           string `yaml:"mode_filter" env:"APP_MODE_FILTER"`
	AuthenticationFailed string `yaml:"authentication_failed" env:"APP_AUTHENTICATION_FAILED" envDefault:"system.response:failed"`
	Guest                string `yaml:"guest" env:"APP_GUEST" envDefault:"deny"`

	// Namespaces may be named explicitly in modes. Unset leaves every
	// registered namespace reachable.
	Namespaces []string      `yaml:"namespaces" env:"APP_NAMESPACES" envSeparator:","`
	LoginDelay time.Duration `yaml:"login_delay" env:"APP_LOGIN_DELAY" envDefault:"3s"`

	// BaseURL is where mailed links point.
	BaseURL string `yaml:"base_url" env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
}

// AllowGuest reports whether unauthenticated callers become guests.
func (a Application) AllowGuest() bool {
	return a.Guest == GuestAllow
}

// Plugins lists the plugin namespaces to register.
type Plugins struct {
	Enabled []string `yaml:"enabled" env:"PLUGINS_ENABLED" envSeparator:","`
}

func (p Plugins) IsEnabled(name string) bool {
	return slices.Contains(p.Enabled, name)
}

type Session struct {
	Store      string        `yaml:"store" env:"SESSION_STORE" envDefault:"memory"`
	CookieName string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" envDefault:"canopy_sid"`
	Secret     string        `yaml:"secret" env:"SESSION_SECRET"`
	Domain     string        `yaml:"domain" env:"SESSION_DOMAIN"`
	MaxAge     time.Duration `yaml:"max_age" env:"SESSION_MAX_AGE" envDefault:"168h"`
	Secure     bool          `yaml:"secure" env:"SESSION_SECURE"`
}

type Server struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" envDefault:":8080"`
	MetricsPath     string        `yaml:"metrics_path" env:"SERVER_METRICS_PATH" envDefault:"/metrics"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Cache holds the permission cache settings. Redis is used when configured.
type Cache struct {
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" envDefault:"1m"`
}

// Load reads path, applies environment overrides and validates the
// result. An empty path uses the environment and defaults alone.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Join(ErrRead, err)
		}
	}
	return parse(data, env.Options{})
}

// noDefaults is a tag no field declares, so a pass with it as the default
// tag only applies variables that are set.
const noDefaults = "nodefault"

// parse layers defaults, then the file, then the environment. The first env
// pass fills defaults (and any set variables) on an empty Config. The file
// is decoded on top of it. The second pass reapplies only the variables that
// are actually set, so they win over the file.
func parse(data []byte, opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, errors.Join(ErrParse, err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Join(ErrParse, err)
		}
		opts.DefaultValueTagName = noDefaults
		if err := env.ParseWithOptions(cfg, opts); err != nil {
			return nil, errors.Join(ErrParse, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	app := c.Application
	if !mode.Valid(app.DefaultMode) {
		fail("application.default_mode %q is not a mode", app.DefaultMode)
	}
	if !mode.Valid(app.AuthenticationFailed) {
		fail("application.authentication_failed %q is not a mode", app.AuthenticationFailed)
	}
	if app.Guest != GuestAllow && app.Guest != GuestDeny {
		fail("application.guest must be %q or %q", GuestAllow, GuestDeny)
	}
	if app.LoginDelay < 0 {
		fail("application.login_delay must not be negative")
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if !c.Redis.Enabled() {
			fail("session.store is redis but redis.url is empty")
		}
	default:
		fail("session.store must be %q or %q", StoreMemory, StoreRedis)
	}
	if s := c.Session.Secret; s != "" && len(s) < cookie.MinSecretLength {
		fail("session.secret must be at least %d bytes", cookie.MinSecretLength)
	}
	switch c.Mail.Provider {
	case mailer.ProviderNone, mailer.ProviderLog:
	case mailer.ProviderResend:
		if c.Mail.APIKey == "" {
			fail("mail.api_key is required for the resend provider")
		}
	default:
		fail("mail.provider must be %q, %q or %q", mailer.ProviderNone, mailer.ProviderLog, mailer.ProviderResend)
	}
	if c.Mail.Enabled() && !strings.HasPrefix(c.Application.BaseURL, "http") {
		fail("application.base_url %q is not an http URL", c.Application.BaseURL)
	}
	if c.Server.Addr == "" {
		fail("server.addr is required")
	}

	return errors.Join(errs...)
}
