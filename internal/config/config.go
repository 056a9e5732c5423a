package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/securecookie"
	"gopkg.in/yaml.v3"

	appLog "parkalot/internal/log"
)

// DatabaseConfig selects the relational backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "mysql".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is passed to the driver unchanged (file path for sqlite).
	DSN string `yaml:"dsn" json:"dsn"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	// Secret is a hex-encoded key used to sign session cookies. Generated on
	// first run.
	Secret string `yaml:"secret" json:"-"`
	// MaxAge is the cookie lifetime in seconds.
	MaxAge int  `yaml:"max_age" json:"max_age"`
	Secure bool `yaml:"secure" json:"secure"`
}

// LoginLimitConfig throttles login attempts per client address.
type LoginLimitConfig struct {
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	Burst     int `yaml:"burst" json:"burst"`
}

// Config is the contents of the YAML config file.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to interpret submitted dates and
	// to render calendars (e.g. "America/Toronto").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the first column of the profile calendars, "sunday"
	// (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// CalendarMonths is the number of months drawn on the profile page,
	// starting with the current one.
	CalendarMonths int `yaml:"calendar_months" json:"calendar_months"`

	// Housekeeping is a cron-style schedule string (e.g. "*/15 * * * *")
	// for marking ended reservations as completed. "off" disables it.
	Housekeeping string `yaml:"housekeeping" json:"housekeeping"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Metrics toggles the /metrics endpoint.
	Metrics bool `yaml:"metrics" json:"metrics"`

	// BcryptCost is the work factor for password hashes.
	BcryptCost int `yaml:"bcrypt_cost" json:"bcrypt_cost"`

	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Session    SessionConfig    `yaml:"session" json:"session"`
	LoginLimit LoginLimitConfig `yaml:"login_limit" json:"login_limit"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "America/Toronto"
	defaultHousekeeping = "*/15 * * * *"
	defaultBcryptCost   = 10
	defaultSessionAge   = 7 * 24 * 60 * 60
)

// DefaultConfig is the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Timezone:       defaultTimezone,
		WeekStart:      "sunday",
		CalendarMonths: 2,
		Housekeeping:   defaultHousekeeping,
		LogLevel:       "info",
		Metrics:        true,
		BcryptCost:     defaultBcryptCost,
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "parkalot.db",
		},
		Session: SessionConfig{
			Secret: NewSecret(),
			MaxAge: defaultSessionAge,
		},
		LoginLimit: LoginLimitConfig{
			PerMinute: 10,
			Burst:     5,
		},
	}
}

// NewSecret returns a random hex-encoded 32 byte key.
func NewSecret() string {
	return hex.EncodeToString(securecookie.GenerateRandomKey(32))
}

// Normalize replaces zero and out of range values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		c.WeekStart = "sunday"
	}
	if c.CalendarMonths <= 0 {
		c.CalendarMonths = 2
	}
	if c.CalendarMonths > 12 {
		c.CalendarMonths = 12
	}
	if c.Housekeeping == "" {
		c.Housekeeping = defaultHousekeeping
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BcryptCost <= 0 {
		c.BcryptCost = defaultBcryptCost
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "parkalot.db"
	}
	if c.Session.Secret == "" {
		c.Session.Secret = NewSecret()
	}
	if c.Session.MaxAge <= 0 {
		c.Session.MaxAge = defaultSessionAge
	}
	if c.LoginLimit.PerMinute <= 0 {
		c.LoginLimit.PerMinute = 10
	}
	if c.LoginLimit.Burst <= 0 {
		c.LoginLimit.Burst = 5
	}
}

// Location resolves Timezone, falling back to time.Local when the name is
// unknown to the host's zoneinfo database.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SessionKey decodes the session secret. A secret that is not valid hex is
// used as raw bytes.
func (c *Config) SessionKey() []byte {
	if b, err := hex.DecodeString(c.Session.Secret); err == nil && len(b) > 0 {
		return b
	}
	return []byte(c.Session.Secret)
}

// Load reads the YAML file at path and fills in defaults. A missing file is
// not an error on first run: the defaults, including a freshly generated
// session secret, are written to path and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: empty path")
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		// Unsaved defaults still run, but the session secret changes on
		// every start.
		if err := Save(path, cfg); err != nil {
			appLog.Warn("config: defaults not saved", "path", path, "err", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save normalizes cfg and replaces the file at path with it. The file is
// written next to its destination and renamed into place, readable by the
// owner only since it carries the session secret.
func Save(path string, cfg *Config) error {
	switch {
	case path == "":
		return errors.New("config: empty path")
	case cfg == nil:
		return errors.New("config: nil config")
	}
	cfg.Normalize()

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o700); err != nil {
		return fmt.Errorf("config: create %s: %w", parent, err)
	}
	f, err := os.CreateTemp(parent, ".parkalot-config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer os.Remove(f.Name())

	if err := writeAndClose(f, out); err != nil {
		return fmt.Errorf("config: write %s: %w", f.Name(), err)
	}
	if err := os.Chmod(f.Name(), 0o600); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.Rename(f.Name(), path)
}

func writeAndClose(f *os.File, data []byte) error {
	_, err := f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
