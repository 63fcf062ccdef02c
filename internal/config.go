package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/photolog/internal/gallery"
	"github.com/starford/photolog/internal/prefs"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Share modes.
const (
	ShareModeEvents   = "events"   // photo.share SSE event to connected clients
	ShareModeCommand  = "command"  // external program
	ShareModeDisabled = "disabled" // every share fails
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Media   MediaConfig       `yaml:"media"`
	Prefs   PrefsConfig       `yaml:"prefs"`
	Capture CaptureConfig     `yaml:"capture"`
	Share   ShareConfig       `yaml:"share"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Media.Validate(); err != nil {
		return fmt.Errorf("media: %w", err)
	}
	if err := c.Prefs.Validate(); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Share.Validate(); err != nil {
		return fmt.Errorf("share: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
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

// MediaConfig holds the directory captured photos are written to.
type MediaConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the media configuration.
func (c *MediaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PrefsConfig selects the key-value store the photo index lives in.
//
// DSN is a file path for the sqlite drivers and a redis:// URL for redis.
// It is ignored by the memory driver.
type PrefsConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Key    string `yaml:"key"`
}

// Validate validates the preferences configuration.
func (c *PrefsConfig) Validate() error {
	if c.Key == "" {
		c.Key = gallery.DefaultIndexKey
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(prefs.DriverSQLite3, prefs.DriverSQLite, prefs.DriverRedis, prefs.DriverMemory)),
		validation.Field(&c.DSN, validation.When(c.Driver != prefs.DriverMemory, validation.Required)),
	)
}

// CaptureConfig configures the default capture device.
//
// When Inbox is set, a capture waits for the next image file dropped into
// that directory. Wait bounds that wait; zero waits until the request ends.
type CaptureConfig struct {
	Inbox string        `yaml:"inbox"`
	Wait  time.Duration `yaml:"wait"`
}

// Validate validates the capture configuration.
func (c *CaptureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Wait, validation.Min(time.Duration(0))),
	)
}

// ShareConfig configures the share target.
type ShareConfig struct {
	Mode    string   `yaml:"mode"`
	Command []string `yaml:"command"` // argv; the payload is appended
	Text    string   `yaml:"text"`
}

// Validate validates the share configuration.
func (c *ShareConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = ShareModeEvents
	}
	if c.Text == "" {
		c.Text = gallery.DefaultShareText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required,
			validation.In(ShareModeEvents, ShareModeCommand, ShareModeDisabled)),
		validation.Field(&c.Command, validation.When(c.Mode == ShareModeCommand, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Media: MediaConfig{
			Path: "./media",
		},
		Prefs: PrefsConfig{
			Driver: prefs.DriverSQLite3,
			DSN:    "./photolog.db",
			Key:    gallery.DefaultIndexKey,
		},
		Share: ShareConfig{
			Mode: ShareModeEvents,
			Text: gallery.DefaultShareText,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
