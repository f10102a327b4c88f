package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultMongoHost       = "mongodb://localhost:27017"
	DefaultAuthSource      = "admin"
	DefaultMongoTimeout    = 10 * time.Second
	DefaultAPIURL          = "https://platform-api.newrelic.com/platform/v1/metrics"
	DefaultShipTimeout     = 10 * time.Second
	DefaultPollCadenceSecs = 60
	DefaultLogLevel        = "info"
)

// Config is the top-level agent configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Mongo    MongoConfig    `yaml:"mongo"`
	NewRelic NewRelicConfig `yaml:"newrelic"`
	Agent    AgentConfig    `yaml:"agent"`
	Log      LogConfig      `yaml:"log"`
}

// MongoConfig describes the monitored server.
type MongoConfig struct {
	// Host is a mongodb:// connection URI.
	Host string `yaml:"host" validate:"required"`

	// Database selects the per-database lock statistics and names the
	// reported component.
	Database string `yaml:"database" validate:"required"`

	// User is optional; when set the password is read from PasswordEnv.
	User        string `yaml:"user"`
	PasswordEnv string `yaml:"password_env"`
	AuthSource  string `yaml:"auth_source"`

	// Timeout bounds connect and each serverStatus call.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Password returns the database password resolved from the environment.
// Returns empty string if PasswordEnv is unset or the variable is not found.
func (m MongoConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// NewRelicConfig describes the ingestion endpoint.
type NewRelicConfig struct {
	APIURL string `yaml:"api_url" validate:"required,url"`

	// LicenseKeyEnv names the environment variable holding the license key.
	// LicenseKey is a literal fallback for local setups.
	LicenseKeyEnv string `yaml:"license_key_env"`
	LicenseKey    string `yaml:"license_key"`

	// PluginGUID identifies the plugin in the envelope's component entry.
	PluginGUID string `yaml:"plugin_guid" validate:"required"`

	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	TLS TLSConfig `yaml:"tls"`
}

// Key returns the license key, preferring the environment variable.
func (n NewRelicConfig) Key() string {
	if n.LicenseKeyEnv != "" {
		if v := os.Getenv(n.LicenseKeyEnv); v != "" {
			return v
		}
	}
	return n.LicenseKey
}

// TLSConfig holds TLS dial options for the ingestion endpoint.
type TLSConfig struct {
	// CAFile is an optional PEM bundle added as the only trusted roots.
	CAFile string `yaml:"ca_file"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this against test endpoints.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AgentConfig holds loop and identity settings.
type AgentConfig struct {
	// PollCadenceSecs is both the tick interval and the envelope duration.
	PollCadenceSecs int `yaml:"poll_cadence_secs" validate:"min=1"`

	// Host is reported as agent.host; empty means os.Hostname().
	Host string `yaml:"host"`

	// TelemetryAddr is the listen address of the self-telemetry server,
	// e.g. ":9216". Empty disables it.
	TelemetryAddr string `yaml:"telemetry_addr"`
}

// Interval returns the poll cadence as a duration.
func (a AgentConfig) Interval() time.Duration {
	return time.Duration(a.PollCadenceSecs) * time.Second
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Mongo: MongoConfig{
			Host:       DefaultMongoHost,
			AuthSource: DefaultAuthSource,
			Timeout:    DefaultMongoTimeout,
		},
		NewRelic: NewRelicConfig{
			APIURL:  DefaultAPIURL,
			Timeout: DefaultShipTimeout,
		},
		Agent: AgentConfig{
			PollCadenceSecs: DefaultPollCadenceSecs,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

var validate = newValidator()

// newValidator reports fields by their yaml names so errors read like the
// config file ("newrelic.plugin_guid", not "NewRelic.PluginGUID").
func newValidator() func(*Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return func(cfg *Config) error {
		var msgs []string
		if err := v.Struct(cfg); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return err
			}
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
		}
		msgs = append(msgs, checkValues(cfg)...)
		if len(msgs) > 0 {
			return errors.New(strings.Join(msgs, "; "))
		}
		return nil
	}
}

// checkValues covers constraints the struct tags cannot express.
func checkValues(cfg *Config) []string {
	var msgs []string
	if u, err := url.Parse(cfg.NewRelic.APIURL); err == nil && cfg.NewRelic.APIURL != "" {
		if u.Scheme != "http" && u.Scheme != "https" {
			msgs = append(msgs, fmt.Sprintf("newrelic.api_url: unsupported scheme %q", u.Scheme))
		}
	}
	if !strings.HasPrefix(cfg.Mongo.Host, "mongodb://") && !strings.HasPrefix(cfg.Mongo.Host, "mongodb+srv://") && cfg.Mongo.Host != "" {
		msgs = append(msgs, "mongo.host must be a mongodb:// or mongodb+srv:// URI")
	}
	if cfg.Mongo.User != "" && cfg.Mongo.PasswordEnv == "" {
		msgs = append(msgs, "mongo.password_env is required when mongo.user is set")
	}
	if addr := cfg.Agent.TelemetryAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			msgs = append(msgs, fmt.Sprintf("agent.telemetry_addr: %v", err))
		}
	}
	return msgs
}

// fieldMessage renders one validator failure as "<yaml path> <problem>".
func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:] // drop the root type name
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be positive", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
