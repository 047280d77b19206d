package types

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the service configuration. Field tags match config.yaml keys.
type Config struct {
	DataDir         string          `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Timezone        string          `json:"timezone" yaml:"timezone" mapstructure:"timezone"`
	Schedule        ScheduleConfig  `json:"schedule" yaml:"schedule" mapstructure:"schedule"`
	Storage         StorageConfig   `json:"storage" yaml:"storage" mapstructure:"storage"`
	Transport       TransportConfig `json:"transport" yaml:"transport" mapstructure:"transport"`
	Server          ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Log             LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	ShutdownTimeout time.Duration   `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ScheduleConfig controls the daily sweep.
type ScheduleConfig struct {
	At      string `json:"at" yaml:"at" mapstructure:"at"`                // HH:MM local wall-clock time.
	LeapDay string `json:"leap_day" yaml:"leap_day" mapstructure:"leap_day"` // exact or feb28.
}

// StorageConfig selects and parameterizes the record store.
type StorageConfig struct {
	Driver      string `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN         string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	JSONLMirror bool   `json:"jsonl_mirror" yaml:"jsonl_mirror" mapstructure:"jsonl_mirror"`
}

// TransportConfig selects the messaging transport.
type TransportConfig struct {
	Driver  string        `json:"driver" yaml:"driver" mapstructure:"driver"`
	URL     string        `json:"url" yaml:"url" mapstructure:"url"`
	Token   string        `json:"token" yaml:"token" mapstructure:"token"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig controls the optional HTTP surface.
type ServerConfig struct {
	Listen     string `json:"listen" yaml:"listen" mapstructure:"listen"`
	APIKeyHash string `json:"api_key_hash" yaml:"api_key_hash" mapstructure:"api_key_hash"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Supported driver and policy names.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"

	TransportStdout  = "stdout"
	TransportWebhook = "webhook"

	LeapDayExact = "exact"
	LeapDayFeb28 = "feb28"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults applied by DefaultConfig.
const (
	DefaultSweepAt          = "09:00"
	DefaultTimezone         = "Local"
	DefaultTransportTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
)

// Config validation errors.
var (
	ErrStorageDriverUnknown   = errors.New("unknown storage driver")
	ErrTransportDriverUnknown = errors.New("unknown transport driver")
	ErrTransportCredential    = errors.New("webhook transport requires url and token")
	ErrSweepTimeInvalid       = errors.New("schedule.at must be HH:MM")
	ErrTimezoneInvalid        = errors.New("unknown timezone")
	ErrLeapDayPolicyUnknown   = errors.New("unknown leap day policy")
	ErrLogFormatUnknown       = errors.New("unknown log format")
)

var knownStorageDrivers = map[string]bool{
	StorageSQLite: true,
	StorageMemory: true,
}

var knownTransportDrivers = map[string]bool{
	TransportStdout:  true,
	TransportWebhook: true,
}

var knownLeapDayPolicies = map[string]bool{
	LeapDayExact: true,
	LeapDayFeb28: true,
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() Config {
	return Config{
		Timezone: DefaultTimezone,
		Schedule: ScheduleConfig{
			At:      DefaultSweepAt,
			LeapDay: LeapDayExact,
		},
		Storage: StorageConfig{
			Driver: StorageSQLite,
		},
		Transport: TransportConfig{
			Driver:  TransportStdout,
			Timeout: DefaultTransportTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package, possibly wrapped with the offending value.
func (c Config) Validate() error {
	if !knownStorageDrivers[c.Storage.Driver] {
		return fmt.Errorf("%w: %q", ErrStorageDriverUnknown, c.Storage.Driver)
	}
	if !knownTransportDrivers[c.Transport.Driver] {
		return fmt.Errorf("%w: %q", ErrTransportDriverUnknown, c.Transport.Driver)
	}
	if c.Transport.Driver == TransportWebhook && (c.Transport.URL == "" || c.Transport.Token == "") {
		return ErrTransportCredential
	}
	if _, _, err := ParseClock(c.Schedule.At); err != nil {
		return err
	}
	if !knownLeapDayPolicies[c.Schedule.LeapDay] {
		return fmt.Errorf("%w: %q", ErrLeapDayPolicyUnknown, c.Schedule.LeapDay)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrLogFormatUnknown, c.Log.Format)
	}
	return nil
}

// Location resolves Timezone. Empty and "Local" mean the process zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == DefaultTimezone {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrTimezoneInvalid, c.Timezone)
	}
	return loc, nil
}

// ParseClock parses an HH:MM wall-clock time. Single-digit hours ("9:00")
// are accepted.
func ParseClock(s string) (hour, minute int, err error) {
	t, perr := time.Parse("15:04", s)
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrSweepTimeInvalid, s)
	}
	return t.Hour(), t.Minute(), nil
}
