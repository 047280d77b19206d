package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cakeday/internal/paths"
	"github.com/mesh-intelligence/cakeday/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "CAKEDAY"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# cakeday configuration
# Every key can be overridden with a CAKEDAY_ environment variable,
# e.g. CAKEDAY_SCHEDULE_AT=08:30 or CAKEDAY_TRANSPORT_TOKEN=...

# Data directory (optional; overridable by --data-dir)
# data_dir:

# IANA zone that decides "today"; Local is the process zone.
timezone: Local

schedule:
  at: "09:00"
  # exact: February 29 events fire only on February 29.
  # feb28: they also fire on February 28 in common years.
  leap_day: exact

storage:
  driver: sqlite
  # dsn: empty means <data_dir>/cakeday.db
  jsonl_mirror: false

transport:
  driver: stdout
  # url:
  # token:
  timeout: 10s

# HTTP surface; disabled while listen is empty.
# server:
#   listen: "127.0.0.1:8080"
#   api_key_hash: output of "cakeday hash-key"

log:
  level: info
  format: text

shutdown_timeout: 30s
`

// fileConfig is the subset of config.yaml read before viper, for keys whose
// precedence differs from the viper chain.
type fileConfig struct {
	DataDir string `yaml:"data_dir"`
}

// loadConfig resolves the effective configuration: flags > CAKEDAY_*
// environment > config.yaml > defaults. The config directory and a default
// config.yaml are created on first run; a missing file is not an error.
func loadConfig(configDir string, flags *pflag.FlagSet) (types.Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.Config{}, fmt.Errorf("create config dir: %w", err)
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir)); err != nil {
		return types.Config{}, fmt.Errorf("write default config: %w", err)
	}

	v := viper.New()
	setDefaults(v, types.DefaultConfig())
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	for key, flag := range map[string]string{
		"schedule.at":   "sweep-at",
		"server.listen": "listen",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return types.Config{}, fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}

	dataDirFlag, _ := flags.GetString("data-dir")
	dataDir, err := paths.ResolveDataDir(dataDirFlag, loadDataDirFromConfig(paths.ConfigFile(configDir)))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir
	return cfg, nil
}

// setDefaults registers every key so that environment overrides reach
// Unmarshal even when config.yaml omits the key.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("data_dir", "")
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("schedule.at", d.Schedule.At)
	v.SetDefault("schedule.leap_day", d.Schedule.LeapDay)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("storage.jsonl_mirror", d.Storage.JSONLMirror)
	v.SetDefault("transport.driver", d.Transport.Driver)
	v.SetDefault("transport.url", d.Transport.URL)
	v.SetDefault("transport.token", d.Transport.Token)
	v.SetDefault("transport.timeout", d.Transport.Timeout)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.api_key_hash", d.Server.APIKeyHash)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
}

// writeConfigIfMissing creates config.yaml with default values. An existing
// file is left alone.
func writeConfigIfMissing(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// loadDataDirFromConfig reads data_dir straight from config.yaml, ignoring
// the environment. Returns "" if the file cannot be read.
func loadDataDirFromConfig(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return ""
	}
	return fc.DataDir
}
