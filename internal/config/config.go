package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Device struct {
	Address        string `mapstructure:"address"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type Datadog struct {
	Enabled   bool     `mapstructure:"enabled"`
	AgentAddr string   `mapstructure:"agent_addr"`
	Namespace string   `mapstructure:"namespace"`
	Tags      []string `mapstructure:"tags"`
}

type Notifications struct {
	Server           string `mapstructure:"server"`
	Topic            string `mapstructure:"topic"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
}

type Config struct {
	ConfigFile string        `mapstructure:"-"`
	LogLevel   zerolog.Level `mapstructure:"-"`

	Name              string `mapstructure:"name"`
	EntityID          string `mapstructure:"entity_id"`
	TemperatureEntity string `mapstructure:"temperature_entity"`
	Device            Device `mapstructure:"device"`

	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	SettleDelayMillis   int `mapstructure:"settle_delay_ms"`

	MinTemp  float64 `mapstructure:"min_temp"`
	MaxTemp  float64 `mapstructure:"max_temp"`
	TempStep float64 `mapstructure:"temp_step"`

	APIPort int     `mapstructure:"api_port"`
	DBPath  string  `mapstructure:"db_path"`
	LogFile string  `mapstructure:"log_file"`
	Datadog Datadog `mapstructure:"datadog"`

	Notifications Notifications `mapstructure:"notifications"`
}

var defaults = map[string]any{
	"name":                   "Tesy Convector",
	"entity_id":              "climate.tesy_convector",
	"temperature_entity":     "",
	"device.address":         "",
	"device.model":           "",
	"device.timeout_seconds": 10,
	"poll_interval_seconds":  10,
	"settle_delay_ms":        100,
	"min_temp":               10.0,
	"max_temp":               30.0,
	"temp_step":              1.0,
	"api_port":               8080,
	"db_path":                "data/tesy.db",
	"log_file":               "",
	"datadog.enabled":        false,
	"datadog.agent_addr":     "127.0.0.1:8125",
	"datadog.namespace":      "tesy.",
	"datadog.tags":           []string{},

	"notifications.server":            "https://ntfy.sh",
	"notifications.topic":             "",
	"notifications.failure_threshold": 3,
}

func Load() Config {
	var configFile, logLevel string

	flag.StringVar(&configFile, "config-file", "config.json", "Path to convector config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := LoadFile(configFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	cfg.LogLevel = ParseLogLevel(logLevel)

	cfg.validate()
	return cfg
}

// LoadFile reads the config file at path, layering TESY_* environment
// variables over it (TESY_DEVICE_ADDRESS overrides device.address).
func LoadFile(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("TESY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.ConfigFile = path
	cfg.LogLevel = zerolog.InfoLevel
	return cfg, nil
}

func ParseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalSeconds) * time.Second
}

func (cfg Config) SettleDelay() time.Duration {
	return time.Duration(cfg.SettleDelayMillis) * time.Millisecond
}

func (cfg Config) DeviceTimeout() time.Duration {
	return time.Duration(cfg.Device.TimeoutSeconds) * time.Second
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.Device.Address == "" {
		problems = append(problems, "device.address is required")
	}
	if cfg.EntityID == "" || !strings.Contains(cfg.EntityID, ".") {
		problems = append(problems, fmt.Sprintf("entity_id %q must look like domain.object_id", cfg.EntityID))
	}
	if cfg.TemperatureEntity != "" && !strings.Contains(cfg.TemperatureEntity, ".") {
		problems = append(problems, fmt.Sprintf("temperature_entity %q must look like domain.object_id", cfg.TemperatureEntity))
	}
	if cfg.PollIntervalSeconds <= 0 {
		problems = append(problems, "poll_interval_seconds must be positive")
	}
	if cfg.SettleDelayMillis < 0 {
		problems = append(problems, "settle_delay_ms must not be negative")
	}
	if cfg.MinTemp >= cfg.MaxTemp {
		problems = append(problems, fmt.Sprintf("min_temp %.1f must be below max_temp %.1f", cfg.MinTemp, cfg.MaxTemp))
	}
	if cfg.Notifications.Topic != "" && cfg.Notifications.FailureThreshold <= 0 {
		problems = append(problems, "notifications.failure_threshold must be positive")
	}
	if cfg.TempStep <= 0 {
		problems = append(problems, "temp_step must be positive")
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, ", "))
	}
}
