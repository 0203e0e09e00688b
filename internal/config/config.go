package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig selects and parameterizes the rendering engine backend.
type EngineConfig struct {
	Kind   string `json:"kind" mapstructure:"kind"`
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// SimConfig holds entity movement simulation defaults for demo mode.
type SimConfig struct {
	Seed          int64   `json:"seed" mapstructure:"seed"`
	Vehicles      int     `json:"vehicles" mapstructure:"vehicles"`
	TickMs        int     `json:"tickMs" mapstructure:"tickMs"`
	PlaybackSpeed float64 `json:"playbackSpeed" mapstructure:"playbackSpeed"`
}

// OTelConfig holds OpenTelemetry provider settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./maprtlogs")
	viper.SetDefault("nominalCapacity", 100)

	viper.SetDefault("listen.address", "127.0.0.1:8797")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("engine.kind", "memory")
	viper.SetDefault("engine.url", "ws://localhost:8798/canvas")
	viper.SetDefault("engine.secret", "")

	viper.SetDefault("map.loadTimeout", "30s")
	viper.SetDefault("map.mode", "live")

	viper.SetDefault("sim.seed", 1)
	viper.SetDefault("sim.vehicles", 12)
	viper.SetDefault("sim.tickMs", 1000)
	viper.SetDefault("sim.playbackSpeed", 1.0)

	viper.SetDefault("replay.enabled", true)
	viper.SetDefault("replay.sqlitePath", "./maprt_replay.db")
	viper.SetDefault("replay.flushInterval", "5s")
	viper.SetDefault("replay.db.host", "localhost")
	viper.SetDefault("replay.db.port", "5432")
	viper.SetDefault("replay.db.username", "postgres")
	viper.SetDefault("replay.db.password", "postgres")
	viper.SetDefault("replay.db.database", "maprt")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "maprt-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "maprtd")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("maprtd.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetEngineConfig returns the rendering engine backend settings.
func GetEngineConfig() EngineConfig {
	return EngineConfig{
		Kind:   viper.GetString("engine.kind"),
		URL:    viper.GetString("engine.url"),
		Secret: viper.GetString("engine.secret"),
	}
}

// GetSimConfig returns demo simulation defaults.
func GetSimConfig() SimConfig {
	return SimConfig{
		Seed:          viper.GetInt64("sim.seed"),
		Vehicles:      viper.GetInt("sim.vehicles"),
		TickMs:        viper.GetInt("sim.tickMs"),
		PlaybackSpeed: viper.GetFloat64("sim.playbackSpeed"),
	}
}

// GetLoadTimeout returns the engine load stall timeout, falling back to the
// default on unparsable values.
func GetLoadTimeout() time.Duration {
	d, err := time.ParseDuration(viper.GetString("map.loadTimeout"))
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetOTelConfig returns OpenTelemetry provider settings.
func GetOTelConfig() OTelConfig {
	batchTimeout, err := time.ParseDuration(viper.GetString("otel.batchTimeout"))
	if err != nil || batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: batchTimeout,
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
