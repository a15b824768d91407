// Package config loads mountd's configuration: compiled-in defaults,
// then an optional JSON file, then environment variables (including a
// local .env file) in increasing order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Serial  SerialConfig  `json:"serial"`
	Monitor MonitorConfig `json:"monitor"`
	Redis   RedisConfig   `json:"redis"`
	Power   PowerConfig   `json:"power"`
	Server  ServerConfig  `json:"server"`
}

type SerialConfig struct {
	// Port is the mount's serial device, e.g. /dev/ttyUSB0.
	Port string `json:"port"`
	// TimeoutSec bounds each protocol exchange.
	TimeoutSec float64 `json:"timeoutSec"`
}

type MonitorConfig struct {
	IntervalSec    float64 `json:"intervalSec"`
	AlertThreshold float64 `json:"alertThresholdDegPerSec"`
	HistoryEnabled bool    `json:"historyEnabled"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type PowerConfig struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port"`
	Baud    int    `json:"baud"`
}

type ServerConfig struct {
	Addr        string `json:"addr"`
	RotctldAddr string `json:"rotctldAddr"`
	StaticDir   string `json:"staticDir"`
}

func defaults() Config {
	return Config{
		Serial: SerialConfig{
			Port:       "/dev/ttyUSB0",
			TimeoutSec: 3.5,
		},
		Monitor: MonitorConfig{
			IntervalSec:    5,
			AlertThreshold: 5,
			HistoryEnabled: true,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "mount",
		},
		Power: PowerConfig{
			Baud: 19200,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8502",
			StaticDir: "static",
		},
	}
}

// Load reads path (if non-empty and present) over the defaults, then
// applies environment overrides. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := defaults()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("opening config %q: %w", path, err)
			}
		} else {
			defer f.Close()
			if err := json.NewDecoder(f).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("parsing config %q: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	envString("MOUNT_SERIAL_PORT", &cfg.Serial.Port)
	envFloat("MOUNT_SERIAL_TIMEOUT_SEC", &cfg.Serial.TimeoutSec)
	envFloat("MOUNT_MONITOR_INTERVAL_SEC", &cfg.Monitor.IntervalSec)
	envFloat("MOUNT_ALERT_THRESHOLD", &cfg.Monitor.AlertThreshold)
	envBool("MOUNT_HISTORY_ENABLED", &cfg.Monitor.HistoryEnabled)
	envBool("MOUNT_REDIS_ENABLED", &cfg.Redis.Enabled)
	envString("MOUNT_REDIS_ADDR", &cfg.Redis.Addr)
	envString("MOUNT_REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("MOUNT_REDIS_DB", &cfg.Redis.DB)
	envString("MOUNT_REDIS_PREFIX", &cfg.Redis.Prefix)
	envBool("MOUNT_POWER_ENABLED", &cfg.Power.Enabled)
	envString("MOUNT_POWER_PORT", &cfg.Power.Port)
	envInt("MOUNT_POWER_BAUD", &cfg.Power.Baud)
	envString("MOUNT_LISTEN_ADDR", &cfg.Server.Addr)
	envString("MOUNT_ROTCTLD_ADDR", &cfg.Server.RotctldAddr)
	envString("MOUNT_STATIC_DIR", &cfg.Server.StaticDir)
}

func envString(key string, dest *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dest = v
	}
}

func envFloat(key string, dest *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dest = f
		}
	}
}

func envInt(key string, dest *int) {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*dest = i
		}
	}
}

func envBool(key string, dest *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dest = b
		}
	}
}
