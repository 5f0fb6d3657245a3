package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Rates are per-operation budgets, in points per rate window.
type Rates struct {
	Join           int `mapstructure:"join"`
	CodeChange     int `mapstructure:"code_change"`
	LanguageChange int `mapstructure:"language_change"`
	InputChange    int `mapstructure:"input_change"`
	ExecuteCode    int `mapstructure:"execute_code"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	MaxRooms       int           `mapstructure:"max_rooms"`
	MaxRoomMembers int           `mapstructure:"max_room_members"`
	RoomTTL        time.Duration `mapstructure:"room_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`

	RateWindow time.Duration `mapstructure:"rate_window"`
	Rates      Rates         `mapstructure:"rates"`

	ExecURL     string        `mapstructure:"exec_url"`
	ExecTimeout time.Duration `mapstructure:"exec_timeout"`
}

// Hardened reports whether raw internal error text must be replaced by
// fixed user-facing messages.
func (c *Config) Hardened() bool {
	return c.Mode == "release"
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")

	v.SetDefault("max_rooms", 1000)
	v.SetDefault("max_room_members", 50)
	v.SetDefault("room_ttl", "1h")
	v.SetDefault("sweep_interval", "5m")

	v.SetDefault("rate_window", "60s")
	v.SetDefault("rates.join", 10)
	v.SetDefault("rates.code_change", 1000)
	v.SetDefault("rates.language_change", 20)
	v.SetDefault("rates.input_change", 1000)
	v.SetDefault("rates.execute_code", 10)

	v.SetDefault("exec_url", "")
	v.SetDefault("exec_timeout", "30s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
