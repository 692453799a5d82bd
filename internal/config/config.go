package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level investd.yaml configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Accrual       AccrualConfig       `yaml:"accrual"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

type ServerConfig struct {
	Addr                 string `yaml:"addr"`
	ReadTimeoutSeconds   int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds  int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds   int    `yaml:"idle_timeout_seconds"`
	ShutdownGraceSeconds int    `yaml:"shutdown_grace_seconds"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type AccrualConfig struct {
	Workers int `yaml:"workers"`
}

type NotificationsConfig struct {
	Workers int `yaml:"workers"`
}

// Load reads an investd.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                 ":8080",
			ReadTimeoutSeconds:   30,
			WriteTimeoutSeconds:  30,
			IdleTimeoutSeconds:   60,
			ShutdownGraceSeconds: 30,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Accrual: AccrualConfig{
			Workers: 10,
		},
		Notifications: NotificationsConfig{
			Workers: 3,
		},
	}
}
