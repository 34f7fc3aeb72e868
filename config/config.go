package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         int    `yaml:"port"`
	DBPath       string `yaml:"db_path"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	ControlSock  string `yaml:"control_sock"`
}

const defaultConfigPath = "duochat.yml"

// Load builds the server configuration from defaults, an optional yaml file
// and environment overrides, in that order. The file path comes from
// DUOCHAT_CONFIG, falling back to ./duochat.yml if present.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         3216,
		DBPath:       "duochat.db",
		ReadTimeout:  120,
		WriteTimeout: 30,
		ControlSock:  "/tmp/duochat.sock",
	}

	path := os.Getenv("DUOCHAT_CONFIG")
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if portStr := os.Getenv("DUOCHAT_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	if dbPath := os.Getenv("DUOCHAT_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if timeoutStr := os.Getenv("DUOCHAT_READ_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if timeoutStr := os.Getenv("DUOCHAT_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	if sock := os.Getenv("DUOCHAT_CONTROL_SOCK"); sock != "" {
		cfg.ControlSock = sock
	}
}
