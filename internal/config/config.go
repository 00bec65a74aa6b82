package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config defines rfpwatch configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Documents DocumentsConfig `yaml:"documents"`
	Guard     GuardConfig     `yaml:"guard"`
	Batch     BatchConfig     `yaml:"batch"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig locates the backing file host.
type StoreConfig struct {
	Owner          string `yaml:"owner"`
	Repo           string `yaml:"repo"`
	Branch         string `yaml:"branch"`
	Token          string `yaml:"token"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DocumentsConfig names the collection documents inside the store.
type DocumentsConfig struct {
	RFPs  string `yaml:"rfps"`
	Sites string `yaml:"sites"`
}

// GuardConfig tunes the CAS retry loop.
type GuardConfig struct {
	MaxRetries    int `yaml:"max_retries"`
	BackoffMillis int `yaml:"backoff_millis"`
}

// BatchConfig bounds mutation batches.
type BatchConfig struct {
	MaxOperations int `yaml:"max_operations"`
}

// OutboxConfig locates the local durable queue.
type OutboxConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the MCP surface.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"` // "stdio" or "http"
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment
// variables. Env overrides win over the file.
func Load() (Config, error) {
	cfg := Config{
		Store: StoreConfig{
			Branch:         "main",
			TimeoutSeconds: 30,
		},
		Documents: DocumentsConfig{
			RFPs:  "data/rfps.json",
			Sites: "data/sites.json",
		},
		Guard: GuardConfig{
			MaxRetries:    3,
			BackoffMillis: 100,
		},
		Batch: BatchConfig{
			MaxOperations: 50,
		},
		Outbox: OutboxConfig{
			Path: "rfpwatch-outbox.db",
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			Transport: "stdio",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("RFPWATCH_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if repo := os.Getenv("RFPWATCH_STORE_REPO"); repo != "" {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok {
			return Config{}, fmt.Errorf("invalid RFPWATCH_STORE_REPO %q: want owner/repo", repo)
		}
		cfg.Store.Owner = owner
		cfg.Store.Repo = name
	}
	if branch := os.Getenv("RFPWATCH_STORE_BRANCH"); branch != "" {
		cfg.Store.Branch = branch
	}
	if token := os.Getenv("RFPWATCH_GITHUB_TOKEN"); token != "" {
		cfg.Store.Token = token
	}
	if path := os.Getenv("RFPWATCH_OUTBOX_PATH"); path != "" {
		cfg.Outbox.Path = path
	}
	if host := os.Getenv("RFPWATCH_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("RFPWATCH_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RFPWATCH_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("RFPWATCH_TRANSPORT"); mode != "" {
		cfg.Server.Transport = mode
	}
	if level := os.Getenv("RFPWATCH_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
