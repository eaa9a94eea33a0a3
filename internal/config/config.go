package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	API      struct {
		BaseURL string `json:"base_url"`
	} `json:"api"`
	Generator struct {
		BaseURL string `json:"base_url"`
	} `json:"generator"`
	Generate struct {
		BatchSize     int  `json:"batch_size"`
		SendBlockHash bool `json:"send_block_hash"`
	} `json:"generate"`
	HTTP struct {
		// TimeoutSeconds bounds each backend request. 0 disables the timeout.
		TimeoutSeconds int `json:"timeout_seconds"`
	} `json:"http"`
	Ledger struct {
		PreviewLimit int `json:"preview_limit"`
	} `json:"ledger"`
	Preview struct {
		Addr string `json:"addr"`
	} `json:"preview"`
}

// DefaultPath is ~/.pixledger/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".pixledger", "config.json")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".pixledger"),
		LogLevel: "info",
	}
	cfg.API.BaseURL = "http://127.0.0.1:8080"
	cfg.Generator.BaseURL = "http://127.0.0.1:5000"
	cfg.Generate.BatchSize = 9
	cfg.Generate.SendBlockHash = true
	cfg.Ledger.PreviewLimit = 5
	cfg.Preview.Addr = "127.0.0.1:8090"
	return cfg
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if v := os.Getenv("PIXLEDGER_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("PIXLEDGER_GENERATOR_URL"); v != "" {
		cfg.Generator.BaseURL = v
	}
	if v := os.Getenv("PIXLEDGER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PIXLEDGER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Generate.BatchSize < 1 {
		return fmt.Errorf("generate.batch_size must be at least 1, got %d", c.Generate.BatchSize)
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must not be negative, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.Ledger.PreviewLimit < 1 {
		return fmt.Errorf("ledger.preview_limit must be at least 1, got %d", c.Ledger.PreviewLimit)
	}
	return nil
}

// Timeout returns the per-request backend timeout; zero means none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into its nested JSON map form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every setting keyed by its dot-separated path.
func ListValues(cfg *Config) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	return Flatten(m), nil
}

// GetValue reads one dot-separated key from the config at path.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	// Keys set by hand but unknown to Config survive only in the file.
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	flat := Flatten(raw)
	for k, v := range Flatten(m) {
		flat[k] = v
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores value under key in the existing config file at path.
// Values that parse as JSON (numbers, booleans) keep their type; anything
// else is stored as a string.
func SetValue(path, key, value string) error {
	raw, err := readRaw(path)
	if err != nil {
		return err
	}
	flat := Flatten(raw)

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	flat[key] = parsed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var check Config
	if err := json.Unmarshal(data, &check); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return writeFile(path, data)
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}
