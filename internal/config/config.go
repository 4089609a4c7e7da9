package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "mlmdq.yml"

// Config models mlmdq.yml.
type Config struct {
	Store struct {
		URL string `yaml:"url"`
	} `yaml:"store"`
	Query struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"query"`
	Graph struct {
		MaxDepth    int    `yaml:"max_depth"`
		Concurrency int    `yaml:"concurrency"`
		Format      string `yaml:"format"`
	} `yaml:"graph"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
}

// Default returns the config used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Query.PageSize = 100
	cfg.Graph.Concurrency = 8
	cfg.Graph.Format = "dot"
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	return &cfg
}

// Validate ensures the config meets required structure. An empty store URL
// is accepted here; RequireStore checks it once flags have been applied.
func (c *Config) Validate() error {
	if c.Query.PageSize < 0 {
		return fmt.Errorf("config.query.page_size must not be negative")
	}
	if c.Graph.MaxDepth < 0 {
		return fmt.Errorf("config.graph.max_depth must not be negative")
	}
	if c.Graph.Concurrency < 0 {
		return fmt.Errorf("config.graph.concurrency must not be negative")
	}
	switch strings.ToLower(c.Graph.Format) {
	case "", "dot", "json":
	default:
		return fmt.Errorf("config.graph.format must be dot or json, got %q", c.Graph.Format)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// RequireStore reports a missing store URL.
func (c *Config) RequireStore() error {
	if strings.TrimSpace(c.Store.URL) == "" {
		return fmt.Errorf("store url is required; set --db, MLMDQ_DB, MLMD_DB or store.url in %s", FileName)
	}
	return nil
}

// Path returns the config file path for a directory.
func Path(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, FileName)
}

// Load reads and validates config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns Default() if the config file does not exist.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses config over the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
