// Package config loads the agent configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultProvider     = "ollama"
	defaultModel        = "phi3.5:3.8b-mini-instruct-q4_K_M"
	defaultOllamaURL    = "http://localhost:11434"
	defaultMaxTokens    = 1000
	defaultModelTimeout = 120 * time.Second
	defaultDriver       = "sqlite"
	defaultDSN          = "data/northwind.sqlite"
	defaultDocsDir      = "docs"
	defaultConcurrency  = 1
	defaultMaxRepairs   = 2
	defaultListenAddr   = ":8080"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HYBRIDQA_"

type LLM struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	MaxTokens int64         `yaml:"max_tokens"`
	MaxTries  uint          `yaml:"max_tries"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Store struct {
	Driver         string        `yaml:"driver"`
	DSN            string        `yaml:"dsn"`
	SchemaCacheTTL time.Duration `yaml:"schema_cache_ttl"`
}

type Agent struct {
	// MaxRepairs is nil when unset so that an explicit 0 disables repairs.
	MaxRepairs     *int     `yaml:"max_repairs"`
	RetrieveK      int      `yaml:"retrieve_k"`
	BoostK         int      `yaml:"boost_k"`
	BoostQuery     string   `yaml:"boost_query"`
	PolicyKeywords []string `yaml:"policy_keywords"`
	MaxRowChars    int      `yaml:"max_row_chars"`
}

type Server struct {
	ListenAddr    string   `yaml:"listen_addr"`
	AllowedTokens []string `yaml:"allowed_tokens"`
}

type Config struct {
	LLM         LLM    `yaml:"llm"`
	Store       Store  `yaml:"store"`
	DocsDir     string `yaml:"docs_dir"`
	Agent       Agent  `yaml:"agent"`
	Concurrency int    `yaml:"concurrency"`
	Server      Server `yaml:"server"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads the YAML file at path (skipped when path is empty), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from HYBRIDQA_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LLM_PROVIDER": &c.LLM.Provider,
		"LLM_MODEL":    &c.LLM.Model,
		"LLM_BASE_URL": &c.LLM.BaseURL,
		"DB_DRIVER":    &c.Store.Driver,
		"DSN":          &c.Store.DSN,
		"DOCS_DIR":     &c.DocsDir,
		"LISTEN_ADDR":  &c.Server.ListenAddr,
		"METRICS_ADDR": &c.MetricsAddr,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPrefix + "MAX_REPAIRS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_REPAIRS: %w", EnvPrefix, err)
		}
		c.Agent.MaxRepairs = &n
	}
	if v, ok := lookup(EnvPrefix + "CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sCONCURRENCY: %w", EnvPrefix, err)
		}
		c.Concurrency = n
	}
	if v, ok := lookup(EnvPrefix + "LLM_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sLLM_TIMEOUT: %w", EnvPrefix, err)
		}
		c.LLM.Timeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultProvider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModel
	}
	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultOllamaURL
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = defaultMaxTokens
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = defaultModelTimeout
	}
	if c.Store.Driver == "" {
		c.Store.Driver = defaultDriver
	}
	if c.Store.DSN == "" {
		if c.Store.Driver != defaultDriver {
			return errors.New("store dsn is required for driver " + c.Store.Driver)
		}
		c.Store.DSN = defaultDSN
	}
	if c.DocsDir == "" {
		c.DocsDir = defaultDocsDir
	}
	if c.Agent.MaxRepairs == nil {
		n := defaultMaxRepairs
		c.Agent.MaxRepairs = &n
	}
	if *c.Agent.MaxRepairs < 0 {
		return errors.New("agent.max_repairs must not be negative")
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be positive")
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	return nil
}
