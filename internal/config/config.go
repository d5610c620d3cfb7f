package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alvmarrod/wiki-weaver/internal/version"
	"gopkg.in/yaml.v3"
)

// Topic policies understood by the classifier
const (
	PolicyStrict  = "strict"
	PolicyRelaxed = "relaxed"
)

// DefaultAPIURL is the English Wikipedia action API
const DefaultAPIURL = "https://en.wikipedia.org/w/api.php"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultSeeds are crawled when the configuration names none
var DefaultSeeds = []string{"Technology", "Science", "Mathematics", "History"}

// Config holds all runtime configuration parameters
type Config struct {
	Seeds                []string `json:"seeds" yaml:"seeds"`
	MaxDepth             int      `json:"max_depth" yaml:"max_depth"`
	MaxNewTopics         int      `json:"max_new_topics" yaml:"max_new_topics"`
	ConcurrentWorkers    int      `json:"concurrent_workers" yaml:"concurrent_workers"`
	RequestTimeoutMs     int      `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	APIURL               string   `json:"api_url" yaml:"api_url"`
	UserAgent            string   `json:"user_agent" yaml:"user_agent"`
	TopicPolicy          string   `json:"topic_policy" yaml:"topic_policy"`
	MainNamespaceOnly    bool     `json:"main_namespace_only" yaml:"main_namespace_only"`
	MaxLinkPages         int      `json:"max_link_pages" yaml:"max_link_pages"`
	EdgesCSVPath         string   `json:"edges_csv_path" yaml:"edges_csv_path"`
	EdgesJSONPath        string   `json:"edges_json_path" yaml:"edges_json_path"`
	FrontierDir          string   `json:"frontier_dir" yaml:"frontier_dir"`
	DBPath               string   `json:"db_path" yaml:"db_path"`
	MetricsPath          string   `json:"metrics_path" yaml:"metrics_path"`
	LegacyFrontierFormat bool     `json:"legacy_frontier_format" yaml:"legacy_frontier_format"`
}

// LoadConfig reads and validates configuration from a JSON or YAML file.
// The format is chosen by extension (.yaml/.yml for YAML, JSON otherwise).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the configuration; call it again after overriding fields
// from flags
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// applyDefaults sets default values for unspecified fields. A zero
// max_new_topics in a file means "unset"; a zero budget can still be forced
// from the command line.
func applyDefaults(cfg *Config) {
	if len(cfg.Seeds) == 0 {
		cfg.Seeds = append([]string(nil), DefaultSeeds...)
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 3
	}
	if cfg.MaxNewTopics == 0 {
		cfg.MaxNewTopics = 10000
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = runtime.NumCPU()
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wiki-weaver/" + version.Version + " (topic graph crawler)"
	}
	if cfg.TopicPolicy == "" {
		cfg.TopicPolicy = PolicyStrict
	}
	if cfg.MaxLinkPages == 0 {
		cfg.MaxLinkPages = 1
	}
	if cfg.EdgesCSVPath == "" {
		cfg.EdgesCSVPath = "topics_combined.csv"
	}
	if cfg.EdgesJSONPath == "" {
		cfg.EdgesJSONPath = "topics_combined.json"
	}
	if cfg.FrontierDir == "" {
		cfg.FrontierDir = "."
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	for _, seed := range cfg.Seeds {
		if strings.TrimSpace(seed) == "" {
			return fmt.Errorf("seeds must not contain empty titles")
		}
	}
	if cfg.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be >= 1")
	}
	if cfg.MaxNewTopics < 0 {
		return fmt.Errorf("max_new_topics must be >= 0")
	}
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.TopicPolicy != PolicyStrict && cfg.TopicPolicy != PolicyRelaxed {
		return fmt.Errorf("topic_policy must be %q or %q, got %q", PolicyStrict, PolicyRelaxed, cfg.TopicPolicy)
	}
	if cfg.MaxLinkPages < 1 {
		return fmt.Errorf("max_link_pages must be >= 1")
	}
	return nil
}
