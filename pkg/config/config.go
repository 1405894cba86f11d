// Package config handles brainqueryd configuration via YAML files and
// environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags
//  2. Environment variables (BQL_*)
//  3. Config file (config.yaml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment Variables (all use BQL_ prefix):
//
// Graph service:
//   - BQL_GRAPH_BASE_URL="https://api.bra.in"
//   - BQL_GRAPH_API_KEY="..."
//   - BQL_GRAPH_TIMEOUT="30s"
//   - BQL_ACTIVE_GRAPH_ID="..."
//   - BQL_LOCAL_DATA_DIR="" (empty selects an in-memory local store)
//
// Engine:
//   - BQL_MAX_HOPS=5
//   - BQL_MAX_SET_BATCH=10
//   - BQL_MAX_DELETE_BATCH=5
//   - BQL_SEARCH_PAGE_SIZE=50
//
// MCP:
//   - BQL_MCP_TRANSPORT="stdio"
//
// Logging:
//   - BQL_LOG_LEVEL="INFO"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all brainqueryd configuration.
type Config struct {
	GraphService GraphServiceConfig
	Engine       EngineConfig
	MCP          MCPConfig
	Logging      LoggingConfig
}

// GraphServiceConfig configures how brainqueryd reaches its graph backend.
// When BaseURL is empty, the CLI and MCP server fall back to a local
// Badger-backed store rooted at LocalDataDir (empty means in-memory).
type GraphServiceConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	ActiveGraphID string
	LocalDataDir  string
}

// EngineConfig holds the BQL engine's structural limits. Defaults match the
// hard caps the language itself imposes (spec §5), and Validate rejects any
// value past that ceiling. The engine and the HTTP client do not read these
// fields: they always apply their fixed caps (5 hops, 10 SET nodes, 5 DELETE
// nodes, 50 search results), so a lower configured value has no effect.
type EngineConfig struct {
	MaxHops        int
	MaxSetBatch    int
	MaxDeleteBatch int
	SearchPageSize int
}

// MCPConfig configures the MCP tool server.
type MCPConfig struct {
	Transport string // "stdio" is the only transport currently wired
}

// LoggingConfig holds the configured log level. No brainqueryd component
// reads it; the CLI prints its status lines unconditionally.
type LoggingConfig struct {
	Level string
}

// YAMLConfig is the on-disk shape accepted by LoadFromFile; it uses shorter,
// hand-written field names since it's user-facing rather than programmatic.
type YAMLConfig struct {
	GraphService struct {
		BaseURL       string `yaml:"baseUrl"`
		APIKey        string `yaml:"apiKey"`
		Timeout       string `yaml:"timeout"`
		ActiveGraphID string `yaml:"activeGraphId"`
		LocalDataDir  string `yaml:"localDataDir"`
	} `yaml:"graphService"`
	Engine struct {
		MaxHops        int `yaml:"maxHops"`
		MaxSetBatch    int `yaml:"maxSetBatch"`
		MaxDeleteBatch int `yaml:"maxDeleteBatch"`
		SearchPageSize int `yaml:"searchPageSize"`
	} `yaml:"engine"`
	MCP struct {
		Transport string `yaml:"transport"`
	} `yaml:"mcp"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadDefaults returns a Config with brainqueryd's built-in defaults, before
// any file or environment overrides are applied.
func LoadDefaults() *Config {
	cfg := &Config{}

	cfg.GraphService.BaseURL = ""
	cfg.GraphService.APIKey = ""
	cfg.GraphService.Timeout = 30 * time.Second
	cfg.GraphService.ActiveGraphID = ""
	cfg.GraphService.LocalDataDir = ""

	cfg.Engine.MaxHops = 5
	cfg.Engine.MaxSetBatch = 10
	cfg.Engine.MaxDeleteBatch = 5
	cfg.Engine.SearchPageSize = 50

	cfg.MCP.Transport = "stdio"

	cfg.Logging.Level = "INFO"

	return cfg
}

// LoadFromFile loads defaults, then overlays a YAML config file (if it
// exists), then overlays BQL_* environment variables. A missing configPath
// is not an error; it just means the file layer is skipped.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := LoadDefaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			var yamlCfg YAMLConfig
			if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			applyYAML(cfg, &yamlCfg)
		}
	}

	applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyYAML(cfg *Config, y *YAMLConfig) {
	if y.GraphService.BaseURL != "" {
		cfg.GraphService.BaseURL = y.GraphService.BaseURL
	}
	if y.GraphService.APIKey != "" {
		cfg.GraphService.APIKey = y.GraphService.APIKey
	}
	if y.GraphService.Timeout != "" {
		if d, err := time.ParseDuration(y.GraphService.Timeout); err == nil {
			cfg.GraphService.Timeout = d
		}
	}
	if y.GraphService.ActiveGraphID != "" {
		cfg.GraphService.ActiveGraphID = y.GraphService.ActiveGraphID
	}
	if y.GraphService.LocalDataDir != "" {
		cfg.GraphService.LocalDataDir = y.GraphService.LocalDataDir
	}

	if y.Engine.MaxHops > 0 {
		cfg.Engine.MaxHops = y.Engine.MaxHops
	}
	if y.Engine.MaxSetBatch > 0 {
		cfg.Engine.MaxSetBatch = y.Engine.MaxSetBatch
	}
	if y.Engine.MaxDeleteBatch > 0 {
		cfg.Engine.MaxDeleteBatch = y.Engine.MaxDeleteBatch
	}
	if y.Engine.SearchPageSize > 0 {
		cfg.Engine.SearchPageSize = y.Engine.SearchPageSize
	}

	if y.MCP.Transport != "" {
		cfg.MCP.Transport = y.MCP.Transport
	}
	if y.Logging.Level != "" {
		cfg.Logging.Level = y.Logging.Level
	}
}

// applyEnvVars applies BQL_* environment variable overrides on top of cfg.
func applyEnvVars(cfg *Config) {
	cfg.GraphService.BaseURL = getEnv("BQL_GRAPH_BASE_URL", cfg.GraphService.BaseURL)
	cfg.GraphService.APIKey = getEnv("BQL_GRAPH_API_KEY", cfg.GraphService.APIKey)
	cfg.GraphService.Timeout = getEnvDuration("BQL_GRAPH_TIMEOUT", cfg.GraphService.Timeout)
	cfg.GraphService.ActiveGraphID = getEnv("BQL_ACTIVE_GRAPH_ID", cfg.GraphService.ActiveGraphID)
	cfg.GraphService.LocalDataDir = getEnv("BQL_LOCAL_DATA_DIR", cfg.GraphService.LocalDataDir)

	cfg.Engine.MaxHops = getEnvInt("BQL_MAX_HOPS", cfg.Engine.MaxHops)
	cfg.Engine.MaxSetBatch = getEnvInt("BQL_MAX_SET_BATCH", cfg.Engine.MaxSetBatch)
	cfg.Engine.MaxDeleteBatch = getEnvInt("BQL_MAX_DELETE_BATCH", cfg.Engine.MaxDeleteBatch)
	cfg.Engine.SearchPageSize = getEnvInt("BQL_SEARCH_PAGE_SIZE", cfg.Engine.SearchPageSize)

	cfg.MCP.Transport = getEnv("BQL_MCP_TRANSPORT", cfg.MCP.Transport)
	cfg.Logging.Level = getEnv("BQL_LOG_LEVEL", cfg.Logging.Level)
}

// Validate checks internal consistency: the engine's own configured caps
// must not exceed the language's hard ceilings (spec §5), and using a
// remote graph service requires an API key.
func (c *Config) Validate() error {
	if c.Engine.MaxHops < 1 || c.Engine.MaxHops > 5 {
		return fmt.Errorf("engine.maxHops must be between 1 and 5, got %d", c.Engine.MaxHops)
	}
	if c.Engine.MaxSetBatch < 1 || c.Engine.MaxSetBatch > 10 {
		return fmt.Errorf("engine.maxSetBatch must be between 1 and 10, got %d", c.Engine.MaxSetBatch)
	}
	if c.Engine.MaxDeleteBatch < 1 || c.Engine.MaxDeleteBatch > 5 {
		return fmt.Errorf("engine.maxDeleteBatch must be between 1 and 5, got %d", c.Engine.MaxDeleteBatch)
	}
	if c.Engine.SearchPageSize < 1 {
		return fmt.Errorf("engine.searchPageSize must be positive, got %d", c.Engine.SearchPageSize)
	}
	if c.GraphService.BaseURL != "" && c.GraphService.APIKey == "" {
		return fmt.Errorf("graphService.apiKey is required when graphService.baseUrl is set")
	}
	if c.MCP.Transport != "stdio" {
		return fmt.Errorf("mcp.transport %q is not supported; only \"stdio\" is wired", c.MCP.Transport)
	}
	return nil
}

// UsesLocalStore reports whether the configuration selects the in-process
// Badger-backed store instead of a remote graph service.
func (c *Config) UsesLocalStore() bool {
	return c.GraphService.BaseURL == ""
}

// String renders the config for diagnostic logging, redacting the API key.
func (c *Config) String() string {
	redacted := "(none)"
	if c.GraphService.APIKey != "" {
		redacted = "(set)"
	}
	return fmt.Sprintf(
		"GraphService{BaseURL:%q APIKey:%s Timeout:%s ActiveGraphID:%q LocalDataDir:%q} "+
			"Engine{MaxHops:%d MaxSetBatch:%d MaxDeleteBatch:%d SearchPageSize:%d} "+
			"MCP{Transport:%q} Logging{Level:%q}",
		c.GraphService.BaseURL, redacted, c.GraphService.Timeout, c.GraphService.ActiveGraphID, c.GraphService.LocalDataDir,
		c.Engine.MaxHops, c.Engine.MaxSetBatch, c.Engine.MaxDeleteBatch, c.Engine.SearchPageSize,
		c.MCP.Transport, c.Logging.Level,
	)
}

// FindConfigFile searches the conventional locations for a brainqueryd
// config file and returns the first one that exists, or "" if none does.
func FindConfigFile() string {
	var candidates []string

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".brainqueryd", "config.yaml"))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "config.yaml"))
	}
	candidates = append(candidates, "config.yaml", "brainqueryd.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "brainqueryd", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
