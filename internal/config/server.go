package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/woxQAQ/sqlcursor/internal/codeblock"
	"github.com/woxQAQ/sqlcursor/internal/completion"
)

// EnvPrefix prefixes environment overrides, e.g. SQLCURSOR_LOG_LEVEL or
// SQLCURSOR_CATALOG_DSN.
const EnvPrefix = "SQLCURSOR"

type ServerConfig struct {
	AddonPaths []string         `mapstructure:"addon_paths"`
	LogLevel   string           `mapstructure:"log_level"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Completion CompletionConfig `mapstructure:"completion"`
	LSP        LSPConfig        `mapstructure:"lsp"`
	Wasm       WasmConfig       `mapstructure:"wasm"`
}

// CatalogConfig selects where completion gets database objects from.
type CatalogConfig struct {
	// Snapshot file (YAML) loaded at startup.
	SnapshotFile string `mapstructure:"snapshot_file"`
	// PostgreSQL connection string for introspection and live lookups.
	DSN     string   `mapstructure:"dsn"`
	Schemas []string `mapstructure:"schemas"`
	// Engine picks add-ons whose manifest targets it.
	Engine string `mapstructure:"engine"`
	// Introspection timeout (seconds).
	IntrospectionTimeout int `mapstructure:"introspection_timeout"`
}

type ResolverConfig struct {
	ParenBlankLineTolerance int  `mapstructure:"paren_blank_line_tolerance"`
	SmallestBlock           bool `mapstructure:"smallest_block"`
}

type CompletionConfig struct {
	MaxCandidates    int  `mapstructure:"max_candidates"`
	LookupTimeoutMs  int  `mapstructure:"lookup_timeout_ms"`
	StrictInvariants bool `mapstructure:"strict_invariants"`
}

// LSPConfig controls the language server transport. Port 0 means stdio.
type LSPConfig struct {
	Port int `mapstructure:"port"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Module execution timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("addon_paths", []string{"./addons"})
	v.SetDefault("log_level", "info")

	v.SetDefault("catalog.snapshot_file", "")
	v.SetDefault("catalog.dsn", "")
	v.SetDefault("catalog.schemas", []string{})
	v.SetDefault("catalog.engine", "postgresql")
	v.SetDefault("catalog.introspection_timeout", 10)

	v.SetDefault("resolver.paren_blank_line_tolerance", codeblock.DefaultParenBlankLineTolerance)
	v.SetDefault("resolver.smallest_block", false)

	defaults := completion.DefaultOptions()
	v.SetDefault("completion.max_candidates", defaults.MaxCandidates)
	v.SetDefault("completion.lookup_timeout_ms", defaults.LookupTimeout.Milliseconds())
	v.SetDefault("completion.strict_invariants", false)

	v.SetDefault("lsp.port", 0)

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "./build/wasm-cache")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 30)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config '%s': %w", configPath, err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// ResolverOptions returns the block resolver options for this config.
func (c *ServerConfig) ResolverOptions() codeblock.Options {
	tolerance := c.Resolver.ParenBlankLineTolerance
	if tolerance == 0 {
		// Zero in a config file means "no tolerance", not "default".
		tolerance = -1
	}
	return codeblock.Options{
		ParenBlankLineTolerance: tolerance,
		SmallestBlock:           c.Resolver.SmallestBlock,
	}
}

// CompletionOptions returns the classifier options for this config.
func (c *ServerConfig) CompletionOptions() completion.Options {
	return completion.Options{
		MaxCandidates:    c.Completion.MaxCandidates,
		LookupTimeout:    time.Duration(c.Completion.LookupTimeoutMs) * time.Millisecond,
		StrictInvariants: c.Completion.StrictInvariants,
	}
}

// IntrospectionTimeout bounds catalog introspection at startup.
func (c *ServerConfig) IntrospectionTimeout() time.Duration {
	return time.Duration(c.Catalog.IntrospectionTimeout) * time.Second
}
