// Package config loads vaultgraph configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the
// vaultgraph.yaml (or .yml) config file, VAULTGRAPH_ environment variables
// and finally command-line flags that were explicitly set.
package config

import "time"

// Config holds all configuration options.
type Config struct {
	Store   StoreConfig   `koanf:"store"`
	Build   BuildConfig   `koanf:"build"`
	Lineage LineageConfig `koanf:"lineage"`
	Search  SearchConfig  `koanf:"search"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Output  string        `koanf:"output"` // auto, text, markdown, json

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// StoreConfig selects and configures the graph store.
type StoreConfig struct {
	Driver string      `koanf:"driver"` // sqlite, memory, neo4j
	Path   string      `koanf:"path"`   // sqlite database file
	Neo4j  Neo4jConfig `koanf:"neo4j"`
}

// Neo4jConfig holds the Neo4j connection settings.
// User and Password may reference environment variables as ${VAR}.
type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

// BuildConfig configures the graph builder.
type BuildConfig struct {
	Workers      int           `koanf:"workers"`
	SourceSystem string        `koanf:"source_system"`
	Timeout      time.Duration `koanf:"timeout"` // 0 disables
}

// LineageConfig bounds lineage queries.
type LineageConfig struct {
	DefaultDepth int           `koanf:"default_depth"`
	MaxDepth     int           `koanf:"max_depth"`
	Timeout      time.Duration `koanf:"timeout"`
}

// SearchConfig configures keyword search.
type SearchConfig struct {
	Limit int `koanf:"limit"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile is written after each command when set.
	Textfile string `koanf:"textfile"`
}
