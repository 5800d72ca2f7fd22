package config

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverNeo4j  = "neo4j"
)

// Default configuration values.
const (
	DefaultDriver         = DriverSQLite
	DefaultStorePath      = ".vaultgraph/graph.db"
	DefaultNeo4jURI       = "neo4j://localhost:7687"
	DefaultNeo4jUser      = "neo4j"
	DefaultNeo4jDatabase  = "neo4j"
	DefaultWorkers        = 4
	DefaultSourceSystem   = "default"
	DefaultBuildTimeout   = "0s"
	DefaultLineageDepth   = 5
	DefaultLineageMax     = 50
	DefaultLineageTimeout = "30s"
	DefaultSearchLimit    = 50
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultOutput         = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "vaultgraph.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "vaultgraph.yml"

// EnvPrefix prefixes environment variables. A double underscore separates
// nested keys: VAULTGRAPH_STORE__NEO4J__URI sets store.neo4j.uri.
const EnvPrefix = "VAULTGRAPH_"

func defaults() map[string]any {
	return map[string]any{
		"store.driver":          DefaultDriver,
		"store.path":            DefaultStorePath,
		"store.neo4j.uri":       DefaultNeo4jURI,
		"store.neo4j.user":      DefaultNeo4jUser,
		"store.neo4j.database":  DefaultNeo4jDatabase,
		"build.workers":         DefaultWorkers,
		"build.source_system":   DefaultSourceSystem,
		"build.timeout":         DefaultBuildTimeout,
		"lineage.default_depth": DefaultLineageDepth,
		"lineage.max_depth":     DefaultLineageMax,
		"lineage.timeout":       DefaultLineageTimeout,
		"search.limit":          DefaultSearchLimit,
		"log.level":             DefaultLogLevel,
		"log.format":            DefaultLogFormat,
		"output":                DefaultOutput,
	}
}
