package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	validDrivers = []string{DriverSQLite, DriverMemory, DriverNeo4j}
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
	validOutputs = []string{"auto", "text", "markdown", "json"}
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(validDrivers, c.Store.Driver) {
		errs = append(errs, fmt.Errorf("store.driver must be one of %s, got %q", strings.Join(validDrivers, ", "), c.Store.Driver))
	}
	if c.Store.Driver == DriverSQLite && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required for the sqlite driver"))
	}
	if c.Store.Driver == DriverNeo4j && c.Store.Neo4j.URI == "" {
		errs = append(errs, errors.New("store.neo4j.uri is required for the neo4j driver"))
	}
	if c.Build.Workers <= 0 {
		errs = append(errs, fmt.Errorf("build.workers must be positive, got %d", c.Build.Workers))
	}
	if c.Build.Timeout < 0 {
		errs = append(errs, fmt.Errorf("build.timeout must not be negative, got %s", c.Build.Timeout))
	}
	if c.Lineage.DefaultDepth <= 0 {
		errs = append(errs, fmt.Errorf("lineage.default_depth must be positive, got %d", c.Lineage.DefaultDepth))
	}
	if c.Lineage.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("lineage.max_depth must be positive, got %d", c.Lineage.MaxDepth))
	} else if c.Lineage.DefaultDepth > c.Lineage.MaxDepth {
		errs = append(errs, fmt.Errorf("lineage.default_depth %d exceeds lineage.max_depth %d", c.Lineage.DefaultDepth, c.Lineage.MaxDepth))
	}
	if c.Lineage.Timeout < 0 {
		errs = append(errs, fmt.Errorf("lineage.timeout must not be negative, got %s", c.Lineage.Timeout))
	}
	if c.Search.Limit <= 0 {
		errs = append(errs, fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit))
	}
	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of %s, got %q", strings.Join(validLevels, ", "), c.Log.Level))
	}
	if !slices.Contains(validFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of %s, got %q", strings.Join(validFormats, ", "), c.Log.Format))
	}
	if !slices.Contains(validOutputs, c.Output) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(validOutputs, ", "), c.Output))
	}

	return errors.Join(errs...)
}
