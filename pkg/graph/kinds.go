package graph

import "strings"

// NodeKind is the closed set of node labels stored in the graph.
type NodeKind string

// Node kinds.
const (
	KindSourceSystem       NodeKind = "SourceSystem"
	KindSchema             NodeKind = "Schema"
	KindTable              NodeKind = "Table"
	KindColumn             NodeKind = "Column"
	KindDataVaultComponent NodeKind = "DataVaultComponent"
)

// AllNodeKinds lists every node kind in containment order.
var AllNodeKinds = []NodeKind{
	KindSourceSystem,
	KindSchema,
	KindTable,
	KindColumn,
	KindDataVaultComponent,
}

// keyArity is the number of natural key fields per kind.
var keyArity = map[NodeKind]int{
	KindSourceSystem:       1,
	KindSchema:             2,
	KindTable:              2,
	KindColumn:             3,
	KindDataVaultComponent: 2,
}

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	_, ok := keyArity[k]
	return ok
}

// KeyArity returns the number of natural key fields for the kind, or 0 for an unknown kind.
func (k NodeKind) KeyArity() int {
	return keyArity[k]
}

// ParseNodeKind parses a node kind case-insensitively.
// Short forms like "table" and "dv" are accepted.
func ParseNodeKind(s string) (NodeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sourcesystem", "source_system", "system":
		return KindSourceSystem, nil
	case "schema":
		return KindSchema, nil
	case "table":
		return KindTable, nil
	case "column":
		return KindColumn, nil
	case "datavaultcomponent", "data_vault_component", "component", "dv":
		return KindDataVaultComponent, nil
	}
	return "", InvalidArgument("unknown node kind %q", s)
}

// RelKind is the closed set of relationship types.
type RelKind string

// Relationship kinds.
const (
	RelContains    RelKind = "CONTAINS"
	RelMappedTo    RelKind = "MAPPED_TO"
	RelReferences  RelKind = "REFERENCES"
	RelSourceOf    RelKind = "SOURCE_OF"
	RelDerivedFrom RelKind = "DERIVED_FROM"
	RelPartOf      RelKind = "PART_OF"
)

// AllRelKinds lists every relationship kind.
var AllRelKinds = []RelKind{
	RelContains,
	RelMappedTo,
	RelReferences,
	RelSourceOf,
	RelDerivedFrom,
	RelPartOf,
}

// ColumnLineageKinds are the relationship kinds that carry lineage between
// columns and Data-Vault components. CONTAINS is structural and never part of it.
var ColumnLineageKinds = []RelKind{
	RelMappedTo,
	RelDerivedFrom,
	RelReferences,
	RelSourceOf,
	RelPartOf,
}

// Valid reports whether r is a known relationship kind.
func (r RelKind) Valid() bool {
	for _, k := range AllRelKinds {
		if k == r {
			return true
		}
	}
	return false
}

// endpoint pairs allowed for each relationship kind.
var endpoints = map[RelKind][][2]NodeKind{
	RelContains: {
		{KindSourceSystem, KindSchema},
		{KindSchema, KindTable},
		{KindTable, KindColumn},
	},
	RelMappedTo:    {{KindColumn, KindColumn}},
	RelReferences:  {{KindColumn, KindColumn}},
	RelSourceOf:    {{KindColumn, KindDataVaultComponent}},
	RelDerivedFrom: {{KindColumn, KindColumn}},
	RelPartOf:      {{KindDataVaultComponent, KindDataVaultComponent}},
}

// ValidEndpoints reports whether an edge of kind rel may connect from -> to.
func ValidEndpoints(rel RelKind, from, to NodeKind) bool {
	for _, pair := range endpoints[rel] {
		if pair[0] == from && pair[1] == to {
			return true
		}
	}
	return false
}

// ContainmentChild returns the kind a parent kind may contain.
// The second result is false for kinds that contain nothing.
func ContainmentChild(parent NodeKind) (NodeKind, bool) {
	for _, pair := range endpoints[RelContains] {
		if pair[0] == parent {
			return pair[1], true
		}
	}
	return "", false
}

// ComponentType classifies a Data-Vault component.
type ComponentType string

// Data-Vault component types.
const (
	ComponentHub           ComponentType = "hub"
	ComponentLink          ComponentType = "link"
	ComponentSatellite     ComponentType = "satellite"
	ComponentLinkSatellite ComponentType = "link_satellite"
)

// Valid reports whether c is a known component type.
func (c ComponentType) Valid() bool {
	switch c {
	case ComponentHub, ComponentLink, ComponentSatellite, ComponentLinkSatellite:
		return true
	}
	return false
}

// HasParent reports whether components of this type hang off a parent component.
func (c ComponentType) HasParent() bool {
	return c == ComponentSatellite || c == ComponentLink || c == ComponentLinkSatellite
}
