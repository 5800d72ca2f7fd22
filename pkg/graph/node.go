package graph

import (
	"fmt"
	"maps"
)

// Properties is the free-form property bag carried by nodes and edges.
// Values are scalars (string, bool, numbers) or string slices.
type Properties map[string]any

// Common property names.
const (
	PropName           = "name"
	PropDescription    = "description"
	PropDataType       = "data_type"
	PropPrimaryKey     = "is_primary_key"
	PropForeignKey     = "is_foreign_key"
	PropNullable       = "nullable"
	PropOrdinal        = "ordinal_position"
	PropComponentType  = "component_type"
	PropCollisionCode  = "collision_code"
	PropBusinessKeys   = "business_keys"
	PropTransformation = "transformation"
	PropDerivation     = "derivation"
	PropColumns        = "columns"
)

// Merge returns a copy of p overlaid with other. Keys in other win.
func (p Properties) Merge(other Properties) Properties {
	out := make(Properties, len(p)+len(other))
	maps.Copy(out, p)
	maps.Copy(out, other)
	return out
}

// Clone returns a shallow copy of p.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return maps.Clone(p)
}

// String returns the property as a string, or "" when absent.
func (p Properties) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the property as a bool, or false when absent or not a bool.
func (p Properties) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

// NodeRef addresses a stored node.
type NodeRef struct {
	ID       string   `json:"id"`
	Identity Identity `json:"identity"`
}

// Kind returns the node kind.
func (r NodeRef) Kind() NodeKind {
	return r.Identity.Kind()
}

// Node is a stored node with its properties.
type Node struct {
	NodeRef
	Properties Properties `json:"properties"`
}

// Name returns the display name, falling back to the key's last field.
func (n Node) Name() string {
	if name := n.Properties.String(PropName); name != "" {
		return name
	}
	return n.Identity.Name()
}

// EdgeRef addresses a stored relationship.
type EdgeRef struct {
	ID   string   `json:"id"`
	Kind RelKind  `json:"kind"`
	From Identity `json:"from"`
	To   Identity `json:"to"`
}

// Edge is a stored relationship with its properties.
type Edge struct {
	EdgeRef
	Properties Properties `json:"properties,omitempty"`
}

// Hop is one step from a node: the edge followed and the node on its far side.
type Hop struct {
	Edge Edge
	Node Node
}

// Stats holds per-kind counts of the stored graph.
type Stats struct {
	Nodes map[NodeKind]int `json:"nodes"`
	Edges map[RelKind]int  `json:"edges"`
}

// TotalNodes returns the number of nodes across kinds.
func (s Stats) TotalNodes() int {
	total := 0
	for _, n := range s.Nodes {
		total += n
	}
	return total
}

// TotalEdges returns the number of edges across kinds.
func (s Stats) TotalEdges() int {
	total := 0
	for _, n := range s.Edges {
		total += n
	}
	return total
}
