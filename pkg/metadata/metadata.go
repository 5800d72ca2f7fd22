// Package metadata defines the input documents vaultgraph builds its graph from:
// a snapshot of source tables and columns, Data-Vault component definitions,
// and column-to-column transformations.
package metadata

import "fmt"

// Snapshot is one build's worth of input.
type Snapshot struct {
	// SourceSystem names the system records belong to unless they override it.
	SourceSystem    string           `yaml:"source_system" json:"source_system"`
	Description     string           `yaml:"description,omitempty" json:"description,omitempty"`
	Records         []Record         `yaml:"records" json:"records"`
	Components      []Component      `yaml:"components,omitempty" json:"components,omitempty"`
	Transformations []Transformation `yaml:"transformations,omitempty" json:"transformations,omitempty"`
}

// Record describes one column of a source table.
type Record struct {
	SourceSystem     string     `yaml:"source_system,omitempty" json:"source_system,omitempty"`
	Schema           string     `yaml:"schema" json:"schema" validate:"required"`
	Table            string     `yaml:"table" json:"table" validate:"required"`
	TableDescription string     `yaml:"table_description,omitempty" json:"table_description,omitempty"`
	Column           string     `yaml:"column" json:"column" validate:"required"`
	DataType         string     `yaml:"data_type,omitempty" json:"data_type,omitempty"`
	Description      string     `yaml:"description,omitempty" json:"description,omitempty"`
	IsPrimaryKey     bool       `yaml:"is_primary_key,omitempty" json:"is_primary_key,omitempty"`
	IsForeignKey     bool       `yaml:"is_foreign_key,omitempty" json:"is_foreign_key,omitempty"`
	Nullable         *bool      `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	OrdinalPosition  *int       `yaml:"ordinal_position,omitempty" json:"ordinal_position,omitempty" validate:"omitempty,gte=1"`
	References       *ColumnRef `yaml:"references,omitempty" json:"references,omitempty"`
}

// Label names the record in warnings.
func (r Record) Label() string {
	return fmt.Sprintf("%s.%s.%s", r.Schema, r.Table, r.Column)
}

// ColumnRef points at a column. An empty Schema is resolved against the
// referencing record or component.
type ColumnRef struct {
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Table  string `yaml:"table" json:"table" validate:"required"`
	Column string `yaml:"column" json:"column" validate:"required"`
}

// WithDefaultSchema returns r with Schema set to schema when empty.
func (r ColumnRef) WithDefaultSchema(schema string) ColumnRef {
	if r.Schema == "" {
		r.Schema = schema
	}
	return r
}

func (r ColumnRef) String() string {
	if r.Schema == "" {
		return r.Table + "." + r.Column
	}
	return r.Schema + "." + r.Table + "." + r.Column
}

// ComponentType values accepted in component definitions.
const (
	TypeHub           = "hub"
	TypeLink          = "link"
	TypeSatellite     = "satellite"
	TypeLinkSatellite = "link_satellite"
)

// Component defines a Data-Vault hub, link, satellite or link satellite.
type Component struct {
	ComponentType   string         `yaml:"component_type" json:"component_type" validate:"required,oneof=hub link satellite link_satellite"`
	Name            string         `yaml:"name,omitempty" json:"name,omitempty"`
	TargetSchema    string         `yaml:"target_schema" json:"target_schema" validate:"required"`
	TargetTable     string         `yaml:"target_table" json:"target_table" validate:"required"`
	SourceColumns   []ColumnRef    `yaml:"source_columns,omitempty" json:"source_columns,omitempty" validate:"dive"`
	ParentComponent *ComponentRef  `yaml:"parent_component,omitempty" json:"parent_component,omitempty"`
	RelatedHubs     []ComponentRef `yaml:"related_hubs,omitempty" json:"related_hubs,omitempty" validate:"dive"`
	BusinessKeys    []string       `yaml:"business_keys,omitempty" json:"business_keys,omitempty" validate:"dive,required"`
	CollisionCode   string         `yaml:"collision_code,omitempty" json:"collision_code,omitempty"`
	Description     string         `yaml:"description,omitempty" json:"description,omitempty"`
}

// Label names the component in warnings.
func (c Component) Label() string {
	return c.TargetSchema + "." + c.TargetTable
}

// DisplayName returns Name, defaulting to the target table.
func (c Component) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.TargetTable
}

// ComponentRef points at another component by its target table.
// An empty Schema means the referencing component's target schema.
type ComponentRef struct {
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Table  string `yaml:"table" json:"table" validate:"required"`
}

// WithDefaultSchema returns r with Schema set to schema when empty.
func (r ComponentRef) WithDefaultSchema(schema string) ComponentRef {
	if r.Schema == "" {
		r.Schema = schema
	}
	return r
}

// Transformation kinds.
const (
	TransformMappedTo    = "mapped_to"
	TransformDerivedFrom = "derived_from"
)

// Transformation connects a source column to a target column. Expression is
// stored verbatim and never interpreted.
type Transformation struct {
	Kind       string    `yaml:"kind" json:"kind" validate:"required,oneof=mapped_to derived_from"`
	Source     ColumnRef `yaml:"source" json:"source"`
	Target     ColumnRef `yaml:"target" json:"target"`
	Expression string    `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// Label names the transformation in warnings.
func (t Transformation) Label() string {
	return t.Source.String() + " -> " + t.Target.String()
}
