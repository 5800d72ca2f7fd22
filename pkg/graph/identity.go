package graph

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Identity is the canonical (kind, natural key) address of a node, rendered as
// "Kind/field1/field2/...". Fields are path-escaped so separators inside names
// cannot collide with the delimiter.
type Identity string

// idNamespace seeds the deterministic surrogate IDs. Changing it would change
// every persisted ID.
var idNamespace = uuid.MustParse("6f1c5d8e-3b7a-4c2e-9a41-7d0b2f6e8c15")

// NewIdentity builds the identity for kind from its natural key fields.
// Fields are trimmed; the count must match the kind's arity and none may be empty.
func NewIdentity(kind NodeKind, fields ...string) (Identity, error) {
	if !kind.Valid() {
		return "", InvalidArgument("unknown node kind %q", kind)
	}
	if len(fields) != kind.KeyArity() {
		return "", InvalidArgument("%s key needs %d fields, got %d", kind, kind.KeyArity(), len(fields))
	}

	var b strings.Builder
	b.WriteString(string(kind))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return "", InvalidArgument("%s key field %d is empty", kind, i+1)
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(f))
	}
	return Identity(b.String()), nil
}

// MustIdentity is NewIdentity for keys known to be valid. It panics otherwise.
func MustIdentity(kind NodeKind, fields ...string) Identity {
	id, err := NewIdentity(kind, fields...)
	if err != nil {
		panic(err)
	}
	return id
}

// SourceSystemID returns the identity of a source system.
func SourceSystemID(system string) (Identity, error) {
	return NewIdentity(KindSourceSystem, system)
}

// SchemaID returns the identity of a schema within a source system.
func SchemaID(system, schema string) (Identity, error) {
	return NewIdentity(KindSchema, system, schema)
}

// TableID returns the identity of a table.
func TableID(schema, table string) (Identity, error) {
	return NewIdentity(KindTable, schema, table)
}

// ColumnID returns the identity of a column.
func ColumnID(schema, table, column string) (Identity, error) {
	return NewIdentity(KindColumn, schema, table, column)
}

// ComponentID returns the identity of a Data-Vault component.
func ComponentID(targetSchema, targetTable string) (Identity, error) {
	return NewIdentity(KindDataVaultComponent, targetSchema, targetTable)
}

// Kind returns the node kind encoded in the identity.
func (id Identity) Kind() NodeKind {
	kind, _, _ := strings.Cut(string(id), "/")
	return NodeKind(kind)
}

// Fields returns the unescaped natural key fields.
func (id Identity) Fields() []string {
	_, rest, ok := strings.Cut(string(id), "/")
	if !ok {
		return nil
	}
	parts := strings.Split(rest, "/")
	for i, p := range parts {
		if v, err := url.PathUnescape(p); err == nil {
			parts[i] = v
		}
	}
	return parts
}

// Name returns the last key field, which is the node's display name.
func (id Identity) Name() string {
	fields := id.Fields()
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// Parent returns the containing node's identity when the key alone determines
// it: a schema's source system and a column's table. A table's schema also
// depends on the source system, so tables report false, as do source systems
// and components.
func (id Identity) Parent() (Identity, bool) {
	fields := id.Fields()
	switch id.Kind() {
	case KindSchema:
		p, err := SourceSystemID(fields[0])
		return p, err == nil
	case KindColumn:
		p, err := TableID(fields[0], fields[1])
		return p, err == nil
	}
	return "", false
}

func (id Identity) String() string {
	return string(id)
}

// NodeID derives the stable surrogate ID for a node identity.
func NodeID(id Identity) string {
	return uuid.NewSHA1(idNamespace, []byte(id)).String()
}

// EdgeID derives the stable surrogate ID for an edge key.
func EdgeID(kind RelKind, from, to Identity) string {
	return uuid.NewSHA1(idNamespace, []byte(string(kind)+"|"+string(from)+"|"+string(to))).String()
}
