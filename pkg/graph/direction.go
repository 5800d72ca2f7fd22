package graph

import "strings"

// Direction selects which way edges are followed during traversal.
type Direction string

// Traversal directions.
const (
	// Downstream follows edges as declared (from -> to).
	Downstream Direction = "downstream"
	// Upstream follows edges reversed (to -> from).
	Upstream Direction = "upstream"
	// Both follows edges either way.
	Both Direction = "both"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case Downstream, Upstream, Both:
		return true
	}
	return false
}

// ParseDirection parses a direction case-insensitively. "down" and "up" are accepted.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "downstream", "down":
		return Downstream, nil
	case "upstream", "up":
		return Upstream, nil
	case "both":
		return Both, nil
	}
	return "", InvalidArgument("unknown direction %q", s)
}
