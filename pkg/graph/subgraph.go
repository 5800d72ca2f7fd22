package graph

import "sort"

// SubGraph is the result of a lineage traversal.
type SubGraph struct {
	Seed  Identity `json:"seed"`
	Nodes []Node   `json:"nodes"`
	Edges []Edge   `json:"edges"`
	// Depths maps each node to its hop distance from the seed.
	Depths map[Identity]int `json:"depths"`
}

// Sort orders nodes by identity and edges by ID.
func (g *SubGraph) Sort() {
	sort.Slice(g.Nodes, func(i, j int) bool {
		return g.Nodes[i].Identity < g.Nodes[j].Identity
	})
	sort.Slice(g.Edges, func(i, j int) bool {
		return g.Edges[i].ID < g.Edges[j].ID
	})
}
