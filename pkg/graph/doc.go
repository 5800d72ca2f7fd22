// Package graph defines the typed property graph vaultgraph builds and queries:
// node and relationship kinds, canonical identities, traversal directions,
// traversal results and the error taxonomy shared by every component.
//
// The package has no state and no side effects.
package graph
