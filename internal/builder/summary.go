package builder

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
)

// Summary reports what a build wrote.
type Summary struct {
	NodesCreated int             `json:"nodes_created"`
	NodesMerged  int             `json:"nodes_merged"`
	EdgesCreated int             `json:"edges_created"`
	EdgesMerged  int             `json:"edges_merged"`
	Warnings     []graph.Warning `json:"warnings"`
}

// Changed reports whether the build created anything.
func (s Summary) Changed() bool {
	return s.NodesCreated > 0 || s.EdgesCreated > 0
}

// tally collects counters and warnings from concurrent workers.
type tally struct {
	nodesCreated, nodesMerged atomic.Int64
	edgesCreated, edgesMerged atomic.Int64

	mu       sync.Mutex
	warnings []graph.Warning
}

func (t *tally) node(created bool) {
	if created {
		t.nodesCreated.Add(1)
	} else {
		t.nodesMerged.Add(1)
	}
}

func (t *tally) edge(created bool) {
	if created {
		t.edgesCreated.Add(1)
	} else {
		t.edgesMerged.Add(1)
	}
}

func (t *tally) warn(record, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings = append(t.warnings, graph.Warning{Record: record, Message: message})
}

// summary snapshots the tally with warnings sorted by record then message.
func (t *tally) summary() Summary {
	t.mu.Lock()
	warnings := append([]graph.Warning(nil), t.warnings...)
	t.mu.Unlock()

	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Record != warnings[j].Record {
			return warnings[i].Record < warnings[j].Record
		}
		return warnings[i].Message < warnings[j].Message
	})

	return Summary{
		NodesCreated: int(t.nodesCreated.Load()),
		NodesMerged:  int(t.nodesMerged.Load()),
		EdgesCreated: int(t.edgesCreated.Load()),
		EdgesMerged:  int(t.edgesMerged.Load()),
		Warnings:     warnings,
	}
}
