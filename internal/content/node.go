package content

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ContentNode is one scanned markdown file. Nodes are immutable once they
// enter an Arena.
type ContentNode struct {
	ID                 uuid.UUID
	Path               string
	RelativePath       string
	RelativeDirectory  string
	SourceInstanceName string
	FrontMatter        map[string]any
	RawBody            []byte
	Checksum           string
	LastModified       time.Time
}

// Arena owns every node discovered during a build, keyed by node id.
type Arena struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]*ContentNode
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{nodes: map[uuid.UUID]*ContentNode{}}
}

// Add stores node. It reports false when a node with the same id is already
// present, leaving the existing entry in place.
func (a *Arena) Add(node *ContentNode) bool {
	if node == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.nodes[node.ID]; exists {
		return false
	}
	a.nodes[node.ID] = node
	return true
}

// Get returns the node stored under id.
func (a *Arena) Get(id uuid.UUID) (*ContentNode, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	node, ok := a.nodes[id]
	return node, ok
}

// Len reports the number of nodes.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.nodes)
}

// Nodes returns every node ordered by source name then relative path, so
// callers iterate in the same order on every build.
func (a *Arena) Nodes() []*ContentNode {
	a.mu.RLock()
	out := slices.Collect(maps.Values(a.nodes))
	a.mu.RUnlock()

	slices.SortFunc(out, func(x, y *ContentNode) int {
		if x.SourceInstanceName != y.SourceInstanceName {
			if x.SourceInstanceName < y.SourceInstanceName {
				return -1
			}
			return 1
		}
		switch {
		case x.RelativePath < y.RelativePath:
			return -1
		case x.RelativePath > y.RelativePath:
			return 1
		}
		return 0
	})
	return out
}

// BySource returns the nodes discovered under the named source instance.
func (a *Arena) BySource(name string) []*ContentNode {
	var out []*ContentNode
	for _, node := range a.Nodes() {
		if node.SourceInstanceName == name {
			out = append(out, node)
		}
	}
	return out
}
