package container

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// DependencyGraph is the directed "can-help" relation between functions:
// an edge helper -> target means helper's zygotes may be forked to serve
// target. Symmetric help is two edges.
type DependencyGraph struct {
	helpers map[string]sets.Set[string] // target -> functions that can help it
}

// NewDependencyGraph returns an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{helpers: make(map[string]sets.Set[string])}
}

// AddEdge declares that helper can help target. Self-edges are rejected.
func (g *DependencyGraph) AddEdge(helper, target string) error {
	if helper == "" || target == "" {
		return fmt.Errorf("dependency edge needs both ends, got %q -> %q", helper, target)
	}
	if helper == target {
		return fmt.Errorf("function %q cannot help itself", helper)
	}
	if g.helpers[target] == nil {
		g.helpers[target] = sets.New[string]()
	}
	g.helpers[target].Insert(helper)
	return nil
}

// AddMutual declares that a and b can help each other.
func (g *DependencyGraph) AddMutual(a, b string) error {
	if err := g.AddEdge(a, b); err != nil {
		return err
	}
	return g.AddEdge(b, a)
}

// Helpers returns the functions that can help target, sorted by name.
// An empty result means no helper is available; callers fall back to a
// cold start.
func (g *DependencyGraph) Helpers(target string) []string {
	return sets.List(g.helpers[target])
}

// CanHelp reports whether an edge helper -> target exists.
func (g *DependencyGraph) CanHelp(helper, target string) bool {
	return g.helpers[target].Has(helper)
}
