package seeder

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// topologicalOrder orders keys such that every key appears after everything
// it depends on, using gonum's simple.DirectedGraph + topo.Sort. Schema
// creation order is a hard dependency: a schema cannot reference another
// schema CoValue that does not exist yet.
func topologicalOrder(keys []string, dependsOn map[string][]string) ([]string, error) {
	idOf := make(map[string]int64, len(keys))
	keyOf := make(map[int64]string, len(keys))
	for i, k := range keys {
		id := int64(i)
		idOf[k] = id
		keyOf[id] = k
	}

	g := simple.NewDirectedGraph()
	for _, k := range keys {
		g.AddNode(simple.Node(idOf[k]))
	}
	for _, k := range keys {
		for _, dep := range dependsOn[k] {
			depID, ok := idOf[dep]
			if !ok {
				continue // dependency outside this batch (already seeded) is not an ordering constraint here
			}
			g.SetEdge(g.NewEdge(simple.Node(depID), simple.Node(idOf[k])))
		}
	}

	sorted, err := topo.Sort(g)
	if err != nil {
		return nil, fmt.Errorf("seeder: schema dependency cycle: %w", err)
	}

	out := make([]string, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, keyOf[n.ID()])
	}
	return out, nil
}
