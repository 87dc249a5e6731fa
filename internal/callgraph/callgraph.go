// Package callgraph builds lattice graphs of the helper functions renamed
// in a session.
package callgraph

import (
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"sessionstarter/internal/output"
)

// BuildRenameGraph constructs a lattice.Graph from applied renames. Each
// renamed function becomes a node under its new name. Import jumps and
// wrappers get an edge to the symbol they forward to.
func BuildRenameGraph(renames []output.Rename) *lattice.Graph {
	g := &lattice.Graph{}
	seen := make(map[string]bool)
	addNode := func(name string) {
		if !seen[name] {
			seen[name] = true
			g.Nodes = append(g.Nodes, name)
		}
	}
	for _, r := range renames {
		addNode(r.New)
		if r.Target == "" {
			continue
		}
		addNode(r.Target)
		g.Edges = append(g.Edges, lattice.Edge{
			Caller: r.New,
			Callee: r.Target,
		})
	}
	g.Dedup()
	return g
}

// RenderDOT renders the rename graph as DOT.
func RenderDOT(renames []output.Rename, title string) string {
	return render.DOT(BuildRenameGraph(renames), title)
}
