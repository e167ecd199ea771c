package engine

import "sort"

// Graph caps for the global view. Truncation keeps the query cheap for very
// large vaults; the caller is told the view is partial via Truncated.
const (
	maxGraphNodes = 1000
	maxGraphEdges = 3000
)

// GraphNode is one note in a graph response.
type GraphNode struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// GraphEdge is a directed link between two notes.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a local or global link-graph view.
type Graph struct {
	Nodes      []GraphNode `json:"nodes"`
	Edges      []GraphEdge `json:"edges"`
	Truncated  bool        `json:"truncated,omitempty"`
	TotalNodes int         `json:"total_nodes,omitempty"`
	TotalEdges int         `json:"total_edges,omitempty"`
}

// LocalGraph returns the 1-hop neighborhood of path: the note itself, every
// resolvable outgoing-link target, and every backlink source. Unresolvable
// targets are dropped silently; an unindexed path yields an empty graph.
func (e *Engine) LocalGraph(path string) (Graph, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return Graph{}, err
	}

	path = cleanPath(path)
	center, ok := e.notes[path]
	if !ok {
		return Graph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}, nil
	}

	g := Graph{}
	seenNode := map[string]struct{}{}
	addNode := func(p string) {
		if _, ok := seenNode[p]; ok {
			return
		}
		seenNode[p] = struct{}{}
		g.Nodes = append(g.Nodes, GraphNode{ID: p, Title: e.notes[p].Title})
	}
	addNode(path)

	// Outgoing edges in link order, one per resolved target.
	seenEdge := map[[2]string]struct{}{}
	for _, target := range center.OutgoingTargets {
		tp, ok := e.titles[target]
		if !ok {
			continue
		}
		key := [2]string{path, tp}
		if _, dup := seenEdge[key]; dup {
			continue
		}
		seenEdge[key] = struct{}{}
		addNode(tp)
		g.Edges = append(g.Edges, GraphEdge{Source: path, Target: tp})
	}

	// Incoming edges from backlink sources, sorted for determinism.
	for _, src := range sortedKeys(e.backlinks[path]) {
		key := [2]string{src, path}
		if _, dup := seenEdge[key]; dup {
			continue
		}
		seenEdge[key] = struct{}{}
		addNode(src)
		g.Edges = append(g.Edges, GraphEdge{Source: src, Target: path})
	}

	if g.Nodes == nil {
		g.Nodes = []GraphNode{}
	}
	if g.Edges == nil {
		g.Edges = []GraphEdge{}
	}
	return g, nil
}

// GlobalGraph returns the whole vault's link graph, capped at maxGraphNodes /
// maxGraphEdges. Nodes are emitted in lexicographic path order and edges in
// lexicographic (source, target) order, so truncation is deterministic for a
// given registry state; totals report the uncapped sizes.
func (e *Engine) GlobalGraph() (Graph, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return Graph{}, err
	}

	paths := e.sortedPathsLocked()

	var edges []GraphEdge
	seenEdge := map[[2]string]struct{}{}
	for _, p := range paths {
		for _, target := range e.notes[p].OutgoingTargets {
			tp, ok := e.titles[target]
			if !ok {
				continue
			}
			key := [2]string{p, tp}
			if _, dup := seenEdge[key]; dup {
				continue
			}
			seenEdge[key] = struct{}{}
			edges = append(edges, GraphEdge{Source: p, Target: tp})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	g := Graph{
		Nodes:      make([]GraphNode, 0, len(paths)),
		Edges:      []GraphEdge{},
		TotalNodes: len(paths),
		TotalEdges: len(edges),
	}
	for _, p := range paths {
		if len(g.Nodes) >= maxGraphNodes {
			g.Truncated = true
			break
		}
		g.Nodes = append(g.Nodes, GraphNode{ID: p, Title: e.notes[p].Title})
	}
	kept := map[string]struct{}{}
	for _, n := range g.Nodes {
		kept[n.ID] = struct{}{}
	}
	for _, edge := range edges {
		if len(g.Edges) >= maxGraphEdges {
			g.Truncated = true
			break
		}
		if _, ok := kept[edge.Source]; !ok {
			continue
		}
		if _, ok := kept[edge.Target]; !ok {
			continue
		}
		g.Edges = append(g.Edges, edge)
	}
	return g, nil
}
