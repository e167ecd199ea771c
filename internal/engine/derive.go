package engine

import "sort"

// rebuildDerivedLocked rebuilds the backlink graph, tag graph, and search
// index from the registry. Called after every mutation batch; iteration is
// over lexicographically sorted paths so derived state is deterministic for
// a given registry.
func (e *Engine) rebuildDerivedLocked() {
	e.backlinks = make(map[string]map[string]struct{}, len(e.notes))
	e.tagPaths = make(map[string]map[string]struct{})

	for _, path := range e.sortedPathsLocked() {
		rec := e.notes[path]
		for _, target := range rec.OutgoingTargets {
			tp, ok := e.titles[target]
			if !ok {
				continue // unresolvable links are dropped, not errored
			}
			set := e.backlinks[tp]
			if set == nil {
				set = make(map[string]struct{})
				e.backlinks[tp] = set
			}
			set[path] = struct{}{}
		}
		for _, tag := range rec.Tags {
			set := e.tagPaths[tag]
			if set == nil {
				set = make(map[string]struct{})
				e.tagPaths[tag] = set
			}
			set[path] = struct{}{}
		}
	}

	e.search.rebuild(e.notes)
}

func (e *Engine) sortedPathsLocked() []string {
	paths := make([]string, 0, len(e.notes))
	for p := range e.notes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
