package bql

import "github.com/lonniev/thebrain-mcp/pkg/graphservice"

// Row is one projected result row: one cell per RETURN item, in order.
type Row []Cell

// Cell is either a full node record or a single scalar field.
type Cell struct {
	Node  *graphservice.NodeRecord
	Field string // "" when Node holds the full record
}

// Project builds the RETURN rows from bindings. When the projected
// variables were bound by a relationship (i.e. any pattern's edges connect
// them), rows follow the recorded edges; otherwise rows are the cartesian
// product of the projected variables' candidate sets, matching spec §4.9.
func Project(b *Bindings, items []ReturnItem) []Row {
	if len(items) == 0 {
		return nil
	}

	vars := make([]string, len(items))
	for i, it := range items {
		vars[i] = it.Variable
	}

	if edgeVars, ok := relatedByEdge(b, vars); ok {
		return projectFromEdges(b, items, edgeVars)
	}

	return projectCartesian(b, items, vars)
}

// relatedByEdge reports whether all of vars appear, in adjacent pairs, in
// some single pattern's walked edge chain, and if so returns that chain of
// edgeSteps restricted to the relevant span.
func relatedByEdge(b *Bindings, vars []string) ([]edgeStep, bool) {
	if len(vars) < 2 {
		return nil, false
	}
	for _, chain := range b.PatternEdges {
		if chainCoversVars(chain, vars) {
			return chain, true
		}
	}
	return nil, false
}

func chainCoversVars(chain []edgeStep, vars []string) bool {
	present := map[string]bool{}
	for _, s := range chain {
		present[s.fromVar] = true
		present[s.toVar] = true
	}
	for _, v := range vars {
		if !present[v] {
			return false
		}
	}
	return len(chain) > 0
}

func projectFromEdges(b *Bindings, items []ReturnItem, chain []edgeStep) []Row {
	// Build rows by walking the recorded edges left to right; each row is
	// one path through the chain, preserving duplicate targets reached via
	// distinct paths (spec §9's Open Question resolution).
	type partial struct {
		nodeByVar map[string]graphservice.NodeRecord
	}
	nodesByID := map[string]graphservice.NodeRecord{}
	for _, list := range b.Candidates {
		for _, n := range list {
			nodesByID[n.ID] = n
		}
	}

	paths := []partial{{nodeByVar: map[string]graphservice.NodeRecord{}}}
	for _, step := range chain {
		var next []partial
		for _, p := range paths {
			srcID, srcBound := "", false
			if n, ok := p.nodeByVar[step.fromVar]; ok {
				srcID, srcBound = n.ID, true
			}
			for _, e := range step.edges {
				if srcBound && e.SourceID != srcID {
					continue
				}
				target, ok := nodesByID[e.TargetID]
				if !ok {
					continue
				}
				np := partial{nodeByVar: cloneNodeMap(p.nodeByVar)}
				if src, ok := nodesByID[e.SourceID]; ok {
					np.nodeByVar[step.fromVar] = src
				}
				np.nodeByVar[step.toVar] = target
				next = append(next, np)
			}
		}
		paths = next
	}

	var rows []Row
	for _, p := range paths {
		row := make(Row, len(items))
		complete := true
		for i, item := range items {
			n, ok := p.nodeByVar[item.Variable]
			if !ok {
				complete = false
				break
			}
			nc := n
			row[i] = Cell{Node: &nc, Field: item.Field}
		}
		if complete {
			rows = append(rows, row)
		}
	}
	return rows
}

func cloneNodeMap(m map[string]graphservice.NodeRecord) map[string]graphservice.NodeRecord {
	out := make(map[string]graphservice.NodeRecord, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func projectCartesian(b *Bindings, items []ReturnItem, vars []string) []Row {
	sets := make([][]graphservice.NodeRecord, len(vars))
	for i, v := range vars {
		sets[i] = b.Candidates[v]
	}

	var rows []Row
	var walk func(idx int, current Row)
	walk = func(idx int, current Row) {
		if idx == len(items) {
			row := make(Row, len(current))
			copy(row, current)
			rows = append(rows, row)
			return
		}
		for _, n := range sets[idx] {
			nc := n
			walk(idx+1, append(current, Cell{Node: &nc, Field: items[idx].Field}))
		}
	}
	walk(0, Row{})
	return rows
}
