package bql

import (
	"context"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

// MutationReport is the result of a CREATE/SET/MERGE execution.
type MutationReport struct {
	Created  int
	Updated  int
	Deleted  int
	Warnings []string
}

// DeletePreview is the result of a DELETE run without confirm=true.
type DeletePreview struct {
	WouldDeleteNodes []graphservice.NodeRecord
	WouldDeleteEdges []string
}

// Mutator executes CREATE, SET, MERGE, and DELETE against the graph service
// (spec §4.8).
type Mutator struct {
	svc     graphservice.Service
	types   *typeCache
	graphID string
}

func NewMutator(svc graphservice.Service, graphID string) *Mutator {
	return &Mutator{svc: svc, types: newTypeCache(svc, graphID), graphID: graphID}
}

// ExecuteCreate resolves pre-existing endpoints (already done by Traverser
// for MATCH-bound sources), creates new node patterns, and links them.
// Creation order follows pattern order. matchBound holds every variable
// introduced by the query's MATCH part: such a variable is always a
// reference to a binding resolved (or attempted) upstream, never a new node
// to create, even when it comes back unresolved here.
func (m *Mutator) ExecuteCreate(ctx context.Context, patterns []*Pattern, resolved map[string][]graphservice.NodeRecord, matchBound map[string]bool) (*MutationReport, error) {
	report := &MutationReport{}
	created := map[string]graphservice.NodeRecord{}

	for _, pat := range patterns {
		for _, n := range pat.Nodes {
			if _, already := resolvedOne(resolved, n.Variable); already {
				continue
			}
			if _, already := created[n.Variable]; already {
				continue
			}
			if matchBound[n.Variable] {
				// Introduced by MATCH but resolved to nothing: an
				// under-constrained endpoint, not a new node. The
				// relationship loop below reports the warning.
				continue
			}
			var typeID string
			if n.TypeLabel != "" {
				t, err := m.types.lookup(ctx, n.TypeLabel)
				if err != nil {
					return nil, err
				}
				if t == nil {
					return nil, newResolutionError(n.Variable, "type label "+n.TypeLabel+" does not exist")
				}
				typeID = t.ID
			}
			name := ""
			if n.NameConstraint != nil {
				name = *n.NameConstraint
			}
			id, err := m.svc.CreateNode(ctx, m.graphID, graphservice.NewNodeInput{Name: name, TypeID: typeID})
			if err != nil {
				return nil, &Error{Kind: ServiceError, Message: "create-node failed", Wrapped: err}
			}
			created[n.Variable] = graphservice.NodeRecord{ID: id, Name: name, TypeID: typeID}
			report.Created++
		}

		for i, rel := range pat.Rels {
			srcVar := pat.Nodes[i].Variable
			dstVar := pat.Nodes[i+1].Variable

			srcID, srcOK := endpointID(resolved, created, srcVar)
			dstID, dstOK := endpointID(resolved, created, dstVar)

			if !srcOK {
				report.Warnings = append(report.Warnings, "under-constrained endpoint: "+srcVar)
				continue
			}
			if !dstOK {
				report.Warnings = append(report.Warnings, "under-constrained endpoint: "+dstVar)
				continue
			}
			if len(rel.Types) != 1 {
				report.Warnings = append(report.Warnings, "relation type required to create an edge")
				continue
			}
			_, err := m.svc.CreateEdge(ctx, m.graphID, srcID, int(rel.Types[0]), dstID)
			if err != nil {
				return nil, &Error{Kind: ServiceError, Message: "create-edge failed", Wrapped: err}
			}
		}
	}

	return report, nil
}

func resolvedOne(resolved map[string][]graphservice.NodeRecord, variable string) (graphservice.NodeRecord, bool) {
	list := resolved[variable]
	if len(list) == 0 {
		return graphservice.NodeRecord{}, false
	}
	return list[0], true
}

func endpointID(resolved map[string][]graphservice.NodeRecord, created map[string]graphservice.NodeRecord, variable string) (string, bool) {
	if n, ok := created[variable]; ok {
		return n.ID, true
	}
	if n, ok := resolvedOne(resolved, variable); ok {
		return n.ID, true
	}
	return "", false
}

// ExecuteSet applies SET items to already-matched targets. A matched set of
// more than 10 nodes is refused by Engine.executeSet before this is called;
// ExecuteSet re-checks as a defensive boundary since it is also callable
// directly from tests.
func (m *Mutator) ExecuteSet(ctx context.Context, items []SetItem, resolved map[string][]graphservice.NodeRecord) (*MutationReport, error) {
	targets := map[string]bool{}
	for _, it := range items {
		switch v := it.(type) {
		case *PropertyAssign:
			targets[v.Variable] = true
		case *TypeAssign:
			targets[v.Variable] = true
		}
	}
	targetNodes := map[string]bool{}
	for v := range targets {
		for _, n := range resolved[v] {
			targetNodes[n.ID] = true
		}
	}
	if len(targetNodes) > 10 {
		return nil, newLimitExceeded("SET batch exceeds 10 nodes")
	}

	report := &MutationReport{}
	for _, it := range items {
		switch v := it.(type) {
		case *PropertyAssign:
			nodes := resolved[v.Variable]
			for _, n := range nodes {
				if err := m.svc.UpdateNode(ctx, m.graphID, n.ID, v.Property, v.Value); err != nil {
					return report, &Error{Kind: ServiceError, Message: "update-node failed", Wrapped: err}
				}
				report.Updated++
			}
		case *TypeAssign:
			t, err := m.types.lookup(ctx, v.TypeLabel)
			if err != nil {
				return report, err
			}
			if t == nil {
				return report, newResolutionError(v.Variable, "type label "+v.TypeLabel+" does not exist")
			}
			nodes := resolved[v.Variable]
			for _, n := range nodes {
				if err := m.svc.UpdateType(ctx, m.graphID, n.ID, t.ID); err != nil {
					return report, &Error{Kind: ServiceError, Message: "update-type failed", Wrapped: err}
				}
				report.Updated++
			}
		}
	}
	return report, nil
}

// MergeOutcome distinguishes the two branches of a MERGE for the ON
// CREATE/ON MATCH dispatch.
type MergeOutcome struct {
	Node    graphservice.NodeRecord
	Created bool
}

// ExecuteMerge looks up every node with a {name: "..."} constraint in each
// merge pattern (exact-name lookup, with exact-name matches from search as
// the fallback); on miss it creates the node as CREATE would. Nodes without
// a name constraint are not looked up or created.
func (m *Mutator) ExecuteMerge(ctx context.Context, svc graphservice.Service, graphID string, patterns []*Pattern) (map[string]MergeOutcome, *MutationReport, error) {
	report := &MutationReport{}
	outcomes := map[string]MergeOutcome{}

	for _, pat := range patterns {
		for _, n := range pat.Nodes {
			if n.NameConstraint == nil {
				continue
			}
			candidates, err := svc.Search(ctx, graphID, *n.NameConstraint)
			if err != nil {
				return nil, nil, &Error{Kind: ServiceError, Message: "search failed", Wrapped: err}
			}
			exact, err := svc.GetByName(ctx, graphID, *n.NameConstraint)
			if err != nil {
				return nil, nil, &Error{Kind: ServiceError, Message: "get-by-name failed", Wrapped: err}
			}

			var typeID string
			if n.TypeLabel != "" {
				t, err := m.types.lookup(ctx, n.TypeLabel)
				if err != nil {
					return nil, nil, err
				}
				if t != nil {
					typeID = t.ID
				}
			}

			matches := filterByType(matchesOf(exact, candidates, *n.NameConstraint), typeID)
			switch len(matches) {
			case 0:
				id, err := svc.CreateNode(ctx, graphID, graphservice.NewNodeInput{Name: *n.NameConstraint, TypeID: typeID})
				if err != nil {
					return nil, nil, &Error{Kind: ServiceError, Message: "create-node failed", Wrapped: err}
				}
				report.Created++
				outcomes[n.Variable] = MergeOutcome{Node: graphservice.NodeRecord{ID: id, Name: *n.NameConstraint, TypeID: typeID}, Created: true}
			case 1:
				outcomes[n.Variable] = MergeOutcome{Node: matches[0], Created: false}
			default:
				report.Warnings = append(report.Warnings, "MERGE found multiple matches for "+n.Variable+"; using the first")
				outcomes[n.Variable] = MergeOutcome{Node: matches[0], Created: false}
			}
		}

		for i, rel := range pat.Rels {
			srcVar := pat.Nodes[i].Variable
			dstVar := pat.Nodes[i+1].Variable

			srcOutcome, srcOK := outcomes[srcVar]
			dstOutcome, dstOK := outcomes[dstVar]

			if !srcOK {
				report.Warnings = append(report.Warnings, "under-constrained endpoint: "+srcVar)
				continue
			}
			if !dstOK {
				report.Warnings = append(report.Warnings, "under-constrained endpoint: "+dstVar)
				continue
			}
			if len(rel.Types) != 1 {
				report.Warnings = append(report.Warnings, "relation type required to create an edge")
				continue
			}
			if _, err := svc.CreateEdge(ctx, graphID, srcOutcome.Node.ID, int(rel.Types[0]), dstOutcome.Node.ID); err != nil {
				return nil, nil, &Error{Kind: ServiceError, Message: "create-edge failed", Wrapped: err}
			}
		}
	}

	return outcomes, report, nil
}

func matchesOf(exact *graphservice.NodeRecord, searched []graphservice.NodeRecord, name string) []graphservice.NodeRecord {
	if exact != nil {
		return []graphservice.NodeRecord{*exact}
	}
	var out []graphservice.NodeRecord
	for _, c := range searched {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func filterByType(nodes []graphservice.NodeRecord, typeID string) []graphservice.NodeRecord {
	if typeID == "" {
		return nodes
	}
	var out []graphservice.NodeRecord
	for _, n := range nodes {
		if n.TypeID == typeID {
			out = append(out, n)
		}
	}
	return out
}

// ApplyOnClause applies ON CREATE SET / ON MATCH SET items to the subset of
// outcomes matching created/matched.
func (m *Mutator) ApplyOnClause(ctx context.Context, items []SetItem, outcomes map[string]MergeOutcome, wantCreated bool) error {
	resolved := map[string][]graphservice.NodeRecord{}
	for v, o := range outcomes {
		if o.Created == wantCreated {
			resolved[v] = []graphservice.NodeRecord{o.Node}
		}
	}
	if len(resolved) == 0 {
		return nil
	}
	_, err := m.ExecuteSet(ctx, items, resolved)
	return err
}

// ExecuteDelete computes the delete target set and either returns a preview
// (confirm == false) or performs the deletions (confirm == true). Validate
// caps the number of DELETE variables at 5; the cap of 5 target nodes is
// enforced here.
func (m *Mutator) ExecuteDelete(ctx context.Context, deleteVars []string, resolved map[string][]graphservice.NodeRecord, edgesByVar map[string][]Edge, confirm bool) (*DeletePreview, *MutationReport, error) {
	var nodes []graphservice.NodeRecord
	nodeIDs := map[string]bool{}
	var edgeIDs []string

	for _, v := range deleteVars {
		if edges, ok := edgesByVar[v]; ok {
			for _, e := range edges {
				if e.EdgeID != "" {
					edgeIDs = append(edgeIDs, e.EdgeID)
				}
			}
			continue
		}
		for _, n := range resolved[v] {
			if !nodeIDs[n.ID] {
				nodeIDs[n.ID] = true
				nodes = append(nodes, n)
			}
		}
	}

	if len(nodes) > 5 {
		return nil, nil, newLimitExceeded("DELETE batch exceeds 5 nodes")
	}

	if !confirm {
		return &DeletePreview{WouldDeleteNodes: nodes, WouldDeleteEdges: edgeIDs}, nil, nil
	}

	report := &MutationReport{}
	for _, id := range edgeIDs {
		if err := m.svc.DeleteEdge(ctx, m.graphID, id); err != nil {
			return nil, report, &Error{Kind: ServiceError, Message: "delete-edge failed", Wrapped: err}
		}
	}
	for _, n := range nodes {
		if err := m.svc.DeleteNode(ctx, m.graphID, n.ID); err != nil {
			return nil, report, &Error{Kind: ServiceError, Message: "delete-node failed", Wrapped: err}
		}
		report.Deleted++
	}
	return nil, report, nil
}
