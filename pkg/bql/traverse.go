package bql

import (
	"context"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

// Edge is a single traversed edge, recorded under its relation-variable (if
// any) for later RETURN/SET binding.
type Edge struct {
	SourceID string
	Relation int
	TargetID string
	EdgeID   string
}

// Bindings is the planner/traversal output: a candidate set per variable
// plus, per relation-variable, the edges that were actually walked to
// produce it.
type Bindings struct {
	Candidates map[string][]graphservice.NodeRecord
	Edges      map[string][]Edge // keyed by relation variable name
	// PatternEdges holds, per pattern index, the edges walked for that
	// pattern's relationships in order, used by the projector to build
	// edge-bound rows for chains without a named relation variable.
	PatternEdges [][]edgeStep
}

type edgeStep struct {
	fromVar string
	toVar   string
	edges   []Edge
}

// Traverser executes the BFS traversal executor (spec §4.6).
type Traverser struct {
	svc graphservice.Service
}

func NewTraverser(svc graphservice.Service) *Traverser {
	return &Traverser{svc: svc}
}

// Run resolves every root variable via resolver, then walks each pattern's
// relationships left to right, producing full Bindings.
func (t *Traverser) Run(ctx context.Context, graphID string, plan *Plan, resolver *Resolver) (*Bindings, error) {
	b := &Bindings{
		Candidates: map[string][]graphservice.NodeRecord{},
		Edges:      map[string][]Edge{},
	}

	// First resolve every non-downstream variable independently.
	for v, vp := range plan.VarPlans {
		if vp.Strategy == StrategyDownstream {
			continue
		}
		candidates, err := resolver.Resolve(ctx, graphID, vp)
		if err != nil {
			return nil, err
		}
		b.Candidates[v] = candidates
		applyPostFilterToVar(b, plan, v)
	}

	for _, pat := range plan.Patterns {
		steps, err := t.walkPattern(ctx, graphID, pat, b, plan)
		if err != nil {
			return nil, err
		}
		b.PatternEdges = append(b.PatternEdges, steps)
	}

	return b, nil
}

func (t *Traverser) walkPattern(ctx context.Context, graphID string, pat *Pattern, b *Bindings, plan *Plan) ([]edgeStep, error) {
	var steps []edgeStep
	for i, rel := range pat.Rels {
		fromVar := pat.Nodes[i].Variable
		toVar := pat.Nodes[i+1].Variable

		// fromVar's own WHERE atoms were already applied the moment its
		// candidate set was finalized (independent resolution above, or the
		// previous iteration of this loop), so expansion only ever walks
		// from nodes that survive fromVar's filter.
		sources := b.Candidates[fromVar]
		targetSet, edges, err := t.expand(ctx, graphID, sources, rel)
		if err != nil {
			return nil, err
		}

		// If the target variable has its own independent resolution (a
		// name or type constraint), intersect with what traversal reached;
		// otherwise the traversal result is the candidate set outright.
		existing, ok := b.Candidates[toVar]
		if ok && (existing != nil || plan.VarPlans[toVar].Strategy != StrategyDownstream) {
			b.Candidates[toVar] = intersectByID(existing, targetSet)
		} else {
			b.Candidates[toVar] = dedupeByID(targetSet)
		}
		applyPostFilterToVar(b, plan, toVar)

		if rel.Variable != "" {
			b.Edges[rel.Variable] = append(b.Edges[rel.Variable], edges...)
		}
		steps = append(steps, edgeStep{fromVar: fromVar, toVar: toVar, edges: edges})
	}
	return steps, nil
}

// expand performs BFS from every node in sources for between rel.HopMin and
// rel.HopMax edges over rel's expanded relation set, with per-traversal
// cycle detection. It returns the union of nodes reached at any valid
// depth and the edges walked to reach them.
func (t *Traverser) expand(ctx context.Context, graphID string, sources []graphservice.NodeRecord, rel *RelationshipPattern) ([]graphservice.NodeRecord, []Edge, error) {
	relSet := rel.Expand()
	relCodes := make([]int, len(relSet))
	for i, r := range relSet {
		relCodes[i] = int(r)
	}

	var resultNodes []graphservice.NodeRecord
	var resultEdges []Edge

	for _, src := range sources {
		visited := map[string]bool{src.ID: true}
		frontier := []graphservice.NodeRecord{src}

		for depth := 1; depth <= rel.HopMax; depth++ {
			var next []graphservice.NodeRecord
			for _, node := range frontier {
				neighbors, err := t.svc.Neighborhood(ctx, graphID, node.ID, relCodes)
				if err != nil {
					return nil, nil, &Error{Kind: ServiceError, Message: "neighborhood failed", Wrapped: err}
				}
				for _, nb := range neighbors {
					if visited[nb.Node.ID] {
						continue // never revisit within one traversal
					}
					visited[nb.Node.ID] = true
					next = append(next, nb.Node)
					edge := Edge{SourceID: node.ID, Relation: nb.Relation, TargetID: nb.Node.ID, EdgeID: nb.EdgeID}
					resultEdges = append(resultEdges, edge)
					if depth >= rel.HopMin {
						resultNodes = append(resultNodes, nb.Node)
					}
				}
			}
			frontier = next
			if len(frontier) == 0 {
				break
			}
		}
	}

	return dedupeByID(resultNodes), resultEdges, nil
}

func intersectByID(a, b []graphservice.NodeRecord) []graphservice.NodeRecord {
	bIDs := map[string]bool{}
	for _, n := range b {
		bIDs[n.ID] = true
	}
	var out []graphservice.NodeRecord
	for _, n := range a {
		if bIDs[n.ID] {
			out = append(out, n)
		}
	}
	return dedupeByID(out)
}
