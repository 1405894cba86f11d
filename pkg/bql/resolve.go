package bql

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

// typeCache is a lazy, per-Execute-call name-to-id cache for type lookups,
// grounded on the original planner's per-execution type cache: it is never
// persisted across queries.
type typeCache struct {
	svc     graphservice.Service
	graphID string
	byName  map[string]graphservice.TypeRecord
	loaded  bool
}

func newTypeCache(svc graphservice.Service, graphID string) *typeCache {
	return &typeCache{svc: svc, graphID: graphID}
}

func (c *typeCache) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	types, err := c.svc.ListTypes(ctx, c.graphID)
	if err != nil {
		return &Error{Kind: ServiceError, Message: "list-types failed", Wrapped: err}
	}
	c.byName = make(map[string]graphservice.TypeRecord, len(types))
	for _, t := range types {
		c.byName[t.Name] = t
	}
	c.loaded = true
	return nil
}

func (c *typeCache) lookup(ctx context.Context, name string) (*graphservice.TypeRecord, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	if t, ok := c.byName[name]; ok {
		return &t, nil
	}
	return nil, nil
}

// Resolver turns a VarPlan into an ordered, deduplicated candidate set.
type Resolver struct {
	svc   graphservice.Service
	types *typeCache
}

func NewResolver(svc graphservice.Service, graphID string) *Resolver {
	return &Resolver{svc: svc, types: newTypeCache(svc, graphID)}
}

// Resolve executes vp's strategy against the graph service and returns the
// resulting candidate set, already deduplicated by node ID and, for the
// StrategySimilar case, ranked by similarity.
func (r *Resolver) Resolve(ctx context.Context, graphID string, vp *VarPlan) ([]graphservice.NodeRecord, error) {
	switch vp.Strategy {
	case StrategyExactName:
		return r.resolveExact(ctx, graphID, vp)
	case StrategySearchFilter:
		return r.resolveSearchFilter(ctx, graphID, vp)
	case StrategySimilar:
		return r.resolveSimilar(ctx, graphID, vp)
	case StrategyTypeOnly:
		return r.resolveTypeOnly(ctx, graphID, vp)
	case StrategyDownstream:
		// Resolved by the traversal executor, not here.
		return nil, nil
	default:
		return nil, newResolutionError(vp.Variable, "under-constrained")
	}
}

func (r *Resolver) resolveExact(ctx context.Context, graphID string, vp *VarPlan) ([]graphservice.NodeRecord, error) {
	node, err := r.svc.GetByName(ctx, graphID, vp.Compare.Literal)
	if err != nil {
		return nil, &Error{Kind: ServiceError, Message: "get-by-name failed", Wrapped: err}
	}
	if node == nil {
		return nil, nil
	}
	candidates := []graphservice.NodeRecord{*node}
	return r.applyTypeFilter(ctx, graphID, vp, candidates)
}

func (r *Resolver) resolveSearchFilter(ctx context.Context, graphID string, vp *VarPlan) ([]graphservice.NodeRecord, error) {
	raw, err := r.svc.Search(ctx, graphID, vp.Compare.Literal)
	if err != nil {
		return nil, &Error{Kind: ServiceError, Message: "search failed", Wrapped: err}
	}
	filtered := filterByNameOp(raw, vp.Compare.Op, vp.Compare.Literal)
	filtered = dedupeByID(filtered)
	return r.applyTypeFilter(ctx, graphID, vp, filtered)
}

func (r *Resolver) resolveSimilar(ctx context.Context, graphID string, vp *VarPlan) ([]graphservice.NodeRecord, error) {
	exact, err := r.svc.GetByName(ctx, graphID, vp.Compare.Literal)
	if err != nil {
		return nil, &Error{Kind: ServiceError, Message: "get-by-name failed", Wrapped: err}
	}
	if exact != nil {
		return r.applyTypeFilter(ctx, graphID, vp, []graphservice.NodeRecord{*exact})
	}

	raw, err := r.svc.Search(ctx, graphID, vp.Compare.Literal)
	if err != nil {
		return nil, &Error{Kind: ServiceError, Message: "search failed", Wrapped: err}
	}
	raw = dedupeByID(raw)
	rankSimilar(raw, vp.Compare.Literal)
	return r.applyTypeFilter(ctx, graphID, vp, raw)
}

func (r *Resolver) resolveTypeOnly(ctx context.Context, graphID string, vp *VarPlan) ([]graphservice.NodeRecord, error) {
	t, err := r.types.lookup(ctx, vp.Node.TypeLabel)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, newResolutionError(vp.Variable, "type label "+vp.Node.TypeLabel+" does not exist")
	}
	// The type node itself, never its children (uber-node avoidance).
	return []graphservice.NodeRecord{{ID: t.ID, Name: t.Name, Kind: "type"}}, nil
}

func (r *Resolver) applyTypeFilter(ctx context.Context, graphID string, vp *VarPlan, candidates []graphservice.NodeRecord) ([]graphservice.NodeRecord, error) {
	if vp.Node.TypeLabel == "" || len(candidates) == 0 {
		return candidates, nil
	}
	t, err := r.types.lookup(ctx, vp.Node.TypeLabel)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, newResolutionError(vp.Variable, "type label "+vp.Node.TypeLabel+" does not exist")
	}
	var filtered []graphservice.NodeRecord
	for _, c := range candidates {
		if c.TypeID == t.ID {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func filterByNameOp(nodes []graphservice.NodeRecord, op CompareOp, literal string) []graphservice.NodeRecord {
	lit := strings.ToLower(literal)
	var out []graphservice.NodeRecord
	for _, n := range nodes {
		name := strings.ToLower(n.Name)
		match := false
		switch op {
		case OpContains:
			match = strings.Contains(name, lit)
		case OpStartsWith:
			match = strings.HasPrefix(name, lit)
		case OpEndsWith:
			match = strings.HasSuffix(name, lit)
		default:
			match = name == lit
		}
		if match {
			out = append(out, n)
		}
	}
	return out
}

func dedupeByID(nodes []graphservice.NodeRecord) []graphservice.NodeRecord {
	seen := map[string]bool{}
	var out []graphservice.NodeRecord
	for _, n := range nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}

// rankSimilar stable-sorts nodes by edit-distance to literal, ties broken
// by original order (sort.SliceStable preserves that automatically).
func rankSimilar(nodes []graphservice.NodeRecord, literal string) {
	type scored struct {
		node  graphservice.NodeRecord
		score int
	}
	lit := strings.ToLower(literal)
	pairs := make([]scored, len(nodes))
	for i, n := range nodes {
		pairs[i] = scored{node: n, score: levenshtein.ComputeDistance(strings.ToLower(n.Name), lit)}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score < pairs[j].score
	})
	for i, p := range pairs {
		nodes[i] = p.node
	}
}
