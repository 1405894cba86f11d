package bql

// Strategy is the resolution strategy the planner assigns to one pattern
// variable, per spec §4.4's table.
type Strategy int

const (
	StrategyExactName Strategy = iota
	StrategySearchFilter
	StrategySimilar
	StrategyTypeOnly
	StrategyDownstream
	StrategyUnderConstrained
)

// VarPlan is the planner's decision for one pattern variable.
type VarPlan struct {
	Variable  string
	Node      *NodePattern
	Strategy  Strategy
	Compare   *NameCompare // driving atom, if any
	IsDownstream bool
}

// Plan is the planner's output for one query: a resolution strategy per
// variable that needs independent resolution (root/source variables), the
// left-to-right pattern list for the traversal executor, and the per-
// variable WHERE atoms not already consumed as a resolution driver (post-
// filters such as IS NULL / IS NOT NULL, or additional AND'd NameCompares).
type Plan struct {
	VarPlans   map[string]*VarPlan
	Patterns   []*Pattern
	PostFilter map[string][]WhereExpr
}

// PlanQuery assigns a resolution strategy to every node-pattern variable
// across a query's read/write patterns.
func PlanQuery(q *Query) (*Plan, error) {
	patterns := allPatterns(q)
	downstream := downstreamVariables(patterns)

	plan := &Plan{
		VarPlans: map[string]*VarPlan{},
		// Only MATCH patterns are walked by the traversal executor. CREATE
		// and MERGE relationship patterns describe edges to be created, not
		// edges to discover by BFS; their endpoints are resolved
		// independently above and linked directly by the mutation executor.
		Patterns:   q.MatchPatterns,
		PostFilter: map[string][]WhereExpr{},
	}

	// Collect every NameCompare/IsNull/IsNotNull atom, grouped per variable,
	// by flattening top-level ANDs (cross-variable ORs/XORs were already
	// rejected in Validate; a single-variable OR/XOR still applies as one
	// unit and is treated as a post-filter, never as a resolution driver).
	atomsByVar := map[string][]WhereExpr{}
	if q.Where != nil {
		for _, top := range splitTopLevelAnd(q.Where) {
			vars := map[string]bool{}
			var vs []string
			collectWhereVars(top, &vs)
			for _, v := range vs {
				vars[v] = true
			}
			for v := range vars {
				atomsByVar[v] = append(atomsByVar[v], top)
			}
		}
	}

	seen := map[string]bool{}
	for _, pat := range patterns {
		for _, n := range pat.Nodes {
			if seen[n.Variable] {
				continue
			}
			seen[n.Variable] = true

			vp := &VarPlan{Variable: n.Variable, Node: n, IsDownstream: downstream[n.Variable]}

			exact := exactNameCompare(atomsByVar[n.Variable])
			switch {
			case n.NameConstraint != nil:
				vp.Strategy = StrategyExactName
				lit := *n.NameConstraint
				vp.Compare = &NameCompare{Variable: n.Variable, Op: OpEquals, Literal: lit}
			case exact != nil:
				vp.Strategy = StrategyExactName
				vp.Compare = exact
			case similarCompare(atomsByVar[n.Variable]) != nil:
				vp.Strategy = StrategySimilar
				vp.Compare = similarCompare(atomsByVar[n.Variable])
			case searchCompare(atomsByVar[n.Variable]) != nil:
				vp.Strategy = StrategySearchFilter
				vp.Compare = searchCompare(atomsByVar[n.Variable])
			case n.TypeLabel != "":
				vp.Strategy = StrategyTypeOnly
			case downstream[n.Variable]:
				vp.Strategy = StrategyDownstream
			default:
				vp.Strategy = StrategyUnderConstrained
			}

			// IS NULL / IS NOT NULL cannot be the sole driver.
			if q.Where != nil && hasBareIsNullDriver(q.Where, n.Variable, downstream[n.Variable]) &&
				vp.Strategy != StrategyExactName && vp.Strategy != StrategySearchFilter && vp.Strategy != StrategySimilar {
				return nil, newSemanticError("IS NULL/IS NOT NULL cannot be the sole resolution driver for " + n.Variable)
			}

			if vp.Strategy == StrategyUnderConstrained {
				return nil, newResolutionError(n.Variable, "no name, type, or traversal binding constrains this variable")
			}

			plan.VarPlans[n.Variable] = vp
			plan.PostFilter[n.Variable] = atomsByVar[n.Variable]
		}
	}

	return plan, nil
}

func allPatterns(q *Query) []*Pattern {
	var out []*Pattern
	out = append(out, q.MatchPatterns...)
	out = append(out, q.CreatePatterns...)
	out = append(out, q.MergePatterns...)
	return out
}

// downstreamVariables returns the set of variables that appear only as the
// right-hand (target) endpoint of some relationship in some pattern, i.e.
// candidates for "defer to traversal" resolution. A variable that is a
// source in one pattern and a target in another is not considered
// downstream, since it already has an independent resolution path.
func downstreamVariables(patterns []*Pattern) map[string]bool {
	isSource := map[string]bool{}
	isTargetOnly := map[string]bool{}
	for _, pat := range patterns {
		for i, n := range pat.Nodes {
			if i < len(pat.Nodes)-1 {
				isSource[n.Variable] = true
			}
		}
		for i := 1; i < len(pat.Nodes); i++ {
			isTargetOnly[pat.Nodes[i].Variable] = true
		}
	}
	out := map[string]bool{}
	for v := range isTargetOnly {
		if !isSource[v] {
			out[v] = true
		}
	}
	return out
}

func splitTopLevelAnd(expr WhereExpr) []WhereExpr {
	if and, ok := expr.(*AndExpr); ok {
		return append(splitTopLevelAnd(and.Left), splitTopLevelAnd(and.Right)...)
	}
	return []WhereExpr{expr}
}

func exactNameCompare(atoms []WhereExpr) *NameCompare {
	for _, a := range atoms {
		if nc, ok := a.(*NameCompare); ok && nc.Op == OpEquals {
			return nc
		}
	}
	return nil
}

func similarCompare(atoms []WhereExpr) *NameCompare {
	for _, a := range atoms {
		if nc, ok := a.(*NameCompare); ok && nc.Op == OpSimilar {
			return nc
		}
	}
	return nil
}

func searchCompare(atoms []WhereExpr) *NameCompare {
	for _, a := range atoms {
		if nc, ok := a.(*NameCompare); ok {
			switch nc.Op {
			case OpContains, OpStartsWith, OpEndsWith:
				return nc
			}
		}
	}
	return nil
}
