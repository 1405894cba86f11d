package bql

import (
	"strings"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

// applyPostFilterToVar filters v's candidate set in bindings by the WHERE
// atoms the planner assigned to it that were not already consumed as the
// variable's resolution driver (spec §4.7). It must run as soon as v's
// candidate set is finalized, and before v is used as a traversal source for
// any downstream hop, so a chain's later hops only ever expand from nodes
// that survived v's own WHERE atoms. Atoms that already drove resolution are
// harmlessly re-checked here too, since re-evaluating a satisfied
// NameCompare against an already-filtered set is a no-op.
func applyPostFilterToVar(b *Bindings, plan *Plan, v string) {
	atoms := plan.PostFilter[v]
	if len(atoms) == 0 {
		return
	}
	candidates := b.Candidates[v]
	for _, atom := range atoms {
		var kept []graphservice.NodeRecord
		for _, c := range candidates {
			if evaluate(atom, c) {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}
	b.Candidates[v] = candidates
}

func evaluate(expr WhereExpr, node graphservice.NodeRecord) bool {
	switch e := expr.(type) {
	case *OrExpr:
		return evaluate(e.Left, node) || evaluate(e.Right, node)
	case *XorExpr:
		return evaluate(e.Left, node) != evaluate(e.Right, node)
	case *AndExpr:
		return evaluate(e.Left, node) && evaluate(e.Right, node)
	case *NotExpr:
		return !evaluate(e.Operand, node)
	case *NameCompare:
		return evaluateNameCompare(e, node)
	case *IsNull:
		return propertyIsNull(node, e.Property)
	case *IsNotNull:
		return !propertyIsNull(node, e.Property)
	default:
		return false
	}
}

func evaluateNameCompare(nc *NameCompare, node graphservice.NodeRecord) bool {
	switch nc.Op {
	case OpEquals:
		return node.Name == nc.Literal
	case OpContains:
		return strings.Contains(strings.ToLower(node.Name), strings.ToLower(nc.Literal))
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(node.Name), strings.ToLower(nc.Literal))
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(node.Name), strings.ToLower(nc.Literal))
	case OpSimilar:
		// At evaluation time, candidates already passed through the
		// resolver's exact-then-ranked-search pipeline; membership in the
		// already-resolved set is itself the satisfaction of "=~", so this
		// always passes: an exact-lookup candidate already equals the
		// literal, and rank ordering, not a boolean, is what distinguished
		// the fallback candidates.
		return true
	default:
		return false
	}
}

func propertyIsNull(node graphservice.NodeRecord, property string) bool {
	switch property {
	case "name", "id", "kind":
		return false // never null
	case "label":
		return node.Label == ""
	case "typeId":
		return node.TypeID == ""
	case "foregroundColor":
		return node.ForegroundColor == ""
	case "backgroundColor":
		return node.BackgroundColor == ""
	default:
		return true
	}
}
