package bql

// Validate walks a parsed Query and rejects it if it violates any static
// rule from spec §4.3 that the parser could not check locally while
// building the tree (cross-variable boolean combinations, hop bounds). It
// also enforces the DELETE variable-count and SET item-count caps. IS NULL
// as sole driver is checked by the planner, not here. Of the structural
// rules the parser enforces (DELETE requires MATCH, SET+DELETE, MERGE name
// constraint, wildcard in write patterns, unreferenced variables), Validate
// re-checks only SET+DELETE; a hand-built *Query is not checked for the
// others.
func Validate(q *Query) error {
	for _, pat := range append(append([]*Pattern{}, q.MatchPatterns...), q.CreatePatterns...) {
		for _, r := range pat.Rels {
			if r.HopMax > 5 {
				return newLimitExceeded("hop upper bound exceeds 5")
			}
			if r.HopMin < 1 || r.HopMax < r.HopMin {
				return newSemanticError("invalid hop range")
			}
		}
	}
	for _, pat := range q.MergePatterns {
		for _, r := range pat.Rels {
			if r.HopMax > 5 {
				return newLimitExceeded("hop upper bound exceeds 5")
			}
		}
	}

	if q.Where != nil {
		if err := validateWhereVariables(q.Where); err != nil {
			return err
		}
	}

	if len(q.Set) > 0 && len(q.DeleteVars) > 0 {
		return newSemanticError("SET and DELETE cannot coexist")
	}

	if len(q.DeleteVars) > 5 {
		return newLimitExceeded("DELETE batch exceeds 5 nodes")
	}
	if len(q.Set) > 10 {
		return newLimitExceeded("SET batch exceeds 10 items")
	}

	return nil
}

// validateWhereVariables rejects OR/XOR nodes whose two sides mention
// different variables (cross-variable boolean combination). A bare IS NULL /
// IS NOT NULL atom as the sole driver of a variable's resolution is not
// checked here; the planner rejects it once pattern context is available
// (see hasBareIsNullDriver).
func validateWhereVariables(expr WhereExpr) error {
	switch e := expr.(type) {
	case *OrExpr:
		if !sameVariableScope(e.Left, e.Right) {
			return newSemanticError("OR across multiple pattern variables is not supported")
		}
		if err := validateWhereVariables(e.Left); err != nil {
			return err
		}
		return validateWhereVariables(e.Right)
	case *XorExpr:
		if !sameVariableScope(e.Left, e.Right) {
			return newSemanticError("XOR across multiple pattern variables is not supported")
		}
		if err := validateWhereVariables(e.Left); err != nil {
			return err
		}
		return validateWhereVariables(e.Right)
	case *AndExpr:
		// AND across variables is allowed; each side is validated
		// independently and later split per variable by the planner.
		if err := validateWhereVariables(e.Left); err != nil {
			return err
		}
		return validateWhereVariables(e.Right)
	case *NotExpr:
		return validateWhereVariables(e.Operand)
	default:
		return nil
	}
}

func sameVariableScope(a, b WhereExpr) bool {
	var av, bv []string
	collectWhereVars(a, &av)
	collectWhereVars(b, &bv)
	set := map[string]bool{}
	for _, v := range av {
		set[v] = true
	}
	for _, v := range bv {
		if !set[v] {
			return false
		}
	}
	for _, v := range av {
		found := false
		for _, w := range bv {
			if w == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// hasBareIsNullDriver reports whether variable's atoms in expr consist only
// of IS NULL / IS NOT NULL with no NameCompare sharing the same top-level
// AND clause. The planner calls this once it knows which variables are
// traversal targets, since those are exempt.
func hasBareIsNullDriver(expr WhereExpr, variable string, isDownstream bool) bool {
	if isDownstream {
		return false
	}
	atoms := atomsFor(expr, variable)
	if len(atoms) == 0 {
		return false
	}
	for _, a := range atoms {
		if _, ok := a.(*NameCompare); ok {
			return false
		}
	}
	return true
}

func atomsFor(expr WhereExpr, variable string) []WhereExpr {
	var out []WhereExpr
	var walk func(WhereExpr)
	walk = func(e WhereExpr) {
		switch v := e.(type) {
		case *OrExpr:
			walk(v.Left)
			walk(v.Right)
		case *XorExpr:
			walk(v.Left)
			walk(v.Right)
		case *AndExpr:
			walk(v.Left)
			walk(v.Right)
		case *NotExpr:
			walk(v.Operand)
		case *NameCompare:
			if v.Variable == variable {
				out = append(out, v)
			}
		case *IsNull:
			if v.Variable == variable {
				out = append(out, v)
			}
		case *IsNotNull:
			if v.Variable == variable {
				out = append(out, v)
			}
		}
	}
	walk(expr)
	return out
}
