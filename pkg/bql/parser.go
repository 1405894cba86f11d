package bql

import "strconv"

// Parser is a recursive-descent parser over the token stream produced by
// the Lexer. On any grammar deviation it returns a *Error of kind
// ParseError carrying the offending token's position and, where known, the
// set of tokens that would have been accepted instead.
type Parser struct {
	toks []Token
	pos  int

	bound       map[string]bool
	matchBound  map[string]bool // variables bound by MATCH, for MERGE's "newly introduced" check
	inMatch     bool
	clauseBound map[string]bool // variables bound so far in the current MATCH/CREATE/MERGE clause, for redefinition checks
}

// Parse tokenizes and parses a complete BQL query string.
func Parse(src string) (*Query, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, bound: map[string]bool{}, matchBound: map[string]bool{}, clauseBound: map[string]bool{}}
	return p.parseQuery()
}

func (p *Parser) peek() Token       { return p.toks[p.pos] }
func (p *Parser) peekAhead(n int) Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(kind TokenKind) bool { return p.peek().Kind == kind }

func (p *Parser) expect(kind TokenKind) (Token, error) {
	if !p.at(kind) {
		return Token{}, newParseErrorAt(p.peek(), "unexpected "+p.peek().Kind.String(), kind)
	}
	return p.advance(), nil
}

func (p *Parser) parseQuery() (*Query, error) {
	q := &Query{}
	haveMatch, haveCreate, haveMerge, haveDelete := false, false, false, false

	if p.at(TokMatch) {
		if err := p.parseMatchPart(q); err != nil {
			return nil, err
		}
		haveMatch = true
		q.MatchBoundVars = map[string]bool{}
		for k := range p.matchBound {
			q.MatchBoundVars[k] = true
		}
	}

	switch {
	case p.at(TokCreate):
		if err := p.parseCreatePart(q); err != nil {
			return nil, err
		}
		haveCreate = true
	case p.at(TokMerge):
		if err := p.parseMergePart(q); err != nil {
			return nil, err
		}
		haveMerge = true
	}

	if p.at(TokReturn) {
		if err := p.parseReturnPart(q); err != nil {
			return nil, err
		}
	}

	if p.at(TokDetach) || p.at(TokDelete) {
		if !haveMatch {
			return nil, newSemanticError("DELETE requires a preceding MATCH")
		}
		if len(q.Set) > 0 {
			return nil, newSemanticError("SET and DELETE cannot coexist in one query")
		}
		if err := p.parseDeletePart(q); err != nil {
			return nil, err
		}
		haveDelete = true
	}

	if !p.at(TokEOF) {
		return nil, newParseErrorAt(p.peek(), "unexpected trailing input after query", TokEOF)
	}

	q.Kind = classifyQuery(haveMatch, haveCreate, haveMerge, haveDelete, len(q.Set) > 0)
	return q, nil
}

func classifyQuery(haveMatch, haveCreate, haveMerge, haveDelete, haveSet bool) QueryKind {
	switch {
	case haveDelete:
		return KindReadDelete
	case haveMerge && haveMatch:
		return KindReadUpsert
	case haveMerge:
		return KindUpsertQuery
	case haveCreate && haveMatch:
		return KindReadWrite
	case haveCreate:
		return KindWriteStandalone
	case haveMatch:
		return KindReadQuery
	default:
		return KindReadQuery
	}
}

func (p *Parser) parseMatchPart(q *Query) error {
	p.advance() // MATCH
	p.inMatch = true
	p.clauseBound = map[string]bool{}
	defer func() { p.inMatch = false }()

	pat, err := p.parsePattern()
	if err != nil {
		return err
	}
	q.MatchPatterns = append(q.MatchPatterns, pat)
	for p.at(TokComma) {
		p.advance()
		pat, err := p.parsePattern()
		if err != nil {
			return err
		}
		q.MatchPatterns = append(q.MatchPatterns, pat)
	}

	if p.at(TokWhere) {
		p.advance()
		expr, err := p.parseWhereExpr()
		if err != nil {
			return err
		}
		if err := p.checkWhereVarsBound(expr); err != nil {
			return err
		}
		q.Where = expr
	}

	if p.at(TokSet) {
		items, err := p.parseSetClause()
		if err != nil {
			return err
		}
		q.Set = items
	}

	return nil
}

func (p *Parser) parseCreatePart(q *Query) error {
	p.advance() // CREATE
	p.clauseBound = map[string]bool{}
	pat, err := p.parsePattern()
	if err != nil {
		return err
	}
	if err := p.rejectWildcardOrUnion(pat); err != nil {
		return err
	}
	q.CreatePatterns = append(q.CreatePatterns, pat)
	for p.at(TokComma) {
		p.advance()
		pat, err := p.parsePattern()
		if err != nil {
			return err
		}
		if err := p.rejectWildcardOrUnion(pat); err != nil {
			return err
		}
		q.CreatePatterns = append(q.CreatePatterns, pat)
	}
	return nil
}

func (p *Parser) parseMergePart(q *Query) error {
	p.advance() // MERGE
	p.clauseBound = map[string]bool{}
	introducedName := false

	pat, err := p.parsePattern()
	if err != nil {
		return err
	}
	if err := p.rejectWildcardOrUnion(pat); err != nil {
		return err
	}
	if patternIntroducesNamedVar(pat, p.matchBound) {
		introducedName = true
	}
	q.MergePatterns = append(q.MergePatterns, pat)

	for p.at(TokComma) {
		p.advance()
		pat, err := p.parsePattern()
		if err != nil {
			return err
		}
		if err := p.rejectWildcardOrUnion(pat); err != nil {
			return err
		}
		if patternIntroducesNamedVar(pat, p.matchBound) {
			introducedName = true
		}
		q.MergePatterns = append(q.MergePatterns, pat)
	}

	if !introducedName {
		return newSemanticError("MERGE requires a {name: \"...\"} constraint on a newly introduced variable")
	}

	if p.at(TokOn) {
		items, isCreate, err := p.parseOnClause()
		if err != nil {
			return err
		}
		if isCreate {
			q.OnCreateSet = items
		} else {
			q.OnMatchSet = items
		}
		if p.at(TokOn) {
			items2, isCreate2, err := p.parseOnClause()
			if err != nil {
				return err
			}
			if isCreate2 {
				q.OnCreateSet = items2
			} else {
				q.OnMatchSet = items2
			}
		}
	}

	return nil
}

func patternIntroducesNamedVar(pat *Pattern, matchBound map[string]bool) bool {
	for _, n := range pat.Nodes {
		if n.NameConstraint != nil && !matchBound[n.Variable] {
			return true
		}
	}
	return false
}

func (p *Parser) parseOnClause() (items []SetItem, isCreate bool, err error) {
	p.advance() // ON
	switch {
	case p.at(TokCreate):
		p.advance()
		isCreate = true
	case p.at(TokMatch):
		p.advance()
		isCreate = false
	default:
		return nil, false, newParseErrorAt(p.peek(), "expected CREATE or MATCH after ON", TokCreate, TokMatch)
	}
	if _, err := p.expect(TokSet); err != nil {
		return nil, false, err
	}
	items, err = p.parseSetItems()
	return items, isCreate, err
}

func (p *Parser) rejectWildcardOrUnion(pat *Pattern) error {
	for _, r := range pat.Rels {
		if r.SetKind != RelSetSingle {
			return newSemanticError("write patterns may not use wildcard or union relations")
		}
	}
	return nil
}

func (p *Parser) parseSetClause() ([]SetItem, error) {
	p.advance() // SET
	return p.parseSetItems()
}

func (p *Parser) parseSetItems() ([]SetItem, error) {
	var items []SetItem
	item, err := p.parseSetItem()
	if err != nil {
		return nil, err
	}
	items = append(items, item)
	for p.at(TokComma) {
		p.advance()
		item, err := p.parseSetItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	hasType, hasTypeIDProp := false, false
	for _, it := range items {
		switch v := it.(type) {
		case *TypeAssign:
			hasType = true
		case *PropertyAssign:
			if v.Property == "typeId" {
				hasTypeIDProp = true
			}
		}
	}
	if hasType && hasTypeIDProp {
		return nil, newSemanticError("SET p:TypeName cannot appear alongside SET p.typeId = ...")
	}
	return items, nil
}

func (p *Parser) parseSetItem() (SetItem, error) {
	varTok, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if !p.bound[varTok.Value] {
		return nil, newSemanticError("SET references unbound variable " + varTok.Value)
	}

	if p.at(TokColon) {
		p.advance()
		typeTok, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		return &TypeAssign{Variable: varTok.Value, TypeLabel: typeTok.Value}, nil
	}

	if _, err := p.expect(TokDot); err != nil {
		return nil, err
	}
	propTok, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if !isSettableProperty(propTok.Value) {
		return nil, newSemanticError("property " + propTok.Value + " is not assignable via SET")
	}
	if _, err := p.expect(TokEquals); err != nil {
		return nil, err
	}
	if p.at(TokNull) {
		p.advance()
		return &PropertyAssign{Variable: varTok.Value, Property: propTok.Value, Value: nil}, nil
	}
	strTok, err := p.expect(TokString)
	if err != nil {
		return nil, err
	}
	val := strTok.Value
	return &PropertyAssign{Variable: varTok.Value, Property: propTok.Value, Value: &val}, nil
}

func isSettableProperty(name string) bool {
	switch name {
	case PropName, PropLabel, PropForegroundColor, PropBackgroundColor:
		return true
	default:
		return false
	}
}

func (p *Parser) parseDeletePart(q *Query) error {
	if p.at(TokDetach) {
		p.advance()
		q.Detach = true
	}
	if _, err := p.expect(TokDelete); err != nil {
		return err
	}
	varTok, err := p.expect(TokIdent)
	if err != nil {
		return err
	}
	if !p.bound[varTok.Value] {
		return newSemanticError("DELETE references unbound variable " + varTok.Value)
	}
	q.DeleteVars = append(q.DeleteVars, varTok.Value)
	for p.at(TokComma) {
		p.advance()
		varTok, err := p.expect(TokIdent)
		if err != nil {
			return err
		}
		if !p.bound[varTok.Value] {
			return newSemanticError("DELETE references unbound variable " + varTok.Value)
		}
		q.DeleteVars = append(q.DeleteVars, varTok.Value)
	}
	return nil
}

func (p *Parser) parseReturnPart(q *Query) error {
	p.advance() // RETURN
	item, err := p.parseReturnItem()
	if err != nil {
		return err
	}
	q.Return = append(q.Return, item)
	for p.at(TokComma) {
		p.advance()
		item, err := p.parseReturnItem()
		if err != nil {
			return err
		}
		q.Return = append(q.Return, item)
	}
	return nil
}

func (p *Parser) parseReturnItem() (ReturnItem, error) {
	varTok, err := p.expect(TokIdent)
	if err != nil {
		return ReturnItem{}, err
	}
	if !p.bound[varTok.Value] {
		return ReturnItem{}, newSemanticError("RETURN references unbound variable " + varTok.Value)
	}
	item := ReturnItem{Variable: varTok.Value}
	if p.at(TokDot) {
		p.advance()
		fieldTok, err := p.expect(TokIdent)
		if err != nil {
			return ReturnItem{}, err
		}
		if fieldTok.Value != "id" && fieldTok.Value != "name" {
			return ReturnItem{}, newSemanticError("RETURN field must be id or name, got " + fieldTok.Value)
		}
		item.Field = fieldTok.Value
	}
	return item, nil
}

// --- Patterns ---

func (p *Parser) parsePattern() (*Pattern, error) {
	pat := &Pattern{}
	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	pat.Nodes = append(pat.Nodes, node)

	for p.at(TokMinus) || (p.at(TokArrowOut) && p.peek().Value == "-->") {
		rel, err := p.parseRelationship()
		if err != nil {
			return nil, err
		}
		target, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		pat.Rels = append(pat.Rels, rel)
		pat.Nodes = append(pat.Nodes, target)
	}

	return pat, nil
}

func (p *Parser) parseNode() (*NodePattern, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	n := &NodePattern{}
	if p.at(TokIdent) {
		n.Variable = p.advance().Value
	}
	if p.at(TokColon) {
		p.advance()
		typeTok, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		n.TypeLabel = typeTok.Value
	}
	if p.at(TokLBrace) {
		p.advance()
		nameTok, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if nameTok.Value != "name" {
			return nil, newSemanticError("inline node properties support only 'name'")
		}
		if _, err := p.expect(TokColon); err != nil {
			return nil, err
		}
		strTok, err := p.expect(TokString)
		if err != nil {
			return nil, err
		}
		val := strTok.Value
		n.NameConstraint = &val
		if _, err := p.expect(TokRBrace); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}

	if n.Variable == "" {
		return nil, newParseErrorAt(p.peek(), "node pattern requires a variable", TokIdent)
	}
	if p.clauseBound[n.Variable] {
		return nil, newParseErrorAt(p.peek(), "variable "+n.Variable+" is already defined in this clause", TokIdent)
	}
	p.clauseBound[n.Variable] = true
	p.bound[n.Variable] = true
	if p.inMatch {
		p.matchBound[n.Variable] = true
	}
	return n, nil
}

// parseRelationship parses either the bare "-->" wildcard shorthand or the
// full "-[var?:TYPE(|TYPE)*][*N|*N..M]->" form.
func (p *Parser) parseRelationship() (*RelationshipPattern, error) {
	rel := &RelationshipPattern{HopMin: 1, HopMax: 1}

	if p.at(TokArrowOut) && p.peek().Value == "-->" {
		p.advance()
		rel.SetKind = RelSetWildcard
		return rel, nil
	}

	if _, err := p.expect(TokMinus); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBracket); err != nil {
		return nil, err
	}

	if p.at(TokIdent) {
		rel.Variable = p.advance().Value
		p.bound[rel.Variable] = true
	}

	if p.at(TokColon) {
		p.advance()
		types, kind, err := p.parseRelationTypeSet()
		if err != nil {
			return nil, err
		}
		rel.Types = types
		rel.SetKind = kind
	} else if p.at(TokStar) {
		rel.SetKind = RelSetWildcard
	} else {
		return nil, newParseErrorAt(p.peek(), "expected relation type or '*'", TokColon, TokStar)
	}

	if p.at(TokStar) {
		p.advance()
		hopMin, hopMax, err := p.parseHopSpec()
		if err != nil {
			return nil, err
		}
		rel.HopMin, rel.HopMax = hopMin, hopMax
	}

	if _, err := p.expect(TokRBracket); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokArrowOut); err != nil {
		return nil, err
	}

	return rel, nil
}

func (p *Parser) parseRelationTypeSet() ([]Relation, RelSetKind, error) {
	first, err := p.expectRelationType()
	if err != nil {
		return nil, 0, err
	}
	types := []Relation{first}
	kind := RelSetSingle
	for p.at(TokPipe) {
		p.advance()
		next, err := p.expectRelationType()
		if err != nil {
			return nil, 0, err
		}
		types = append(types, next)
		kind = RelSetUnion
	}
	return types, kind, nil
}

func (p *Parser) expectRelationType() (Relation, error) {
	tok, err := p.expect(TokIdent)
	if err != nil {
		return 0, err
	}
	rel, ok := relationNames[tok.Value]
	if !ok {
		return 0, newParseErrorAt(tok, "unknown relation type "+tok.Value)
	}
	return rel, nil
}

// parseHopSpec parses the token(s) after '*': either "N" (fixed) or
// "N..M" (ranged). Bare '*' with nothing following, or "N.." with no upper
// bound, are rejected here at the syntax level since the grammar requires
// a finite bound.
func (p *Parser) parseHopSpec() (min, max int, err error) {
	if !p.at(TokInt) {
		return 0, 0, newSemanticError("hop specifier requires an explicit upper bound (bare '*' is not allowed)")
	}
	nTok := p.advance()
	n, convErr := strconv.Atoi(nTok.Value)
	if convErr != nil {
		return 0, 0, newParseErrorAt(nTok, "invalid hop count "+nTok.Value)
	}
	if !p.at(TokDotDot) {
		return n, n, nil
	}
	p.advance() // ..
	if !p.at(TokInt) {
		return 0, 0, newSemanticError("hop specifier requires an explicit upper bound (unbounded '*N..' is not allowed)")
	}
	mTok := p.advance()
	m, convErr := strconv.Atoi(mTok.Value)
	if convErr != nil {
		return 0, 0, newParseErrorAt(mTok, "invalid hop count "+mTok.Value)
	}
	return n, m, nil
}

// --- WHERE expressions ---
//
// Precedence, lowest to highest: OR < XOR < AND < NOT.

func (p *Parser) parseWhereExpr() (WhereExpr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (WhereExpr, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.at(TokOr) {
		p.advance()
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = &OrExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseXor() (WhereExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(TokXor) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &XorExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (WhereExpr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.at(TokAnd) {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &AndExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (WhereExpr, error) {
	if p.at(TokNot) {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Operand: operand}, nil
	}
	return p.parseAtom()
}

func (p *Parser) parseAtom() (WhereExpr, error) {
	if p.at(TokLParen) {
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	}

	varTok, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokDot); err != nil {
		return nil, err
	}
	propTok, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}

	if p.at(TokIs) {
		p.advance()
		negate := false
		if p.at(TokNot) {
			p.advance()
			negate = true
		}
		if _, err := p.expect(TokNull); err != nil {
			return nil, err
		}
		if negate {
			return &IsNotNull{Variable: varTok.Value, Property: propTok.Value}, nil
		}
		return &IsNull{Variable: varTok.Value, Property: propTok.Value}, nil
	}

	if propTok.Value != PropName {
		return nil, newSemanticError("WHERE comparisons are only supported on the name field, got " + propTok.Value)
	}

	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	strTok, err := p.expect(TokString)
	if err != nil {
		return nil, err
	}
	return &NameCompare{Variable: varTok.Value, Op: op, Literal: strTok.Value}, nil
}

func (p *Parser) parseCompareOp() (CompareOp, error) {
	switch {
	case p.at(TokEquals):
		p.advance()
		return OpEquals, nil
	case p.at(TokTildeEq):
		p.advance()
		return OpSimilar, nil
	case p.at(TokContains):
		p.advance()
		return OpContains, nil
	case p.at(TokStarts):
		p.advance()
		if _, err := p.expect(TokWith); err != nil {
			return 0, err
		}
		return OpStartsWith, nil
	case p.at(TokEnds):
		p.advance()
		if _, err := p.expect(TokWith); err != nil {
			return 0, err
		}
		return OpEndsWith, nil
	default:
		return 0, newParseErrorAt(p.peek(), "expected comparison operator", TokEquals, TokTildeEq, TokContains, TokStarts, TokEnds)
	}
}

func (p *Parser) checkWhereVarsBound(expr WhereExpr) error {
	var vars []string
	collectWhereVars(expr, &vars)
	for _, v := range vars {
		if !p.bound[v] {
			return newSemanticError("WHERE references unbound variable " + v)
		}
	}
	return nil
}

func collectWhereVars(expr WhereExpr, out *[]string) {
	switch e := expr.(type) {
	case *OrExpr:
		collectWhereVars(e.Left, out)
		collectWhereVars(e.Right, out)
	case *XorExpr:
		collectWhereVars(e.Left, out)
		collectWhereVars(e.Right, out)
	case *AndExpr:
		collectWhereVars(e.Left, out)
		collectWhereVars(e.Right, out)
	case *NotExpr:
		collectWhereVars(e.Operand, out)
	case *NameCompare:
		*out = append(*out, e.Variable)
	case *IsNull:
		*out = append(*out, e.Variable)
	case *IsNotNull:
		*out = append(*out, e.Variable)
	}
}
