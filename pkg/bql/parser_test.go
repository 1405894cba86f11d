package bql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleMatchReturn(t *testing.T) {
	q, err := Parse(`MATCH (n {name: "Projects"})-[:CHILD]->(m) RETURN m.name`)
	require.NoError(t, err)
	assert.Equal(t, KindReadQuery, q.Kind)
	require.Len(t, q.MatchPatterns, 1)
	pat := q.MatchPatterns[0]
	require.Len(t, pat.Nodes, 2)
	require.Len(t, pat.Rels, 1)
	assert.Equal(t, "n", pat.Nodes[0].Variable)
	assert.Equal(t, "Projects", *pat.Nodes[0].NameConstraint)
	assert.Equal(t, RelSetSingle, pat.Rels[0].SetKind)
	assert.Equal(t, []Relation{RelChild}, pat.Rels[0].Types)
	assert.Equal(t, 1, pat.Rels[0].HopMin)
	assert.Equal(t, 1, pat.Rels[0].HopMax)
	require.Len(t, q.Return, 1)
	assert.Equal(t, "m", q.Return[0].Variable)
	assert.Equal(t, "name", q.Return[0].Field)
}

func TestParseHopRange(t *testing.T) {
	q, err := Parse(`MATCH (n {name: "A"})-[:CHILD*1..3]->(m) RETURN m`)
	require.NoError(t, err)
	rel := q.MatchPatterns[0].Rels[0]
	assert.Equal(t, 1, rel.HopMin)
	assert.Equal(t, 3, rel.HopMax)
}

func TestParseUnboundedHopRejected(t *testing.T) {
	_, err := Parse(`MATCH (n {name: "A"})-[:CHILD*1..]->(m) RETURN m`)
	require.Error(t, err)
	var bqlErr *Error
	require.ErrorAs(t, err, &bqlErr)
	assert.Equal(t, SemanticError, bqlErr.Kind)
}

func TestParseBareStarRejected(t *testing.T) {
	_, err := Parse(`MATCH (n {name: "A"})-[:CHILD*]->(m) RETURN m`)
	require.Error(t, err)
}

func TestParseHopOverFiveRejectedByValidate(t *testing.T) {
	q, err := Parse(`MATCH (n {name: "A"})-[:CHILD*1..6]->(m) RETURN m`)
	require.NoError(t, err)
	err = Validate(q)
	require.Error(t, err)
	var bqlErr *Error
	require.ErrorAs(t, err, &bqlErr)
	assert.Equal(t, LimitExceeded, bqlErr.Kind)
}

func TestParseUnionRelation(t *testing.T) {
	q, err := Parse(`MATCH (n {name: "A"})-[:CHILD|JUMP]->(m) RETURN m`)
	require.NoError(t, err)
	rel := q.MatchPatterns[0].Rels[0]
	assert.Equal(t, RelSetUnion, rel.SetKind)
	assert.ElementsMatch(t, []Relation{RelChild, RelJump}, rel.Types)
}

func TestParseWildcardRelation(t *testing.T) {
	q, err := Parse(`MATCH (n {name: "A"})-->(m) RETURN m`)
	require.NoError(t, err)
	rel := q.MatchPatterns[0].Rels[0]
	assert.Equal(t, RelSetWildcard, rel.SetKind)
	assert.ElementsMatch(t, []Relation{RelChild, RelJump, RelSibling}, rel.Expand())
}

func TestParseWildcardInWriteRejected(t *testing.T) {
	_, err := Parse(`MATCH (n {name: "A"})-[:CHILD|JUMP]->(m) CREATE (m)-[:CHILD]->(x {name: "Y"})`)
	require.NoError(t, err) // this variant is legal: only the write pattern must avoid union/wildcard

	_, err2 := Parse(`MATCH (n {name: "A"})-[:CHILD|JUMP]->(m) CREATE (m)-[:CHILD|JUMP]->(x {name: "Y"})`)
	require.Error(t, err2)
	var bqlErr *Error
	require.ErrorAs(t, err2, &bqlErr)
	assert.Equal(t, SemanticError, bqlErr.Kind)
}

func TestParseDeleteRequiresMatch(t *testing.T) {
	_, err := Parse(`DELETE n`)
	require.Error(t, err)
	var bqlErr *Error
	require.ErrorAs(t, err, &bqlErr)
	assert.Equal(t, SemanticError, bqlErr.Kind)
}

func TestParseSetAndDeleteMutuallyExclusive(t *testing.T) {
	_, err := Parse(`MATCH (n {name: "A"}) SET n.label = "x" DELETE n`)
	require.Error(t, err)
}

func TestParseMergeRequiresNameConstraint(t *testing.T) {
	_, err := Parse(`MERGE (p)`)
	require.Error(t, err)
	var bqlErr *Error
	require.ErrorAs(t, err, &bqlErr)
	assert.Equal(t, SemanticError, bqlErr.Kind)
}

func TestParseMergeWithOnClauses(t *testing.T) {
	q, err := Parse(`MERGE (p {name: "Weekly"}) ON CREATE SET p.label = "new" ON MATCH SET p.label = "old" RETURN p.id`)
	require.NoError(t, err)
	require.Len(t, q.OnCreateSet, 1)
	require.Len(t, q.OnMatchSet, 1)
	assert.Equal(t, KindUpsertQuery, q.Kind)
}

func TestParseWhereOperatorPrecedence(t *testing.T) {
	// OR < XOR < AND < NOT: "a OR b AND c" parses as a OR (b AND c)
	q, err := Parse(`MATCH (n) WHERE n.name = "a" OR n.name = "b" AND n.name = "c" RETURN n`)
	require.NoError(t, err)
	or, ok := q.Where.(*OrExpr)
	require.True(t, ok)
	_, leftIsCompare := or.Left.(*NameCompare)
	assert.True(t, leftIsCompare)
	_, rightIsAnd := or.Right.(*AndExpr)
	assert.True(t, rightIsAnd)
}

func TestParseCrossVariableOrRejected(t *testing.T) {
	q, err := Parse(`MATCH (n), (m) WHERE n.name = "a" OR m.name = "b" RETURN n`)
	require.NoError(t, err)
	err = Validate(q)
	require.Error(t, err)
}

func TestParseCrossVariableAndAllowed(t *testing.T) {
	q, err := Parse(`MATCH (n), (m) WHERE n.name = "a" AND m.name = "b" RETURN n`)
	require.NoError(t, err)
	assert.NotNil(t, q.Where)
}

func TestParseIsNullAlone(t *testing.T) {
	q, err := Parse(`MATCH (n) WHERE n.label IS NULL RETURN n`)
	require.NoError(t, err)
	// The bare-driver rejection happens in the planner once the pattern
	// context (downstream or not) is known, not in the raw parser AST.
	_, ok := q.Where.(*IsNull)
	assert.True(t, ok)
}

func TestParseUnreferencedVariableInReturn(t *testing.T) {
	_, err := Parse(`MATCH (n {name: "A"}) RETURN m`)
	require.Error(t, err)
}

func TestParseSetTypeAndTypeIdMutuallyExclusive(t *testing.T) {
	_, err := Parse(`MATCH (p {name: "A"}) SET p:NewType, p.typeId = "x"`)
	require.Error(t, err)
}

func TestParseRejectsVariableRedefinitionInSameClause(t *testing.T) {
	_, err := Parse(`MATCH (n {name: "A"}), (n {name: "B"}) RETURN n.name`)
	require.Error(t, err)
	var bqlErr *Error
	require.ErrorAs(t, err, &bqlErr)
	assert.Equal(t, ParseError, bqlErr.Kind)
}

func TestParseAllowsVariableReuseAcrossClauses(t *testing.T) {
	q, err := Parse(`MATCH (n {name: "A"}), (m {name: "B"}) CREATE (n)-[:JUMP]->(m)`)
	require.NoError(t, err)
	assert.Equal(t, KindReadWrite, q.Kind)
}
