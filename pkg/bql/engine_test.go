package bql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

func TestScenario1_ChildTraversal(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "1", Name: "Projects", Kind: "thought"})
	svc.addNode(graphservice.NodeRecord{ID: "2", Name: "A", Kind: "thought"})
	svc.addNode(graphservice.NodeRecord{ID: "3", Name: "B", Kind: "thought"})
	svc.addEdge("1", int(RelChild), "2")
	svc.addEdge("1", int(RelChild), "3")

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (n {name: "Projects"})-[:CHILD]->(m) RETURN m.name`, ExecuteOptions{})
	require.Equal(t, ResultRows, res.Kind, "%v", res.Err)
	require.Len(t, res.Rows, 2)
	names := []string{*cellName(res.Rows[0][0]), *cellName(res.Rows[1][0])}
	assert.ElementsMatch(t, []string{"A", "B"}, names)
}

func cellName(c Cell) *string {
	if c.Node == nil {
		return nil
	}
	s := c.Node.Name
	return &s
}

func TestScenario2_SearchPostFilter(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "1", Name: "MCP Server", Kind: "thought"})
	svc.addNode(graphservice.NodeRecord{ID: "2", Name: "Notes", Kind: "thought"})

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (n) WHERE n.name CONTAINS "mcp" RETURN n.id`, ExecuteOptions{})
	require.Equal(t, ResultRows, res.Kind, "%v", res.Err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "1", res.Rows[0][0].Node.ID)
}

func TestScenario3_MergeOnCreateOnMatch(t *testing.T) {
	svc := newFakeService()
	eng := NewEngine(svc)

	res1 := eng.Execute(context.Background(), `MERGE (p {name: "Weekly"}) ON CREATE SET p.label = "new" ON MATCH SET p.label = "old" RETURN p.id`, ExecuteOptions{})
	require.Equal(t, ResultRows, res1.Kind, "%v", res1.Err)
	assert.Equal(t, 1, svc.createNodeCalls)
	assert.Equal(t, 1, svc.updateNodeCalls)

	res2 := eng.Execute(context.Background(), `MERGE (p {name: "Weekly"}) ON CREATE SET p.label = "new" ON MATCH SET p.label = "old" RETURN p.id`, ExecuteOptions{})
	require.Equal(t, ResultRows, res2.Kind, "%v", res2.Err)
	assert.Equal(t, 1, svc.createNodeCalls, "second run must not create")
	assert.Equal(t, 2, svc.updateNodeCalls, "second run applies ON MATCH SET")
}

func TestMergeWithRelationshipLinksEndpoints(t *testing.T) {
	svc := newFakeService()
	eng := NewEngine(svc)

	res := eng.Execute(context.Background(), `MERGE (a {name: "A"})-[:CHILD]->(b {name: "B"})`, ExecuteOptions{})
	require.Equal(t, ResultMutation, res.Kind, "%v", res.Err)
	assert.Equal(t, 2, svc.createNodeCalls)
	assert.Equal(t, 1, svc.createEdgeCalls)
	assert.Empty(t, res.Mutation.Warnings)

	a, err := svc.GetByName(context.Background(), "g1", "A")
	require.NoError(t, err)
	require.NotNil(t, a)
	neighbors, err := svc.Neighborhood(context.Background(), "g1", a.ID, []int{int(RelChild)})
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "B", neighbors[0].Node.Name)
}

func TestScenario4_DeletePreview(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "1", Name: "Old", Kind: "thought"})

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (n {name: "Old"}) DELETE n`, ExecuteOptions{Confirm: false})
	require.Equal(t, ResultDeletePreview, res.Kind, "%v", res.Err)
	require.Len(t, res.Preview.WouldDeleteNodes, 1)
	assert.Equal(t, "Old", res.Preview.WouldDeleteNodes[0].Name)
	assert.Equal(t, 0, svc.deleteNodeCalls)
}

func TestScenario5_RangedHopWithPostFilter(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "company", Name: "Company"})
	svc.addNode(graphservice.NodeRecord{ID: "eng", Name: "Eng"})
	svc.addNode(graphservice.NodeRecord{ID: "fin", Name: "Fin"})
	svc.addNode(graphservice.NodeRecord{ID: "budget2025", Name: "Budget2025"})
	svc.addNode(graphservice.NodeRecord{ID: "reports", Name: "Reports"})
	svc.addNode(graphservice.NodeRecord{ID: "q1budget", Name: "Q1Budget"})
	svc.addEdge("company", int(RelChild), "eng")
	svc.addEdge("company", int(RelChild), "fin")
	svc.addEdge("fin", int(RelChild), "budget2025")
	svc.addEdge("fin", int(RelChild), "reports")
	svc.addEdge("budget2025", int(RelChild), "q1budget")

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (root {name: "Company"})-[:CHILD*1..3]->(d) WHERE d.name CONTAINS "Budget" RETURN d.name`, ExecuteOptions{})
	require.Equal(t, ResultRows, res.Kind, "%v", res.Err)
	var names []string
	for _, row := range res.Rows {
		names = append(names, row[0].Node.Name)
	}
	assert.ElementsMatch(t, []string{"Budget2025", "Q1Budget"}, names)
}

func TestScenario6_CreateUnderConstrainedEndpointWarns(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "1", Name: "A"})
	// "B" does not exist.

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (n {name: "A"}), (m {name: "B"}) CREATE (n)-[:JUMP]->(m)`, ExecuteOptions{})
	require.Equal(t, ResultMutation, res.Kind, "%v", res.Err)
	assert.Equal(t, 0, res.Mutation.Created)
	assert.Equal(t, 0, svc.createEdgeCalls)
	require.NotEmpty(t, res.Mutation.Warnings)
}

func TestConfirmRequiredForDeleteThenActuallyDeletes(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "1", Name: "Old"})

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (n {name: "Old"}) DELETE n`, ExecuteOptions{Confirm: true})
	require.Equal(t, ResultMutation, res.Kind, "%v", res.Err)
	assert.Equal(t, 1, res.Mutation.Deleted)
	assert.Equal(t, 1, svc.deleteNodeCalls)
}

func TestCreateThenMatchThenDeleteRoundTrip(t *testing.T) {
	svc := newFakeService()
	eng := NewEngine(svc)

	create := eng.Execute(context.Background(), `CREATE (n {name: "X"})`, ExecuteOptions{})
	require.Equal(t, ResultMutation, create.Kind, "%v", create.Err)
	assert.Equal(t, 1, create.Mutation.Created)

	match := eng.Execute(context.Background(), `MATCH (n {name: "X"}) RETURN n.id`, ExecuteOptions{})
	require.Equal(t, ResultRows, match.Kind, "%v", match.Err)
	require.Len(t, match.Rows, 1)

	del := eng.Execute(context.Background(), `MATCH (n {name: "X"}) DELETE n`, ExecuteOptions{Confirm: true})
	require.Equal(t, ResultMutation, del.Kind, "%v", del.Err)

	match2 := eng.Execute(context.Background(), `MATCH (n {name: "X"}) RETURN n.id`, ExecuteOptions{})
	require.Equal(t, ResultRows, match2.Kind, "%v", match2.Err)
	assert.Len(t, match2.Rows, 0)
}

func TestThreeNodeChainWherePrunesMiddleBeforeSecondHop(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "root", Name: "Root"})
	// Both children satisfy the name-search driver for m (CONTAINS "Node"),
	// but only KeepNode also satisfies the non-driving "label IS NOT NULL"
	// atom. That second atom must prune DropNode out of m's candidate set
	// before the second hop expands, or leafFromDrop leaks into the result.
	svc.addNode(graphservice.NodeRecord{ID: "keep", Name: "KeepNode", Label: "interesting"})
	svc.addNode(graphservice.NodeRecord{ID: "drop", Name: "DropNode"})
	svc.addNode(graphservice.NodeRecord{ID: "leafFromKeep", Name: "LeafFromKeep"})
	svc.addNode(graphservice.NodeRecord{ID: "leafFromDrop", Name: "LeafFromDrop"})
	svc.addEdge("root", int(RelChild), "keep")
	svc.addEdge("root", int(RelChild), "drop")
	svc.addEdge("keep", int(RelChild), "leafFromKeep")
	svc.addEdge("drop", int(RelChild), "leafFromDrop")

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(),
		`MATCH (root {name: "Root"})-[:CHILD]->(m)-[:CHILD]->(leaf) WHERE m.name CONTAINS "Node" AND m.label IS NOT NULL RETURN leaf.name`,
		ExecuteOptions{})
	require.Equal(t, ResultRows, res.Kind, "%v", res.Err)
	var names []string
	for _, row := range res.Rows {
		names = append(names, row[0].Node.Name)
	}
	assert.Equal(t, []string{"LeafFromKeep"}, names)
}

func TestWhereNameEqualsIsCaseSensitive(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "1", Name: "Projects"})
	svc.addNode(graphservice.NodeRecord{ID: "2", Name: "projects"})

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (n) WHERE n.name = "Projects" RETURN n.name`, ExecuteOptions{})
	require.Equal(t, ResultRows, res.Kind, "%v", res.Err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Projects", res.Rows[0][0].Node.Name)
}

func TestDeleteRelationshipVariable(t *testing.T) {
	svc := newFakeService()
	svc.addNode(graphservice.NodeRecord{ID: "1", Name: "Projects", Kind: "thought"})
	svc.addNode(graphservice.NodeRecord{ID: "2", Name: "A", Kind: "thought"})
	svc.addEdge("1", int(RelChild), "2")

	eng := NewEngine(svc)
	del := eng.Execute(context.Background(), `MATCH (n {name: "Projects"})-[r:CHILD]->(m) DELETE r`, ExecuteOptions{Confirm: true})
	require.Equal(t, ResultMutation, del.Kind, "%v", del.Err)
	assert.Equal(t, 1, svc.deleteEdgeCalls)

	after := eng.Execute(context.Background(), `MATCH (n {name: "Projects"})-[:CHILD]->(m) RETURN m.name`, ExecuteOptions{})
	require.Equal(t, ResultRows, after.Kind, "%v", after.Err)
	assert.Len(t, after.Rows, 0)
}

func TestCreateWithUnresolvableTypeLabelReturnsResolutionError(t *testing.T) {
	svc := newFakeService()

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `CREATE (n:NoSuchType {name: "X"})`, ExecuteOptions{})
	require.Equal(t, ResultErrorKind, res.Kind)
	require.NotNil(t, res.Err)
	assert.Equal(t, ResolutionError, res.Err.Kind)
	assert.Equal(t, 0, svc.createNodeCalls)
}

func TestNameAndTypeConstraintExcludesWrongTypeNode(t *testing.T) {
	svc := newFakeService()
	svc.types = []graphservice.TypeRecord{{ID: "t1", Name: "Project"}}
	svc.addNode(graphservice.NodeRecord{ID: "t1", Name: "Project", Kind: "type"})
	svc.addNode(graphservice.NodeRecord{ID: "x", Name: "X"}) // no TypeID: not a Project instance

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (n:Project {name: "X"}) RETURN n.id`, ExecuteOptions{})
	require.Equal(t, ResultRows, res.Kind, "%v", res.Err)
	assert.Len(t, res.Rows, 0)
}

func TestTypeOnlyPatternResolvesToTypeNodeNotChildren(t *testing.T) {
	svc := newFakeService()
	svc.types = []graphservice.TypeRecord{{ID: "t1", Name: "Project"}}
	svc.addNode(graphservice.NodeRecord{ID: "t1", Name: "Project", Kind: "type"})
	svc.addNode(graphservice.NodeRecord{ID: "c1", Name: "Instance1", TypeID: "t1"})
	svc.addEdge("t1", int(RelChild), "c1")

	eng := NewEngine(svc)
	res := eng.Execute(context.Background(), `MATCH (n:Project) RETURN n.id`, ExecuteOptions{})
	require.Equal(t, ResultRows, res.Kind, "%v", res.Err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "t1", res.Rows[0][0].Node.ID)
}

func TestSetBatchOverTenRefuses(t *testing.T) {
	svc := newFakeService()
	for i := 0; i < 11; i++ {
		id := idOf(i+1, "n")
		svc.addNode(graphservice.NodeRecord{ID: id, Name: "Item"})
	}
	// Craft a query hand-built via AST since 11 distinct pattern variables
	// would be unwieldy to write out; instead of going through Execute's
	// SET path, this test targets the SET item-count guard in Validate.
	items := make([]SetItem, 11)
	for i := range items {
		v := "x"
		items[i] = &PropertyAssign{Variable: idOf(i, "v"), Property: PropLabel, Value: &v}
	}
	q := &Query{Set: items}
	err := Validate(q)
	require.Error(t, err)
	var bqlErr *Error
	require.ErrorAs(t, err, &bqlErr)
	assert.Equal(t, LimitExceeded, bqlErr.Kind)
}
