package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateNodeThenGetByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "Projects"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	n, err := s.GetByName(ctx, "g1", "Projects")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, id, n.ID)
	assert.Equal(t, "thought", n.Kind)
}

func TestGetByNameMissReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	n, err := s.GetByName(context.Background(), "g1", "Nope")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestGetByNameIsScopedToGraphID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "Same"})
	require.NoError(t, err)

	n, err := s.GetByName(ctx, "g2", "Same")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "MCP Server"})
	s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "Notes"})

	results, err := s.Search(ctx, "g1", "mcp")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "MCP Server", results[0].Name)
}

func TestCreateEdgeAndNeighborhood(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parentID, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "Projects"})
	childID, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "A"})
	otherID, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "B"})

	_, err := s.CreateEdge(ctx, "g1", parentID, 1, childID)
	require.NoError(t, err)
	_, err = s.CreateEdge(ctx, "g1", parentID, 3, otherID)
	require.NoError(t, err)

	children, err := s.Neighborhood(ctx, "g1", parentID, []int{1})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "A", children[0].Node.Name)

	all, err := s.Neighborhood(ctx, "g1", parentID, []int{1, 3})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNeighborhoodIsDirectionSymmetricForChildParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parentID, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "Projects"})
	childID, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "A"})

	// (parent)-[:CHILD]->(child)
	_, err := s.CreateEdge(ctx, "g1", parentID, 1, childID)
	require.NoError(t, err)

	// Querying the child for RelParent must find the parent, even though
	// the edge was only ever created in the CHILD direction.
	parents, err := s.Neighborhood(ctx, "g1", childID, []int{2})
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, "Projects", parents[0].Node.Name)
	assert.Equal(t, 2, parents[0].Relation)

	// And the parent must not see itself as the child's child.
	noChildren, err := s.Neighborhood(ctx, "g1", childID, []int{1})
	require.NoError(t, err)
	assert.Empty(t, noChildren)
}

func TestNeighborhoodJumpAndSiblingAreSymmetricBothWays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "A"})
	b, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "B"})

	_, err := s.CreateEdge(ctx, "g1", a, 3, b) // JUMP
	require.NoError(t, err)

	fromA, err := s.Neighborhood(ctx, "g1", a, []int{3})
	require.NoError(t, err)
	require.Len(t, fromA, 1)

	fromB, err := s.Neighborhood(ctx, "g1", b, []int{3})
	require.NoError(t, err)
	require.Len(t, fromB, 1)
	assert.Equal(t, "A", fromB[0].Node.Name)
	assert.Equal(t, 3, fromB[0].Relation)
}

func TestCreateEdgeRejectsMissingEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "A"})

	_, err := s.CreateEdge(ctx, "g1", id, 1, "does-not-exist")
	assert.Error(t, err)
}

func TestUpdateNodeRenamesAndReindexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "Old"})

	newName := "New"
	require.NoError(t, s.UpdateNode(ctx, "g1", id, "name", &newName))

	n, err := s.GetByName(ctx, "g1", "New")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, id, n.ID)

	gone, err := s.GetByName(ctx, "g1", "Old")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestListTypesAndUpdateType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	typeID, err := s.CreateType(ctx, "g1", "Project")
	require.NoError(t, err)

	types, err := s.ListTypes(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "Project", types[0].Name)

	nodeID, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "Instance"})
	require.NoError(t, s.UpdateType(ctx, "g1", nodeID, typeID))

	n, err := s.GetByName(ctx, "g1", "Instance")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, typeID, n.TypeID)
}

func TestDeleteNodeRemovesOutgoingEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "A"})
	b, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "B"})
	s.CreateEdge(ctx, "g1", a, 1, b)

	require.NoError(t, s.DeleteNode(ctx, "g1", a))

	n, err := s.GetByName(ctx, "g1", "A")
	require.NoError(t, err)
	assert.Nil(t, n)

	neighbors, err := s.Neighborhood(ctx, "g1", a, []int{1})
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestDeleteNodeRemovesIncomingEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "A"})
	b, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "B"})
	s.CreateEdge(ctx, "g1", a, 1, b)

	require.NoError(t, s.DeleteNode(ctx, "g1", b))

	neighbors, err := s.Neighborhood(ctx, "g1", a, []int{1})
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestDeleteEdgeRemovesFromNeighborhood(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "A"})
	b, _ := s.CreateNode(ctx, "g1", graphservice.NewNodeInput{Name: "B"})
	edgeID, _ := s.CreateEdge(ctx, "g1", a, 1, b)

	require.NoError(t, s.DeleteEdge(ctx, "g1", edgeID))

	neighbors, err := s.Neighborhood(ctx, "g1", a, []int{1})
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}
