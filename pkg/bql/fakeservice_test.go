package bql

import (
	"context"
	"strings"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

// fakeService is an in-memory graphservice.Service double for engine-level
// tests, grounded on the same operation set memstore implements against
// Badger, but kept purely in maps so tests don't touch the filesystem.
type fakeService struct {
	nodes     map[string]graphservice.NodeRecord
	types     []graphservice.TypeRecord
	neighbors map[string][]graphservice.Neighbor // nodeID -> edges out
	edges     map[string]graphservice.EdgeRecord

	nextID int

	createNodeCalls int
	createEdgeCalls int
	updateNodeCalls int
	updateTypeCalls int
	deleteNodeCalls int
	deleteEdgeCalls int
}

func newFakeService() *fakeService {
	return &fakeService{
		nodes:     map[string]graphservice.NodeRecord{},
		neighbors: map[string][]graphservice.Neighbor{},
		edges:     map[string]graphservice.EdgeRecord{},
	}
}

func (f *fakeService) addNode(n graphservice.NodeRecord) {
	f.nodes[n.ID] = n
}

func (f *fakeService) addEdge(sourceID string, relation int, targetID string) string {
	f.nextID++
	id := idOf(f.nextID, "e")
	f.edges[id] = graphservice.EdgeRecord{ID: id, SourceID: sourceID, Relation: relation, TargetID: targetID}
	f.neighbors[sourceID] = append(f.neighbors[sourceID], graphservice.Neighbor{
		Relation: relation, Node: f.nodes[targetID], EdgeID: id,
	})
	return id
}

func idOf(n int, prefix string) string {
	digits := "0123456789"
	s := ""
	for n > 0 {
		s = string(digits[n%10]) + s
		n /= 10
	}
	if s == "" {
		s = "0"
	}
	return prefix + s
}

func (f *fakeService) GetByName(ctx context.Context, graphID, name string) (*graphservice.NodeRecord, error) {
	for _, n := range f.nodes {
		if n.Name == name {
			nc := n
			return &nc, nil
		}
	}
	return nil, nil
}

func (f *fakeService) Search(ctx context.Context, graphID, queryText string) ([]graphservice.NodeRecord, error) {
	q := strings.ToLower(queryText)
	var out []graphservice.NodeRecord
	for _, n := range f.nodes {
		if strings.Contains(strings.ToLower(n.Name), q) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeService) ListTypes(ctx context.Context, graphID string) ([]graphservice.TypeRecord, error) {
	return f.types, nil
}

func (f *fakeService) Neighborhood(ctx context.Context, graphID, nodeID string, relations []int) ([]graphservice.Neighbor, error) {
	allowed := map[int]bool{}
	for _, r := range relations {
		allowed[r] = true
	}
	var out []graphservice.Neighbor
	for _, nb := range f.neighbors[nodeID] {
		if allowed[nb.Relation] {
			out = append(out, nb)
		}
	}
	return out, nil
}

func (f *fakeService) CreateNode(ctx context.Context, graphID string, input graphservice.NewNodeInput) (string, error) {
	f.createNodeCalls++
	f.nextID++
	id := idOf(f.nextID, "n")
	f.nodes[id] = graphservice.NodeRecord{ID: id, Name: input.Name, TypeID: input.TypeID, Label: input.Label}
	return id, nil
}

func (f *fakeService) CreateEdge(ctx context.Context, graphID, sourceID string, relation int, targetID string) (string, error) {
	f.createEdgeCalls++
	return f.addEdge(sourceID, relation, targetID), nil
}

func (f *fakeService) UpdateNode(ctx context.Context, graphID, nodeID, property string, value *string) error {
	f.updateNodeCalls++
	n := f.nodes[nodeID]
	v := ""
	if value != nil {
		v = *value
	}
	switch property {
	case "name":
		n.Name = v
	case "label":
		n.Label = v
	case "foregroundColor":
		n.ForegroundColor = v
	case "backgroundColor":
		n.BackgroundColor = v
	}
	f.nodes[nodeID] = n
	return nil
}

func (f *fakeService) UpdateType(ctx context.Context, graphID, nodeID, typeID string) error {
	f.updateTypeCalls++
	n := f.nodes[nodeID]
	n.TypeID = typeID
	f.nodes[nodeID] = n
	return nil
}

func (f *fakeService) DeleteNode(ctx context.Context, graphID, nodeID string) error {
	f.deleteNodeCalls++
	delete(f.nodes, nodeID)
	return nil
}

func (f *fakeService) DeleteEdge(ctx context.Context, graphID, edgeID string) error {
	f.deleteEdgeCalls++
	if e, ok := f.edges[edgeID]; ok {
		var kept []graphservice.Neighbor
		for _, nb := range f.neighbors[e.SourceID] {
			if nb.EdgeID != edgeID {
				kept = append(kept, nb)
			}
		}
		f.neighbors[e.SourceID] = kept
	}
	delete(f.edges, edgeID)
	return nil
}

var _ graphservice.Service = (*fakeService)(nil)
