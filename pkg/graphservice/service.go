// Package graphservice defines the narrow operation set the BQL engine
// consumes from an associative knowledge-graph backend, and provides both a
// thin HTTP client and a Badger-backed reference implementation of it.
package graphservice

import "context"

// NodeRecord mirrors a single graph node ("thought") as the engine sees it.
// Optional fields use the zero value to mean "absent"; TypeID and Label are
// pointer-like via empty string / zero to keep the record cheap to copy.
type NodeRecord struct {
	ID              string
	Name            string
	TypeID          string // "" if untyped
	Label           string // "" if unset
	ForegroundColor string // "" if unset
	BackgroundColor string // "" if unset
	Kind            string // never empty
}

// EdgeRecord is a directed, typed edge between two nodes.
type EdgeRecord struct {
	ID         string
	SourceID   string
	Relation   int // one of the four relation codes
	TargetID   string
}

// TypeRecord names a type node usable as a NodePattern's type label.
type TypeRecord struct {
	ID   string
	Name string
}

// Neighbor pairs a relation code with the node reached by that edge.
type Neighbor struct {
	Relation int
	Node     NodeRecord
	EdgeID   string
}

// NewNodeInput carries the fields accepted when creating a node.
type NewNodeInput struct {
	Name            string
	TypeID          string
	Label           string
	ForegroundColor string
	BackgroundColor string
}

// Service is the abstract operation set the BQL engine depends on. See
// spec §6. Every method takes the caller's context so in-flight calls can
// be cancelled; no method retries internally.
type Service interface {
	// GetByName returns at most one node with an exact name match within
	// activeGraphID, or (nil, nil) if none exists.
	GetByName(ctx context.Context, activeGraphID, name string) (*NodeRecord, error)

	// Search returns an ordered, capped list of nodes matching queryText.
	Search(ctx context.Context, activeGraphID, queryText string) ([]NodeRecord, error)

	// ListTypes returns every type node defined within activeGraphID.
	ListTypes(ctx context.Context, activeGraphID string) ([]TypeRecord, error)

	// Neighborhood returns the edges incident to nodeID whose relation is
	// in relations, together with the neighbor node at the far end.
	Neighborhood(ctx context.Context, activeGraphID, nodeID string, relations []int) ([]Neighbor, error)

	CreateNode(ctx context.Context, activeGraphID string, input NewNodeInput) (string, error)
	CreateEdge(ctx context.Context, activeGraphID, sourceID string, relation int, targetID string) (string, error)

	// UpdateNode sets or clears (value == nil) a single property.
	UpdateNode(ctx context.Context, activeGraphID, nodeID, property string, value *string) error
	UpdateType(ctx context.Context, activeGraphID, nodeID, typeID string) error

	DeleteNode(ctx context.Context, activeGraphID, nodeID string) error
	DeleteEdge(ctx context.Context, activeGraphID, edgeID string) error
}
