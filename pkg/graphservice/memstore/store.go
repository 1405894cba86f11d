// Package memstore is a Badger-backed reference implementation of
// graphservice.Service, used by the pkg/mcp tests and by the CLI's --local
// mode when no remote graph service is configured.
package memstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

// Key prefixes, single byte for compactness, following the teacher's
// storage engine convention.
const (
	prefixNode          = byte(0x01) // node:nodeID -> gob(nodeRecord)
	prefixEdge          = byte(0x02) // edge:edgeID -> gob(edgeRecord)
	prefixNameIndex     = byte(0x03) // name:lower(name):nodeID -> empty
	prefixOutgoingIndex = byte(0x04) // out:nodeID:edgeID -> empty, keyed by the edge's source
	prefixTypeIndex     = byte(0x05) // type:lower(name):typeNodeID -> empty
	prefixIncomingIndex = byte(0x06) // in:nodeID:edgeID -> empty, keyed by the edge's target
)

// relation codes, mirroring pkg/bql.Relation without importing it (memstore
// stays query-language-agnostic). CHILD and PARENT are each other's
// reciprocal when an edge is read from its target's side; JUMP and SIBLING
// are symmetric.
const (
	relChild   = 1
	relParent  = 2
	relJump    = 3
	relSibling = 4
)

func reciprocalRelation(relation int) int {
	switch relation {
	case relChild:
		return relParent
	case relParent:
		return relChild
	default:
		return relation
	}
}

// nodeRecord and edgeRecord are the gob-encoded on-disk shapes; kept
// separate from graphservice's exported records so storage layout can
// evolve without changing the Service surface.
type nodeRecord struct {
	ID              string
	Name            string
	TypeID          string
	Label           string
	ForegroundColor string
	BackgroundColor string
	Kind            string
}

type edgeRecord struct {
	ID       string
	SourceID string
	Relation int
	TargetID string
}

// Store is a Badger-backed graphservice.Service. All graphs share one
// Badger instance; activeGraphID is folded into every key so multiple
// graphs can coexist in one store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a Badger database at dataDir. dataDir == "" opens
// an in-memory instance, used for tests and the CLI's --local mode.
func Open(dataDir string) (*Store, error) {
	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil
	if dataDir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ graphservice.Service = (*Store)(nil)

func withPrefix(prefix byte, parts ...string) []byte {
	key := []byte{prefix}
	key = append(key, strings.Join(parts, ":")...)
	return key
}

func nodeKey(graphID, id string) []byte {
	return withPrefix(prefixNode, graphID, id)
}

func edgeKey(graphID, id string) []byte {
	return withPrefix(prefixEdge, graphID, id)
}

func nameIndexKey(graphID, name, nodeID string) []byte {
	return withPrefix(prefixNameIndex, graphID, strings.ToLower(name), nodeID)
}

func nameIndexPrefix(graphID, name string) []byte {
	return append(withPrefix(prefixNameIndex, graphID, strings.ToLower(name)), ':')
}

func outgoingKey(graphID, nodeID, edgeID string) []byte {
	return withPrefix(prefixOutgoingIndex, graphID, nodeID, edgeID)
}

func outgoingPrefix(graphID, nodeID string) []byte {
	return append(withPrefix(prefixOutgoingIndex, graphID, nodeID), ':')
}

func incomingKey(graphID, nodeID, edgeID string) []byte {
	return withPrefix(prefixIncomingIndex, graphID, nodeID, edgeID)
}

func incomingPrefix(graphID, nodeID string) []byte {
	return append(withPrefix(prefixIncomingIndex, graphID, nodeID), ':')
}

func typeIndexKey(graphID, name, typeNodeID string) []byte {
	return withPrefix(prefixTypeIndex, graphID, strings.ToLower(name), typeNodeID)
}

func typeIndexPrefix(graphID string) []byte {
	return append(withPrefix(prefixTypeIndex, graphID), ':')
}

func encodeNode(n nodeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeNode(data []byte) (nodeRecord, error) {
	var n nodeRecord
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&n)
	return n, err
}

func encodeEdge(e edgeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEdge(data []byte) (edgeRecord, error) {
	var e edgeRecord
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e)
	return e, err
}

func toExported(n nodeRecord) graphservice.NodeRecord {
	return graphservice.NodeRecord{
		ID:              n.ID,
		Name:            n.Name,
		TypeID:          n.TypeID,
		Label:           n.Label,
		ForegroundColor: n.ForegroundColor,
		BackgroundColor: n.BackgroundColor,
		Kind:            n.Kind,
	}
}

func (s *Store) getNode(txn *badger.Txn, graphID, id string) (nodeRecord, bool, error) {
	item, err := txn.Get(nodeKey(graphID, id))
	if err == badger.ErrKeyNotFound {
		return nodeRecord{}, false, nil
	}
	if err != nil {
		return nodeRecord{}, false, err
	}
	var n nodeRecord
	err = item.Value(func(val []byte) error {
		var decodeErr error
		n, decodeErr = decodeNode(val)
		return decodeErr
	})
	return n, err == nil, err
}

func (s *Store) GetByName(ctx context.Context, activeGraphID, name string) (*graphservice.NodeRecord, error) {
	var found *graphservice.NodeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		// The name index is lowercased; confirm the stored name matches
		// exactly before returning a node.
		prefix := nameIndexPrefix(activeGraphID, name)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			id := string(key[len(prefix):])
			n, ok, err := s.getNode(txn, activeGraphID, id)
			if err != nil {
				return err
			}
			if ok && n.Name == name {
				exported := toExported(n)
				found = &exported
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (s *Store) Search(ctx context.Context, activeGraphID, queryText string) ([]graphservice.NodeRecord, error) {
	var out []graphservice.NodeRecord
	needle := strings.ToLower(queryText)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		nodePrefix := append(withPrefix(prefixNode, activeGraphID), ':')
		for it.Seek(nodePrefix); it.ValidForPrefix(nodePrefix); it.Next() {
			var n nodeRecord
			err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				n, decodeErr = decodeNode(val)
				return decodeErr
			})
			if err != nil {
				return err
			}
			if strings.Contains(strings.ToLower(n.Name), needle) {
				out = append(out, toExported(n))
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ListTypes(ctx context.Context, activeGraphID string) ([]graphservice.TypeRecord, error) {
	var out []graphservice.TypeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := typeIndexPrefix(activeGraphID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			rest := key[len(prefix):]
			parts := strings.SplitN(string(rest), ":", 2)
			if len(parts) != 2 {
				continue
			}
			n, ok, err := s.getNode(txn, activeGraphID, parts[1])
			if err != nil {
				return err
			}
			if ok {
				out = append(out, graphservice.TypeRecord{ID: n.ID, Name: n.Name})
			}
		}
		return nil
	})
	return out, err
}

// Neighborhood returns edges incident to nodeID whose relation (as observed
// from nodeID's side) is in relations. It is direction-symmetric: an edge
// created as (a)-[:CHILD]->(b) is visible both as a CHILD edge from a's
// outgoing index and as a PARENT edge from b's incoming index, since CHILD
// and PARENT name the same relationship from opposite ends. JUMP and SIBLING
// are symmetric and read back unchanged from either end.
func (s *Store) Neighborhood(ctx context.Context, activeGraphID, nodeID string, relations []int) ([]graphservice.Neighbor, error) {
	want := map[int]bool{}
	for _, r := range relations {
		want[r] = true
	}
	var out []graphservice.Neighbor
	err := s.db.View(func(txn *badger.Txn) error {
		if err := s.scanOutgoing(txn, activeGraphID, nodeID, want, &out); err != nil {
			return err
		}
		return s.scanIncoming(txn, activeGraphID, nodeID, want, &out)
	})
	return out, err
}

func (s *Store) scanOutgoing(txn *badger.Txn, activeGraphID, nodeID string, want map[int]bool, out *[]graphservice.Neighbor) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	prefix := outgoingPrefix(activeGraphID, nodeID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().KeyCopy(nil)
		edgeID := string(key[len(prefix):])
		e, ok, err := s.getEdge(txn, activeGraphID, edgeID)
		if err != nil {
			return err
		}
		if !ok || !want[e.Relation] {
			continue
		}
		n, ok, err := s.getNode(txn, activeGraphID, e.TargetID)
		if err != nil || !ok {
			continue
		}
		*out = append(*out, graphservice.Neighbor{Relation: e.Relation, Node: toExported(n), EdgeID: e.ID})
	}
	return nil
}

func (s *Store) scanIncoming(txn *badger.Txn, activeGraphID, nodeID string, want map[int]bool, out *[]graphservice.Neighbor) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	prefix := incomingPrefix(activeGraphID, nodeID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().KeyCopy(nil)
		edgeID := string(key[len(prefix):])
		e, ok, err := s.getEdge(txn, activeGraphID, edgeID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		rel := reciprocalRelation(e.Relation)
		if !want[rel] {
			continue
		}
		n, ok, err := s.getNode(txn, activeGraphID, e.SourceID)
		if err != nil || !ok {
			continue
		}
		*out = append(*out, graphservice.Neighbor{Relation: rel, Node: toExported(n), EdgeID: e.ID})
	}
	return nil
}

func (s *Store) getEdge(txn *badger.Txn, activeGraphID, edgeID string) (edgeRecord, bool, error) {
	item, err := txn.Get(edgeKey(activeGraphID, edgeID))
	if err == badger.ErrKeyNotFound {
		return edgeRecord{}, false, nil
	}
	if err != nil {
		return edgeRecord{}, false, err
	}
	var e edgeRecord
	err = item.Value(func(val []byte) error {
		var decodeErr error
		e, decodeErr = decodeEdge(val)
		return decodeErr
	})
	return e, err == nil, err
}

func (s *Store) CreateNode(ctx context.Context, activeGraphID string, input graphservice.NewNodeInput) (string, error) {
	id := uuid.NewString()
	n := nodeRecord{
		ID:              id,
		Name:            input.Name,
		TypeID:          input.TypeID,
		Label:           input.Label,
		ForegroundColor: input.ForegroundColor,
		BackgroundColor: input.BackgroundColor,
		Kind:            "thought",
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		data, err := encodeNode(n)
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(activeGraphID, id), data); err != nil {
			return err
		}
		return txn.Set(nameIndexKey(activeGraphID, input.Name, id), nil)
	})
	if err != nil {
		return "", fmt.Errorf("create node: %w", err)
	}
	return id, nil
}

// CreateType registers an existing node as a type, so it becomes visible to
// ListTypes and to NodePattern type-label resolution. Not part of the
// Service interface (types are created out of band, e.g. by a fixture or an
// operator), but used by the store's own tests.
func (s *Store) CreateType(ctx context.Context, activeGraphID, name string) (string, error) {
	id, err := s.CreateNode(ctx, activeGraphID, graphservice.NewNodeInput{Name: name})
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(typeIndexKey(activeGraphID, name, id), nil)
	})
	if err != nil {
		return "", fmt.Errorf("register type: %w", err)
	}
	return id, nil
}

func (s *Store) CreateEdge(ctx context.Context, activeGraphID, sourceID string, relation int, targetID string) (string, error) {
	id := uuid.NewString()
	e := edgeRecord{ID: id, SourceID: sourceID, Relation: relation, TargetID: targetID}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, ok, err := s.getNode(txn, activeGraphID, sourceID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("source node %s does not exist", sourceID)
		}
		if _, ok, err := s.getNode(txn, activeGraphID, targetID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("target node %s does not exist", targetID)
		}
		data, err := encodeEdge(e)
		if err != nil {
			return err
		}
		if err := txn.Set(edgeKey(activeGraphID, id), data); err != nil {
			return err
		}
		if err := txn.Set(outgoingKey(activeGraphID, sourceID, id), nil); err != nil {
			return err
		}
		return txn.Set(incomingKey(activeGraphID, targetID, id), nil)
	})
	if err != nil {
		return "", fmt.Errorf("create edge: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateNode(ctx context.Context, activeGraphID, nodeID, property string, value *string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		n, ok, err := s.getNode(txn, activeGraphID, nodeID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("node %s does not exist", nodeID)
		}

		v := ""
		if value != nil {
			v = *value
		}
		oldName := n.Name
		switch property {
		case "name":
			n.Name = v
		case "label":
			n.Label = v
		case "foregroundColor":
			n.ForegroundColor = v
		case "backgroundColor":
			n.BackgroundColor = v
		default:
			return fmt.Errorf("unknown settable property %q", property)
		}

		data, err := encodeNode(n)
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(activeGraphID, nodeID), data); err != nil {
			return err
		}
		if property == "name" && oldName != n.Name {
			if err := txn.Delete(nameIndexKey(activeGraphID, oldName, nodeID)); err != nil {
				return err
			}
			if err := txn.Set(nameIndexKey(activeGraphID, n.Name, nodeID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UpdateType(ctx context.Context, activeGraphID, nodeID, typeID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		n, ok, err := s.getNode(txn, activeGraphID, nodeID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("node %s does not exist", nodeID)
		}
		n.TypeID = typeID
		data, err := encodeNode(n)
		if err != nil {
			return err
		}
		return txn.Set(nodeKey(activeGraphID, nodeID), data)
	})
}

func (s *Store) DeleteNode(ctx context.Context, activeGraphID, nodeID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		n, ok, err := s.getNode(txn, activeGraphID, nodeID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := txn.Delete(nodeKey(activeGraphID, nodeID)); err != nil {
			return err
		}
		if err := txn.Delete(nameIndexKey(activeGraphID, n.Name, nodeID)); err != nil {
			return err
		}

		if err := deleteOutgoingEdges(txn, activeGraphID, nodeID); err != nil {
			return err
		}
		return deleteIncomingEdges(txn, activeGraphID, nodeID)
	})
}

// deleteOutgoingEdges removes every edge sourced at nodeID: the edge record
// itself, its outgoing-index entry at nodeID, and its incoming-index entry
// at the far end.
func deleteOutgoingEdges(txn *badger.Txn, activeGraphID, nodeID string) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	prefix := outgoingPrefix(activeGraphID, nodeID)
	var edgeIDs []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().KeyCopy(nil)
		edgeIDs = append(edgeIDs, string(key[len(prefix):]))
	}
	it.Close()

	for _, edgeID := range edgeIDs {
		item, err := txn.Get(edgeKey(activeGraphID, edgeID))
		if err == badger.ErrKeyNotFound {
			continue
		}
		if err != nil {
			return err
		}
		var e edgeRecord
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			e, decodeErr = decodeEdge(val)
			return decodeErr
		}); err != nil {
			return err
		}
		if err := txn.Delete(edgeKey(activeGraphID, edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(outgoingKey(activeGraphID, nodeID, edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(incomingKey(activeGraphID, e.TargetID, edgeID)); err != nil {
			return err
		}
	}
	return nil
}

// deleteIncomingEdges removes every edge targeting nodeID: the edge record
// itself, its incoming-index entry at nodeID, and its outgoing-index entry
// at the far end.
func deleteIncomingEdges(txn *badger.Txn, activeGraphID, nodeID string) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	prefix := incomingPrefix(activeGraphID, nodeID)
	var edgeIDs []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().KeyCopy(nil)
		edgeIDs = append(edgeIDs, string(key[len(prefix):]))
	}
	it.Close()

	for _, edgeID := range edgeIDs {
		item, err := txn.Get(edgeKey(activeGraphID, edgeID))
		if err == badger.ErrKeyNotFound {
			continue
		}
		if err != nil {
			return err
		}
		var e edgeRecord
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			e, decodeErr = decodeEdge(val)
			return decodeErr
		}); err != nil {
			return err
		}
		if err := txn.Delete(edgeKey(activeGraphID, edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(incomingKey(activeGraphID, nodeID, edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(outgoingKey(activeGraphID, e.SourceID, edgeID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteEdge(ctx context.Context, activeGraphID, edgeID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(activeGraphID, edgeID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var e edgeRecord
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			e, decodeErr = decodeEdge(val)
			return decodeErr
		}); err != nil {
			return err
		}
		if err := txn.Delete(edgeKey(activeGraphID, edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(outgoingKey(activeGraphID, e.SourceID, edgeID)); err != nil {
			return err
		}
		return txn.Delete(incomingKey(activeGraphID, e.TargetID, edgeID))
	})
}
