// Package graphstore implements the graph store (spec §4.C): label and
// relation-type registries, a node-id allocator with free-list reuse,
// per-label and per-relation delta matrices, attribute storage, and the
// multi-edge side table that relation matrices' boolean patterns can't
// carry on their own.
//
// Grounded on the teacher's pkg/storage/schema.go registry shape and
// pkg/storage/types.go entity field layout, rebuilt around delta.DeltaMatrix
// instead of the teacher's in-memory node/edge maps.
package graphstore

import (
	"fmt"
	"sync"

	"github.com/orneryd/deltagraph/pkg/delta"
	"github.com/orneryd/deltagraph/pkg/registry"
	"github.com/orneryd/deltagraph/pkg/storage"
)

// growthStep is the capacity increment used each time node-id allocation
// would exceed the current matrix dimension, so a resize happens in batches
// rather than once per CreateNode (DESIGN.md open-question decision).
const growthStep = 1024

// Errors returned by the graph store.
var (
	ErrNodeNotFound = fmt.Errorf("graphstore: node not found")
	ErrEdgeNotFound = fmt.Errorf("graphstore: edge not found")
	ErrNodeExists   = fmt.Errorf("graphstore: node already exists")
)

type edgeMeta struct {
	src, dst storage.NodeID
	relType  int
}

type edgeKey struct {
	src, dst storage.NodeID
	relType  int
}

// Store is the graph store: registries, delta matrices, attribute tables,
// and the bookkeeping needed to keep them consistent under spec I1-I7.
type Store struct {
	mu sync.RWMutex

	labels   *registry.Registry
	relTypes *registry.Registry

	labelMatrices map[int]*delta.DeltaMatrix // L_ℓ, diagonal-only
	relMatrices   map[int]*delta.DeltaMatrix // R_t
	relMatricesT  map[int]*delta.DeltaMatrix // R_tᵀ

	capacity int

	nodes     *idAllocator
	liveNodes map[storage.NodeID]struct{}
	nodeLabel map[storage.NodeID]int // -1 when unlabeled

	edges    *idAllocator
	edgeMeta map[storage.EdgeID]edgeMeta
	sideTbl  map[edgeKey][]storage.EdgeID
	outEdges map[storage.NodeID][]storage.EdgeID
	inEdges  map[storage.NodeID][]storage.EdgeID

	nodeAttrs map[storage.NodeID]storage.Properties
	edgeAttrs map[storage.EdgeID]storage.Properties

	schema *storage.SchemaManager
}

// New returns an empty graph store.
func New() *Store {
	return &Store{
		labels:        registry.New(),
		relTypes:      registry.New(),
		labelMatrices: make(map[int]*delta.DeltaMatrix),
		relMatrices:   make(map[int]*delta.DeltaMatrix),
		relMatricesT:  make(map[int]*delta.DeltaMatrix),
		nodes:         newIDAllocator(),
		liveNodes:     make(map[storage.NodeID]struct{}),
		nodeLabel:     make(map[storage.NodeID]int),
		edges:         newIDAllocator(),
		edgeMeta:      make(map[storage.EdgeID]edgeMeta),
		sideTbl:       make(map[edgeKey][]storage.EdgeID),
		outEdges:      make(map[storage.NodeID][]storage.EdgeID),
		inEdges:       make(map[storage.NodeID][]storage.EdgeID),
		nodeAttrs:     make(map[storage.NodeID]storage.Properties),
		edgeAttrs:     make(map[storage.EdgeID]storage.Properties),
		schema:        storage.NewSchemaManager(),
	}
}

// Schema exposes the store's constraint manager.
func (s *Store) Schema() *storage.SchemaManager { return s.schema }

// Labels exposes the label name<->id registry.
func (s *Store) Labels() *registry.Registry { return s.labels }

// RelationTypes exposes the relation-type name<->id registry.
func (s *Store) RelationTypes() *registry.Registry { return s.relTypes }

// ensureCapacityLocked grows every matrix (labels and relations) to cover
// id, in growthStep increments, must be called with s.mu held.
func (s *Store) ensureCapacityLocked(id storage.NodeID) error {
	if int(id) < s.capacity {
		return nil
	}
	newCap := s.capacity
	for newCap <= int(id) {
		newCap += growthStep
	}
	for _, dm := range s.labelMatrices {
		if err := dm.Resize(newCap, newCap); err != nil {
			return err
		}
	}
	for _, dm := range s.relMatrices {
		if err := dm.Resize(newCap, newCap); err != nil {
			return err
		}
	}
	for _, dm := range s.relMatricesT {
		if err := dm.Resize(newCap, newCap); err != nil {
			return err
		}
	}
	s.capacity = newCap
	return nil
}

// labelMatrixLocked returns (creating if necessary) the delta matrix for
// labelID, sized to the store's current capacity.
func (s *Store) labelMatrixLocked(labelID int) *delta.DeltaMatrix {
	dm, ok := s.labelMatrices[labelID]
	if !ok {
		dm = delta.New(s.capacity, s.capacity)
		s.labelMatrices[labelID] = dm
	}
	return dm
}

// relMatricesLocked returns (creating if necessary) the R_t / R_tᵀ pair for
// relType, sized to the store's current capacity (spec I6: updated
// atomically together, which the caller achieves by holding s.mu across
// both Set calls).
func (s *Store) relMatricesLocked(relType int) (fwd, rev *delta.DeltaMatrix) {
	fwd, ok := s.relMatrices[relType]
	if !ok {
		fwd = delta.New(s.capacity, s.capacity)
		s.relMatrices[relType] = fwd
	}
	rev, ok = s.relMatricesT[relType]
	if !ok {
		rev = delta.New(s.capacity, s.capacity)
		s.relMatricesT[relType] = rev
	}
	return fwd, rev
}

// CreateNode allocates a node id, optionally sets its label bit, validates
// and stores its attributes, and returns the new id.
func (s *Store) CreateNode(label string, props storage.Properties) (storage.NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := storage.NodeID(s.nodes.Alloc())
	if err := s.ensureCapacityLocked(id); err != nil {
		return 0, err
	}

	labelID := -1
	if label != "" {
		labelID = s.labels.GetOrCreate(label)
		if err := s.schema.ValidateProperties(label, props, id); err != nil {
			s.nodes.Release(uint64(id))
			return 0, err
		}
		dm := s.labelMatrixLocked(labelID)
		if err := dm.Set(int(id), int(id)); err != nil {
			s.nodes.Release(uint64(id))
			return 0, err
		}
		for _, c := range s.schema.ConstraintsForLabel(label) {
			if v, ok := props[c.Property]; ok {
				s.schema.RegisterUniqueValue(c.Label, c.Property, v, id)
			}
		}
	}

	s.liveNodes[id] = struct{}{}
	s.nodeLabel[id] = labelID
	if props != nil {
		s.nodeAttrs[id] = props.Clone()
	}
	return id, nil
}

// CreateEdge allocates an edge id between two live nodes, sets the forward
// and transpose relation-matrix bits atomically, and records the new edge
// in the multi-edge side table.
func (s *Store) CreateEdge(src, dst storage.NodeID, relType string, props storage.Properties) (storage.EdgeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveNodes[src]; !ok {
		return 0, fmt.Errorf("%w: src=%d", ErrNodeNotFound, src)
	}
	if _, ok := s.liveNodes[dst]; !ok {
		return 0, fmt.Errorf("%w: dst=%d", ErrNodeNotFound, dst)
	}

	relID := s.relTypes.GetOrCreate(relType)
	fwd, rev := s.relMatricesLocked(relID)

	if err := fwd.Set(int(src), int(dst)); err != nil {
		return 0, err
	}
	if err := rev.Set(int(dst), int(src)); err != nil {
		return 0, err
	}

	id := storage.EdgeID(s.edges.Alloc())
	s.edgeMeta[id] = edgeMeta{src: src, dst: dst, relType: relID}
	key := edgeKey{src: src, dst: dst, relType: relID}
	s.sideTbl[key] = append(s.sideTbl[key], id)
	s.outEdges[src] = append(s.outEdges[src], id)
	s.inEdges[dst] = append(s.inEdges[dst], id)
	if props != nil {
		s.edgeAttrs[id] = props.Clone()
	}
	return id, nil
}

// DeleteNode recycles id: it deletes every edge incident to the node
// (dangling-edge cleanup, spec §4.C), clears the node's label bit, drops
// its attributes, and returns the id to the free list.
func (s *Store) DeleteNode(id storage.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveNodes[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}

	incident := make([]storage.EdgeID, 0, len(s.outEdges[id])+len(s.inEdges[id]))
	incident = append(incident, s.outEdges[id]...)
	incident = append(incident, s.inEdges[id]...)
	for _, eid := range incident {
		if _, ok := s.edgeMeta[eid]; !ok {
			continue // already removed via the other endpoint's pass
		}
		if err := s.deleteEdgeLocked(eid); err != nil {
			return err
		}
	}

	if labelID, ok := s.nodeLabel[id]; ok && labelID >= 0 {
		if dm, ok := s.labelMatrices[labelID]; ok {
			if err := dm.Clear(int(id), int(id)); err != nil {
				return err
			}
		}
		if name, err := s.labels.Name(labelID); err == nil {
			for _, c := range s.schema.ConstraintsForLabel(name) {
				if v, ok := s.nodeAttrs[id][c.Property]; ok {
					s.schema.UnregisterUniqueValue(c.Label, c.Property, v)
				}
			}
		}
	}

	delete(s.liveNodes, id)
	delete(s.nodeLabel, id)
	delete(s.nodeAttrs, id)
	delete(s.outEdges, id)
	delete(s.inEdges, id)
	s.nodes.Release(uint64(id))
	return nil
}

// DeleteEdge recycles edge id id.
func (s *Store) DeleteEdge(id storage.EdgeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEdgeLocked(id)
}

func (s *Store) deleteEdgeLocked(id storage.EdgeID) error {
	meta, ok := s.edgeMeta[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEdgeNotFound, id)
	}

	key := edgeKey{src: meta.src, dst: meta.dst, relType: meta.relType}
	remaining := s.sideTbl[key][:0]
	for _, eid := range s.sideTbl[key] {
		if eid != id {
			remaining = append(remaining, eid)
		}
	}
	if len(remaining) == 0 {
		delete(s.sideTbl, key)
		// Last edge of this (src,dst,type) triple: the pattern bit must go.
		if fwd, ok := s.relMatrices[meta.relType]; ok {
			if err := fwd.Clear(int(meta.src), int(meta.dst)); err != nil {
				return err
			}
		}
		if rev, ok := s.relMatricesT[meta.relType]; ok {
			if err := rev.Clear(int(meta.dst), int(meta.src)); err != nil {
				return err
			}
		}
	} else {
		s.sideTbl[key] = remaining
	}

	s.outEdges[meta.src] = removeEdgeID(s.outEdges[meta.src], id)
	s.inEdges[meta.dst] = removeEdgeID(s.inEdges[meta.dst], id)
	delete(s.edgeMeta, id)
	delete(s.edgeAttrs, id)
	s.edges.Release(uint64(id))
	return nil
}

func removeEdgeID(list []storage.EdgeID, target storage.EdgeID) []storage.EdgeID {
	out := list[:0]
	for _, id := range list {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// EdgesBetween returns every edge id recorded between src and dst under
// relType's type, used by traversal operators to materialize individual
// edge identities from a boolean relation-matrix cell (spec §4.E).
func (s *Store) EdgesBetween(src, dst storage.NodeID, relType string) ([]storage.EdgeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	relID, err := s.relTypes.ID(relType)
	if err != nil {
		return nil, nil
	}
	key := edgeKey{src: src, dst: dst, relType: relID}
	out := make([]storage.EdgeID, len(s.sideTbl[key]))
	copy(out, s.sideTbl[key])
	return out, nil
}

// NodeProperties returns a defensive copy of id's attributes.
func (s *Store) NodeProperties(id storage.NodeID) (storage.Properties, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.liveNodes[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return s.nodeAttrs[id].Clone(), nil
}

// EdgeProperties returns a defensive copy of id's attributes.
func (s *Store) EdgeProperties(id storage.EdgeID) (storage.Properties, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.edgeMeta[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrEdgeNotFound, id)
	}
	return s.edgeAttrs[id].Clone(), nil
}

// EdgeEndpoints returns id's source node, destination node, and relation
// type name, for callers building a JSON relationship representation.
func (s *Store) EdgeEndpoints(id storage.EdgeID) (src, dst storage.NodeID, relType string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.edgeMeta[id]
	if !ok {
		return 0, 0, "", fmt.Errorf("%w: %d", ErrEdgeNotFound, id)
	}
	name, nameErr := s.relTypes.Name(meta.relType)
	if nameErr != nil {
		return 0, 0, "", nameErr
	}
	return meta.src, meta.dst, name, nil
}

// LabelMatrix returns the delta matrix backing label, or nil if the label
// has never been registered.
func (s *Store) LabelMatrix(label string) *delta.DeltaMatrix {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, err := s.labels.ID(label)
	if err != nil {
		return nil
	}
	return s.labelMatrices[id]
}

// RelationMatrices returns the (R_t, R_tᵀ) pair backing relType, or
// (nil, nil) if the relation type has never been registered.
func (s *Store) RelationMatrices(relType string) (fwd, rev *delta.DeltaMatrix) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, err := s.relTypes.ID(relType)
	if err != nil {
		return nil, nil
	}
	return s.relMatrices[id], s.relMatricesT[id]
}

// Capacity returns the current shared dimension of every delta matrix the
// store owns.
func (s *Store) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// AllNodeIDs returns every live node id, in no particular order. It backs
// anonymous, label-less MATCH (n) pattern starts.
func (s *Store) AllNodeIDs() []storage.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]storage.NodeID, 0, len(s.liveNodes))
	for id := range s.liveNodes {
		ids = append(ids, id)
	}
	return ids
}

// NodesWithLabel returns every live node id bearing label, reading the
// label matrix's committed diagonal (a label's matrix only ever carries
// diagonal bits, spec §2). An unregistered label yields an empty result
// rather than an error, matching a MATCH pattern against a label nothing
// has been created with yet.
func (s *Store) NodesWithLabel(label string) []storage.NodeID {
	s.mu.RLock()
	labelID, err := s.labels.ID(label)
	if err != nil {
		s.mu.RUnlock()
		return nil
	}
	dm := s.labelMatrices[labelID]
	s.mu.RUnlock()
	if dm == nil {
		return nil
	}

	dm.RLock()
	view := dm.ReadView()
	var ids []storage.NodeID
	for i := 0; i < view.NRows(); i++ {
		it := view.RowIterator(i)
		for it.HasNext() {
			col := int(it.Next())
			if col == i {
				ids = append(ids, storage.NodeID(i))
			}
		}
	}
	dm.RUnlock()
	return ids
}

// NodeLabels returns id's label, as a single-element slice, or nil if id
// doesn't exist or was created without one. Nodes here carry at most one
// label (CreateNode takes a single label string); this returns a slice
// rather than a bare string so callers that build Neo4j-style JSON nodes
// (a "labels" array) don't need a separate zero-or-one-element case.
func (s *Store) NodeLabels(id storage.NodeID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	labelID, ok := s.nodeLabel[id]
	if !ok || labelID < 0 {
		return nil
	}
	name, err := s.labels.Name(labelID)
	if err != nil {
		return nil
	}
	return []string{name}
}

// NodeExists reports whether id currently denotes a live node.
func (s *Store) NodeExists(id storage.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.liveNodes[id]
	return ok
}
