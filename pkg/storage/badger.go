package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/deltagraph/pkg/matrix"
)

// Key prefixes, following the teacher's pkg/storage/badger.go single-byte
// prefix scheme for organizing an otherwise-flat key space.
const (
	prefixNodeAttr  = byte(0x01) // node attrs: prefix + nodeID(8) -> JSON(Properties)
	prefixEdgeAttr  = byte(0x02) // edge attrs: prefix + edgeID(8) -> JSON(Properties)
	prefixMatrixRow = byte(0x03) // committed matrix row: prefix + kind(1) + id(4) + row(4) -> roaring bytes
	prefixMatrixDim = byte(0x04) // committed matrix dims: prefix + kind(1) + id(4) -> nrows(4) ncols(4)
)

// MatrixKind distinguishes label matrices from relation matrices (and its
// transpose) in the persisted key space.
type MatrixKind byte

const (
	KindLabel       MatrixKind = 0
	KindRelation    MatrixKind = 1
	KindRelationInv MatrixKind = 2
)

// Engine persists node/edge attribute tables and committed matrices to
// BadgerDB. It never persists M⁺/M⁻ (spec §6): SaveMatrix takes a committed
// view only, so writes still pending in a delta matrix are not persisted
// unless the caller synchronizes first. pkg/graphstore keeps its state in
// memory and does not open an Engine; this module treats a durability
// story for unsynchronized writes as a non-goal (spec §1).
//
// Grounded on the teacher's pkg/storage/badger.go engine shape (prefixed
// keys, one *badger.DB, a mutex-guarded schema handle), adapted from
// whole-Node/whole-Edge JSON blobs to attribute-only blobs plus matrix rows.
type Engine struct {
	db     *badger.DB
	schema *SchemaManager
	mu     sync.RWMutex
	closed bool
}

// Options configures the Badger-backed engine.
type Options struct {
	// DataDir is the directory BadgerDB stores its files in. Required.
	DataDir string
	// InMemory runs Badger with no persistence, for tests.
	InMemory bool
}

// NewEngine opens (creating if necessary) a Badger-backed engine at the
// given data directory.
func NewEngine(opts Options) (*Engine, error) {
	bopts := badger.DefaultOptions(opts.DataDir)
	bopts = bopts.WithLogger(nil)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}
	return &Engine{db: db, schema: NewSchemaManager()}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

// Schema returns the engine's schema manager.
func (e *Engine) Schema() *SchemaManager { return e.schema }

func nodeAttrKey(id NodeID) []byte {
	k := make([]byte, 9)
	k[0] = prefixNodeAttr
	binary.BigEndian.PutUint64(k[1:], uint64(id))
	return k
}

func edgeAttrKey(id EdgeID) []byte {
	k := make([]byte, 9)
	k[0] = prefixEdgeAttr
	binary.BigEndian.PutUint64(k[1:], uint64(id))
	return k
}

// SaveNodeProperties persists props for node id.
func (e *Engine) SaveNodeProperties(id NodeID, props Properties) error {
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeAttrKey(id), data)
	})
}

// LoadNodeProperties retrieves the properties persisted for node id.
func (e *Engine) LoadNodeProperties(id NodeID) (Properties, error) {
	var props Properties
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeAttrKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &props)
		})
	})
	return props, err
}

// DeleteNodeProperties removes the properties persisted for node id.
func (e *Engine) DeleteNodeProperties(id NodeID) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(nodeAttrKey(id))
	})
}

// SaveEdgeProperties persists props for edge id.
func (e *Engine) SaveEdgeProperties(id EdgeID, props Properties) error {
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(edgeAttrKey(id), data)
	})
}

// LoadEdgeProperties retrieves the properties persisted for edge id.
func (e *Engine) LoadEdgeProperties(id EdgeID) (Properties, error) {
	var props Properties
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeAttrKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &props)
		})
	})
	return props, err
}

// DeleteEdgeProperties removes the properties persisted for edge id.
func (e *Engine) DeleteEdgeProperties(id EdgeID) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(edgeAttrKey(id))
	})
}

func matrixDimKey(kind MatrixKind, id int) []byte {
	k := make([]byte, 6)
	k[0] = prefixMatrixDim
	k[1] = byte(kind)
	binary.BigEndian.PutUint32(k[2:], uint32(id))
	return k
}

func matrixRowKey(kind MatrixKind, id, row int) []byte {
	k := make([]byte, 10)
	k[0] = prefixMatrixRow
	k[1] = byte(kind)
	binary.BigEndian.PutUint32(k[2:6], uint32(id))
	binary.BigEndian.PutUint32(k[6:10], uint32(row))
	return k
}

// SaveMatrix persists the committed matrix m under (kind, id). Callers
// must pass the committed view (DeltaMatrix.ReadView()), never M⁺/M⁻.
func (e *Engine) SaveMatrix(kind MatrixKind, id int, m *matrix.Matrix) error {
	rows, err := m.MarshalRows()
	if err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		dim := make([]byte, 8)
		binary.BigEndian.PutUint32(dim[0:4], uint32(m.NRows()))
		binary.BigEndian.PutUint32(dim[4:8], uint32(m.NCols()))
		if err := txn.Set(matrixDimKey(kind, id), dim); err != nil {
			return err
		}
		for i, blob := range rows {
			if len(blob) == 0 {
				continue
			}
			if err := txn.Set(matrixRowKey(kind, id, i), blob); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadMatrix reconstructs the committed matrix persisted under (kind, id).
func (e *Engine) LoadMatrix(kind MatrixKind, id int) (*matrix.Matrix, error) {
	var nrows, ncols int
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(matrixDimKey(kind, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			nrows = int(binary.BigEndian.Uint32(val[0:4]))
			ncols = int(binary.BigEndian.Uint32(val[4:8]))
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	blobs := make([][]byte, nrows)
	err = e.db.View(func(txn *badger.Txn) error {
		prefix := make([]byte, 6)
		prefix[0] = prefixMatrixRow
		prefix[1] = byte(kind)
		binary.BigEndian.PutUint32(prefix[2:], uint32(id))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			row := int(binary.BigEndian.Uint32(key[6:10]))
			if row >= nrows {
				continue
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			blobs[row] = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matrix.UnmarshalRows(nrows, ncols, blobs)
}
