// store.go - Document Store: owns exactly one entry per physical row id
// (the document, a liveness flag, and lazily-maintained column-extracted
// views), and exposes the live set snapshot every stage plans against.

package aggo

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Store owns exactly one entry per physical row id. Physical ids are dense
// and monotonically increasing; they are never reused, so that a cached
// transformed document or a long-lived virtual-id parent link can never
// silently start pointing at an unrelated document after a remove/insert
// pair.
type Store struct {
	mu      sync.RWMutex
	name    string
	pkField string

	docs []Document      // physical row id -> document; docs[i] valid iff live.Contains(i)
	live *roaring.Bitmap // snapshot of currently live physical ids

	pkIndex map[string]uint32 // GroupKey(pk value) -> physical row id, for FindByPK and RemoveByPK

	cols map[string]*columnView // lazily materialized column-extracted views, keyed by field path
}

// NewStore creates an empty store. pkField names the primary-key field
// ("_id" by convention); documents ingested without it are assigned a
// generated DocID (see docid.go).
func NewStore(name, pkField string) *Store {
	if pkField == "" {
		pkField = "_id"
	}
	return &Store{
		name:    name,
		pkField: pkField,
		live:    roaring.New(),
		pkIndex: make(map[string]uint32),
		cols:    make(map[string]*columnView),
	}
}

// Name returns the store's collection name.
func (s *Store) Name() string { return s.name }

// PKField returns the configured primary-key field name.
func (s *Store) PKField() string { return s.pkField }

// Insert assigns a fresh physical row id to doc, generating a primary key
// if one is not already present, and returns the assigned id.
func (s *Store) Insert(doc Document) RowId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(doc)
}

func (s *Store) insertLocked(doc Document) RowId {
	doc = ensurePrimaryKey(doc, s.pkField)
	idx := uint32(len(s.docs))
	s.docs = append(s.docs, doc)
	s.live.Add(idx)
	if pk := doc.PrimaryKey(s.pkField); !pk.IsMissing() {
		s.pkIndex[GroupKey(pk)] = idx
	}
	s.invalidateColumnsLocked()
	return PhysicalRowId(idx)
}

// InsertBulk inserts all of docs and returns their assigned ids in order.
func (s *Store) InsertBulk(docs []Document) []RowId {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]RowId, len(docs))
	for i, d := range docs {
		ids[i] = s.insertLocked(d)
	}
	return ids
}

// Remove marks id's document as no longer live. It reports whether the id
// was live beforehand (a duplicate remove is a no-op that returns false).
func (s *Store) Remove(id RowId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := id.Physical()
	if !s.live.Contains(idx) {
		return false
	}
	if pk := s.docs[idx].PrimaryKey(s.pkField); !pk.IsMissing() {
		delete(s.pkIndex, GroupKey(pk))
	}
	s.live.Remove(idx)
	s.invalidateColumnsLocked()
	return true
}

// RemoveByPK removes the document whose primary key field equals pk.
func (s *Store) RemoveByPK(pk Value) (RowId, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.pkIndex[GroupKey(pk)]
	if !ok || !s.live.Contains(idx) {
		return 0, false
	}
	delete(s.pkIndex, GroupKey(pk))
	s.live.Remove(idx)
	s.invalidateColumnsLocked()
	return PhysicalRowId(idx), true
}

// RemoveWhere removes every live document for which pred returns true and
// returns the ids that were removed.
func (s *Store) RemoveWhere(pred func(Document) bool) []RowId {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []RowId
	it := s.live.Iterator()
	var toRemove []uint32
	for it.HasNext() {
		idx := it.Next()
		if pred(s.docs[idx]) {
			toRemove = append(toRemove, idx)
		}
	}
	for _, idx := range toRemove {
		if pk := s.docs[idx].PrimaryKey(s.pkField); !pk.IsMissing() {
			delete(s.pkIndex, GroupKey(pk))
		}
		s.live.Remove(idx)
		removed = append(removed, PhysicalRowId(idx))
	}
	if len(toRemove) > 0 {
		s.invalidateColumnsLocked()
	}
	return removed
}

// Get returns the document stored at id and whether it is currently live.
func (s *Store) Get(id RowId) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := id.Physical()
	if int(idx) >= len(s.docs) || !s.live.Contains(idx) {
		return Document{}, false
	}
	return s.docs[idx], true
}

// FindByPK looks up the row id whose primary key equals pk.
func (s *Store) FindByPK(pk Value) (RowId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.pkIndex[GroupKey(pk)]
	if !ok || !s.live.Contains(idx) {
		return 0, false
	}
	return PhysicalRowId(idx), true
}

// LiveSet returns a clone of the current live physical id set. Callers own
// the clone and may mutate it freely.
func (s *Store) LiveSet() *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Clone()
}

// Count returns the number of currently live documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.live.GetCardinality())
}

// invalidateColumnsLocked drops lazily-materialized column views; it must
// be called with s.mu held for writing whenever the live set or documents
// change, since a stale column view would leak or hide rows.
func (s *Store) invalidateColumnsLocked() {
	if len(s.cols) != 0 {
		s.cols = make(map[string]*columnView)
	}
}
