// Package vecindex holds the in-memory state a vecdb.DB keeps alongside
// its on-disk store: the key→slot index, the vector buffer, and the two
// parallel slot-keyed sequences (id_to_key, deleted) that let search and
// compaction walk every live vector without touching the key index.
//
// Everything here is plain, unsynchronized state. The caller (vecdb.DB)
// holds one sync.RWMutex around it; Index itself does no locking.
package vecindex

import "github.com/nyxdb/vecdb/internal/vecstore"

// Entry is one key's position in the store.
type Entry struct {
	ID      uint32
	Offset  uint64
	Deleted bool
}

// Index is the complete in-memory state derived from a store's contents.
type Index struct {
	Dimension uint32

	// Entries maps every key written since the last compaction to its most
	// recent slot; compaction keeps only the live keys. A
	// present-but-Deleted entry is a tombstone kept only so Delete can be
	// idempotent without a log scan.
	Entries map[string]Entry

	// Vectors is the contiguous float32 buffer mirroring vectors.bin:
	// slot i occupies Vectors[i*Dimension : (i+1)*Dimension].
	Vectors []float32

	// IDToKey maps slot id to its current owning key, "" if never owned.
	IDToKey []string

	// Deleted marks which slots are free to reclaim.
	Deleted []bool

	// FreeList is a stack of reclaimable slot ids.
	FreeList []uint32
}

// New builds an empty index for a freshly created, empty store.
func New(dimension uint32) *Index {
	return &Index{
		Dimension: dimension,
		Entries:   make(map[string]Entry),
	}
}

// SlotCount reports the number of vector slots currently tracked.
func (idx *Index) SlotCount() int { return len(idx.Deleted) }

// DeletedCount reports how many slots are currently tombstoned.
func (idx *Index) DeletedCount() int {
	n := 0

	for _, d := range idx.Deleted {
		if d {
			n++
		}
	}

	return n
}

// ActiveCount reports how many slots are currently live.
func (idx *Index) ActiveCount() int { return idx.SlotCount() - idx.DeletedCount() }

// Grow extends IDToKey and Deleted so that slot id is addressable.
func (idx *Index) Grow(id uint32) {
	for uint32(len(idx.Deleted)) <= id { //nolint:gosec // slot counts stay well under 2^32
		idx.IDToKey = append(idx.IDToKey, "")
		idx.Deleted = append(idx.Deleted, true)
	}
}

// PushFree marks id reclaimable.
func (idx *Index) PushFree(id uint32) {
	idx.FreeList = append(idx.FreeList, id)
}

// PopFree pops a reclaimable slot id, if any.
func (idx *Index) PopFree() (uint32, bool) {
	n := len(idx.FreeList)
	if n == 0 {
		return 0, false
	}

	id := idx.FreeList[n-1]
	idx.FreeList = idx.FreeList[:n-1]

	return id, true
}

// VectorAt returns the slice of Vectors backing slot id. The returned
// slice aliases the index's buffer; callers must copy before mutating
// the index further.
func (idx *Index) VectorAt(id uint32) []float32 {
	start := int(id) * int(idx.Dimension)

	return idx.Vectors[start : start+int(idx.Dimension)]
}

// SetVectorAt overwrites slot id in the in-memory buffer, growing it if
// necessary to cover a freshly appended slot.
func (idx *Index) SetVectorAt(id uint32, v []float32) {
	start := int(id) * int(idx.Dimension)
	end := start + int(idx.Dimension)

	for len(idx.Vectors) < end {
		idx.Vectors = append(idx.Vectors, 0)
	}

	copy(idx.Vectors[start:end], v)
}

// Rebuild reconstructs an Index from a store's recovered log records and
// loaded vector buffer, per the two-pass live-then-tombstone algorithm:
// first every entry whose final state is live claims its slot, then every
// entry whose final state is a tombstone claims any slot a live entry
// didn't already claim. This makes the last live claim on a reused slot
// win, matching the on-disk history (see vecstore.ScanAndRecover).
func Rebuild(records []vecstore.Record, slotCount uint32, dimension uint32, vectors []float32) *Index {
	provisional := make(map[string]Entry, len(records))

	for _, rec := range records {
		if rec.Tombstone {
			if e, ok := provisional[rec.Key]; ok {
				e.Deleted = true
				provisional[rec.Key] = e
			}

			continue
		}

		provisional[rec.Key] = Entry{ID: rec.ID, Offset: rec.Offset, Deleted: false}
	}

	idToKey := make([]string, slotCount)
	deleted := make([]bool, slotCount)

	for i := range deleted {
		deleted[i] = true
	}

	for key, e := range provisional {
		if e.Deleted {
			continue
		}

		idToKey[e.ID] = key
		deleted[e.ID] = false
	}

	for key, e := range provisional {
		if !e.Deleted {
			continue
		}

		if idToKey[e.ID] != "" {
			// A later live entry reused this slot; that claim wins.
			continue
		}

		idToKey[e.ID] = key
		deleted[e.ID] = true
	}

	var freeList []uint32

	for i, d := range deleted {
		if d {
			freeList = append(freeList, uint32(i)) //nolint:gosec
		}
	}

	return &Index{
		Dimension: dimension,
		Entries:   provisional,
		Vectors:   vectors,
		IDToKey:   idToKey,
		Deleted:   deleted,
		FreeList:  freeList,
	}
}
