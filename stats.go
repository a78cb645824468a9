package vecdb

// Stats summarizes a store's current state, per spec.md §4.5.
type Stats struct {
	TotalVectors   int
	DeletedVectors int
	ActiveVectors  int
	IndexSize      int
	DataFileSize   int64
	VectorFileSize int64
	DeletionRatio  float64
	FreeListSize   int
}

// Stats reports the store's current state. Read-only, acquires the
// shared lock.
func (db *DB) Stats() (Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return Stats{}, wrap(ErrClosed, withOp("stats"))
	}

	dataSize, err := db.storage.DataFileSize()
	if err != nil {
		return Stats{}, wrap(err, withOp("stats"))
	}

	vectorSize, err := db.storage.VectorFileSize()
	if err != nil {
		return Stats{}, wrap(err, withOp("stats"))
	}

	total := db.index.SlotCount()
	deleted := db.index.DeletedCount()

	denom := total
	if denom < 1 {
		denom = 1
	}

	return Stats{
		TotalVectors:   total,
		DeletedVectors: deleted,
		ActiveVectors:  total - deleted,
		IndexSize:      len(db.index.Entries),
		DataFileSize:   dataSize,
		VectorFileSize: vectorSize,
		DeletionRatio:  float64(deleted) / float64(denom),
		FreeListSize:   len(db.index.FreeList),
	}, nil
}
