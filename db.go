// Package vecdb is an embedded, single-process, file-backed vector
// database: fixed-dimension float32 vectors plus arbitrary JSON metadata,
// keyed by string, searched by brute-force Euclidean k-NN.
//
// A DB owns one directory. Open it once per process; a second process
// opening the same directory fails fast via an advisory lock rather than
// corrupting the log.
package vecdb

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/nyxdb/vecdb/internal/vecindex"
	"github.com/nyxdb/vecdb/internal/vecstore"
)

// compactTempDirName is the subdirectory compaction stages its new files
// in before committing them over the originals.
const compactTempDirName = "compact_temp"

// DB is an open vector store. The zero value is not usable; construct
// with [Open] or [OpenWithOptions]. Safe for concurrent use by multiple
// goroutines within one process.
type DB struct {
	mu sync.RWMutex

	dir     string
	options Options
	logger  *slog.Logger

	storage *vecstore.Storage
	index   *vecindex.Index
	lock    *dirLock

	compacting atomic.Bool
	closed     atomic.Bool
}

// Open opens (creating if absent) a store at dir with the given fixed
// dimension and default auto-compaction thresholds.
func Open(dir string, dimension uint32) (*DB, error) {
	return OpenWithOptions(dir, DefaultOptions(dimension))
}

// OpenWithOptions opens (creating if absent) a store at dir under the
// given configuration.
func OpenWithOptions(dir string, options Options) (*DB, error) {
	options, err := options.validate()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrap(fmt.Errorf("creating store dir: %w", err), withOp("open"))
	}

	lock, err := acquireDirLock(dir)
	if err != nil {
		return nil, wrap(err, withOp("open"))
	}

	if err := vecstore.ReconcileCompaction(dir, compactTempDirName); err != nil {
		_ = lock.release()

		return nil, wrap(fmt.Errorf("reconciling interrupted compaction: %w", err), withOp("open"))
	}

	storage, err := vecstore.Open(dir, options.Dimension)
	if err != nil {
		_ = lock.release()

		return nil, wrap(err, withOp("open"))
	}

	logger := slog.Default().With("component", "vecdb", "dir", dir)

	idx, err := recoverIndex(storage, options.Dimension, logger)
	if err != nil {
		_ = storage.Close()
		_ = lock.release()

		return nil, wrap(err, withOp("open"))
	}

	return &DB{
		dir:     dir,
		options: options,
		logger:  logger,
		storage: storage,
		index:   idx,
		lock:    lock,
	}, nil
}

// recoverIndex runs ScanAndRecover and folds the result into an Index.
// A non-empty but truncated log tail is expected after a crash and is
// logged at warn, not treated as failure; ScanAndRecover itself performs
// the truncation.
func recoverIndex(storage *vecstore.Storage, dimension uint32, logger *slog.Logger) (*vecindex.Index, error) {
	sizeBefore, err := storage.DataFileSize()
	if err != nil {
		return nil, err
	}

	records, slotCount, err := storage.ScanAndRecover()
	if err != nil {
		return nil, err
	}

	vectors, err := storage.LoadVectors()
	if err != nil {
		return nil, err
	}

	dataSize, err := storage.DataFileSize()
	if err != nil {
		return nil, err
	}

	if dataSize != sizeBefore {
		logger.Warn("recovered log tail was truncated", "valid_bytes", dataSize, "file_bytes", sizeBefore)
	}

	return vecindex.Rebuild(records, slotCount, dimension, vectors), nil
}

// Close releases the directory lock and closes the underlying files.
// After Close, every other method on db returns [ErrClosed]; a second
// Close returns nil.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed.Swap(true) {
		return nil
	}

	storeErr := db.storage.Close()
	lockErr := db.lock.release()

	if storeErr != nil {
		return wrap(storeErr, withOp("close"))
	}

	if lockErr != nil {
		return wrap(lockErr, withOp("close"))
	}

	return nil
}

// Put inserts or overwrites key's vector and metadata. metadata is
// marshalled to JSON; pass json.RawMessage to store pre-encoded JSON
// without a round-trip.
func (db *DB) Put(key string, vector []float32, metadata any) error {
	value, err := marshalMetadata(metadata)
	if err != nil {
		return wrap(err, withOp("put"), withKey(key))
	}

	if err := validateVector(vector, db.dimensionUnlocked()); err != nil {
		return wrap(err, withOp("put"), withKey(key))
	}

	db.mu.Lock()

	if db.closed.Load() {
		db.mu.Unlock()

		return wrap(ErrClosed, withOp("put"), withKey(key))
	}

	shouldCompact, err := db.putLocked(key, vector, value)

	db.mu.Unlock()

	if err != nil {
		return wrap(err, withOp("put"), withKey(key))
	}

	if shouldCompact {
		db.triggerAutoCompact()
	}

	return nil
}

// putLocked implements spec.md §4.5 put() and must be called with mu held.
func (db *DB) putLocked(key string, vector []float32, value json.RawMessage) (bool, error) {
	idx := db.index

	var (
		id  uint32
		err error
	)

	fromFree := len(idx.FreeList) > 0

	if fromFree {
		id = idx.FreeList[len(idx.FreeList)-1]
		if err := db.storage.UpdateVector(id, vector); err != nil {
			return false, err
		}
	} else {
		id, err = db.storage.AppendVector(vector)
		if err != nil {
			return false, err
		}
	}

	offset, err := db.storage.AppendLog(id, key, value, false)
	if err != nil {
		return false, err
	}

	if fromFree {
		idx.PopFree()
	}

	if old, ok := idx.Entries[key]; ok && !old.Deleted && old.ID != id {
		idx.Deleted[old.ID] = true
		idx.PushFree(old.ID)
	}

	idx.Grow(id)
	idx.SetVectorAt(id, vector)
	idx.IDToKey[id] = key
	idx.Deleted[id] = false
	idx.Entries[key] = vecindex.Entry{ID: id, Offset: offset, Deleted: false}

	return db.shouldAutoCompact(), nil
}

// shouldAutoCompact implements spec.md §4.5 step 7's trigger condition.
// Must be called with mu held (for read).
func (db *DB) shouldAutoCompact() bool {
	if !db.options.EnableAutoCompact {
		return false
	}

	total := db.index.SlotCount()
	deleted := db.index.DeletedCount()

	denom := total
	if denom < 1 {
		denom = 1
	}

	ratio := float64(deleted) / float64(denom)

	return ratio > db.options.CompactThresholdRatio && deleted > db.options.CompactThresholdCount
}

// triggerAutoCompact spawns a background compaction unless one is already
// in flight. Failures are logged, never surfaced, per spec.md §7.
func (db *DB) triggerAutoCompact() {
	if !db.compacting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer db.compacting.Store(false)

		if err := db.Compact(); err != nil {
			db.logger.Warn("background auto-compact failed", "error", err)
		}
	}()
}

// Delete removes key. Deleting an already-deleted or never-existing key
// that was previously deleted is idempotent and returns nil; deleting a
// key that never existed returns [ErrNotFound].
func (db *DB) Delete(key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed.Load() {
		return wrap(ErrClosed, withOp("delete"), withKey(key))
	}

	entry, ok := db.index.Entries[key]
	if !ok {
		return wrap(ErrNotFound, withOp("delete"), withKey(key))
	}

	if entry.Deleted {
		return nil
	}

	if _, err := db.storage.AppendLog(entry.ID, key, nil, true); err != nil {
		return wrap(err, withOp("delete"), withKey(key))
	}

	entry.Deleted = true
	db.index.Entries[key] = entry
	db.index.Deleted[entry.ID] = true
	db.index.PushFree(entry.ID)

	return nil
}

// Get returns key's metadata, or [ErrNotFound] if key is absent or
// deleted. Safe to call concurrently with other Gets and Searches.
func (db *DB) Get(key string) (json.RawMessage, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return nil, wrap(ErrClosed, withOp("get"), withKey(key))
	}

	entry, ok := db.index.Entries[key]
	if !ok || entry.Deleted {
		return nil, wrap(ErrNotFound, withOp("get"), withKey(key))
	}

	_, _, value, _, err := db.storage.ReadLogRecord(entry.Offset)
	if err != nil {
		return nil, wrap(err, withOp("get"), withKey(key))
	}

	return value, nil
}

func (db *DB) dimensionUnlocked() uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.options.Dimension
}

func marshalMetadata(metadata any) (json.RawMessage, error) {
	if metadata == nil {
		return json.RawMessage("null"), nil
	}

	if raw, ok := metadata.(json.RawMessage); ok {
		return raw, nil
	}

	buf, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	return buf, nil
}

func validateVector(v []float32, dimension uint32) error {
	if uint32(len(v)) != dimension { //nolint:gosec
		return fmt.Errorf("%w: expected %d components, got %d", ErrDimensionMismatch, dimension, len(v))
	}

	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("%w: non-finite component", ErrInvalidVector)
		}
	}

	return nil
}
