package vecdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/nyxdb/vecdb/internal/vecindex"
	"github.com/nyxdb/vecdb/internal/vecstore"
)

// Compact rewrites both files dense and in-order, dropping every deleted
// slot and its tombstone history. Safe to call manually at any time;
// automatically triggered in the background per the Options thresholds.
//
// Implements spec.md §4.6.
func (db *DB) Compact() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed.Load() {
		return wrap(ErrClosed, withOp("compact"))
	}

	tempDir := filepath.Join(db.dir, compactTempDirName)

	if err := os.RemoveAll(tempDir); err != nil {
		return wrap(fmt.Errorf("clearing stale compaction dir: %w", err), withOp("compact"))
	}

	newStorage, err := vecstore.Open(tempDir, db.options.Dimension)
	if err != nil {
		return wrap(fmt.Errorf("opening compaction store: %w", err), withOp("compact"))
	}

	newIndex, err := db.copyLiveEntriesLocked(newStorage)
	if err != nil {
		_ = newStorage.Close()
		_ = os.RemoveAll(tempDir)

		return wrap(fmt.Errorf("copying live entries: %w", err), withOp("compact"))
	}

	if err := newStorage.Close(); err != nil {
		_ = os.RemoveAll(tempDir)

		return wrap(fmt.Errorf("closing compaction store: %w", err), withOp("compact"))
	}

	if err := db.storage.Close(); err != nil {
		return wrap(fmt.Errorf("closing current store: %w", err), withOp("compact"))
	}

	if err := commitCompaction(db.dir, tempDir); err != nil {
		return wrap(err, withOp("compact"))
	}

	storage, err := vecstore.Open(db.dir, db.options.Dimension)
	if err != nil {
		return wrap(fmt.Errorf("reopening store after compaction: %w", err), withOp("compact"))
	}

	db.storage = storage
	db.index = newIndex

	return nil
}

// copyLiveEntriesLocked performs spec.md §4.6 steps 4-5: copies every live
// entry, sorted by ascending id for reproducibility, into newStorage and
// builds the index that will replace db.index once the rename commits.
func (db *DB) copyLiveEntriesLocked(newStorage *vecstore.Storage) (*vecindex.Index, error) {
	type liveEntry struct {
		key   string
		entry vecindex.Entry
	}

	live := make([]liveEntry, 0, len(db.index.Entries))

	for key, entry := range db.index.Entries {
		if entry.Deleted {
			continue
		}

		live = append(live, liveEntry{key: key, entry: entry})
	}

	sort.Slice(live, func(i, j int) bool { return live[i].entry.ID < live[j].entry.ID })

	newIndex := vecindex.New(db.options.Dimension)

	for _, le := range live {
		_, _, value, _, err := db.storage.ReadLogRecord(le.entry.Offset)
		if err != nil {
			return nil, err
		}

		vector := db.index.VectorAt(le.entry.ID)

		newID, err := newStorage.AppendVector(vector)
		if err != nil {
			return nil, err
		}

		newOffset, err := newStorage.AppendLog(newID, le.key, value, false)
		if err != nil {
			return nil, err
		}

		newIndex.Grow(newID)
		newIndex.SetVectorAt(newID, vector)
		newIndex.IDToKey[newID] = le.key
		newIndex.Deleted[newID] = false
		newIndex.Entries[le.key] = vecindex.Entry{ID: newID, Offset: newOffset, Deleted: false}
	}

	return newIndex, nil
}

// commitCompaction implements spec.md §4.6 steps 7-10: the ready marker is
// the commit point, written and fsynced before either file is renamed, so
// a crash can only ever observe "not yet committed" or "fully committed".
func commitCompaction(dir, tempDir string) error {
	readyPath := filepath.Join(tempDir, vecstore.CompactReadyMarker)

	readyFile, err := os.Create(readyPath) //nolint:gosec
	if err != nil {
		return fmt.Errorf("creating ready marker: %w", err)
	}

	if err := readyFile.Sync(); err != nil {
		_ = readyFile.Close()

		return fmt.Errorf("fsync ready marker: %w", err)
	}

	if err := readyFile.Close(); err != nil {
		return fmt.Errorf("closing ready marker: %w", err)
	}

	if err := vecstore.FsyncDir(tempDir); err != nil {
		return fmt.Errorf("fsync compaction temp dir: %w", err)
	}

	if err := os.Rename(filepath.Join(tempDir, "data.log"), filepath.Join(dir, "data.log")); err != nil {
		return fmt.Errorf("renaming compacted data log: %w", err)
	}

	if err := os.Rename(filepath.Join(tempDir, "vectors.bin"), filepath.Join(dir, "vectors.bin")); err != nil {
		return fmt.Errorf("renaming compacted vector file: %w", err)
	}

	if err := vecstore.FsyncDir(dir); err != nil {
		return fmt.Errorf("fsync dir after compaction rename: %w", err)
	}

	return os.RemoveAll(tempDir)
}
