package vecstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Record is one reconstructed log entry, as produced by ScanAndRecover and
// consumed by the index layer to rebuild id_to_key/deleted/free_list.
type Record struct {
	Offset    uint64
	ID        uint32
	Key       string
	Value     json.RawMessage
	Tombstone bool
}

// ScanAndRecover aligns the vector file to a slot boundary (dropping any
// torn trailing write) and replays the log from the first record after the
// header, building the set of records still reachable after truncating the
// log at the first invalid or corrupt record it finds.
//
// It returns every valid record in log order, puts and tombstones alike (the
// index layer folds these into id_to_key/deleted/free_list in a second
// pass) and the number of complete vector slots on disk. A log id that
// outruns the vector file's slot count is a fatal inconsistency: it means
// the vector was never durably appended before the record that names it.
func (s *Storage) ScanAndRecover() ([]Record, uint32, error) {
	vecSlotCount, err := s.alignVectorFile()
	if err != nil {
		return nil, 0, err
	}

	info, err := s.dataFile.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat data log: %w", err)
	}

	var (
		records  []Record
		offset   = uint64(headerSize)
		maxID    int64 = -1
		fileSize       = uint64(info.Size())
	)

	for offset < fileSize {
		id, key, value, tombstone, rerr := s.ReadLogRecord(offset)
		if rerr != nil {
			// Torn or corrupt tail write: truncate the log here and stop.
			// This is the expected shape of a crash mid-append, not a bug.
			break
		}

		recLen := uint64(logRecordHeaderSize + len(key) + len(value))
		records = append(records, Record{
			Offset:    offset,
			ID:        id,
			Key:       key,
			Value:     value,
			Tombstone: tombstone,
		})

		if int64(id) > maxID {
			maxID = int64(id)
		}

		offset += recLen
	}

	if offset != fileSize {
		if err := s.dataFile.Truncate(int64(offset)); err != nil {
			return nil, 0, fmt.Errorf("truncating log tail: %w", err)
		}

		if err := s.dataFile.Sync(); err != nil {
			return nil, 0, fmt.Errorf("fsync truncated log: %w", err)
		}
	}

	if maxID >= int64(vecSlotCount) {
		return nil, 0, fmt.Errorf("%w: log references vector id %d but only %d slots exist",
			ErrCorrupt, maxID, vecSlotCount)
	}

	return records, vecSlotCount, nil
}

// alignVectorFile truncates vectors.bin to the largest whole number of
// dimension×4-byte slots it contains, discarding a torn trailing write, and
// returns the resulting slot count.
func (s *Storage) alignVectorFile() (uint32, error) {
	info, err := s.vectorFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat vector file: %w", err)
	}

	slotBytes := int64(s.dimension) * 4
	dataLen := info.Size() - headerSize

	if dataLen < 0 {
		dataLen = 0
	}

	slots := dataLen / slotBytes
	aligned := headerSize + slots*slotBytes

	if aligned != info.Size() {
		if err := s.vectorFile.Truncate(aligned); err != nil {
			return 0, fmt.Errorf("aligning vector file: %w", err)
		}

		if err := s.vectorFile.Sync(); err != nil {
			return 0, fmt.Errorf("fsync aligned vector file: %w", err)
		}
	}

	return uint32(slots), nil //nolint:gosec // dimension/file size are bounded well under 2^32
}

// CompactReadyMarker is the name of the zero-byte, fsynced file that marks
// a compaction as committed: once it exists, finishing the compaction means
// only renaming files into place, never redoing the copy.
const CompactReadyMarker = ".compact_ready"

// ReconcileCompaction runs before ScanAndRecover on every Open. If a prior
// compaction crashed after its ready marker was durably written, it
// finishes the commit by renaming the new files into place. If a prior
// compaction crashed before the marker existed, its temp directory is
// incomplete and is discarded wholesale.
func ReconcileCompaction(dir, tempDirName string) error {
	tempDir := filepath.Join(dir, tempDirName)

	if _, err := os.Stat(tempDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("stat compaction temp dir: %w", err)
	}

	readyPath := filepath.Join(tempDir, CompactReadyMarker)
	if _, err := os.Stat(readyPath); err != nil {
		if os.IsNotExist(err) {
			// Committed nothing yet: safe to discard.
			return os.RemoveAll(tempDir)
		}

		return fmt.Errorf("stat compaction ready marker: %w", err)
	}

	if err := finishCompactionRename(dir, tempDir); err != nil {
		return err
	}

	return os.RemoveAll(tempDir)
}

// finishCompactionRename performs the atomic renames that commit a
// compaction, plus the directory fsyncs needed to make the rename durable.
// A crash can land between the two renames, leaving the ready marker
// present with only one of the two files still in tempDir: each rename is
// only attempted if its source still exists, so re-running this after such
// a crash finishes the commit instead of failing on the file already moved.
func finishCompactionRename(dir, tempDir string) error {
	if err := renameIfExists(filepath.Join(tempDir, "data.log"), filepath.Join(dir, "data.log")); err != nil {
		return fmt.Errorf("renaming compacted data log: %w", err)
	}

	if err := renameIfExists(filepath.Join(tempDir, "vectors.bin"), filepath.Join(dir, "vectors.bin")); err != nil {
		return fmt.Errorf("renaming compacted vector file: %w", err)
	}

	return fsyncDir(dir)
}

// renameIfExists renames src to dst, skipping silently if src is already
// gone (a prior crash interrupted this same commit after renaming it).
func renameIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("stat %s: %w", src, err)
	}

	return os.Rename(src, dst)
}

// FsyncDir fsyncs a directory so that renames within it survive a crash.
// Not supported on all platforms (notably Windows); errors are ignored
// there since the directory entry is already durable via its own metadata
// journal.
func FsyncDir(dir string) error { return fsyncDir(dir) }

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening dir for fsync: %w", err)
	}
	defer f.Close()

	if err := f.Sync(); err != nil && !os.IsPermission(err) {
		return fmt.Errorf("fsync dir: %w", err)
	}

	return nil
}
