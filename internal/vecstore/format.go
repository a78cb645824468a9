// Package vecstore implements the on-disk storage engine for vecdb: the
// append-only data log, the parallel vector file, and crash recovery.
//
// Two files share one directory and one header format:
//
//	data.log    header + append-only log records (puts and tombstones)
//	vectors.bin header + dense array of dimension×float32 slots
//
// Positioned reads (ReadAt) keep concurrent readers from fighting over a
// shared file cursor; positioned writes only ever happen under the caller's
// exclusive lock, so Storage itself does no locking of its own.
package vecstore

import (
	"encoding/binary"
	"hash/crc32"
	"math"
)

// File header layout shared by data.log and vectors.bin.
//
//	offset 0  : magic     u32 big-endian = "VECT"
//	offset 4  : version   u8             = 1
//	offset 5  : flags     u8             = 0
//	offset 6  : dimension u32 big-endian
//	offset 10 : 22 bytes reserved/zero
const (
	headerSize   = 32
	headerMagic  = uint32(0x56454354) // "VECT"
	headerVer    = uint8(1)
	offMagic     = 0
	offVersion   = 4
	offFlags     = 5
	offDimension = 6
	offReserved  = 10
)

// header is the parsed 32-byte file header.
type header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Dimension uint32
}

// encodeHeader serializes h to a 32-byte big-endian buffer.
func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[offMagic:], h.Magic)
	buf[offVersion] = h.Version
	buf[offFlags] = h.Flags
	binary.BigEndian.PutUint32(buf[offDimension:], h.Dimension)
	// buf[offReserved:headerSize] is already zero.
	return buf
}

// decodeHeader parses a 32-byte buffer into a header without validating it.
func decodeHeader(buf []byte) header {
	return header{
		Magic:     binary.BigEndian.Uint32(buf[offMagic:]),
		Version:   buf[offVersion],
		Flags:     buf[offFlags],
		Dimension: binary.BigEndian.Uint32(buf[offDimension:]),
	}
}

// newHeader builds the header written for a freshly created file.
func newHeader(dimension uint32) header {
	return header{
		Magic:     headerMagic,
		Version:   headerVer,
		Dimension: dimension,
	}
}

// logRecordHeaderSize is the fixed portion of every log record:
// crc32(4) + id(4) + key_len(4) + val_len(4) + tombstone(1).
const logRecordHeaderSize = 4 + 4 + 4 + 4 + 1

// crcTable is the IEEE polynomial table (the common crc32 used by
// zlib/png), matching the checksum spec.md mandates for log records.
var crcTable = crc32.MakeTable(crc32.IEEE)

// logRecordChecksum computes the CRC32 (IEEE) over a log record's fields in
// the order the format mandates: id, key_len, val_len, tombstone, key, value.
func logRecordChecksum(id uint32, key, value []byte, tombstone bool) uint32 {
	h := crc32.New(crcTable)

	var fixed [logRecordHeaderSize - 4]byte
	binary.BigEndian.PutUint32(fixed[0:4], id)
	binary.BigEndian.PutUint32(fixed[4:8], uint32(len(key)))
	binary.BigEndian.PutUint32(fixed[8:12], uint32(len(value)))

	if tombstone {
		fixed[12] = 1
	}

	_, _ = h.Write(fixed[:])
	_, _ = h.Write(key)
	_, _ = h.Write(value)

	return h.Sum32()
}

func putUint32(buf []byte, v uint32) { binary.BigEndian.PutUint32(buf, v) }

func getUint32(buf []byte) uint32 { return binary.BigEndian.Uint32(buf) }

// encodeVector serializes a slice of float32 to big-endian bytes, matching
// the layout vectors.bin uses for every slot.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)

	for i, f := range v {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}

	return buf
}

// decodeVectors parses a contiguous buffer of big-endian float32 slots.
func decodeVectors(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)

	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[i*4:]))
	}

	return out
}
