// Package journal implements the binary journal codec (C3): framing,
// schema versioning, and CRC for the last-observed cluster snapshot, plus
// the atomic write and staleness-check discipline around it.
package journal

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/clustermon/core/internal/status"
)

const SchemaVersion uint8 = 2

const (
	recordTypeServer  uint8 = 1
	recordTypePrimary uint8 = 2
)

var (
	// ErrUnknownSchemaVersion is returned when the leading schema byte
	// does not match SchemaVersion. Not fatal: callers log and discard.
	ErrUnknownSchemaVersion = errors.New("journal: unknown schema version")
	// ErrCRCMismatch indicates a torn or corrupted payload.
	ErrCRCMismatch = errors.New("journal: crc32 mismatch")
	// ErrTruncated indicates a record ended before its required NUL
	// terminator or fixed-size tail was found.
	ErrTruncated = errors.New("journal: truncated record")
	// ErrUnknownRecordType aborts decode per §4.3 step 5.
	ErrUnknownRecordType = errors.New("journal: unknown record type")
)

// Snapshot is the decoded form of a journal frame: per-server status bits
// plus an optional designated-primary name.
type Snapshot struct {
	Servers map[string]status.Bits
	Primary string
}

func NewSnapshot() Snapshot {
	return Snapshot{Servers: make(map[string]status.Bits)}
}

// Encode produces the full frame per §4.3: the payload_len field followed
// by the payload (schema_version + records + crc32).
func Encode(s Snapshot) []byte {
	var body bytes.Buffer
	body.WriteByte(SchemaVersion)

	for name, bits := range s.Servers {
		body.WriteByte(recordTypeServer)
		body.WriteString(name)
		body.WriteByte(0)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(bits))
		body.Write(b[:])
	}
	if s.Primary != "" {
		body.WriteByte(recordTypePrimary)
		body.WriteString(s.Primary)
		body.WriteByte(0)
	}

	payload := body.Bytes()
	crc := crc32.ChecksumIEEE(payload)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)

	var frame bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)+4))
	frame.Write(lenBuf[:])
	frame.Write(payload)
	frame.Write(crcBuf[:])
	return frame.Bytes()
}

// Decode implements the §4.3 decode algorithm against a full frame
// (payload_len field included). Returns ErrUnknownSchemaVersion,
// ErrCRCMismatch, ErrTruncated, or ErrUnknownRecordType on any corruption;
// callers must treat all of these as "discard, continue with fresh state."
func Decode(frame []byte) (Snapshot, error) {
	if len(frame) < 4 {
		return Snapshot{}, ErrTruncated
	}
	payloadLen := binary.LittleEndian.Uint32(frame[:4])
	rest := frame[4:]
	if uint32(len(rest)) != payloadLen {
		return Snapshot{}, ErrTruncated
	}
	if len(rest) < 1+4 {
		return Snapshot{}, ErrTruncated
	}

	schemaVersion := rest[0]
	payload := rest[:len(rest)-4]
	trailer := rest[len(rest)-4:]

	if schemaVersion != SchemaVersion {
		return Snapshot{}, ErrUnknownSchemaVersion
	}

	wantCRC := binary.LittleEndian.Uint32(trailer)
	gotCRC := crc32.ChecksumIEEE(payload)
	if gotCRC != wantCRC {
		return Snapshot{}, ErrCRCMismatch
	}

	snap := NewSnapshot()
	records := payload[1:]
	for len(records) > 0 {
		recType := records[0]
		records = records[1:]

		nul := bytes.IndexByte(records, 0)
		if nul < 0 {
			return Snapshot{}, ErrTruncated
		}
		name := string(records[:nul])
		records = records[nul+1:]

		switch recType {
		case recordTypeServer:
			if len(records) < 8 {
				return Snapshot{}, ErrTruncated
			}
			bits := status.Bits(binary.LittleEndian.Uint64(records[:8]))
			records = records[8:]
			snap.Servers[name] = bits
		case recordTypePrimary:
			snap.Primary = name
		default:
			return Snapshot{}, ErrUnknownRecordType
		}
	}
	return snap, nil
}

// Store owns the on-disk journal for one monitor: the atomic-rename write
// discipline, the journal_hash dedup check, and the staleness check at
// startup.
type Store struct {
	dir  string // <datadir>/<monitor-name>
	hash [sha1.Size]byte
	set  bool
}

func NewStore(datadir, monitorName string) *Store {
	return &Store{dir: filepath.Join(datadir, monitorName)}
}

func (s *Store) path() string { return filepath.Join(s.dir, "monitor.dat") }

// CheckStale deletes the journal file without loading it if its
// modification time is older than maxAge. Returns true if it deleted (or
// found nothing to delete).
func (s *Store) CheckStale(maxAge time.Duration) (deleted bool, err error) {
	info, err := os.Stat(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if time.Since(info.ModTime()) > maxAge {
		if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Load reads and decodes the journal file, if present. A missing file is
// not an error: it returns a zero Snapshot and false.
func (s *Store) Load() (Snapshot, bool, error) {
	raw, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	snap, err := Decode(raw)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Write encodes snap, skips disk I/O if its SHA1 equals the last written
// hash, and otherwise performs the create-exclusive-temp + flush + rename
// sequence. journal_hash is updated only on a successful rename, so a
// failed write is retried on the next tick.
func (s *Store) Write(snap Snapshot) (wrote bool, err error) {
	encoded := Encode(snap)
	h := sha1.Sum(encoded)
	if s.set && h == s.hash {
		return false, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(s.dir, "monitor.dat*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(encoded); err != nil {
		tmp.Close()
		return false, err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return false, err
	}
	if err = tmp.Close(); err != nil {
		return false, err
	}
	if err = os.Rename(tmpName, s.path()); err != nil {
		return false, err
	}

	s.hash = h
	s.set = true
	return true, nil
}
