package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/memoryd/engine/internal/errs"
)

// snapshotVersion is the only CacheSnapshot wire version this engine
// writes or accepts. Unknown versions are rejected outright rather
// than guessed at.
const snapshotVersion uint32 = 1

// SnapshotEntry is one cached value captured for on-disk persistence.
// Value is the entry's JSON-serialized form; the cache package itself
// stores arbitrary interface{} values, so a snapshot only round-trips
// what the caller serialized going in.
type SnapshotEntry struct {
	Family Family
	Key    string
	Value  []byte
	TTL    time.Duration
}

// Snapshot is the persisted form of a Cache: a version tag, a capture
// timestamp, the entries, and a small metadata map for caller-defined
// provenance (e.g. which engine instance wrote it).
type Snapshot struct {
	Version   uint32
	CreatedAt time.Time
	Entries   []SnapshotEntry
	Metadata  map[string]string
}

// Encode serializes s with a small hand-rolled postcard-style binary
// framer: a length-prefixed field for every variable-size value, no
// reflection, no schema registry. encoding/gob was considered and
// rejected (see DESIGN.md) since it couples the wire format to Go's
// own type descriptors, which this snapshot format explicitly avoids
// by writing raw bytes for Value. When compress is true the framed
// body is LZ4-compressed and the returned bytes carry a one-byte flag
// prefix the way durable-backend blobs do.
func Encode(s Snapshot, compress bool) ([]byte, error) {
	var body bytes.Buffer
	writeUint32(&body, s.Version)
	writeInt64(&body, s.CreatedAt.UnixNano())

	writeUint32(&body, uint32(len(s.Metadata)))
	for k, v := range s.Metadata {
		writeString(&body, k)
		writeString(&body, v)
	}

	writeUint32(&body, uint32(len(s.Entries)))
	for _, e := range s.Entries {
		writeString(&body, string(e.Family))
		writeString(&body, e.Key)
		writeBytes(&body, e.Value)
		writeInt64(&body, int64(e.TTL))
	}

	if !compress {
		out := make([]byte, 0, body.Len()+1)
		out = append(out, 0)
		return append(out, body.Bytes()...), nil
	}

	var compressed bytes.Buffer
	compressed.WriteByte(1)
	w := lz4.NewWriter(&compressed)
	if _, err := w.Write(body.Bytes()); err != nil {
		return nil, errs.Storage("lz4 compress cache snapshot", err)
	}
	if err := w.Close(); err != nil {
		return nil, errs.Storage("lz4 close cache snapshot writer", err)
	}
	return compressed.Bytes(), nil
}

// Decode reverses Encode, rejecting any version other than
// snapshotVersion.
func Decode(framed []byte) (Snapshot, error) {
	if len(framed) < 1 {
		return Snapshot{}, errs.InvalidInput("empty cache snapshot")
	}
	flag, body := framed[0], framed[1:]
	if flag == 1 {
		r := lz4.NewReader(bytes.NewReader(body))
		raw, err := io.ReadAll(r)
		if err != nil {
			return Snapshot{}, errs.Storage("lz4 decompress cache snapshot", err)
		}
		body = raw
	}

	r := bytes.NewReader(body)
	version, err := readUint32(r)
	if err != nil {
		return Snapshot{}, errs.Storage("read cache snapshot version", err)
	}
	if version != snapshotVersion {
		return Snapshot{}, errs.InvalidInput(fmt.Sprintf("unsupported cache snapshot version %d", version))
	}

	createdAtNS, err := readInt64(r)
	if err != nil {
		return Snapshot{}, errs.Storage("read cache snapshot created_at", err)
	}

	metaCount, err := readUint32(r)
	if err != nil {
		return Snapshot{}, errs.Storage("read cache snapshot metadata count", err)
	}
	metadata := make(map[string]string, metaCount)
	for i := uint32(0); i < metaCount; i++ {
		k, err := readString(r)
		if err != nil {
			return Snapshot{}, errs.Storage("read cache snapshot metadata key", err)
		}
		v, err := readString(r)
		if err != nil {
			return Snapshot{}, errs.Storage("read cache snapshot metadata value", err)
		}
		metadata[k] = v
	}

	entryCount, err := readUint32(r)
	if err != nil {
		return Snapshot{}, errs.Storage("read cache snapshot entry count", err)
	}
	entries := make([]SnapshotEntry, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		family, err := readString(r)
		if err != nil {
			return Snapshot{}, errs.Storage("read cache snapshot entry family", err)
		}
		key, err := readString(r)
		if err != nil {
			return Snapshot{}, errs.Storage("read cache snapshot entry key", err)
		}
		value, err := readBytes(r)
		if err != nil {
			return Snapshot{}, errs.Storage("read cache snapshot entry value", err)
		}
		ttl, err := readInt64(r)
		if err != nil {
			return Snapshot{}, errs.Storage("read cache snapshot entry ttl", err)
		}
		entries = append(entries, SnapshotEntry{Family: Family(family), Key: key, Value: value, TTL: time.Duration(ttl)})
	}

	return Snapshot{
		Version:   version,
		CreatedAt: time.Unix(0, createdAtNS).UTC(),
		Entries:   entries,
		Metadata:  metadata,
	}, nil
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeInt64(w *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.Write(b[:])
}

func writeBytes(w *bytes.Buffer, v []byte) {
	writeUint32(w, uint32(len(v)))
	w.Write(v)
}

func writeString(w *bytes.Buffer, v string) {
	writeBytes(w, []byte(v))
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
