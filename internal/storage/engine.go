// Package storage is the durable key-value engine. Every mutation is
// appended to a write-ahead log before it becomes visible, so a reopened
// engine always reflects everything it acknowledged. Snapshots capture
// the full key space plus the last applied raft index in one opaque blob.
package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/wal"
	"google.golang.org/protobuf/proto"

	"quorumkv/internal/metrics"
	snapshotpb "quorumkv/internal/storage/gen"
)

const (
	recordSet      byte = 1
	recordDelete   byte = 2
	recordSnapshot byte = 3
	recordApplied  byte = 4
)

const walFolder = "kv"

type Engine struct {
	mu sync.RWMutex

	dir string
	log *wal.Log

	data         map[string][]byte
	appliedIndex uint64

	nextWALIdx uint64
}

// Open opens (or creates) the engine under dir and replays its WAL.
// Failure here is unrecoverable for the node: the caller must not
// continue operating on an inconsistent store.
func Open(dir string, noSync bool) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	opts := *wal.DefaultOptions
	opts.NoSync = noSync
	log, err := wal.Open(filepath.Join(dir, walFolder), &opts)
	if err != nil {
		return nil, fmt.Errorf("wal.Open: %w", err)
	}

	e := &Engine{
		dir:        dir,
		log:        log,
		data:       make(map[string][]byte),
		nextWALIdx: 1,
	}

	if err := e.replay(); err != nil {
		log.Close()
		return nil, err
	}

	return e, nil
}

func (e *Engine) replay() error {
	empty, err := e.log.IsEmpty()
	if err != nil {
		return fmt.Errorf("wal.IsEmpty: %w", err)
	}
	if empty {
		return nil
	}

	first, err := e.log.FirstIndex()
	if err != nil {
		return fmt.Errorf("wal.FirstIndex: %w", err)
	}
	last, err := e.log.LastIndex()
	if err != nil {
		return fmt.Errorf("wal.LastIndex: %w", err)
	}

	for idx := first; idx <= last; idx++ {
		data, err := e.log.Read(idx)
		if err != nil {
			return fmt.Errorf("wal.Read(%d): %w", idx, err)
		}

		recType, payload, err := unmarshalRecord(data)
		if err != nil {
			return fmt.Errorf("unmarshal record %d: %w", idx, err)
		}

		switch recType {
		case recordSet:
			key, value, err := decodeSetPayload(payload)
			if err != nil {
				return fmt.Errorf("decode set record %d: %w", idx, err)
			}
			e.data[key] = value

		case recordDelete:
			delete(e.data, string(payload))

		case recordSnapshot:
			var snap snapshotpb.KVSnapshot
			if err := proto.Unmarshal(payload, &snap); err != nil {
				return fmt.Errorf("decode snapshot record %d: %w", idx, err)
			}
			e.data = make(map[string][]byte, len(snap.Entries))
			for _, kv := range snap.Entries {
				e.data[kv.Key] = kv.Value
			}
			e.appliedIndex = snap.AppliedIndex

		case recordApplied:
			applied, n := binary.Uvarint(payload)
			if n <= 0 {
				return fmt.Errorf("decode applied record %d", idx)
			}
			if applied > e.appliedIndex {
				e.appliedIndex = applied
			}

		default:
			slog.Warn("skipping unknown storage record type",
				"wal_index", idx,
				"type", recType,
			)
		}

		e.nextWALIdx = idx + 1
	}

	slog.Info("replayed storage WAL",
		"dir", e.dir,
		"wal_first", first,
		"wal_last", last,
		"keys", len(e.data),
		"applied_index", e.appliedIndex,
	)

	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.log != nil {
		return e.log.Close()
	}
	return nil
}

// Set persists the mapping. The WAL append is synced before the new
// value becomes visible to readers.
func (e *Engine) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload := encodeSetPayload(key, value)
	if err := e.appendRecordLocked(recordSet, payload); err != nil {
		return storageErr("set", err)
	}

	e.data[key] = value
	metrics.StorageOperationsTotal.WithLabelValues("set").Inc()
	return nil
}

// Get returns the current mapping for key, or ok=false if absent.
func (e *Engine) Get(key string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	metrics.StorageOperationsTotal.WithLabelValues("get").Inc()
	v, ok := e.data[key]
	return v, ok
}

// Delete removes the mapping entirely. Absence of the key is not an
// error; a key re-set after delete starts from absence.
func (e *Engine) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.appendRecordLocked(recordDelete, []byte(key)); err != nil {
		return storageErr("delete", err)
	}

	delete(e.data, key)
	metrics.StorageOperationsTotal.WithLabelValues("delete").Inc()
	return nil
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.data)
}

// AppliedIndex returns the raft index of the last entry whose effects
// are durable in this engine.
func (e *Engine) AppliedIndex() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.appliedIndex
}

// MarkApplied durably records that all entries up to index have been
// applied. Indexes at or below the current mark are ignored.
func (e *Engine) MarkApplied(index uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index <= e.appliedIndex {
		return nil
	}

	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, index)
	if err := e.appendRecordLocked(recordApplied, buf[:n]); err != nil {
		return storageErr("mark applied", err)
	}

	e.appliedIndex = index
	return nil
}

// Snapshot serializes the full key space plus the applied index into an
// opaque transferable blob.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	data, err := proto.Marshal(e.snapshotProtoLocked())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	metrics.StorageSnapshotSize.Set(float64(len(data)))
	return data, nil
}

// Restore atomically replaces the key space with the snapshot contents.
// The blob is fully decoded before any state is touched, so a failure is
// all-or-nothing: existing data survives a corrupt blob intact.
func (e *Engine) Restore(data []byte) error {
	var snap snapshotpb.KVSnapshot
	if err := proto.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snapIdx := e.nextWALIdx
	if err := e.appendRecordLocked(recordSnapshot, data); err != nil {
		return storageErr("restore", err)
	}
	if err := e.log.Sync(); err != nil {
		return storageErr("restore sync", err)
	}

	if err := e.log.TruncateFront(snapIdx); err != nil {
		slog.Warn("failed to truncate storage WAL after restore", "error", err)
	}

	newData := make(map[string][]byte, len(snap.Entries))
	for _, kv := range snap.Entries {
		newData[kv.Key] = kv.Value
	}
	e.data = newData
	if snap.AppliedIndex > e.appliedIndex {
		e.appliedIndex = snap.AppliedIndex
	}

	slog.Info("restored key space from snapshot",
		"keys", len(newData),
		"applied_index", snap.AppliedIndex,
	)

	return nil
}

// Checkpoint folds the current state into a single snapshot record and
// truncates older WAL records, bounding replay time after restart.
func (e *Engine) Checkpoint() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := proto.Marshal(e.snapshotProtoLocked())
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	snapIdx := e.nextWALIdx
	if err := e.appendRecordLocked(recordSnapshot, data); err != nil {
		return storageErr("checkpoint", err)
	}
	if err := e.log.Sync(); err != nil {
		return storageErr("checkpoint sync", err)
	}

	if err := e.log.TruncateFront(snapIdx); err != nil {
		return storageErr("checkpoint truncate", err)
	}

	slog.Debug("storage checkpoint written",
		"keys", len(e.data),
		"applied_index", e.appliedIndex,
	)

	return nil
}

func (e *Engine) snapshotProtoLocked() *snapshotpb.KVSnapshot {
	snap := &snapshotpb.KVSnapshot{
		Entries:      make([]*snapshotpb.KeyValue, 0, len(e.data)),
		AppliedIndex: e.appliedIndex,
	}
	for k, v := range e.data {
		snap.Entries = append(snap.Entries, &snapshotpb.KeyValue{Key: k, Value: v})
	}
	return snap
}

func (e *Engine) appendRecordLocked(recType byte, payload []byte) error {
	if err := e.log.Write(e.nextWALIdx, marshalRecord(recType, payload)); err != nil {
		return fmt.Errorf("wal.Write(%d): %w", e.nextWALIdx, err)
	}
	e.nextWALIdx++
	return nil
}

func encodeSetPayload(key string, value []byte) []byte {
	buf := make([]byte, binary.MaxVarintLen64+len(key)+len(value))
	n := binary.PutUvarint(buf, uint64(len(key)))
	n += copy(buf[n:], key)
	n += copy(buf[n:], value)
	return buf[:n]
}

func decodeSetPayload(payload []byte) (string, []byte, error) {
	keyLen, n := binary.Uvarint(payload)
	if n <= 0 || int(keyLen) > len(payload)-n {
		return "", nil, io.ErrUnexpectedEOF
	}
	key := string(payload[n : n+int(keyLen)])
	value := payload[n+int(keyLen):]
	return key, value, nil
}

func marshalRecord(recType byte, payload []byte) []byte {
	buf := make([]byte, 1+binary.MaxVarintLen64+len(payload))
	buf[0] = recType
	n := binary.PutUvarint(buf[1:], uint64(len(payload)))
	copy(buf[1+n:], payload)
	return buf[:1+n+len(payload)]
}

func unmarshalRecord(data []byte) (byte, []byte, error) {
	if len(data) < 2 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	recType := data[0]
	length, n := binary.Uvarint(data[1:])
	if n <= 0 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	start := 1 + n
	end := start + int(length)
	if end > len(data) {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return recType, data[start:end], nil
}
