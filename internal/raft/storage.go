// Package raft persists consensus state and hosts the local raft node.
// Entries, hard state, conf state and snapshot metadata share one WAL;
// snapshot payloads live in separate files next to it so a large key
// space never bloats individual log records.
package raft

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/wal"
	"go.etcd.io/etcd/pkg/v3/pbutil"
	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"quorumkv/internal/metrics"
)

const (
	recordEntry     byte = 1
	recordHardState byte = 2
	recordSnapshot  byte = 3
	recordConfState byte = 4
)

const (
	snapshotFolder = "snapshot"
	walFolder      = "wal"
)

// Storage is the durable backing for the raft node. It keeps an
// etcd MemoryStorage in sync with the WAL so the raft library reads
// from memory while every acknowledged write has already hit disk.
type Storage struct {
	mu sync.Mutex

	dir string
	log *wal.Log
	ms  *etcdraft.MemoryStorage

	hs        raftpb.HardState
	snap      raftpb.Snapshot
	confState raftpb.ConfState

	nextWALIdx uint64
	// raft entry index -> WAL record index, for compaction
	entryWALIdx map[uint64]uint64
}

func OpenStorage(dir string, noSync bool) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, snapshotFolder), 0o750); err != nil {
		return nil, fmt.Errorf("mkdir snapshot dir: %w", err)
	}

	opts := *wal.DefaultOptions
	opts.NoSync = noSync
	log, err := wal.Open(filepath.Join(dir, walFolder), &opts)
	if err != nil {
		return nil, fmt.Errorf("wal.Open: %w", err)
	}

	s := &Storage{
		dir:         dir,
		log:         log,
		ms:          etcdraft.NewMemoryStorage(),
		entryWALIdx: make(map[uint64]uint64),
		nextWALIdx:  1,
	}

	if err := s.replay(); err != nil {
		log.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) replay() error {
	empty, err := s.log.IsEmpty()
	if err != nil {
		return fmt.Errorf("wal.IsEmpty: %w", err)
	}
	if empty {
		return nil
	}

	first, err := s.log.FirstIndex()
	if err != nil {
		return fmt.Errorf("wal.FirstIndex: %w", err)
	}
	last, err := s.log.LastIndex()
	if err != nil {
		return fmt.Errorf("wal.LastIndex: %w", err)
	}

	var allEntries []raftpb.Entry
	var snapMeta *raftpb.SnapshotMetadata
	var snapData []byte

	for idx := first; idx <= last; idx++ {
		data, err := s.log.Read(idx)
		if err != nil {
			return fmt.Errorf("wal.Read(%d): %w", idx, err)
		}

		recType, payload, err := unmarshalRecord(data)
		if err != nil {
			return fmt.Errorf("unmarshal record %d: %w", idx, err)
		}

		switch recType {
		case recordEntry:
			var e raftpb.Entry
			pbutil.MustUnmarshal(&e, payload)
			// An entry record at an index we already replayed is a
			// leader-change rewrite. It supersedes that index and every
			// entry after it, so the stale suffix must go before the
			// slice reaches MemoryStorage, which assumes contiguous
			// ascending indexes.
			for len(allEntries) > 0 && allEntries[len(allEntries)-1].Index >= e.Index {
				stale := allEntries[len(allEntries)-1]
				delete(s.entryWALIdx, stale.Index)
				allEntries = allEntries[:len(allEntries)-1]
			}
			s.entryWALIdx[e.Index] = idx
			allEntries = append(allEntries, e)

		case recordHardState:
			s.hs = raftpb.HardState{}
			pbutil.MustUnmarshal(&s.hs, payload)

		case recordConfState:
			s.confState = raftpb.ConfState{}
			pbutil.MustUnmarshal(&s.confState, payload)

		case recordSnapshot:
			var meta raftpb.SnapshotMetadata
			pbutil.MustUnmarshal(&meta, payload)

			if data, err := s.loadSnapshotData(meta.Index); err == nil {
				m := meta
				snapMeta = &m
				snapData = data
				s.confState = meta.ConfState
			} else {
				slog.Warn("snapshot data file missing, probably compacted, skipping",
					"index", meta.Index,
					"error", err,
				)
			}
		}

		s.nextWALIdx = idx + 1
	}

	var snapIndex uint64
	if snapMeta != nil {
		s.snap.Metadata = *snapMeta
		s.snap.Data = snapData
		snapIndex = snapMeta.Index

		for ri := range s.entryWALIdx {
			if ri <= snapIndex {
				delete(s.entryWALIdx, ri)
			}
		}
	}

	var entries []raftpb.Entry
	for _, e := range allEntries {
		if e.Index > snapIndex {
			entries = append(entries, e)
		}
	}

	if !etcdraft.IsEmptySnap(s.snap) {
		if err := s.ms.ApplySnapshot(s.snap); err != nil &&
			!errors.Is(err, etcdraft.ErrSnapOutOfDate) {
			return fmt.Errorf("apply snapshot: %w", err)
		}
	} else if len(s.confState.Voters) > 0 {
		// MemoryStorage only learns membership through a snapshot, so a
		// node that never snapshotted still needs its confState seeded.
		seed := raftpb.Snapshot{
			Metadata: raftpb.SnapshotMetadata{
				Index:     s.hs.Commit,
				Term:      s.hs.Term,
				ConfState: s.confState,
			},
		}
		if err := s.ms.ApplySnapshot(seed); err != nil &&
			!errors.Is(err, etcdraft.ErrSnapOutOfDate) {
			return fmt.Errorf("apply confState snapshot: %w", err)
		}
	}

	if !etcdraft.IsEmptyHardState(s.hs) {
		if err := s.ms.SetHardState(s.hs); err != nil {
			return fmt.Errorf("set hardstate: %w", err)
		}
	}

	if len(entries) > 0 {
		if err := s.ms.Append(entries); err != nil {
			return fmt.Errorf("append entries: %w", err)
		}
	}

	slog.Info("replayed raft WAL",
		"wal_first", first,
		"wal_last", last,
		"entries", len(entries),
		"snap_index", snapIndex,
		"hs_commit", s.hs.Commit,
		"voters", s.confState.Voters,
	)

	return nil
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log != nil {
		return s.log.Close()
	}
	return nil
}

// SaveReady persists everything raft handed out in a Ready before the
// caller is allowed to send messages or apply entries. The WAL is only
// synced when raft asks for it via MustSync.
func (s *Storage) SaveReady(rd etcdraft.Ready) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !etcdraft.IsEmptySnap(rd.Snapshot) {
		if err := s.persistSnapshotLocked(rd.Snapshot); err != nil {
			return err
		}
	}

	for i := range rd.Entries {
		if err := s.appendRecordLocked(recordEntry, &rd.Entries[i]); err != nil {
			return err
		}
		s.entryWALIdx[rd.Entries[i].Index] = s.nextWALIdx - 1
	}
	if len(rd.Entries) > 0 {
		if err := s.ms.Append(rd.Entries); err != nil {
			return fmt.Errorf("MemoryStorage.Append: %w", err)
		}
	}

	if !etcdraft.IsEmptyHardState(rd.HardState) && !isHardStateEqual(s.hs, rd.HardState) {
		if err := s.appendRecordLocked(recordHardState, &rd.HardState); err != nil {
			return err
		}
		s.hs = rd.HardState
		if err := s.ms.SetHardState(rd.HardState); err != nil {
			return fmt.Errorf("MemoryStorage.SetHardState: %w", err)
		}
	}

	if rd.MustSync {
		start := time.Now()
		if err := s.log.Sync(); err != nil {
			return fmt.Errorf("wal.Sync: %w", err)
		}
		metrics.WALSyncDuration.Observe(time.Since(start).Seconds())
	}

	return nil
}

func (s *Storage) SaveConfState(cs raftpb.ConfState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendRecordLocked(recordConfState, &cs); err != nil {
		return fmt.Errorf("append confState record: %w", err)
	}
	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("wal.Sync: %w", err)
	}

	s.confState = cs
	return nil
}

func (s *Storage) CreateSnapshot(index uint64, confState *raftpb.ConfState, data []byte) (raftpb.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ms.CreateSnapshot(index, confState, data)
}

// SaveSnapshot durably records a snapshot, whether locally created or
// received from the leader, and drops entry bookkeeping it covers.
func (s *Storage) SaveSnapshot(snap raftpb.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistSnapshotLocked(snap)
}

func (s *Storage) persistSnapshotLocked(snap raftpb.Snapshot) error {
	if len(snap.Data) > 0 {
		if err := s.saveSnapshotData(snap); err != nil {
			return fmt.Errorf("save snapshot data: %w", err)
		}
	}

	if err := s.appendRecordLocked(recordSnapshot, &snap.Metadata); err != nil {
		return fmt.Errorf("append snapshot record: %w", err)
	}
	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("wal.Sync: %w", err)
	}

	if err := s.ms.ApplySnapshot(snap); err != nil &&
		!errors.Is(err, etcdraft.ErrSnapOutOfDate) {
		return fmt.Errorf("ApplySnapshot: %w", err)
	}

	s.snap = snap
	s.confState = snap.Metadata.ConfState

	for ri := range s.entryWALIdx {
		if ri <= snap.Metadata.Index {
			delete(s.entryWALIdx, ri)
		}
	}

	slog.Info("saved snapshot",
		"index", snap.Metadata.Index,
		"term", snap.Metadata.Term,
	)

	return nil
}

// Compact discards log entries up to compactIndex from memory and
// truncates the covered prefix of the WAL.
func (s *Storage) Compact(compactIndex uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ms.Compact(compactIndex); err != nil {
		if !errors.Is(err, etcdraft.ErrCompacted) {
			return fmt.Errorf("MemoryStorage.Compact: %w", err)
		}
	}

	walIdx := s.walIndexForCompaction(compactIndex)
	if walIdx > 0 {
		if err := s.log.TruncateFront(walIdx); err != nil {
			return fmt.Errorf("wal.TruncateFront: %w", err)
		}
		for ri, wi := range s.entryWALIdx {
			if wi <= walIdx {
				delete(s.entryWALIdx, ri)
			}
		}
	}

	s.cleanupOldSnapshots(compactIndex)
	return nil
}

func (s *Storage) walIndexForCompaction(compactIndex uint64) uint64 {
	if walIdx, ok := s.entryWALIdx[compactIndex]; ok {
		return walIdx
	}

	var best uint64
	for ri, wi := range s.entryWALIdx {
		if ri <= compactIndex && wi > best {
			best = wi
		}
	}
	return best
}

func (s *Storage) saveSnapshotData(snap raftpb.Snapshot) error {
	path := filepath.Join(s.dir, snapshotFolder, fmt.Sprintf("%016x", snap.Metadata.Index))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(snap.Data); err != nil {
		return err
	}
	return f.Sync()
}

func (s *Storage) loadSnapshotData(index uint64) ([]byte, error) {
	path := filepath.Join(s.dir, snapshotFolder, fmt.Sprintf("%016x", index))
	return os.ReadFile(path)
}

func (s *Storage) cleanupOldSnapshots(keepAfterIndex uint64) {
	snapDir := filepath.Join(s.dir, snapshotFolder)
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		return
	}

	currentSnapIndex := s.snap.Metadata.Index

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var idx uint64
		if _, err := fmt.Sscanf(e.Name(), "%016x", &idx); err != nil {
			continue
		}
		if idx < keepAfterIndex && idx != currentSnapIndex {
			path := filepath.Join(snapDir, e.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("failed to remove old snapshot", "path", path, "error", err)
			}
		}
	}
}

func (s *Storage) appendRecordLocked(recType byte, msg interface{ Marshal() ([]byte, error) }) error {
	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if err := s.log.Write(s.nextWALIdx, marshalRecord(recType, payload)); err != nil {
		return fmt.Errorf("wal.Write(%d): %w", s.nextWALIdx, err)
	}
	s.nextWALIdx++
	return nil
}

// RaftStorage exposes the in-memory view the raft library reads from.
func (s *Storage) RaftStorage() *etcdraft.MemoryStorage {
	return s.ms
}

func (s *Storage) SnapshotIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Metadata.Index
}

func (s *Storage) SnapshotData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Data
}

func (s *Storage) ConfState() raftpb.ConfState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confState
}

func (s *Storage) HardState() raftpb.HardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hs
}

// IsEmpty reports whether this storage has never held raft state, which
// decides between StartNode and RestartNode.
func (s *Storage) IsEmpty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty, err := s.log.IsEmpty()
	if err != nil {
		return false, fmt.Errorf("wal.IsEmpty: %w", err)
	}

	if !etcdraft.IsEmptyHardState(s.hs) {
		return false, nil
	}
	if s.snap.Metadata.Index != 0 {
		return false, nil
	}
	if len(s.confState.Voters) > 0 {
		return false, nil
	}

	return empty, nil
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

func isHardStateEqual(a, b raftpb.HardState) bool {
	return a.Term == b.Term && a.Vote == b.Vote && a.Commit == b.Commit
}
