package driver

import (
	"context"
	"time"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"quorumkv/internal/raft/ports"
)

type fakeWAL struct {
	SaveReadyCalled bool
	SaveReadyErr    error

	SaveConfStateCalled bool
	SaveConfStateErr    error

	CreateSnapshotCalled bool
	CreateSnapshotErr    error

	SaveSnapshotCalled bool
	SaveSnapshotErr    error

	CompactCalled bool
	CompactArg    uint64
	CompactErr    error

	SnapIndex uint64
	SnapData  []byte
}

func (w *fakeWAL) SaveReady(rd etcdraft.Ready) error {
	w.SaveReadyCalled = true
	return w.SaveReadyErr
}

func (w *fakeWAL) SaveConfState(cs raftpb.ConfState) error {
	w.SaveConfStateCalled = true
	return w.SaveConfStateErr
}

func (w *fakeWAL) CreateSnapshot(index uint64, cs *raftpb.ConfState, data []byte) (raftpb.Snapshot, error) {
	w.CreateSnapshotCalled = true
	if w.CreateSnapshotErr != nil {
		return raftpb.Snapshot{}, w.CreateSnapshotErr
	}
	return raftpb.Snapshot{
		Metadata: raftpb.SnapshotMetadata{Index: index, Term: 7},
		Data:     data,
	}, nil
}

func (w *fakeWAL) SaveSnapshot(snap raftpb.Snapshot) error {
	w.SaveSnapshotCalled = true
	return w.SaveSnapshotErr
}

func (w *fakeWAL) Compact(index uint64) error {
	w.CompactCalled = true
	w.CompactArg = index
	return w.CompactErr
}

func (w *fakeWAL) SnapshotIndex() uint64 { return w.SnapIndex }
func (w *fakeWAL) SnapshotData() []byte  { return w.SnapData }

type fakeNode struct {
	id     uint64
	status etcdraft.Status
	wal    ports.WALStorage

	ProposeFn     func(context.Context, []byte) error
	ProposeConfFn func(context.Context, raftpb.ConfChange) error
	StepFn        func(context.Context, raftpb.Message) error
	ApplyConfFn   func(raftpb.ConfChange) *raftpb.ConfState
	StopFn        func()

	readyCh chan etcdraft.Ready

	confState raftpb.ConfState

	AdvanceCalled bool
}

func (n *fakeNode) Propose(ctx context.Context, data []byte) error {
	if n.ProposeFn != nil {
		return n.ProposeFn(ctx, data)
	}
	return nil
}

func (n *fakeNode) ProposeConfChange(ctx context.Context, cc raftpb.ConfChange) error {
	if n.ProposeConfFn != nil {
		return n.ProposeConfFn(ctx, cc)
	}
	return nil
}

func (n *fakeNode) Status() etcdraft.Status { return n.status }

func (n *fakeNode) Tick() {}

// a nil channel blocks forever, which keeps the loop alive in tests
func (n *fakeNode) Ready() <-chan etcdraft.Ready { return n.readyCh }

func (n *fakeNode) Step(ctx context.Context, msg raftpb.Message) error {
	if n.StepFn != nil {
		return n.StepFn(ctx, msg)
	}
	return nil
}

func (n *fakeNode) Advance() { n.AdvanceCalled = true }

func (n *fakeNode) TransferLeadership(context.Context, uint64, uint64) {}

func (n *fakeNode) ApplyConfChange(cc raftpb.ConfChange) *raftpb.ConfState {
	if n.ApplyConfFn != nil {
		return n.ApplyConfFn(cc)
	}
	return nil
}

func (n *fakeNode) Stop() {
	if n.StopFn != nil {
		n.StopFn()
	}
}

func (n *fakeNode) ID() uint64 { return n.id }

func (n *fakeNode) ConfState() raftpb.ConfState      { return n.confState }
func (n *fakeNode) SetConfState(cs raftpb.ConfState) { n.confState = cs }

func (n *fakeNode) Storage() ports.WALStorage { return n.wal }

type fakeTransport struct {
	peers map[uint64]string
	sent  []raftpb.Message

	DrainCalled bool
}

func (t *fakeTransport) Send(msgs []raftpb.Message) { t.sent = append(t.sent, msgs...) }

func (t *fakeTransport) AddPeer(nodeID uint64, addr string) {
	if t.peers == nil {
		t.peers = map[uint64]string{}
	}
	t.peers[nodeID] = addr
}

func (t *fakeTransport) RemovePeer(nodeID uint64) { delete(t.peers, nodeID) }

func (t *fakeTransport) PeerCount() int { return len(t.peers) }

func (t *fakeTransport) Drain(time.Duration) { t.DrainCalled = true }

type fakeStore struct {
	data    map[string][]byte
	applied uint64

	SetErr     error
	DeleteErr  error
	SnapErr    error
	RestoreErr error

	SnapData []byte
	Restored [][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (s *fakeStore) Set(key string, value []byte) error {
	if s.SetErr != nil {
		return s.SetErr
	}
	s.data[key] = value
	return nil
}

func (s *fakeStore) Delete(key string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.data, key)
	return nil
}

func (s *fakeStore) Snapshot() ([]byte, error) {
	if s.SnapErr != nil {
		return nil, s.SnapErr
	}
	return s.SnapData, nil
}

func (s *fakeStore) Restore(data []byte) error {
	if s.RestoreErr != nil {
		return s.RestoreErr
	}
	s.Restored = append(s.Restored, data)
	return nil
}

func (s *fakeStore) AppliedIndex() uint64 { return s.applied }

func (s *fakeStore) MarkApplied(index uint64) error {
	if index > s.applied {
		s.applied = index
	}
	return nil
}

func (s *fakeStore) Len() int { return len(s.data) }
