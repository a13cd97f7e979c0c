// Package ports defines the seams between the consensus driver and the
// components it coordinates, so each side can be tested with fakes.
package ports

import (
	"context"
	"time"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

// WALStorage is the durable raft log the driver persists Ready batches to.
type WALStorage interface {
	SaveReady(rd etcdraft.Ready) error
	SaveConfState(cs raftpb.ConfState) error
	CreateSnapshot(index uint64, cs *raftpb.ConfState, data []byte) (raftpb.Snapshot, error)
	SaveSnapshot(snap raftpb.Snapshot) error
	Compact(index uint64) error
	SnapshotIndex() uint64
	SnapshotData() []byte
}

// RaftNode is the raft state machine handle the driver owns.
type RaftNode interface {
	Propose(ctx context.Context, data []byte) error
	ProposeConfChange(ctx context.Context, cc raftpb.ConfChange) error
	Status() etcdraft.Status
	Tick()
	Ready() <-chan etcdraft.Ready
	Step(ctx context.Context, msg raftpb.Message) error
	Advance()
	TransferLeadership(ctx context.Context, lead, transferee uint64)
	ApplyConfChange(cc raftpb.ConfChange) *raftpb.ConfState
	Stop()

	ID() uint64
	ConfState() raftpb.ConfState
	SetConfState(cs raftpb.ConfState)

	Storage() WALStorage
}

// Transport delivers outbound raft messages to peers. Send never
// blocks the caller; undeliverable messages are dropped and raft
// recovers through retransmission.
type Transport interface {
	Send(msgs []raftpb.Message)
	AddPeer(nodeID uint64, addr string)
	RemovePeer(nodeID uint64)
	PeerCount() int
	Drain(timeout time.Duration)
}

// StateStore is the replicated application state the driver applies
// committed commands to.
type StateStore interface {
	Set(key string, value []byte) error
	Delete(key string) error
	Snapshot() ([]byte, error)
	Restore(data []byte) error
	AppliedIndex() uint64
	MarkApplied(index uint64) error
	Len() int
}
