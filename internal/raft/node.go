package raft

import (
	"context"
	"log/slog"
	"sync"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"quorumkv/internal/configuration"
	"quorumkv/internal/raft/ports"
)

// Node bundles the etcd raft state machine with its durable storage.
// It is a thin handle: the driving loop lives elsewhere and owns all
// calls to Ready/Advance.
type Node struct {
	id       uint64
	raftNode etcdraft.Node
	storage  *Storage

	mu        sync.RWMutex
	confState raftpb.ConfState
}

// NewNode opens the raft storage under rc.StorageDir and starts (or
// restarts) the raft state machine. applied is the index of the last
// entry whose effects are already durable in the application state, so
// raft only re-delivers committed entries past it.
func NewNode(rc *configuration.RaftConfigurationProperties, applied uint64, localAddr string) (*Node, error) {
	cfg, err := buildNode(rc, applied, localAddr)
	if err != nil {
		return nil, err
	}

	n := &Node{
		id:        rc.NodeID,
		raftNode:  cfg.raftNode,
		storage:   cfg.storage,
		confState: cfg.storage.ConfState(),
	}

	slog.Info("raft node created", "id", rc.NodeID, "applied", applied)
	return n, nil
}

func (n *Node) ID() uint64 { return n.id }

func (n *Node) Storage() ports.WALStorage { return n.storage }

func (n *Node) Status() etcdraft.Status { return n.raftNode.Status() }

func (n *Node) Tick() { n.raftNode.Tick() }

func (n *Node) Ready() <-chan etcdraft.Ready { return n.raftNode.Ready() }

func (n *Node) Advance() { n.raftNode.Advance() }

func (n *Node) Step(ctx context.Context, msg raftpb.Message) error {
	return n.raftNode.Step(ctx, msg)
}

func (n *Node) Propose(ctx context.Context, data []byte) error {
	return n.raftNode.Propose(ctx, data)
}

func (n *Node) ProposeConfChange(ctx context.Context, cc raftpb.ConfChange) error {
	return n.raftNode.ProposeConfChange(ctx, cc)
}

func (n *Node) ApplyConfChange(cc raftpb.ConfChange) *raftpb.ConfState {
	return n.raftNode.ApplyConfChange(cc)
}

func (n *Node) TransferLeadership(ctx context.Context, lead, transferee uint64) {
	n.raftNode.TransferLeadership(ctx, lead, transferee)
}

func (n *Node) ConfState() raftpb.ConfState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.confState
}

func (n *Node) SetConfState(cs raftpb.ConfState) {
	n.mu.Lock()
	n.confState = cs
	n.mu.Unlock()
}

func (n *Node) Stop() {
	n.raftNode.Stop()

	if err := n.storage.Close(); err != nil {
		slog.Error("failed to close raft storage", "error", err)
	}

	slog.Info("raft node stopped", "id", n.id)
}
