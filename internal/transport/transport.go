// Package transport carries raft traffic between peers and serves the
// client-facing key-value API, both over gRPC.
package transport

import (
	"log/slog"
	"sync"
	"time"

	"go.etcd.io/raft/v3/raftpb"
)

// Transport routes outbound raft messages to per-peer senders. The
// peer table maps raft node ids to dialable addresses and changes only
// through configuration changes applied by the consensus driver.
type Transport struct {
	localID   uint64
	queueSize int
	timeout   time.Duration

	mu      sync.RWMutex
	senders map[uint64]*peerSender
}

func New(localID uint64, queueSize int, timeout time.Duration) *Transport {
	if queueSize <= 0 {
		queueSize = 4096
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Transport{
		localID:   localID,
		queueSize: queueSize,
		timeout:   timeout,
		senders:   make(map[uint64]*peerSender),
	}
}

// Send routes each message to its peer's queue. Messages to unknown
// peers or to the local node are dropped; raft handles redelivery.
func (t *Transport) Send(msgs []raftpb.Message) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range msgs {
		if m.To == 0 || m.To == t.localID {
			continue
		}
		sender, ok := t.senders[m.To]
		if !ok {
			slog.Debug("no sender registered for peer, dropping message",
				"peer", m.To, "type", m.Type.String())
			continue
		}
		sender.enqueue(m)
	}
}

// AddPeer registers a peer address and starts its sender. Registering
// an already known peer with the same address is a no-op; a new
// address replaces the old sender.
func (t *Transport) AddPeer(nodeID uint64, addr string) {
	if nodeID == t.localID || addr == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.senders[nodeID]; ok {
		if existing.addr == addr {
			return
		}
		existing.stop()
		go existing.wait(time.Now().Add(t.timeout))
		delete(t.senders, nodeID)
	}

	sender, err := newPeerSender(nodeID, addr, t.queueSize, t.timeout)
	if err != nil {
		slog.Error("failed to set up peer sender", "peer", nodeID, "addr", addr, "error", err)
		return
	}
	t.senders[nodeID] = sender
	slog.Info("peer registered", "peer", nodeID, "addr", addr)
}

// RemovePeer stops the peer's sender and forgets its address.
func (t *Transport) RemovePeer(nodeID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sender, ok := t.senders[nodeID]
	if !ok {
		return
	}
	delete(t.senders, nodeID)

	sender.stop()
	go sender.wait(time.Now().Add(t.timeout))
	slog.Info("peer removed", "peer", nodeID)
}

func (t *Transport) PeerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.senders)
}

// Drain stops all senders, lets each flush its queue within the shared
// deadline, and closes the connections. The transport is unusable
// afterwards.
func (t *Transport) Drain(timeout time.Duration) {
	t.mu.Lock()
	senders := make([]*peerSender, 0, len(t.senders))
	for id, s := range t.senders {
		senders = append(senders, s)
		delete(t.senders, id)
	}
	t.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for _, s := range senders {
		s.stop()
	}
	for _, s := range senders {
		s.wait(deadline)
	}
}
