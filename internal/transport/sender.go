package transport

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/raft/v3/raftpb"
	"google.golang.org/grpc"

	"quorumkv/internal/metrics"
	raftpeerpb "quorumkv/internal/transport/gen/raftpeer"
)

// peerSender owns the outbound path to a single peer: one connection,
// one bounded queue, one goroutine delivering in order. A full queue
// drops the message; raft retransmits whatever mattered.
type peerSender struct {
	peerID uint64
	addr   string

	conn   *grpc.ClientConn
	client raftpeerpb.RaftTransportClient

	queue   chan raftpb.Message
	timeout time.Duration

	stopping atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func newPeerSender(peerID uint64, addr string, queueSize int, timeout time.Duration) (*peerSender, error) {
	conn, err := dialPeer(addr)
	if err != nil {
		return nil, err
	}

	s := &peerSender{
		peerID:  peerID,
		addr:    addr,
		conn:    conn,
		client:  raftpeerpb.NewRaftTransportClient(conn),
		queue:   make(chan raftpb.Message, queueSize),
		timeout: timeout,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	go s.sendLoop()
	return s, nil
}

// enqueue hands a message to the sender without blocking the caller.
func (s *peerSender) enqueue(m raftpb.Message) {
	if s.stopping.Load() {
		return
	}
	select {
	case s.queue <- m:
	default:
		metrics.RaftMessagesDropped.WithLabelValues(strconv.FormatUint(s.peerID, 10)).Inc()
		slog.Debug("peer send queue full, dropping message",
			"peer", s.peerID, "type", m.Type.String())
	}
}

func (s *peerSender) sendLoop() {
	defer close(s.done)

	for {
		select {
		case <-s.stopCh:
			// Flush what is already queued, then exit.
			for {
				select {
				case m := <-s.queue:
					s.send(m)
				default:
					return
				}
			}
		case m := <-s.queue:
			s.send(m)
		}
	}
}

func (s *peerSender) send(m raftpb.Message) {
	data, err := m.Marshal()
	if err != nil {
		slog.Error("failed to marshal raft message", "peer", s.peerID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	_, err = s.client.SendRaftMessage(ctx, &raftpeerpb.RaftMessage{Data: data})
	cancel()
	if err != nil {
		metrics.RaftMessageErrors.WithLabelValues(strconv.FormatUint(s.peerID, 10)).Inc()
		slog.Debug("failed to send raft message",
			"peer", s.peerID, "addr", s.addr, "type", m.Type.String(), "error", err)
	}
}

// stop makes the sender refuse new messages and tells the loop to
// flush and exit. It does not wait; use wait for that.
func (s *peerSender) stop() {
	s.stopping.Store(true)
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// wait blocks until the send loop has exited or the deadline passes,
// then closes the connection.
func (s *peerSender) wait(deadline time.Time) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-s.done:
	case <-timer.C:
		slog.Warn("timed out waiting for peer sender to drain", "peer", s.peerID)
	}
	if err := s.conn.Close(); err != nil {
		slog.Debug("closing peer connection", "peer", s.peerID, "error", err)
	}
}
