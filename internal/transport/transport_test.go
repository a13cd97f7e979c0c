package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/raft/v3/raftpb"
)

// Addresses below are never connected to: grpc.NewClient dials lazily
// and sends expire on their short timeout during Drain.

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr := New(1, 8, 20*time.Millisecond)
	t.Cleanup(func() { tr.Drain(100 * time.Millisecond) })
	return tr
}

func TestAddPeerRegistersSender(t *testing.T) {
	tr := newTestTransport(t)

	tr.AddPeer(2, "127.0.0.1:19021")
	tr.AddPeer(3, "127.0.0.1:19031")
	assert.Equal(t, 2, tr.PeerCount())
}

func TestAddPeerIgnoresSelfAndEmptyAddress(t *testing.T) {
	tr := newTestTransport(t)

	tr.AddPeer(1, "127.0.0.1:19011")
	tr.AddPeer(2, "")
	assert.Equal(t, 0, tr.PeerCount())
}

func TestAddPeerSameAddressIsIdempotent(t *testing.T) {
	tr := newTestTransport(t)

	tr.AddPeer(2, "127.0.0.1:19021")
	tr.AddPeer(2, "127.0.0.1:19021")
	assert.Equal(t, 1, tr.PeerCount())
}

func TestAddPeerNewAddressReplacesSender(t *testing.T) {
	tr := newTestTransport(t)

	tr.AddPeer(2, "127.0.0.1:19021")
	first := tr.senders[2]
	require.NotNil(t, first)

	tr.AddPeer(2, "127.0.0.1:19022")
	second := tr.senders[2]
	require.NotNil(t, second)

	assert.Equal(t, 1, tr.PeerCount())
	assert.NotSame(t, first, second)
	assert.Equal(t, "127.0.0.1:19022", second.addr)
}

func TestRemovePeerForgetsSender(t *testing.T) {
	tr := newTestTransport(t)

	tr.AddPeer(2, "127.0.0.1:19021")
	tr.RemovePeer(2)
	assert.Equal(t, 0, tr.PeerCount())

	tr.RemovePeer(2)
	assert.Equal(t, 0, tr.PeerCount())
}

func TestSendSkipsUnroutableMessages(t *testing.T) {
	tr := newTestTransport(t)
	tr.AddPeer(2, "127.0.0.1:19021")

	assert.NotPanics(t, func() {
		tr.Send([]raftpb.Message{
			{To: 0, Type: raftpb.MsgHeartbeat},
			{To: 1, Type: raftpb.MsgHeartbeat},
			{To: 9, Type: raftpb.MsgHeartbeat},
			{To: 2, Type: raftpb.MsgHeartbeat},
		})
	})
}

func TestSendQueueOverflowDropsInsteadOfBlocking(t *testing.T) {
	tr := New(1, 2, 20*time.Millisecond)
	defer tr.Drain(100 * time.Millisecond)
	tr.AddPeer(2, "127.0.0.1:19021")

	msgs := make([]raftpb.Message, 64)
	for i := range msgs {
		msgs[i] = raftpb.Message{To: 2, Type: raftpb.MsgApp, Index: uint64(i)}
	}

	done := make(chan struct{})
	go func() {
		tr.Send(msgs)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full peer queue")
	}
}

func TestDrainStopsAllSenders(t *testing.T) {
	tr := New(1, 8, 20*time.Millisecond)
	tr.AddPeer(2, "127.0.0.1:19021")
	tr.AddPeer(3, "127.0.0.1:19031")

	tr.Drain(200 * time.Millisecond)
	assert.Equal(t, 0, tr.PeerCount())

	// A drained transport drops everything without panicking.
	assert.NotPanics(t, func() {
		tr.Send([]raftpb.Message{{To: 2, Type: raftpb.MsgHeartbeat}})
	})
}

func TestSenderEnqueueAfterStopIsDropped(t *testing.T) {
	s, err := newPeerSender(2, "127.0.0.1:19021", 4, 20*time.Millisecond)
	require.NoError(t, err)

	s.stop()
	assert.NotPanics(t, func() {
		s.enqueue(raftpb.Message{To: 2, Type: raftpb.MsgHeartbeat})
	})
	s.wait(time.Now().Add(100 * time.Millisecond))
}
