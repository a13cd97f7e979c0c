package driver

import (
	"errors"
	"testing"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"quorumkv/internal/command"
)

// orderWAL and orderTransport record the order of interactions so the
// persist-before-send-before-advance contract can be asserted.
type orderWAL struct {
	*fakeWAL
	log *[]string
}

func (w *orderWAL) SaveReady(rd etcdraft.Ready) error {
	*w.log = append(*w.log, "save")
	return w.fakeWAL.SaveReady(rd)
}

type orderTransport struct {
	*fakeTransport
	log *[]string
}

func (t *orderTransport) Send(msgs []raftpb.Message) {
	*t.log = append(*t.log, "send")
	t.fakeTransport.Send(msgs)
}

func TestProcessReady_PersistsBeforeSendingAndAdvancing(t *testing.T) {
	var order []string

	w := &orderWAL{fakeWAL: &fakeWAL{}, log: &order}
	tr := &orderTransport{fakeTransport: &fakeTransport{}, log: &order}
	n := &fakeNode{id: 1, wal: w}
	store := newFakeStore()
	d := &Driver{node: n, transport: tr, store: store}

	rd := etcdraft.Ready{
		Entries: []raftpb.Entry{entryAt(1, command.Set("k", "v"))},
		Messages: []raftpb.Message{
			{Type: raftpb.MsgApp, To: 2},
		},
		CommittedEntries: []raftpb.Entry{entryAt(1, command.Set("k", "v"))},
	}

	if err := d.processReady(rd); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if len(order) != 2 || order[0] != "save" || order[1] != "send" {
		t.Fatalf("order = %v, want [save send]", order)
	}
	if !n.AdvanceCalled {
		t.Fatalf("Advance not called")
	}
	if got := string(store.data["k"]); got != "v" {
		t.Fatalf("committed entry not applied, k = %q", got)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(tr.sent))
	}
}

func TestProcessReady_SaveFailureAbortsBatch(t *testing.T) {
	sentinel := errors.New("disk full")
	w := &fakeWAL{SaveReadyErr: sentinel}
	tr := &fakeTransport{}
	n := &fakeNode{id: 1, wal: w}
	d := &Driver{node: n, transport: tr, store: newFakeStore()}

	rd := etcdraft.Ready{
		Messages: []raftpb.Message{{Type: raftpb.MsgApp, To: 2}},
	}

	if err := d.processReady(rd); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if len(tr.sent) != 0 {
		t.Fatalf("messages must not be sent when persistence failed")
	}
	if n.AdvanceCalled {
		t.Fatalf("Advance must not be called when persistence failed")
	}
}

func TestProcessReady_InstallsLeaderSnapshot(t *testing.T) {
	w := &fakeWAL{}
	n := &fakeNode{id: 1, wal: w}
	store := newFakeStore()
	d := &Driver{node: n, transport: &fakeTransport{}, store: store}

	rd := etcdraft.Ready{
		Snapshot: raftpb.Snapshot{
			Metadata: raftpb.SnapshotMetadata{Index: 50, Term: 4},
			Data:     []byte("blob"),
		},
	}

	if err := d.processReady(rd); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(store.Restored) != 1 {
		t.Fatalf("snapshot not installed into store")
	}
	if store.applied != 50 {
		t.Fatalf("applied = %d, want 50", store.applied)
	}
}
