// Package driver runs the consensus loop. A single goroutine owns the
// raft node: it ticks it, steps inbound messages handed over through an
// inbox, and processes Ready batches in the order raft requires. All
// other goroutines talk to the driver through its methods, never to the
// raft node directly.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
	"go.etcd.io/raft/v3/tracker"

	"quorumkv/internal/command"
	"quorumkv/internal/configuration"
	"quorumkv/internal/metrics"
	"quorumkv/internal/raft/ports"
)

type Driver struct {
	node      ports.RaftNode
	transport ports.Transport
	store     ports.StateStore

	stopCh    chan struct{}
	stoppedWg sync.WaitGroup

	shuttingDown atomic.Bool

	// proposals accepted but not yet seen in a committed entry
	inFlight     atomic.Int64
	maxProposals int64

	snapCount    uint64
	tickInterval time.Duration
	drainTimeout time.Duration

	stepInbox  chan stepRequest
	stopCtx    context.Context
	stopCancel context.CancelFunc
}

type stepRequest struct {
	ctx  context.Context
	msg  raftpb.Message
	resp chan error
}

type Config struct {
	TickInterval  time.Duration
	SnapCount     uint64
	StepInboxSize uint64
	MaxProposals  int64
	DrainTimeout  time.Duration
}

func NewConfigFromProperties(rc *configuration.RaftConfigurationProperties) Config {
	cfg := Config{
		TickInterval:  rc.TickDuration(),
		SnapCount:     rc.SnapCount,
		StepInboxSize: rc.StepInboxSize,
		MaxProposals:  rc.MaxProposals,
		DrainTimeout:  rc.DrainDuration(),
	}

	if cfg.TickInterval == 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.StepInboxSize == 0 {
		cfg.StepInboxSize = 1024
	}
	if cfg.MaxProposals == 0 {
		cfg.MaxProposals = 4096
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 5 * time.Second
	}

	return cfg
}

func New(node ports.RaftNode, transport ports.Transport, store ports.StateStore, cfg Config) *Driver {
	stopCtx, stopCancel := context.WithCancel(context.Background())

	d := &Driver{
		node:      node,
		transport: transport,
		store:     store,

		stopCh: make(chan struct{}),

		maxProposals: cfg.MaxProposals,
		snapCount:    cfg.SnapCount,
		tickInterval: cfg.TickInterval,
		drainTimeout: cfg.DrainTimeout,

		stepInbox:  make(chan stepRequest, cfg.StepInboxSize),
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
	}

	slog.Info("consensus driver created",
		"node_id", node.ID(),
		"tick_interval", cfg.TickInterval,
		"snap_count", cfg.SnapCount,
		"max_proposals", cfg.MaxProposals,
	)

	return d
}

// Start recovers local state and launches the loop goroutines. A
// recovery failure aborts startup: raft was configured to resume
// redelivery after the snapshot index, so running without the snapshot
// contents would leave a silent gap in the state machine.
func (d *Driver) Start() error {
	if err := d.recoverState(); err != nil {
		return fmt.Errorf("recover state: %w", err)
	}

	d.stoppedWg.Add(2)

	go func() {
		defer d.stoppedWg.Done()
		d.run()
	}()

	go func() {
		defer d.stoppedWg.Done()
		d.runMetricsCollector()
	}()

	slog.Info("consensus driver started", "node_id", d.node.ID())
	return nil
}

// Stop shuts the driver down gracefully: new proposals are refused,
// leadership is handed off if held, committed entries already in flight
// get a bounded window to apply, and peer queues drain before the loop
// exits.
func (d *Driver) Stop() {
	slog.Info("initiating graceful shutdown", "node_id", d.node.ID())

	d.shuttingDown.Store(true)

	if d.IsLeader() {
		d.tryTransferLeadership()
	}

	d.waitForPendingApplies()
	d.transport.Drain(d.drainTimeout)

	d.stopCancel()
	close(d.stopCh)
	d.stoppedWg.Wait()

	d.node.Stop()

	slog.Info("consensus driver stopped", "node_id", d.node.ID())
}

// Propose submits an encoded command for replication. A nil return
// means the command was accepted for replication, not that it has
// committed; commitment follows asynchronously through the apply path.
func (d *Driver) Propose(ctx context.Context, cmd command.Command) error {
	if d.shuttingDown.Load() {
		return ErrShuttingDown
	}
	if d.node.Status().Lead == etcdraft.None {
		metrics.RaftProposalsFailed.Inc()
		return ErrNoLeader
	}
	if d.maxProposals > 0 && d.inFlight.Load() >= d.maxProposals {
		metrics.RaftProposalsFailed.Inc()
		return ErrOverloaded
	}

	if err := d.node.Propose(ctx, cmd.Encode()); err != nil {
		metrics.RaftProposalsFailed.Inc()
		return err
	}

	metrics.RaftProposalsTotal.Inc()
	metrics.ProposalsInFlight.Set(float64(d.inFlight.Add(1)))
	return nil
}

// Step hands an inbound peer message to the loop goroutine and waits
// for the verdict. It never fails because of concurrent access: the
// inbox serializes all Step calls onto the single loop goroutine.
func (d *Driver) Step(ctx context.Context, msg raftpb.Message) error {
	req := stepRequest{
		ctx:  ctx,
		msg:  msg,
		resp: make(chan error, 1),
	}

	select {
	case d.stepInbox <- req:
	case <-d.stopCtx.Done():
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) IsLeader() bool {
	return d.node.Status().RaftState == etcdraft.StateLeader
}

func (d *Driver) LeaderID() uint64 {
	return d.node.Status().Lead
}

func (d *Driver) NodeID() uint64 {
	return d.node.ID()
}

func (d *Driver) LastApplied() uint64 {
	return d.store.AppliedIndex()
}

func (d *Driver) tryTransferLeadership() {
	status := d.node.Status()
	if status.RaftState != etcdraft.StateLeader {
		return
	}

	var targetID uint64
	var maxMatch uint64

	for id, pr := range status.Progress {
		if id == d.node.ID() {
			continue
		}
		if pr.State == tracker.StateReplicate && pr.Match > maxMatch {
			maxMatch = pr.Match
			targetID = id
		}
	}

	if targetID == 0 {
		slog.Warn("no suitable target for leadership transfer", "node_id", d.node.ID())
		return
	}

	slog.Info("transferring leadership",
		"node_id", d.node.ID(),
		"target", targetID,
	)

	d.node.TransferLeadership(context.Background(), d.node.ID(), targetID)

	deadline := time.Now().Add(2 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		<-ticker.C
		if d.node.Status().RaftState != etcdraft.StateLeader {
			slog.Info("leadership transferred", "new_leader", d.node.Status().Lead)
			return
		}
	}

	slog.Warn("leadership transfer timed out", "node_id", d.node.ID())
}

func (d *Driver) waitForPendingApplies() {
	target := d.node.Status().Commit
	if d.LastApplied() >= target {
		return
	}

	slog.Debug("waiting for pending applies",
		"node_id", d.node.ID(),
		"current", d.LastApplied(),
		"target", target,
	)

	deadline := time.Now().Add(d.drainTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if d.LastApplied() >= target {
			return
		}
		<-ticker.C
	}

	slog.Warn("timed out waiting for pending applies",
		"applied", d.LastApplied(),
		"target", target,
	)
}

// releaseProposal frees one backpressure slot. Committed entries from
// peers drain the counter too; the floor at zero keeps that harmless.
func (d *Driver) releaseProposal() {
	for {
		cur := d.inFlight.Load()
		if cur == 0 {
			return
		}
		if d.inFlight.CompareAndSwap(cur, cur-1) {
			metrics.ProposalsInFlight.Set(float64(cur - 1))
			return
		}
	}
}

func (d *Driver) UpdateMetrics() {
	status := d.node.Status()

	if status.RaftState == etcdraft.StateLeader {
		metrics.RaftIsLeader.Set(1)
	} else {
		metrics.RaftIsLeader.Set(0)
	}

	metrics.RaftTerm.Set(float64(status.Term))
	metrics.RaftCommitIndex.Set(float64(status.Commit))
	metrics.RaftAppliedIndex.Set(float64(d.LastApplied()))
	metrics.RaftSnapshotIndex.Set(float64(d.node.Storage().SnapshotIndex()))

	confState := d.node.ConfState()
	metrics.RaftPeersTotal.Set(float64(len(confState.Voters) + len(confState.Learners)))
	metrics.StorageKeysTotal.Set(float64(d.store.Len()))
}
