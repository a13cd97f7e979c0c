package driver

import (
	"log/slog"
	"time"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"quorumkv/internal/metrics"
)

func (d *Driver) run() {
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			slog.Debug("consensus loop stopping", "node_id", d.node.ID())
			return

		case <-ticker.C:
			d.node.Tick()

		case req := <-d.stepInbox:
			err := d.node.Step(req.ctx, req.msg)
			select {
			case req.resp <- err:
			default:
			}

		case rd, ok := <-d.node.Ready():
			if !ok {
				slog.Warn("raft ready channel closed", "node_id", d.node.ID())
				return
			}
			if err := d.processReady(rd); err != nil {
				slog.Error("failed to process ready, stopping consensus loop",
					"node_id", d.node.ID(),
					"error", err,
				)
				return
			}
		}
	}
}

// processReady handles one Ready batch in the order raft requires:
// persist first, then send, then apply, then Advance.
func (d *Driver) processReady(rd etcdraft.Ready) error {
	slog.Debug("processing ready",
		"node_id", d.node.ID(),
		"entries", len(rd.Entries),
		"committed", len(rd.CommittedEntries),
		"messages", len(rd.Messages),
		"has_snapshot", !etcdraft.IsEmptySnap(rd.Snapshot),
	)

	start := time.Now()
	if err := d.node.Storage().SaveReady(rd); err != nil {
		return err
	}

	metrics.WALWriteDuration.Observe(time.Since(start).Seconds())
	metrics.WALWritesTotal.Add(float64(len(rd.Entries)))

	d.sendMessages(rd.Messages)

	if !etcdraft.IsEmptySnap(rd.Snapshot) {
		if err := d.applyLeaderSnapshot(rd.Snapshot); err != nil {
			return err
		}
	}

	if err := d.applyEntries(rd.CommittedEntries); err != nil {
		return err
	}

	d.node.Advance()

	if d.snapCount > 0 {
		if err := d.maybeTriggerSnapshot(d.LastApplied()); err != nil {
			slog.Warn("failed to trigger snapshot", "node_id", d.node.ID(), "error", err)
		}
	}

	return nil
}

func (d *Driver) sendMessages(msgs []raftpb.Message) {
	if len(msgs) == 0 {
		return
	}

	for _, msg := range msgs {
		metrics.RaftMessagesTotal.WithLabelValues("sent", msg.Type.String()).Inc()
	}

	d.transport.Send(msgs)
}

func (d *Driver) runMetricsCollector() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCtx.Done():
			return
		case <-ticker.C:
			d.UpdateMetrics()
		}
	}
}
