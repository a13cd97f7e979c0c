package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	etcdraft "go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"

	"quorumkv/internal/metrics"
)

func (d *Driver) maybeTriggerSnapshot(appliedIndex uint64) error {
	if d.snapCount == 0 {
		return nil
	}

	snapIndex := d.node.Storage().SnapshotIndex()
	if appliedIndex <= snapIndex {
		return nil
	}

	if (appliedIndex - snapIndex) >= d.snapCount {
		slog.Debug("snapshot threshold reached",
			"applied", appliedIndex,
			"snap_index", snapIndex,
			"snap_count", d.snapCount,
		)
		return d.triggerSnapshot(appliedIndex, nil)
	}

	return nil
}

func (d *Driver) triggerSnapshot(appliedIndex uint64, confState *raftpb.ConfState) error {
	if appliedIndex == 0 {
		return nil
	}

	start := time.Now()

	data, err := d.store.Snapshot()
	if err != nil {
		return fmt.Errorf("get snapshot data: %w", err)
	}

	if len(data) == 0 {
		slog.Debug("no application data to snapshot", "applied", appliedIndex)
		return nil
	}

	snap, err := d.node.Storage().CreateSnapshot(appliedIndex, confState, data)
	if err != nil {
		if errors.Is(err, etcdraft.ErrSnapOutOfDate) {
			slog.Debug("snapshot already exists", "index", appliedIndex)
			return nil
		}
		return fmt.Errorf("create snapshot: %w", err)
	}

	if err := d.node.Storage().SaveSnapshot(snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	compactIndex := uint64(1)
	if appliedIndex > d.snapCount {
		compactIndex = appliedIndex - d.snapCount
	}

	if err := d.node.Storage().Compact(compactIndex); err != nil {
		slog.Warn("compact failed", "error", err)
	}

	metrics.RaftSnapshotsTotal.Inc()
	metrics.RaftSnapshotDuration.Observe(time.Since(start).Seconds())
	metrics.StorageSnapshotSize.Set(float64(len(data)))

	slog.Info("took snapshot",
		"index", snap.Metadata.Index,
		"term", snap.Metadata.Term,
		"compact_index", compactIndex,
		"data_size", len(data),
	)

	return nil
}
