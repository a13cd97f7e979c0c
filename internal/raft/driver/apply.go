package driver

import (
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/raft/v3/raftpb"

	"quorumkv/internal/command"
	"quorumkv/internal/metrics"
	"quorumkv/internal/storage"
)

func (d *Driver) applyEntries(entries []raftpb.Entry) error {
	if len(entries) > 0 {
		slog.Debug("applying committed entries",
			"node_id", d.node.ID(),
			"count", len(entries),
		)
	}

	for _, entry := range entries {
		switch entry.Type {
		case raftpb.EntryConfChange:
			d.applyConfChange(entry)

		case raftpb.EntryNormal:
			if err := d.applyNormalEntry(entry); err != nil {
				return err
			}

		default:
			slog.Warn("ignoring unsupported raft entry type",
				"node_id", d.node.ID(),
				"index", entry.Index,
				"type", entry.Type,
			)
		}

		if err := d.store.MarkApplied(entry.Index); err != nil {
			return fmt.Errorf("mark applied %d: %w", entry.Index, err)
		}
	}

	return nil
}

// applyNormalEntry applies one committed command to the state store.
// Entries at or below the durable applied index were already applied in
// a previous life of this process and are skipped, which is what makes
// redelivery after a restart harmless. A storage failure is fatal: the
// entry is committed cluster-wide and a node that cannot apply it can
// no longer serve consistent state.
func (d *Driver) applyNormalEntry(entry raftpb.Entry) error {
	if len(entry.Data) == 0 {
		return nil
	}

	d.releaseProposal()

	if entry.Index <= d.store.AppliedIndex() {
		slog.Debug("skipping already applied entry",
			"node_id", d.node.ID(),
			"index", entry.Index,
			"applied", d.store.AppliedIndex(),
		)
		return nil
	}

	cmd, ok := command.Decode(entry.Data)
	if !ok {
		// Malformed log data is dropped, never retried: every replica
		// drops it identically so the state machines stay in lockstep.
		metrics.CommandsTotal.WithLabelValues("apply", "malformed").Inc()
		slog.Debug("dropping malformed command",
			"node_id", d.node.ID(),
			"index", entry.Index,
			"data_len", len(entry.Data),
		)
		return nil
	}

	start := time.Now()
	err := d.applyCommand(cmd)
	metrics.CommandDuration.WithLabelValues("apply").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CommandsTotal.WithLabelValues("apply", "error").Inc()
		if storage.IsStorageError(err) {
			return fmt.Errorf("apply entry %d: %w", entry.Index, err)
		}
		slog.Error("command apply failed",
			"node_id", d.node.ID(),
			"index", entry.Index,
			"error", err,
		)
		return nil
	}

	metrics.CommandsTotal.WithLabelValues("apply", "success").Inc()
	return nil
}

func (d *Driver) applyCommand(cmd command.Command) error {
	switch cmd.Op {
	case command.OpSet:
		return d.store.Set(cmd.Key, []byte(cmd.Value))
	case command.OpDelete:
		return d.store.Delete(cmd.Key)
	default:
		return fmt.Errorf("unknown command op %d", cmd.Op)
	}
}

func (d *Driver) applyConfChange(entry raftpb.Entry) {
	var cc raftpb.ConfChange
	if err := cc.Unmarshal(entry.Data); err != nil {
		slog.Error("failed to unmarshal conf change",
			"node_id", d.node.ID(),
			"index", entry.Index,
			"error", err,
		)
		return
	}

	confState := d.node.ApplyConfChange(cc)
	if confState != nil {
		d.node.SetConfState(*confState)
		if err := d.node.Storage().SaveConfState(*confState); err != nil {
			slog.Error("failed to persist confState",
				"node_id", d.node.ID(),
				"error", err,
			)
		}
	}

	switch cc.Type {
	case raftpb.ConfChangeAddNode, raftpb.ConfChangeAddLearnerNode:
		if cc.NodeID != d.node.ID() && len(cc.Context) > 0 {
			d.transport.AddPeer(cc.NodeID, string(cc.Context))
		}
	case raftpb.ConfChangeRemoveNode:
		if cc.NodeID != d.node.ID() {
			d.transport.RemovePeer(cc.NodeID)
		}
	}

	slog.Debug("applied conf change",
		"node_id", d.node.ID(),
		"type", cc.Type,
		"target_node", cc.NodeID,
		"index", entry.Index,
	)
}

// applyLeaderSnapshot installs a snapshot received from the leader into
// the state store, replacing whatever the store held.
func (d *Driver) applyLeaderSnapshot(snap raftpb.Snapshot) error {
	slog.Info("installing snapshot from leader",
		"node_id", d.node.ID(),
		"index", snap.Metadata.Index,
		"term", snap.Metadata.Term,
		"data_size", len(snap.Data),
	)

	if len(snap.Data) > 0 {
		if err := d.store.Restore(snap.Data); err != nil {
			return fmt.Errorf("restore from leader snapshot: %w", err)
		}
	} else {
		slog.Warn("leader snapshot has no data, skipping state restore",
			"node_id", d.node.ID(),
			"index", snap.Metadata.Index,
		)
	}

	d.node.SetConfState(snap.Metadata.ConfState)

	if err := d.store.MarkApplied(snap.Metadata.Index); err != nil {
		return fmt.Errorf("mark applied after snapshot: %w", err)
	}

	return nil
}

// recoverState runs before the loop starts. If the raft log was
// compacted past what the store durably applied, the gap can only be
// closed from the snapshot; everything after it raft redelivers itself.
func (d *Driver) recoverState() error {
	snapIndex := d.node.Storage().SnapshotIndex()
	applied := d.store.AppliedIndex()

	slog.Info("recovering state",
		"node_id", d.node.ID(),
		"snapshot_index", snapIndex,
		"applied_index", applied,
	)

	if snapIndex <= applied {
		return nil
	}

	data := d.node.Storage().SnapshotData()
	if len(data) == 0 {
		slog.Warn("snapshot ahead of applied index but has no data",
			"node_id", d.node.ID(),
			"snapshot_index", snapIndex,
		)
		return nil
	}

	if err := d.store.Restore(data); err != nil {
		return fmt.Errorf("restore from local snapshot: %w", err)
	}
	if err := d.store.MarkApplied(snapIndex); err != nil {
		return fmt.Errorf("mark applied after recovery: %w", err)
	}

	slog.Info("restored state from local snapshot",
		"node_id", d.node.ID(),
		"index", snapIndex,
		"keys", d.store.Len(),
	)

	return nil
}
