package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RaftIsLeader = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "is_leader",
		Help:      "Whether this node is the Raft leader (1=leader, 0=follower)",
	})

	RaftTerm = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "term",
		Help:      "Current Raft term",
	})

	RaftCommitIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "commit_index",
		Help:      "Current Raft commit index",
	})

	RaftAppliedIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "applied_index",
		Help:      "Last applied Raft index",
	})

	RaftSnapshotIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "snapshot_index",
		Help:      "Last snapshot index",
	})

	RaftPeersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "peers_total",
		Help:      "Number of Raft peers",
	})

	RaftMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "messages_total",
		Help:      "Total Raft messages sent/received",
	}, []string{"direction", "type"})

	RaftMessageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "message_errors_total",
		Help:      "Total Raft message errors",
	}, []string{"peer_id"})

	RaftMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "messages_dropped_total",
		Help:      "Total Raft messages dropped on full peer queues",
	}, []string{"peer_id"})

	RaftProposalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "proposals_total",
		Help:      "Total proposals submitted",
	})

	RaftProposalsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "proposals_failed_total",
		Help:      "Total failed proposals",
	})

	RaftSnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "snapshots_total",
		Help:      "Total snapshots taken",
	})

	RaftSnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quorumkv",
		Subsystem: "raft",
		Name:      "snapshot_duration_seconds",
		Help:      "Time to create snapshot",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "command",
		Name:      "total",
		Help:      "Total commands processed",
	}, []string{"type", "status"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quorumkv",
		Subsystem: "command",
		Name:      "duration_seconds",
		Help:      "Command processing duration",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"type"})

	ProposalsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "command",
		Name:      "proposals_in_flight",
		Help:      "Proposals submitted but not yet applied",
	})

	StorageKeysTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "storage",
		Name:      "keys_total",
		Help:      "Total keys in storage",
	})

	StorageOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "storage",
		Name:      "operations_total",
		Help:      "Total storage operations",
	}, []string{"operation"})

	StorageSnapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quorumkv",
		Subsystem: "storage",
		Name:      "snapshot_size_bytes",
		Help:      "Size of last snapshot in bytes",
	})

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "Total gRPC requests",
	}, []string{"service", "method", "code"})

	GRPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quorumkv",
		Subsystem: "grpc",
		Name:      "request_duration_seconds",
		Help:      "gRPC request duration",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"service", "method"})

	WALWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quorumkv",
		Subsystem: "wal",
		Name:      "writes_total",
		Help:      "Total WAL writes",
	})

	WALWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quorumkv",
		Subsystem: "wal",
		Name:      "write_duration_seconds",
		Help:      "WAL write duration",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
	})

	WALSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quorumkv",
		Subsystem: "wal",
		Name:      "sync_duration_seconds",
		Help:      "WAL sync duration",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
	})
)
