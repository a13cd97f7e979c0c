package raft

import (
	"fmt"
	"log/slog"
	"strings"

	etcdraft "go.etcd.io/raft/v3"

	"quorumkv/internal/configuration"
)

type builtNode struct {
	storage  *Storage
	raftNode etcdraft.Node
}

func buildNode(rc *configuration.RaftConfigurationProperties, applied uint64, localAddr string) (*builtNode, error) {
	store, err := OpenStorage(rc.StorageDir, rc.Wal.NoSync)
	if err != nil {
		return nil, fmt.Errorf("open raft storage: %w", err)
	}
	slog.Debug("opened raft storage", "dir", rc.StorageDir)

	etcdCfg := rc.Etcd
	electionTick := 10
	if etcdCfg.ElectionTick != 0 {
		electionTick = etcdCfg.ElectionTick
	}
	heartbeatTick := 1
	if etcdCfg.HeartbeatTick != 0 {
		heartbeatTick = etcdCfg.HeartbeatTick
	}
	maxSizePerMsg := uint64(1024 * 1024)
	if etcdCfg.MaxSizePerMsg != 0 {
		maxSizePerMsg = etcdCfg.MaxSizePerMsg
	}
	maxInflight := 256
	if etcdCfg.MaxInflightMsgs != 0 {
		maxInflight = etcdCfg.MaxInflightMsgs
	}
	maxUncommitted := uint64(1 << 30)
	if etcdCfg.MaxUncommittedEntriesSize != 0 {
		maxUncommitted = etcdCfg.MaxUncommittedEntriesSize
	}

	// Raft may have committed past what the application durably applied.
	// Applied tells raft where redelivery must resume; it can never run
	// ahead of the commit recorded in the hard state.
	if hsCommit := store.HardState().Commit; applied > hsCommit {
		slog.Warn("applied index ahead of hardstate commit, clamping",
			"applied", applied,
			"commit", hsCommit,
		)
		applied = hsCommit
	}
	if snapIdx := store.SnapshotIndex(); applied < snapIdx {
		applied = snapIdx
	}

	c := &etcdraft.Config{
		ID:                        rc.NodeID,
		ElectionTick:              electionTick,
		HeartbeatTick:             heartbeatTick,
		Storage:                   store.RaftStorage(),
		MaxSizePerMsg:             maxSizePerMsg,
		MaxInflightMsgs:           maxInflight,
		MaxUncommittedEntriesSize: maxUncommitted,
		Logger:                    NewSlogRaftLogger(),
		Applied:                   applied,
	}

	peersList := buildPeersList(rc.NodeID, localAddr, rc.Peers)
	raftNode, err := startOrRestartNode(c, store, peersList)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("start raft node: %w", err)
	}

	return &builtNode{
		storage:  store,
		raftNode: raftNode,
	}, nil
}

func startOrRestartNode(c *etcdraft.Config, s *Storage, peersList []etcdraft.Peer) (etcdraft.Node, error) {
	isEmpty, err := s.IsEmpty()
	if err != nil {
		return nil, fmt.Errorf("check storage state: %w", err)
	}

	if isEmpty {
		slog.Debug("starting new raft node", "peers", formatPeers(peersList))
		return etcdraft.StartNode(c, peersList), nil
	}

	slog.Debug("restarting raft node from saved state")
	return etcdraft.RestartNode(c), nil
}

func buildPeersList(localID uint64, localAddr string, peers map[uint64]string) []etcdraft.Peer {
	peerList := make([]etcdraft.Peer, 0, len(peers)+1)

	peerList = append(peerList, etcdraft.Peer{
		ID:      localID,
		Context: []byte(localAddr),
	})

	for id, addr := range peers {
		if id == localID {
			continue
		}
		peerList = append(peerList, etcdraft.Peer{
			ID:      id,
			Context: []byte(addr),
		})
	}

	return peerList
}

func formatPeers(peers []etcdraft.Peer) string {
	strs := make([]string, 0, len(peers))
	for _, p := range peers {
		if len(p.Context) > 0 {
			strs = append(strs, fmt.Sprintf("%d=%s", p.ID, string(p.Context)))
		} else {
			strs = append(strs, fmt.Sprintf("%d", p.ID))
		}
	}
	return strings.Join(strs, ",")
}
