package main

import (
	"fmt"
	"net"

	"quorumkv/internal/configuration"
	"quorumkv/internal/metrics"
	"quorumkv/internal/raft"
	"quorumkv/internal/raft/driver"
	"quorumkv/internal/storage"
	"quorumkv/internal/transport"
	"quorumkv/internal/transport/endpoint"
)

// App wires the storage engine, raft node, peer transport, consensus
// driver and the serving surfaces together.
type App struct {
	Engine    *storage.Engine
	Node      *raft.Node
	Peers     *transport.Transport
	Driver    *driver.Driver
	Transport *transport.Service
	Metrics   *metrics.Server
}

func buildApp(cfg *configuration.Properties) (*App, error) {
	engine, err := storage.Open(cfg.Storage.Dir, cfg.Storage.Wal.NoSync)
	if err != nil {
		return nil, fmt.Errorf("open storage engine: %w", err)
	}

	localRaftAddr := net.JoinHostPort(cfg.Transport.Address, cfg.Transport.RaftPort)
	node, err := raft.NewNode(&cfg.Raft, engine.AppliedIndex(), localRaftAddr)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("start raft node: %w", err)
	}

	peers := transport.New(cfg.Raft.NodeID, cfg.Raft.SendQueueSize, cfg.Transport.TimeoutDuration())
	for id, addr := range cfg.Raft.Peers {
		peers.AddPeer(id, addr)
	}

	drv := driver.New(node, peers, engine, driver.NewConfigFromProperties(&cfg.Raft))

	svc := transport.NewService(
		&cfg.Transport,
		endpoint.NewKVServer(drv, engine),
		endpoint.NewRaftServer(drv),
	)

	return &App{
		Engine:    engine,
		Node:      node,
		Peers:     peers,
		Driver:    drv,
		Transport: svc,
		Metrics:   metrics.NewServer(cfg.Transport.MetricsAddr()),
	}, nil
}
