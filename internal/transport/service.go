package transport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"quorumkv/internal/configuration"
	"quorumkv/internal/metrics"
	kvpb "quorumkv/internal/transport/gen/kv"
	raftpeerpb "quorumkv/internal/transport/gen/raftpeer"
)

// Service runs the two gRPC listeners: one for raft peer traffic, one
// for the client key-value API.
type Service struct {
	network              string
	address              string
	clientPort           string
	raftPort             string
	timeout              time.Duration
	maxConcurrentStreams uint32

	kvServer   kvpb.KVServiceServer
	raftServer raftpeerpb.RaftTransportServer

	RaftServer   *grpc.Server
	ClientServer *grpc.Server
}

func NewService(tc *configuration.TransportConfigurationProperties, kvServer kvpb.KVServiceServer, raftServer raftpeerpb.RaftTransportServer) *Service {
	timeout := tc.TimeoutDuration()
	if timeout < time.Second {
		slog.Warn("transport timeout below 1s, clamping to 1s", "configured", timeout)
		timeout = time.Second
	}

	return &Service{
		network:              tc.Network,
		address:              tc.Address,
		clientPort:           tc.ClientPort,
		raftPort:             tc.RaftPort,
		timeout:              timeout,
		maxConcurrentStreams: tc.MaxConcurrentStreams,
		kvServer:             kvServer,
		raftServer:           raftServer,
	}
}

func (ts *Service) StartRaftServer() (net.Listener, error) {
	raftLis, err := net.Listen(ts.network, net.JoinHostPort(ts.address, ts.raftPort))
	if err != nil {
		return nil, err
	}

	ts.RaftServer = grpc.NewServer(ts.serverOptions()...)
	raftpeerpb.RegisterRaftTransportServer(ts.RaftServer, ts.raftServer)
	reflection.Register(ts.RaftServer)

	slog.Info("transport listening for raft", "Raft_Addr", raftLis.Addr())
	go func() {
		if err := ts.RaftServer.Serve(raftLis); err != nil {
			slog.Error("failed to serve raft listener", "Error", err)
		}
	}()

	return raftLis, nil
}

func (ts *Service) StartClientServer() (net.Listener, error) {
	clientLis, err := net.Listen(ts.network, net.JoinHostPort(ts.address, ts.clientPort))
	if err != nil {
		return nil, err
	}

	ts.ClientServer = grpc.NewServer(ts.serverOptions()...)
	kvpb.RegisterKVServiceServer(ts.ClientServer, ts.kvServer)
	reflection.Register(ts.ClientServer)

	slog.Info("transport listening for client", "Client_Addr", clientLis.Addr())
	go func() {
		if err := ts.ClientServer.Serve(clientLis); err != nil {
			slog.Error("failed to serve client listener", "Error", err)
		}
	}()

	return clientLis, nil
}

// StopClientServer drains the client listener, finishing in-flight
// RPCs. Called before consensus shutdown so no new proposals arrive
// while the node drains.
func (ts *Service) StopClientServer() {
	if ts.ClientServer != nil {
		ts.ClientServer.GracefulStop()
	}
}

// StopRaftServer drains the peer listener. Called after consensus
// shutdown; peers need it up while leadership hands off.
func (ts *Service) StopRaftServer() {
	if ts.RaftServer != nil {
		ts.RaftServer.GracefulStop()
	}
}

func (ts *Service) serverOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxConcurrentStreams(ts.maxConcurrentStreams),
		grpc.ChainUnaryInterceptor(
			timeoutInterceptor(ts.timeout),
			metrics.UnaryServerInterceptor(),
		),
	}
}

func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return handler(ctx, req)
	}
}
