package endpoint

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"quorumkv/internal/command"
	"quorumkv/internal/metrics"
	"quorumkv/internal/raft/driver"
	kvpb "quorumkv/internal/transport/gen/kv"
)

// Proposer submits a command for replication through consensus.
type Proposer interface {
	Propose(ctx context.Context, cmd command.Command) error
}

// Reader serves reads from the local replica state.
type Reader interface {
	Get(key string) ([]byte, bool)
}

// KVServer is the client-facing API. Writes go through the proposer
// and are acknowledged once accepted for replication; reads are served
// from local state and may trail the leader.
type KVServer struct {
	kvpb.UnimplementedKVServiceServer
	proposer Proposer
	store    Reader
}

func NewKVServer(proposer Proposer, store Reader) *KVServer {
	return &KVServer{proposer: proposer, store: store}
}

func (s *KVServer) Set(ctx context.Context, req *kvpb.SetRequest) (*kvpb.SetResponse, error) {
	start := time.Now()

	if !validToken(req.GetKey()) {
		metrics.CommandsTotal.WithLabelValues("set", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "key must be a single non-empty token")
	}
	if !validToken(req.GetValue()) {
		metrics.CommandsTotal.WithLabelValues("set", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "value must be a single non-empty token")
	}

	if err := s.proposer.Propose(ctx, command.Set(req.GetKey(), req.GetValue())); err != nil {
		metrics.CommandsTotal.WithLabelValues("set", "error").Inc()
		return nil, proposeError(err)
	}

	metrics.CommandsTotal.WithLabelValues("set", "ok").Inc()
	metrics.CommandDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	return &kvpb.SetResponse{Success: true}, nil
}

func (s *KVServer) Get(ctx context.Context, req *kvpb.GetRequest) (*kvpb.GetResponse, error) {
	start := time.Now()

	if req.GetKey() == "" {
		metrics.CommandsTotal.WithLabelValues("get", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "key must not be empty")
	}

	value, found := s.store.Get(req.GetKey())

	metrics.CommandsTotal.WithLabelValues("get", "ok").Inc()
	metrics.CommandDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	return &kvpb.GetResponse{Value: string(value), Found: found}, nil
}

func (s *KVServer) Delete(ctx context.Context, req *kvpb.DeleteRequest) (*kvpb.DeleteResponse, error) {
	start := time.Now()

	if !validToken(req.GetKey()) {
		metrics.CommandsTotal.WithLabelValues("delete", "invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "key must be a single non-empty token")
	}

	if err := s.proposer.Propose(ctx, command.Delete(req.GetKey())); err != nil {
		metrics.CommandsTotal.WithLabelValues("delete", "error").Inc()
		return nil, proposeError(err)
	}

	metrics.CommandsTotal.WithLabelValues("delete", "ok").Inc()
	metrics.CommandDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	return &kvpb.DeleteResponse{Success: true}, nil
}

// validToken reports whether s survives the textual command encoding
// unchanged. The grammar has no escaping, so keys and values must be
// single whitespace-free tokens.
func validToken(s string) bool {
	fields := strings.Fields(s)
	return len(fields) == 1 && fields[0] == s
}

func proposeError(err error) error {
	switch {
	case errors.Is(err, driver.ErrOverloaded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, driver.ErrNoLeader), errors.Is(err, driver.ErrShuttingDown):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "propose: %v", err)
	}
}
