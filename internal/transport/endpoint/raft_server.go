package endpoint

import (
	"context"
	"errors"

	etcdraftpb "go.etcd.io/raft/v3/raftpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"quorumkv/internal/metrics"
	raftpeerpb "quorumkv/internal/transport/gen/raftpeer"
)

// Stepper feeds an inbound raft message into the local state machine.
type Stepper interface {
	Step(ctx context.Context, m etcdraftpb.Message) error
}

// RaftServer receives raft messages from peers and steps them into the
// local node.
type RaftServer struct {
	raftpeerpb.UnimplementedRaftTransportServer
	stepper Stepper
}

func NewRaftServer(stepper Stepper) *RaftServer {
	return &RaftServer{stepper: stepper}
}

func (s *RaftServer) SendRaftMessage(ctx context.Context, req *raftpeerpb.RaftMessage) (*raftpeerpb.RaftMessageResponse, error) {
	var m etcdraftpb.Message
	if err := m.Unmarshal(req.GetData()); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "unmarshal raft message: %v", err)
	}

	metrics.RaftMessagesTotal.WithLabelValues("received", m.Type.String()).Inc()

	if err := s.stepper.Step(ctx, m); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.Errorf(codes.DeadlineExceeded, "raft step: %v", err)
		}
		return nil, status.Errorf(codes.FailedPrecondition, "raft step: %v", err)
	}

	return &raftpeerpb.RaftMessageResponse{Ok: true}, nil
}
