package integration

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	kvpb "quorumkv/internal/transport/gen/kv"
)

func TestClientSetGetDeleteOverGRPC(t *testing.T) {
	tc := NewTestCluster(t)
	defer tc.Cleanup()

	if err := tc.StartNodes(3, 0); err != nil {
		t.Fatalf("failed to start nodes: %v", err)
	}
	if _, err := tc.WaitForLeader(10 * time.Second); err != nil {
		t.Fatalf("failed to elect leader: %v", err)
	}

	leader := tc.GetLeader()
	if leader == nil {
		t.Fatal("no leader")
	}
	conn, err := tc.NewClientConn(leader.ID)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	client := kvpb.NewKVServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	setResp, err := client.Set(ctx, &kvpb.SetRequest{Key: "grpc-key", Value: "grpc-value"})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !setResp.GetSuccess() {
		t.Fatal("Set reported failure")
	}

	// Ack precedes commit; the value lands asynchronously.
	if err := tc.WaitForKey("grpc-key", "grpc-value", 5*time.Second); err != nil {
		t.Fatal(err)
	}

	getResp, err := client.Get(ctx, &kvpb.GetRequest{Key: "grpc-key"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !getResp.GetFound() || getResp.GetValue() != "grpc-value" {
		t.Fatalf("Get returned %q found=%v", getResp.GetValue(), getResp.GetFound())
	}

	if _, err := client.Delete(ctx, &kvpb.DeleteRequest{Key: "grpc-key"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := tc.WaitForConvergence(5 * time.Second); err != nil {
		t.Fatalf("convergence failed: %v", err)
	}

	getResp, err = client.Get(ctx, &kvpb.GetRequest{Key: "grpc-key"})
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if getResp.GetFound() {
		t.Fatal("key still found after delete")
	}
}

func TestFollowerServesLocalReads(t *testing.T) {
	tc := NewTestCluster(t)
	defer tc.Cleanup()

	if err := tc.StartNodes(3, 0); err != nil {
		t.Fatalf("failed to start nodes: %v", err)
	}
	if _, err := tc.WaitForLeader(10 * time.Second); err != nil {
		t.Fatalf("failed to elect leader: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := tc.Set(ctx, "read-key", "read-value"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := tc.WaitForKey("read-key", "read-value", 5*time.Second); err != nil {
		t.Fatal(err)
	}

	followers := tc.GetFollowers()
	if len(followers) == 0 {
		t.Fatal("no followers found")
	}
	conn, err := tc.NewClientConn(followers[0].ID)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	resp, err := kvpb.NewKVServiceClient(conn).Get(ctx, &kvpb.GetRequest{Key: "read-key"})
	if err != nil {
		t.Fatalf("follower Get failed: %v", err)
	}
	if !resp.GetFound() || resp.GetValue() != "read-value" {
		t.Fatalf("follower Get returned %q found=%v", resp.GetValue(), resp.GetFound())
	}
}

func TestInvalidKeyRejectedOverGRPC(t *testing.T) {
	tc := NewTestCluster(t)
	defer tc.Cleanup()

	if err := tc.StartNodes(1, 0); err != nil {
		t.Fatalf("failed to start node: %v", err)
	}
	if _, err := tc.WaitForLeader(10 * time.Second); err != nil {
		t.Fatalf("failed to elect leader: %v", err)
	}

	conn, err := tc.NewClientConn(1)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	client := kvpb.NewKVServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.Set(ctx, &kvpb.SetRequest{Key: "bad key", Value: "v"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	_, err = client.Delete(ctx, &kvpb.DeleteRequest{Key: ""})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
