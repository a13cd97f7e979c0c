package integration

import (
	"context"
	"testing"
	"time"
)

func TestClusterSurvivesLeaderCrash(t *testing.T) {
	tc := NewTestCluster(t)
	defer tc.Cleanup()

	if err := tc.StartNodes(3, 0); err != nil {
		t.Fatalf("failed to start nodes: %v", err)
	}
	leaderID, err := tc.WaitForLeader(10 * time.Second)
	if err != nil {
		t.Fatalf("failed to elect leader: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := tc.Set(ctx, "before-crash", "v1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := tc.WaitForKey("before-crash", "v1", 5*time.Second); err != nil {
		t.Fatal(err)
	}

	if err := tc.StopNode(leaderID); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	newLeaderID, err := tc.WaitForNewLeader(leaderID, 15*time.Second)
	if err != nil {
		t.Fatalf("no new leader after crash: %v", err)
	}
	if newLeaderID == leaderID {
		t.Fatalf("stopped node %d still reported as leader", leaderID)
	}

	// Writes keep working on the surviving majority.
	if err := tc.Set(ctx, "after-crash", "v2"); err != nil {
		t.Fatalf("set after crash failed: %v", err)
	}
	if err := tc.WaitForKey("after-crash", "v2", 5*time.Second); err != nil {
		t.Fatal(err)
	}
}

func TestGracefulStopHandsOffLeadership(t *testing.T) {
	tc := NewTestCluster(t)
	defer tc.Cleanup()

	if err := tc.StartNodes(3, 0); err != nil {
		t.Fatalf("failed to start nodes: %v", err)
	}
	leaderID, err := tc.WaitForLeader(10 * time.Second)
	if err != nil {
		t.Fatalf("failed to elect leader: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tc.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Stop transfers leadership before exiting, so the new leader
	// should appear quickly instead of after an election timeout.
	if err := tc.StopNode(leaderID); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if _, err := tc.WaitForNewLeader(leaderID, 10*time.Second); err != nil {
		t.Fatalf("leadership did not move: %v", err)
	}
}

func TestFollowerCrashDoesNotBlockWrites(t *testing.T) {
	tc := NewTestCluster(t)
	defer tc.Cleanup()

	if err := tc.StartNodes(3, 0); err != nil {
		t.Fatalf("failed to start nodes: %v", err)
	}
	if _, err := tc.WaitForLeader(10 * time.Second); err != nil {
		t.Fatalf("failed to elect leader: %v", err)
	}

	followers := tc.GetFollowers()
	if len(followers) == 0 {
		t.Fatal("no followers found")
	}
	if err := tc.StopNode(followers[0].ID); err != nil {
		t.Fatalf("stop follower failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tc.Set(ctx, "resilient", "yes"); err != nil {
		t.Fatalf("set with one follower down failed: %v", err)
	}
	if err := tc.WaitForKey("resilient", "yes", 5*time.Second); err != nil {
		t.Fatal(err)
	}
}
