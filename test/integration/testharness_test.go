package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"quorumkv/internal/command"
	"quorumkv/internal/configuration"
	"quorumkv/internal/raft"
	"quorumkv/internal/raft/driver"
	"quorumkv/internal/storage"
	"quorumkv/internal/transport"
	"quorumkv/internal/transport/endpoint"
	kvpb "quorumkv/internal/transport/gen/kv"
	raftpeerpb "quorumkv/internal/transport/gen/raftpeer"
)

type TestCluster struct {
	t        *testing.T
	mu       sync.RWMutex
	nodes    map[uint64]*TestNode
	baseDir  string
	nextPort int
}

type TestNode struct {
	ID     uint64
	Engine *storage.Engine
	Node   *raft.Node
	Peers  *transport.Transport
	Driver *driver.Driver

	RaftServer   *grpc.Server
	ClientServer *grpc.Server
	RaftAddr     string
	ClientAddr   string
	SnapCount    uint64

	mu      sync.Mutex
	stopped bool
}

func NewTestCluster(t *testing.T) *TestCluster {
	baseDir, err := os.MkdirTemp("", "quorumkv-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	return &TestCluster{
		t:        t,
		nodes:    make(map[uint64]*TestNode),
		baseDir:  baseDir,
		nextPort: 21000 + (os.Getpid() % 10000),
	}
}

func (tc *TestCluster) allocPort() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	port := tc.nextPort
	tc.nextPort++
	return port
}

// StartNodes brings up an n-node cluster with every node knowing every
// peer address, the way a static production deployment would.
func (tc *TestCluster) StartNodes(n int, snapCount uint64) error {
	raftPeers := make(map[uint64]string)
	clientAddrs := make(map[uint64]string)

	for i := 0; i < n; i++ {
		id := uint64(i + 1)
		raftPeers[id] = fmt.Sprintf("127.0.0.1:%d", tc.allocPort())
		clientAddrs[id] = fmt.Sprintf("127.0.0.1:%d", tc.allocPort())
	}

	for id := uint64(1); id <= uint64(n); id++ {
		if err := tc.startNode(id, raftPeers, clientAddrs[id], snapCount); err != nil {
			return fmt.Errorf("failed to start node %d: %w", id, err)
		}
	}

	return nil
}

func (tc *TestCluster) startNode(id uint64, raftPeers map[uint64]string, clientAddr string, snapCount uint64) error {
	nodeDir := filepath.Join(tc.baseDir, fmt.Sprintf("node-%d", id))

	engine, err := storage.Open(filepath.Join(nodeDir, "state"), true)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}

	rc := &configuration.RaftConfigurationProperties{
		NodeID:        id,
		Peers:         raftPeers,
		StorageDir:    filepath.Join(nodeDir, "raft"),
		TickInterval:  10,
		SnapCount:     snapCount,
		StepInboxSize: 1024,
		SendQueueSize: 1024,
		MaxProposals:  1024,
		DrainTimeout:  2,
		Etcd: configuration.EtcdConfigProperties{
			ElectionTick:  10,
			HeartbeatTick: 1,
		},
		Wal: configuration.WriteAheadLogProperties{NoSync: true},
	}

	node, err := raft.NewNode(rc, engine.AppliedIndex(), raftPeers[id])
	if err != nil {
		engine.Close()
		return fmt.Errorf("NewNode: %w", err)
	}

	peers := transport.New(id, rc.SendQueueSize, 2*time.Second)
	for pid, addr := range raftPeers {
		peers.AddPeer(pid, addr)
	}

	drv := driver.New(node, peers, engine, driver.NewConfigFromProperties(rc))

	raftListener, err := net.Listen("tcp", raftPeers[id])
	if err != nil {
		node.Stop()
		engine.Close()
		return fmt.Errorf("listen raft: %w", err)
	}

	clientListener, err := net.Listen("tcp", clientAddr)
	if err != nil {
		raftListener.Close()
		node.Stop()
		engine.Close()
		return fmt.Errorf("listen client: %w", err)
	}

	raftServer := grpc.NewServer()
	clientServer := grpc.NewServer()
	raftpeerpb.RegisterRaftTransportServer(raftServer, endpoint.NewRaftServer(drv))
	kvpb.RegisterKVServiceServer(clientServer, endpoint.NewKVServer(drv, engine))

	go raftServer.Serve(raftListener)
	go clientServer.Serve(clientListener)

	if err := drv.Start(); err != nil {
		raftServer.Stop()
		clientServer.Stop()
		node.Stop()
		engine.Close()
		return fmt.Errorf("start driver: %w", err)
	}

	tc.mu.Lock()
	tc.nodes[id] = &TestNode{
		ID:           id,
		Engine:       engine,
		Node:         node,
		Peers:        peers,
		Driver:       drv,
		RaftServer:   raftServer,
		ClientServer: clientServer,
		RaftAddr:     raftPeers[id],
		ClientAddr:   clientAddr,
		SnapCount:    snapCount,
	}
	tc.mu.Unlock()

	return nil
}

func (tc *TestCluster) GetNode(id uint64) *TestNode {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.nodes[id]
}

func (tc *TestCluster) GetLeader() *TestNode {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	for _, node := range tc.nodes {
		if node.isStopped() {
			continue
		}
		if node.Driver.IsLeader() {
			return node
		}
	}
	return nil
}

func (tc *TestCluster) GetFollowers() []*TestNode {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	var followers []*TestNode
	for _, node := range tc.nodes {
		if node.isStopped() {
			continue
		}
		if !node.Driver.IsLeader() {
			followers = append(followers, node)
		}
	}
	return followers
}

func (n *TestNode) isStopped() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stopped
}

func (tc *TestCluster) WaitForLeader(timeout time.Duration) (uint64, error) {
	return tc.waitForLeaderExcluding(0, timeout)
}

func (tc *TestCluster) WaitForNewLeader(excludeID uint64, timeout time.Duration) (uint64, error) {
	return tc.waitForLeaderExcluding(excludeID, timeout)
}

func (tc *TestCluster) waitForLeaderExcluding(excludeID uint64, timeout time.Duration) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("timeout waiting for leader (excluding %d)", excludeID)
		case <-ticker.C:
			tc.mu.RLock()
			for _, node := range tc.nodes {
				if node.isStopped() || node.ID == excludeID {
					continue
				}
				if node.Driver.IsLeader() {
					leaderID := node.ID
					tc.mu.RUnlock()
					return leaderID, nil
				}
			}
			tc.mu.RUnlock()
		}
	}
}

// Set proposes through the current leader and retries around elections.
func (tc *TestCluster) Set(ctx context.Context, key, value string) error {
	return tc.propose(ctx, command.Set(key, value))
}

func (tc *TestCluster) Delete(ctx context.Context, key string) error {
	return tc.propose(ctx, command.Delete(key))
}

func (tc *TestCluster) propose(ctx context.Context, cmd command.Command) error {
	for {
		leader := tc.GetLeader()
		if leader != nil {
			if err := leader.Driver.Propose(ctx, cmd); err == nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("propose %v: %w", cmd, ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// WaitForKey blocks until every running node's engine holds the value.
func (tc *TestCluster) WaitForKey(key, value string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for key %q=%q on all nodes", key, value)
		case <-ticker.C:
			if tc.allNodesHave(key, value) {
				return nil
			}
		}
	}
}

func (tc *TestCluster) allNodesHave(key, value string) bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	for _, node := range tc.nodes {
		if node.isStopped() {
			continue
		}
		got, ok := node.Engine.Get(key)
		if !ok || string(got) != value {
			return false
		}
	}
	return true
}

// WaitForConvergence waits until all running nodes report the same
// applied index.
func (tc *TestCluster) WaitForConvergence(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for convergence")
		case <-ticker.C:
			tc.mu.RLock()
			var lastApplied uint64
			first := true
			converged := true

			for _, node := range tc.nodes {
				if node.isStopped() {
					continue
				}
				applied := node.Driver.LastApplied()
				if first {
					lastApplied = applied
					first = false
				} else if applied != lastApplied {
					converged = false
					break
				}
			}
			tc.mu.RUnlock()

			if converged && !first {
				return nil
			}
		}
	}
}

func (tc *TestCluster) WaitForNodeCatchUp(nodeID, targetIndex uint64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			node := tc.GetNode(nodeID)
			if node != nil {
				return fmt.Errorf("timeout: node %d at index %d, target %d",
					nodeID, node.Driver.LastApplied(), targetIndex)
			}
			return fmt.Errorf("timeout waiting for node %d to catch up", nodeID)
		case <-ticker.C:
			node := tc.GetNode(nodeID)
			if node == nil || node.isStopped() {
				continue
			}
			if node.Driver.LastApplied() >= targetIndex {
				return nil
			}
		}
	}
}

func (tc *TestCluster) StopNode(id uint64) error {
	tc.mu.RLock()
	node, ok := tc.nodes[id]
	tc.mu.RUnlock()

	if !ok {
		return fmt.Errorf("node %d not found", id)
	}

	node.mu.Lock()
	defer node.mu.Unlock()

	if node.stopped {
		return nil
	}

	node.ClientServer.Stop()
	node.Driver.Stop()
	node.RaftServer.Stop()
	node.Engine.Close()
	node.stopped = true

	return nil
}

func (tc *TestCluster) RestartNode(id uint64) error {
	tc.mu.RLock()
	oldNode, ok := tc.nodes[id]
	tc.mu.RUnlock()

	if !ok {
		return fmt.Errorf("node %d not found", id)
	}
	if !oldNode.isStopped() {
		return fmt.Errorf("node %d still running", id)
	}

	raftPeers := make(map[uint64]string)
	tc.mu.RLock()
	for nid, n := range tc.nodes {
		raftPeers[nid] = n.RaftAddr
	}
	clientAddr := oldNode.ClientAddr
	snapCount := oldNode.SnapCount
	tc.mu.RUnlock()

	tc.mu.Lock()
	delete(tc.nodes, id)
	tc.mu.Unlock()

	return tc.startNode(id, raftPeers, clientAddr, snapCount)
}

func (tc *TestCluster) NewClientConn(nodeID uint64) (*grpc.ClientConn, error) {
	node := tc.GetNode(nodeID)
	if node == nil {
		return nil, fmt.Errorf("node %d not found", nodeID)
	}

	return grpc.NewClient(node.ClientAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
}

func (tc *TestCluster) Cleanup() {
	tc.mu.Lock()
	nodes := make([]*TestNode, 0, len(tc.nodes))
	for _, n := range tc.nodes {
		nodes = append(nodes, n)
	}
	tc.mu.Unlock()

	for _, node := range nodes {
		node.mu.Lock()
		if !node.stopped {
			node.ClientServer.Stop()
			node.Driver.Stop()
			node.RaftServer.Stop()
			node.Engine.Close()
			node.stopped = true
		}
		node.mu.Unlock()
	}

	os.RemoveAll(tc.baseDir)
}
