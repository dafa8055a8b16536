package node

import (
	"fmt"
	"testing"
	"time"

	"github.com/senutpal/werewolf/internal/game"
	"github.com/senutpal/werewolf/internal/transport"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Logf(format string, args ...any) { l.t.Logf(format, args...) }

// settle waits long enough for every node's work queue to drain, since
// Node.Run processes asynchronously.
func settle() { time.Sleep(20 * time.Millisecond) }

func startCluster(t *testing.T, ids []int32) ([]*Node, *transport.MemoryHub) {
	t.Helper()
	hub := transport.NewMemoryHub()
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		name := fmt.Sprintf("node%d", id)
		mt := hub.Join(id, name)
		n := New(id, name, mt, testLogger{t})
		nodes[i] = n
		go n.Run()
		t.Cleanup(n.Stop)
	}
	settle()
	return nodes, hub
}

func TestThreeNodeClusterAutoStartsOnUnanimousReady(t *testing.T) {
	nodes, _ := startCluster(t, []int32{1, 2, 3})
	settle()

	for _, n := range nodes {
		if err := n.VoteStart(); err != nil {
			t.Fatalf("node %d VoteStart: %v", n.ID(), err)
		}
		settle()
	}
	settle()

	for _, n := range nodes {
		snap := n.Snapshot()
		if snap.Phase != game.Night {
			t.Fatalf("node %d: expected Night phase after unanimous ready, got %s", n.ID(), snap.Phase)
		}
		if len(snap.Roles) != 3 {
			t.Fatalf("node %d: expected 3 roles assigned, got %d", n.ID(), len(snap.Roles))
		}
	}
}

func TestSingleNodeClusterDecidesLocally(t *testing.T) {
	nodes, _ := startCluster(t, []int32{1})
	n := nodes[0]
	if err := n.VoteStart(); err != nil {
		t.Fatalf("VoteStart: %v", err)
	}
	settle()
	snap := n.Snapshot()
	if snap.Phase != game.Night {
		t.Fatalf("expected a lone node to start its own game, got phase %s", snap.Phase)
	}
}

func TestSequentialSubmitsBothSucceedOnceEachResolves(t *testing.T) {
	nodes, _ := startCluster(t, []int32{1, 2})
	n := nodes[0]
	if err := n.Submit(game.FormatVoteStart(1)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	settle()
	if err := n.Submit(game.FormatVoteStart(2)); err != nil {
		t.Fatalf("second submit after the first resolved: %v", err)
	}
}

func TestAllNodesObserveEachOthersVoteStart(t *testing.T) {
	nodes, _ := startCluster(t, []int32{10, 20, 30})
	for _, n := range nodes {
		if err := n.VoteStart(); err != nil {
			t.Fatalf("node %d VoteStart: %v", n.ID(), err)
		}
		settle()
	}
	settle()
	for _, n := range nodes {
		snap := n.Snapshot()
		if len(snap.LobbyReady) != 3 {
			t.Fatalf("node %d: expected 3 ready players observed, got %d", n.ID(), len(snap.LobbyReady))
		}
	}
}

func TestSnapshotNamesIncludesSelfAndPeers(t *testing.T) {
	nodes, _ := startCluster(t, []int32{1, 2})
	snap := nodes[0].Snapshot()
	if snap.Names[1] != "node1" || snap.Names[2] != "node2" {
		t.Fatalf("expected both node names in snapshot, got %v", snap.Names)
	}
}

func TestHandshakeValidatorRejectsDuplicateNameCaseInsensitiveWithMeSuffix(t *testing.T) {
	nodes, _ := startCluster(t, []int32{1, 2})
	// node 2 is already connected as "node2"; a prospective third peer
	// proposing "Node2 (Me)" collides once the suffix is stripped and the
	// case is folded.
	if err := nodes[0].validateHandshakeName("Node2 (Me)"); err == nil {
		t.Fatal("expected a case-insensitive, (Me)-stripped duplicate name to be rejected")
	}
}

func TestHandshakeValidatorRejectsOwnName(t *testing.T) {
	nodes, _ := startCluster(t, []int32{1, 2})
	if err := nodes[0].validateHandshakeName("NODE1"); err == nil {
		t.Fatal("expected a name colliding with the host's own to be rejected")
	}
}

func TestHandshakeValidatorAcceptsFreshName(t *testing.T) {
	nodes, _ := startCluster(t, []int32{1, 2})
	if err := nodes[0].validateHandshakeName("carol"); err != nil {
		t.Fatalf("expected a fresh name to be accepted, got %v", err)
	}
}

func TestHandshakeValidatorRejectsOnceGameLeavesLobby(t *testing.T) {
	nodes, _ := startCluster(t, []int32{1})
	if err := nodes[0].VoteStart(); err != nil {
		t.Fatalf("VoteStart: %v", err)
	}
	settle()
	if err := nodes[0].validateHandshakeName("carol"); err == nil {
		t.Fatal("expected handshake validation to reject joins once the game has left the lobby")
	}
}
