// Package node wires the transport, Paxos engine, RSM driver, and
// application state machine together into one runnable peer. Everything
// these four components do happens on exactly one goroutine (Node.Run):
// transport
// callbacks and local client calls are both funneled onto a work channel
// and drained one at a time, which is what lets the lower layers get away
// with no internal locking at all.
package node

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/senutpal/werewolf/internal/driver"
	"github.com/senutpal/werewolf/internal/game"
	"github.com/senutpal/werewolf/internal/paxos"
	"github.com/senutpal/werewolf/internal/transport"
)

// Logger is the minimal logging capability Node and everything it wires
// together needs. Any slog-backed logger with a Logf method satisfies
// this, paxos.Logger, and game.Logger simultaneously.
type Logger interface {
	Logf(format string, args ...any)
}

// nodeIDSpace bounds the range NewNodeID draws from to exactly the low 20
// bits a paxos proposal ID has room for (see paxos.nodeBits). Drawing from
// a wider range, as a general-purpose id generator would, lets two nodes
// share the same low 20 bits and become indistinguishable as Paxos
// tie-breakers even though their full ids differ.
const nodeIDSpace = 1 << 20

// NewNodeID draws a node identity uniformly from [1, nodeIDSpace) using
// crypto/rand, so two independently started peers collide with
// negligible probability without any coordination, while staying inside
// the range a proposal ID's node-id component can represent without
// truncation.
func NewNodeID() (int32, error) {
	max := big.NewInt(nodeIDSpace)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, err
	}
	if n.Int64() == 0 {
		return 1, nil
	}
	return int32(n.Int64()), nil
}

// Node owns one Paxos participant's full stack: transport, consensus
// engine, log driver, and the game state machine it drives.
type Node struct {
	id        int32
	name      string
	transport transport.Transport
	engine    *paxos.Engine
	drv       *driver.Driver
	state     *game.State
	log       Logger

	work chan func()
	stop chan struct{}
}

// handshakeValidatorSetter is implemented by transports that actually
// perform a handshake (transport.Server) but not by test doubles like
// transport.Memory, which have no handshake to validate.
type handshakeValidatorSetter interface {
	SetHandshakeValidator(fn func(name string) error)
}

// New builds a Node. t is taken over entirely: New installs its own
// OnFrame/OnPeerChange callbacks (and, if t supports it, a handshake name
// validator), so the caller must not install others. name is this node's
// own display name, used to reject a peer whose proposed name collides
// with it.
func New(id int32, name string, t transport.Transport, log Logger) *Node {
	n := &Node{
		id:        id,
		name:      name,
		transport: t,
		log:       log,
		work:      make(chan func(), 64),
		stop:      make(chan struct{}),
	}

	prop := &proposerAdapter{}
	n.state = game.New(id, localSubmitter{n}, log)
	n.drv = driver.New(prop, applierAdapter{n.state})
	n.engine = paxos.NewEngine(id, n.quorum, broadcasterAdapter{t}, log, n.drv.OnDecided)
	prop.engine = n.engine

	t.OnFrame(func(from int32, frame []byte) {
		n.work <- func() { n.handleFrame(from, frame) }
	})
	t.OnPeerChange(func(id int32, connected bool) {
		n.work <- func() { n.handlePeerChange() }
	})
	if vs, ok := t.(handshakeValidatorSetter); ok {
		vs.SetHandshakeValidator(n.validateHandshakeName)
	}

	return n
}

// quorum computes floor(N/2)+1 where N is the live cluster size
// (connected peers plus this node), recomputed fresh on every call so
// churn between Paxos rounds is tolerated.
func (n *Node) quorum() int {
	size := len(n.transport.Peers()) + 1
	return size/2 + 1
}

// Run drains the work queue until Stop is called. It is meant to run on
// its own goroutine for the lifetime of the process.
func (n *Node) Run() {
	// Peers may already be connected by the time Run starts draining the
	// work queue (the transport's own connection setup races ahead of
	// this goroutine); this call picks up whatever transport.Peers()
	// already reports rather than waiting for a future OnPeerChange that
	// may never fire for connections formed before Run was called.
	n.handlePeerChange()
	for {
		select {
		case fn := <-n.work:
			fn()
		case <-n.stop:
			return
		}
	}
}

// Stop ends Run's loop. It does not close the transport.
func (n *Node) Stop() {
	close(n.stop)
}

func (n *Node) handleFrame(from int32, raw []byte) {
	frame, err := paxos.DecodeFrame(raw)
	if err != nil {
		n.logf("dropping malformed frame from %d: %v", from, err)
		return
	}
	n.engine.HandleFrame(frame)
}

// normalizeHandshakeName folds a proposed name down to the form used for
// collision comparisons: trimmed, a local "(Me)" suffix stripped (the
// convention a client UI uses to mark its own entry in a roster, so two
// different people's clients both rendering themselves as "(Me)" must not
// be compared literally), and case-folded.
func normalizeHandshakeName(name string) string {
	name = strings.TrimSpace(name)
	if stripped, ok := strings.CutSuffix(name, "(Me)"); ok {
		name = strings.TrimSpace(stripped)
	}
	return strings.ToLower(name)
}

// validateHandshakeName is installed as the transport's handshake
// validator. It runs on whatever goroutine the transport's handshake
// happens on, so it hops onto the work queue to read game/peer state
// without racing Node's own goroutine.
func (n *Node) validateHandshakeName(name string) error {
	reply := make(chan error, 1)
	n.work <- func() { reply <- n.validateHandshakeNameLocked(name) }
	return <-reply
}

func (n *Node) validateHandshakeNameLocked(name string) error {
	if n.state.Phase != game.Lobby {
		return fmt.Errorf("game already left the lobby")
	}
	candidate := normalizeHandshakeName(name)
	if candidate == normalizeHandshakeName(n.name) {
		return fmt.Errorf("name %q collides with the host's own name", name)
	}
	for _, existing := range n.transport.Names() {
		if normalizeHandshakeName(existing) == candidate {
			return fmt.Errorf("name %q is already taken", name)
		}
	}
	return nil
}

func (n *Node) handlePeerChange() {
	if n.state.Phase != game.Lobby {
		return
	}
	ids := append([]int32{n.id}, n.transport.Peers()...)
	n.state.SetKnownPlayers(ids)
}

// Submit posts command to be driven to consensus and blocks until the
// driver has accepted or rejected it locally (not until it is decided —
// ErrPendingSubmit is the only error Submit itself can return).
func (n *Node) Submit(command string) error {
	reply := make(chan error, 1)
	n.work <- func() { reply <- n.drv.Submit(command) }
	return <-reply
}

// VoteStart submits this node's own VOTE_START ballot.
func (n *Node) VoteStart() error {
	return n.Submit(game.FormatVoteStart(n.id))
}

// Vote submits a ballot in the currently active session.
func (n *Node) Vote(target int32, kind game.VoteKind) error {
	return n.Submit(game.FormatVote(n.id, target, kind))
}

// Reset submits the replicated reset command.
func (n *Node) Reset() error {
	return n.Submit(game.CmdResetGame)
}

// Snapshot is a point-in-time, race-free copy of the game state, safe to
// read from any goroutine (unlike *game.State itself, which only the
// node's own goroutine may touch).
type Snapshot struct {
	Phase      game.Phase
	Roles      map[int32]game.Role
	Alive      map[int32]bool
	LobbyReady map[int32]bool
	Known      map[int32]bool
	Names      map[int32]string
	Winner     string
	VoteKind   game.VoteKind
	HasVote    bool
	Ballots    int
	Eligible   int
}

// Snapshot reads the current game state via the work queue, so the copy
// it returns never races with Node's own goroutine mutating it.
func (n *Node) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	n.work <- func() { reply <- n.snapshotLocked() }
	return <-reply
}

func (n *Node) snapshotLocked() Snapshot {
	s := Snapshot{
		Phase:      n.state.Phase,
		Roles:      copyRoles(n.state.Roles),
		Alive:      copyBoolMap(n.state.Alive),
		LobbyReady: copyBoolMap(n.state.LobbyReady),
		Known:      copyBoolMap(n.state.KnownPlayers),
		Names:      n.namesLocked(),
		Winner:     n.state.Winner,
	}
	if n.state.Vote != nil {
		s.HasVote = true
		s.VoteKind = n.state.Vote.Kind
		s.Ballots = len(n.state.Vote.Ballots)
		s.Eligible = len(n.state.Vote.Eligible)
	}
	return s
}

// namesLocked builds the known-player id->name map, including this node's
// own name (which the transport layer, having no handshake with itself,
// never reports).
func (n *Node) namesLocked() map[int32]string {
	peerNames := n.transport.Names()
	names := make(map[int32]string, len(peerNames)+1)
	for id, name := range peerNames {
		names[id] = name
	}
	names[n.id] = n.name
	return names
}

// Names reports the display name of every known player, including this
// node's own, keyed by node id.
func (n *Node) Names() map[int32]string {
	reply := make(chan map[int32]string, 1)
	n.work <- func() { reply <- n.namesLocked() }
	return <-reply
}

func copyBoolMap(m map[int32]bool) map[int32]bool {
	out := make(map[int32]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyRoles(m map[int32]game.Role) map[int32]game.Role {
	out := make(map[int32]game.Role, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ID reports this node's identity.
func (n *Node) ID() int32 { return n.id }

func (n *Node) logf(format string, args ...any) {
	if n.log != nil {
		n.log.Logf(format, args...)
	}
}

// localSubmitter is the game.Submitter the application state machine
// uses for its own auto-submit behavior (the lowest-known-player
// auto-START_GAME). Unlike Node.Submit, it calls the driver directly:
// it only ever runs already inside Node's single goroutine (as part of
// the decide -> apply -> submit cascade), so going back through the work
// channel would deadlock waiting for the very goroutine that is calling
// it.
type localSubmitter struct{ n *Node }

func (s localSubmitter) Submit(command string) error {
	return s.n.drv.Submit(command)
}

type applierAdapter struct{ state *game.State }

func (a applierAdapter) Apply(command string) { a.state.Apply(command) }

// proposerAdapter breaks the construction cycle between driver.New
// (which needs a Proposer) and paxos.NewEngine (which needs the driver's
// OnDecided callback): the engine field is filled in immediately after
// both are constructed, before either is ever used.
type proposerAdapter struct{ engine *paxos.Engine }

func (p *proposerAdapter) Propose(slot int32, value string) { p.engine.Propose(slot, value) }

type broadcasterAdapter struct{ t transport.Transport }

func (b broadcasterAdapter) Broadcast(frame paxos.Frame) { b.t.Broadcast(frame.Encode()) }
