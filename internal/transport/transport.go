// Package transport is the concrete UDP+TCP adapter the core consensus
// and game packages never import directly: it owns every socket, and
// delivers decoded work to its host (internal/node) through callbacks.
//
// Peers discover each other via a UDP multicast announce/listen pair
// (discovery.go), connect over TCP with a short handshake that exchanges
// node id and display name (handshake.go), and from then on exchange
// opaque, length-prefixed consensus frames over that same connection.
package transport

import (
	"errors"
	"net"
	"sync"
)

// Logger is the minimal logging capability this package needs.
type Logger interface {
	Logf(format string, args ...any)
}

// Transport is the capability internal/node consumes. The core packages
// (paxos, driver, game) never see this interface or anything in this
// package; only the node-wiring layer does.
type Transport interface {
	// Broadcast delivers frame to every currently connected peer.
	// Best-effort: a peer whose connection has gone bad simply does not
	// receive it, and is reported via OnPeerChange once the failure is
	// noticed.
	Broadcast(frame []byte)

	// Send delivers frame to exactly one connected peer. Returns an
	// error if id is not currently connected.
	Send(id int32, frame []byte) error

	// Peers reports the node ids currently connected.
	Peers() []int32

	// Names reports the display name of every currently connected peer,
	// keyed by node id.
	Names() map[int32]string

	// OnPeerChange registers a callback fired whenever a peer connects
	// or disconnects. At most one callback is kept; a second call
	// replaces the first.
	OnPeerChange(fn func(id int32, connected bool))

	// OnFrame registers a callback fired once per inbound frame, in the
	// order frames are read off their connection. At most one callback
	// is kept.
	OnFrame(fn func(from int32, frame []byte))
}

// ErrUnknownPeer is returned by Send when id is not currently connected.
var ErrUnknownPeer = errors.New("transport: unknown peer")

// ErrAlreadyConnected is the reason logged when a completed handshake
// names a node id already present in the peer set; the new connection is
// closed and the error is not returned to the caller.
var ErrAlreadyConnected = errors.New("transport: peer already connected")

// peer is one live TCP connection to a remote node.
type peer struct {
	id   int32
	name string
	conn net.Conn
	mu   sync.Mutex // guards writes; one goroutine reads, callers of Send/Broadcast write
}

func (p *peer) write(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return writeLP(p.conn, frame)
}

// Server is the TCP Transport implementation; UDP discovery lives in the
// separate Discoverer. Unlike internal/paxos and internal/game, Server is
// safe for concurrent use: it genuinely has multiple goroutines (one
// accept loop, one read loop per peer), and their results are handed to the host as plain
// callback invocations — the host is responsible for serializing those
// onto its own single poll loop (see internal/node).
type Server struct {
	selfID   int32
	selfName string
	log      Logger

	listener net.Listener

	mu    sync.Mutex
	peers map[int32]*peer

	onPeerChange func(id int32, connected bool)
	onFrame      func(from int32, frame []byte)

	validate func(name string) error
}

// SetHandshakeValidator installs a check run against every inbound
// handshake's proposed name (duplicate name, name equal to this node's
// own, game not in Lobby are all legitimate reasons to reject). The node
// layer owns that state, so the check is injected rather than
// implemented here. A nil validator (the default) accepts every name.
func (s *Server) SetHandshakeValidator(fn func(name string) error) { s.validate = fn }

// NewServer wraps an already-listening TCP listener. selfID and selfName
// identify this node during every handshake this Server performs.
func NewServer(selfID int32, selfName string, listener net.Listener, log Logger) *Server {
	return &Server{
		selfID:   selfID,
		selfName: selfName,
		log:      log,
		listener: listener,
		peers:    make(map[int32]*peer),
	}
}

// Addr reports the address this Server's listener is bound to.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// OnPeerChange implements Transport.
func (s *Server) OnPeerChange(fn func(id int32, connected bool)) { s.onPeerChange = fn }

// OnFrame implements Transport.
func (s *Server) OnFrame(fn func(from int32, frame []byte)) { s.onFrame = fn }

// Peers implements Transport.
func (s *Server) Peers() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int32, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	return ids
}

// Names implements Transport.
func (s *Server) Names() map[int32]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[int32]string, len(s.peers))
	for id, p := range s.peers {
		names[id] = p.name
	}
	return names
}

// Send implements Transport.
func (s *Server) Send(id int32, frame []byte) error {
	s.mu.Lock()
	p, ok := s.peers[id]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	return p.write(frame)
}

// Broadcast implements Transport.
func (s *Server) Broadcast(frame []byte) {
	s.mu.Lock()
	targets := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		targets = append(targets, p)
	}
	s.mu.Unlock()
	for _, p := range targets {
		if err := p.write(frame); err != nil {
			s.logf("broadcast to peer %d failed: %v", p.id, err)
		}
	}
}

// Serve runs the accept loop until the listener is closed. It returns nil
// when the listener is closed deliberately (net.ErrClosed), and a non-nil
// error for any other accept failure.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleIncoming(conn)
	}
}

// Close stops accepting and drops every live peer connection.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.conn.Close()
	}
	return err
}

func (s *Server) handleIncoming(conn net.Conn) {
	remoteID, remoteName, err := acceptHandshake(conn, s.selfID, s.selfName, s.validate)
	if err != nil {
		s.logf("handshake rejected from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	s.register(remoteID, remoteName, conn)
}

// Dial connects to addr, performs the initiator side of the handshake,
// and registers the resulting peer. It is safe to call concurrently with
// Serve accepting an inbound connection from the same address; the loser
// of that race is closed and ErrAlreadyConnected is logged, not returned,
// since dialing is usually done in a best-effort discovery loop.
func (s *Server) Dial(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	remoteID, remoteName, err := dialHandshake(conn, s.selfID, s.selfName)
	if err != nil {
		conn.Close()
		return err
	}
	s.register(remoteID, remoteName, conn)
	return nil
}

func (s *Server) register(id int32, name string, conn net.Conn) {
	p := &peer{id: id, name: name, conn: conn}
	s.mu.Lock()
	if _, exists := s.peers[id]; exists {
		s.mu.Unlock()
		s.logf("dropping connection to peer %d: %v", id, ErrAlreadyConnected)
		conn.Close()
		return
	}
	s.peers[id] = p
	s.mu.Unlock()

	if s.onPeerChange != nil {
		s.onPeerChange(id, true)
	}
	go s.readLoop(p)
}

func (s *Server) readLoop(p *peer) {
	defer func() {
		s.mu.Lock()
		delete(s.peers, p.id)
		s.mu.Unlock()
		p.conn.Close()
		if s.onPeerChange != nil {
			s.onPeerChange(p.id, false)
		}
	}()
	for {
		frame, err := readLP(p.conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logf("read from peer %d failed: %v", p.id, err)
			}
			return
		}
		if s.onFrame != nil {
			s.onFrame(p.id, frame)
		}
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Logf(format, args...)
	}
}
