package transport

import "sync"

// Memory is an in-process Transport implementation for tests: peers are
// wired together directly by a shared MemoryHub rather than real sockets.
type Memory struct {
	id   int32
	name string
	hub  *MemoryHub

	mu           sync.Mutex
	peers        map[int32]bool
	names        map[int32]string
	onPeerChange func(id int32, connected bool)
	onFrame      func(from int32, frame []byte)
}

// MemoryHub fans frames out between a set of Memory transports, mimicking
// what a real LAN's broadcast domain does for Server.
type MemoryHub struct {
	mu      sync.Mutex
	members map[int32]*Memory
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{members: make(map[int32]*Memory)}
}

// Join creates a Memory transport with the given id and display name
// attached to the hub, and notifies every existing member via
// OnPeerChange. The new member starts with every existing one already in
// its peer set; it has no callback registered yet, so it receives no
// OnPeerChange for them.
func (h *MemoryHub) Join(id int32, name string) *Memory {
	m := &Memory{id: id, name: name, hub: h, peers: make(map[int32]bool), names: make(map[int32]string)}
	h.mu.Lock()
	existing := make([]*Memory, 0, len(h.members))
	for _, other := range h.members {
		existing = append(existing, other)
	}
	h.members[id] = m
	h.mu.Unlock()

	for _, other := range existing {
		m.peers[other.id] = true
		m.names[other.id] = other.name
		other.mu.Lock()
		other.peers[id] = true
		other.names[id] = name
		cb := other.onPeerChange
		other.mu.Unlock()
		if cb != nil {
			cb(id, true)
		}
		if m.onPeerChange != nil {
			m.onPeerChange(other.id, true)
		}
	}
	return m
}

// Leave removes m from the hub and notifies remaining members.
func (h *MemoryHub) Leave(id int32) {
	h.mu.Lock()
	if _, ok := h.members[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.members, id)
	remaining := make([]*Memory, 0, len(h.members))
	for _, other := range h.members {
		remaining = append(remaining, other)
	}
	h.mu.Unlock()

	for _, other := range remaining {
		other.mu.Lock()
		delete(other.peers, id)
		delete(other.names, id)
		cb := other.onPeerChange
		other.mu.Unlock()
		if cb != nil {
			cb(id, false)
		}
	}
}

func (m *Memory) OnPeerChange(fn func(id int32, connected bool)) { m.onPeerChange = fn }
func (m *Memory) OnFrame(fn func(from int32, frame []byte))      { m.onFrame = fn }

func (m *Memory) Peers() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int32, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

func (m *Memory) Names() map[int32]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make(map[int32]string, len(m.names))
	for id, name := range m.names {
		names[id] = name
	}
	return names
}

func (m *Memory) Send(id int32, frame []byte) error {
	m.hub.mu.Lock()
	target, ok := m.hub.members[id]
	m.hub.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	if target.onFrame != nil {
		target.onFrame(m.id, frame)
	}
	return nil
}

func (m *Memory) Broadcast(frame []byte) {
	m.hub.mu.Lock()
	targets := make([]*Memory, 0, len(m.hub.members))
	for id, other := range m.hub.members {
		if id == m.id {
			continue
		}
		targets = append(targets, other)
	}
	m.hub.mu.Unlock()
	for _, t := range targets {
		if t.onFrame != nil {
			t.onFrame(m.id, frame)
		}
	}
}
