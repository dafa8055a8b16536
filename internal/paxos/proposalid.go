// Package paxos implements a slot-indexed multi-Paxos engine: one
// independent Prepare/Promise/Accept/Accepted instance per integer slot,
// with loopback self-delivery and a one-shot decided callback per slot.
package paxos

import "time"

// ID is a proposal number, ordered lexicographically as (ticks, nodeID).
// It packs a monotonic tick counter into the high bits and the
// proposer's node id into the low 20 bits, so that plain int64 comparison
// is exactly lexicographic (ticks, nodeID) comparison. The zero ID never
// compares greater than anything a real proposer mints and is used as the
// "nothing promised / nothing accepted" sentinel.
type ID int64

const (
	nodeBits = 20
	nodeMask = (int64(1) << nodeBits) - 1

	// tickBits is the width of the tick field once packed. It is
	// deliberately one bit narrower than the 64-nodeBits=44 that would
	// fill the rest of the word: a 44-bit tick packed starting at bit 20
	// reaches all the way to bit 63, ID's sign bit, so any tick whose own
	// bit 43 happens to be set mints a negative ID. Leaving bit 63
	// permanently clear keeps newID's result non-negative no matter what
	// the clock reads.
	tickBits = 43
	tickMask = (int64(1) << tickBits) - 1

	// tickShift downsamples time.Now().UnixNano() before it is packed.
	// UnixNano's own range already exceeds tickBits well before tickMask
	// would: packing it unshifted wraps the tick field roughly every 2.44
	// hours, re-using (and silently going negative within) proposal
	// numbers a live cluster has already seen. Shifting down by
	// tickShift bits trades tick resolution (about a millisecond) for
	// headroom: the shifted tick does not wrap for centuries.
	tickShift = 20
)

// newID mints a proposal ID for nodeID using the given tick value, which
// must already be shifted down (see genID.next) so that packing it does
// not reach ID's sign bit. nodeID is truncated to its low 20 bits; node
// ids are drawn from that same range (see node.NewNodeID) so two
// distinct nodes are never conflated by the truncation.
func newID(tick int64, nodeID int32) ID {
	return ID(((tick & tickMask) << nodeBits) | (int64(nodeID) & nodeMask))
}

// IsZero reports whether this is the sentinel "no proposal" value.
func (id ID) IsZero() bool { return id == 0 }

// genID produces a fresh, strictly increasing proposal ID for nodeID.
// Each call is guaranteed to return an ID greater than every ID this
// function has previously returned for the same *gen, and greater than
// any floor passed via bumpPast.
type genID struct {
	lastTick int64
	nodeID   int32
}

func newGen(nodeID int32) *genID {
	return &genID{nodeID: nodeID}
}

// next mints the next proposal ID, using a monotonic wall-clock reading
// (shifted down per tickShift to avoid overflowing into ID's sign bit)
// and bumping past the last tick this generator has issued so that two
// calls landing in the same shifted tick still strictly increase.
func (g *genID) next() ID {
	tick := time.Now().UnixNano() >> tickShift
	if tick <= g.lastTick {
		tick = g.lastTick + 1
	}
	g.lastTick = tick
	return newID(tick, g.nodeID)
}

// bumpPast ensures the next minted ID will be strictly greater than seen,
// regardless of node id ordering. Used whenever this node observes a
// foreign proposal number higher than anything it has issued itself (see
// Engine.onPrepare and Engine.onAccept), so that once this node's own
// proposal has been displaced, its next attempt is guaranteed to win any
// future proposal-number race rather than racing the same loser again.
func (g *genID) bumpPast(seen ID) {
	seenTick := int64(seen) >> nodeBits
	if seenTick > g.lastTick {
		g.lastTick = seenTick
	}
}
