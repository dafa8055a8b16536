// Package driver turns a local application intent into an entry in the
// replicated, slot-indexed command log, despite competing concurrent
// proposers, by allocating slots, tracking at most one locally pending
// command, and retrying into the next free slot whenever a competitor's
// value wins the slot this node wanted.
package driver

import "fmt"

// Proposer is the capability the driver needs from the Paxos engine: a
// way to (re)start consensus for a given slot and value. Implemented by
// *paxos.Engine.
type Proposer interface {
	Propose(slot int32, value string)
}

// Applier receives decided commands in the order the driver learns of
// them — arrival order, not buffered and replayed in slot order. A
// command decided for a later slot can reach Apply before an earlier
// slot's command does; the command grammar is written to tolerate that.
type Applier interface {
	Apply(command string)
}

// Driver holds next_open_slot and at most one pending local command.
type Driver struct {
	proposer     Proposer
	applier      Applier
	nextOpenSlot int32
	pending      string
	hasPending   bool
}

// New constructs a Driver. Slots start at 1.
func New(proposer Proposer, applier Applier) *Driver {
	return &Driver{proposer: proposer, applier: applier, nextOpenSlot: 1}
}

// ErrPendingSubmit is returned by Submit when a local command is already
// being driven to consensus. The driver only ever drives one value at a
// time; a second concurrent Submit is a caller error, not a protocol one.
var ErrPendingSubmit = fmt.Errorf("driver: a command is already pending")

// Submit records command as this node's local intent and proposes it into
// the next open slot.
func (d *Driver) Submit(command string) error {
	if d.hasPending {
		return ErrPendingSubmit
	}
	d.pending = command
	d.hasPending = true
	d.proposer.Propose(d.nextOpenSlot, command)
	return nil
}

// OnDecided is the Paxos engine's on_decided callback. It advances
// next_open_slot past slot, applies value to the application state
// machine in the order this callback fires, and — if this node had a
// pending command — either clears it (value was this node's command) or
// re-proposes it into the new next_open_slot (the slot was stolen by a
// competing proposer).
//
// Pending resolution happens before Apply: Apply may cascade into a new
// Submit (the application's auto-start path), and that Submit must see
// the just-decided command as no longer pending or it would be rejected
// as a concurrent submit.
func (d *Driver) OnDecided(slot int32, value string) {
	if slot >= d.nextOpenSlot {
		d.nextOpenSlot = slot + 1
	}
	displaced := false
	if d.hasPending {
		if value == d.pending {
			d.hasPending = false
			d.pending = ""
		} else {
			displaced = true
		}
	}
	d.applier.Apply(value)
	if displaced {
		d.proposer.Propose(d.nextOpenSlot, d.pending)
	}
}

// NextOpenSlot reports the smallest slot this node will target next for
// its own proposals. Exposed for tests and diagnostics.
func (d *Driver) NextOpenSlot() int32 { return d.nextOpenSlot }

// HasPending reports whether a local command is currently being driven to
// consensus.
func (d *Driver) HasPending() bool { return d.hasPending }
