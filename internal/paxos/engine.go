package paxos

// Broadcaster is the only network capability the engine requires from its
// host. It must deliver frame to every currently connected peer; the
// engine itself delivers frame to its own dispatch logic first (loopback
// self-delivery, see Engine.deliver) before this is ever called, so
// Broadcaster implementations do not need to loop back to the caller.
type Broadcaster interface {
	Broadcast(frame Frame)
}

// Logger is the minimal logging capability the engine needs. Hosts
// typically wire this to a structured logger (see internal/node).
type Logger interface {
	Logf(format string, args ...any)
}

// QuorumFunc reports the quorum size at the moment it is called, as
// floor(n/2) + 1 where n is the current cluster size. The engine calls
// this fresh every time it tallies a Promise or Accepted so that churn
// between rounds is tolerated.
type QuorumFunc func() int

// Engine owns one Paxos instance per slot, lazily created on first touch
// (the "arena + integer key" pattern: slots are a map, not a fixed array,
// since the decided log is sparse and gap-tolerant).
//
// Engine is NOT safe for concurrent use, by design: a single logical
// executor with no internal locks is what lets a decision and its
// cascading effects (the driver's resubmit, the application's next local
// intent, which may itself call back into Propose) run atomically within
// one turn. A mutex here would deadlock on exactly that reentrant call
// chain. The host (internal/node) is responsible for ensuring only one
// goroutine ever touches an Engine.
type Engine struct {
	nodeID    int32
	gen       *genID
	quorum    QuorumFunc
	bcast     Broadcaster
	log       Logger
	onDecided func(slot int32, value string)
	slots     map[int32]*instance
}

// NewEngine constructs an Engine for nodeID. onDecided is invoked exactly
// once per slot, synchronously, from whichever call to HandleFrame or
// Propose caused that slot's value to become chosen.
func NewEngine(nodeID int32, quorum QuorumFunc, bcast Broadcaster, log Logger, onDecided func(slot int32, value string)) *Engine {
	return &Engine{
		nodeID:    nodeID,
		gen:       newGen(nodeID),
		quorum:    quorum,
		bcast:     bcast,
		log:       log,
		onDecided: onDecided,
		slots:     make(map[int32]*instance),
	}
}

func (e *Engine) slot(s int32) *instance {
	st, ok := e.slots[s]
	if !ok {
		st = &instance{}
		e.slots[s] = st
	}
	return st
}

// Propose initiates or restarts Phase 1 for slot with a freshly minted
// proposal number. If slot is already decided, this is a no-op: the
// engine must never overwrite a decided value.
func (e *Engine) Propose(slot int32, value string) {
	st := e.slot(slot)
	if st.consensusReached {
		return
	}
	st.myProposedValue = value
	st.promiseCount = 0
	st.phase2Started = false
	st.maxSeenAcceptedID = 0
	st.proposalID = e.gen.next()

	frame := Frame{
		Phase:      PhasePrepare,
		Slot:       slot,
		Sender:     e.nodeID,
		ProposalID: st.proposalID,
	}
	e.deliver(frame)
}

// deliver implements loopback delivery: the outbound frame is handed to
// this node's own dispatch logic before the transport ever sees it,
// collapsing the "N-1 remote peers" edge case out of quorum math and
// letting a 1-node configuration satisfy quorum with itself.
func (e *Engine) deliver(frame Frame) {
	e.dispatch(frame)
	if e.bcast != nil {
		e.bcast.Broadcast(frame)
	}
}

// HandleFrame processes an inbound (or remotely-broadcast) frame. There
// are no suspension points inside consensus processing: a call to
// HandleFrame runs to completion, including any cascading
// Accept/Accepted broadcasts and the on_decided callback, before
// returning.
func (e *Engine) HandleFrame(frame Frame) {
	e.dispatch(frame)
}

func (e *Engine) dispatch(frame Frame) {
	switch frame.Phase {
	case PhasePrepare:
		e.onPrepare(frame)
	case PhasePromise:
		e.onPromise(frame)
	case PhaseAccept:
		e.onAccept(frame)
	case PhaseAccepted:
		e.onAccepted(frame)
	default:
		e.logf("ignoring frame with unknown phase %d", frame.Phase)
	}
}

// onPrepare is the acceptor's Phase-1 handler. Rule: once a proposal
// number is promised, never accept or promise anything lower.
func (e *Engine) onPrepare(frame Frame) {
	st := e.slot(frame.Slot)
	if frame.ProposalID <= st.highestPromised {
		return // silently ignore; there is no explicit NACK message
	}
	st.highestPromised = frame.ProposalID
	e.gen.bumpPast(frame.ProposalID)
	reply := Frame{
		Phase:             PhasePromise,
		Slot:              frame.Slot,
		Sender:            e.nodeID,
		ProposalID:        frame.ProposalID,
		LastAcceptedID:    st.acceptedID,
		LastAcceptedValue: st.acceptedValue,
	}
	// The engine's Broadcaster capability has no unicast send, so Promise — like every other Paxos message — goes out to everyone;
	// the proposer filters on ProposalID/Slot.
	e.deliver(reply)
}

// onPromise is the proposer's Phase-1 response handler: collect promises
// for the current round, adopt the value tied to the maximum
// last-accepted id seen (never just the latest non-empty value observed —
// an older accepted value reported after a newer one must not overwrite
// it), and move to Phase 2 once a quorum of promises for the current
// proposal number has arrived.
func (e *Engine) onPromise(frame Frame) {
	st := e.slot(frame.Slot)
	if frame.ProposalID != st.proposalID {
		return // stale or foreign round
	}
	if st.phase2Started || st.consensusReached {
		return
	}
	if !frame.LastAcceptedID.IsZero() && frame.LastAcceptedID > st.maxSeenAcceptedID {
		st.maxSeenAcceptedID = frame.LastAcceptedID
		st.myProposedValue = frame.LastAcceptedValue
	}
	st.promiseCount++
	if st.promiseCount < e.quorum() {
		return
	}
	if st.myProposedValue == "" {
		return // null-value guard: never broadcast Accept for an empty value
	}
	st.phase2Started = true
	accept := Frame{
		Phase:      PhaseAccept,
		Slot:       frame.Slot,
		Sender:     e.nodeID,
		ProposalID: st.proposalID,
		Value:      st.myProposedValue,
	}
	e.deliver(accept)
}

// onAccept is the acceptor's Phase-2 handler: accept iff the proposal
// number is at least as high as what was promised (>=, not >, because
// accepting at the exact number we promised is the entire point of the
// promise).
func (e *Engine) onAccept(frame Frame) {
	st := e.slot(frame.Slot)
	if frame.ProposalID < st.highestPromised {
		return
	}
	st.highestPromised = frame.ProposalID
	e.gen.bumpPast(frame.ProposalID)
	st.acceptedID = frame.ProposalID
	st.acceptedValue = frame.Value
	reply := Frame{
		Phase:      PhaseAccepted,
		Slot:       frame.Slot,
		Sender:     e.nodeID,
		ProposalID: frame.ProposalID,
		Value:      frame.Value,
	}
	e.deliver(reply)
}

// onAccepted is the learner's handler: tally Accepted messages per
// (proposal, value); once a quorum agrees on the current round's
// proposal number, the value is chosen. consensusReached gates the
// one-shot on_decided emission.
func (e *Engine) onAccepted(frame Frame) {
	st := e.slot(frame.Slot)
	if st.consensusReached {
		return
	}
	if st.observedAccepted == nil {
		st.observedAccepted = make(map[ID]int)
	}
	st.observedAccepted[frame.ProposalID]++
	if st.observedAccepted[frame.ProposalID] < e.quorum() {
		return
	}
	if frame.Value == "" {
		return // non-empty decisions invariant: never decide on ∅
	}
	st.consensusReached = true
	st.decidedValue = frame.Value
	if e.onDecided != nil {
		e.onDecided(frame.Slot, frame.Value)
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.log != nil {
		e.log.Logf(format, args...)
	}
}

// Decided reports whether slot has a chosen value, and what it is.
func (e *Engine) Decided(slot int32) (string, bool) {
	st, ok := e.slots[slot]
	if !ok || !st.consensusReached {
		return "", false
	}
	return st.decidedValue, true
}
