package paxos

// instance holds the per-slot Paxos state: acceptor, proposer, and
// learner roles all live here since one node plays all three for every
// slot. One is allocated lazily the first time a slot is touched, by
// Engine.slot.
type instance struct {
	// Acceptor state.
	highestPromised ID
	acceptedID      ID
	acceptedValue   string

	// Proposer state for this node's current round in this slot.
	proposalID        ID
	myProposedValue   string
	promiseCount      int
	phase2Started     bool
	maxSeenAcceptedID ID

	// Learner state.
	observedAccepted map[ID]int
	consensusReached bool
	decidedValue     string
}
