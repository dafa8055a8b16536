package game

import "sort"

// Submitter lets the state machine propose a new command into the
// replicated log on its own initiative — the only such case being the
// lowest-known-player auto-start once every known player has signaled
// VOTE_START. The call happens synchronously from inside Apply and may
// cascade all the way back into the consensus engine; the whole stack is
// single-goroutine and lock-free, so the reentry is safe. The driver
// resolves its own pending command before invoking Apply so that this
// cascaded Submit is never rejected as concurrent.
type Submitter interface {
	Submit(command string) error
}

// Logger is the minimal logging capability State needs to report dropped
// malformed commands and ignored preconditions without ever panicking.
type Logger interface {
	Logf(format string, args ...any)
}

// State is the deterministic application state machine: a pure function
// from the decided command sequence to phase, roles, the alive set, and
// vote tallies. Every field here is derived solely from applied commands
// plus the externally-fed KnownPlayers membership snapshot — nothing
// reads wall-clock time or host randomness once a game is underway.
type State struct {
	Phase        Phase
	Roles        map[int32]Role
	Alive        map[int32]bool
	LobbyReady   map[int32]bool
	KnownPlayers map[int32]bool
	Vote         *VoteSession
	Winner       string

	selfID    int32
	submitter Submitter
	log       Logger
}

// New builds an empty lobby. selfID identifies which node this State
// instance belongs to, used solely to decide whether this node is the one
// that should auto-submit START_GAME.
func New(selfID int32, submitter Submitter, log Logger) *State {
	return &State{
		Phase:        Lobby,
		Roles:        make(map[int32]Role),
		Alive:        make(map[int32]bool),
		LobbyReady:   make(map[int32]bool),
		KnownPlayers: make(map[int32]bool),
		selfID:       selfID,
		submitter:    submitter,
		log:          log,
	}
}

// SetKnownPlayers feeds the current transport-level peer set into the
// state machine. It is a no-op outside Lobby: membership is frozen the
// moment a game starts — the alive set only ever changes through
// consensus-decided commands, never directly from a transport event.
func (s *State) SetKnownPlayers(ids []int32) {
	if s.Phase != Lobby {
		s.logf("ignoring membership update outside Lobby")
		return
	}
	known := make(map[int32]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	s.KnownPlayers = known
}

// Apply advances the state machine by exactly one decided command. It
// never panics: a malformed or out-of-phase command is logged and
// dropped, leaving state unchanged, so the driver can always advance past
// the slot that carried it.
func (s *State) Apply(command string) {
	p := parseCommand(command)
	switch p.tag {
	case "VOTE_START":
		s.applyVoteStart(p.args)
	case CmdStartGame:
		s.applyStartGame()
	case "VOTE":
		s.applyVote(p.args)
	case CmdResetGame:
		s.applyReset()
	default:
		s.logf("dropping unrecognized command %q", command)
	}
}

func (s *State) applyVoteStart(args []string) {
	if len(args) != 1 {
		s.logf("malformed VOTE_START command: %v", args)
		return
	}
	id, err := parseInt32(args[0])
	if err != nil {
		s.logf("malformed VOTE_START id: %v", err)
		return
	}
	if s.Phase != Lobby {
		s.logf("ignoring VOTE_START:%d outside Lobby", id)
		return
	}
	s.LobbyReady[id] = true

	if len(s.KnownPlayers) == 0 || len(s.LobbyReady) != len(s.KnownPlayers) {
		return
	}
	if s.minKnown() != s.selfID {
		return
	}
	if s.submitter == nil {
		return
	}
	if err := s.submitter.Submit(CmdStartGame); err != nil {
		s.logf("auto-submit of START_GAME failed: %v", err)
	}
}

func (s *State) minKnown() int32 {
	first := true
	var min int32
	for id := range s.KnownPlayers {
		if first || id < min {
			min = id
			first = false
		}
	}
	return min
}

func (s *State) applyStartGame() {
	if s.Phase != Lobby {
		s.logf("ignoring START_GAME outside Lobby")
		return
	}
	if len(s.KnownPlayers) == 0 {
		s.logf("ignoring START_GAME with no known players")
		return
	}
	players := make([]int32, 0, len(s.KnownPlayers))
	for id := range s.KnownPlayers {
		players = append(players, id)
	}
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })

	var seed int64
	for _, id := range players {
		seed += int64(id)
	}
	order := shuffle(players, seed)

	wolfCount := len(order) / 3
	if wolfCount < 1 {
		wolfCount = 1
	}

	s.Roles = make(map[int32]Role, len(order))
	s.Alive = make(map[int32]bool, len(order))
	for i, id := range order {
		if i < wolfCount {
			s.Roles[id] = Werewolf
		} else {
			s.Roles[id] = Villager
		}
		s.Alive[id] = true
	}

	s.Phase = Night
	s.Vote = newVoteSession(WolfKill, s.aliveWerewolves())
}

func (s *State) aliveWerewolves() map[int32]bool {
	out := make(map[int32]bool)
	for id, alive := range s.Alive {
		if alive && s.Roles[id] == Werewolf {
			out[id] = true
		}
	}
	return out
}

func (s *State) aliveAll() map[int32]bool {
	out := make(map[int32]bool)
	for id, alive := range s.Alive {
		if alive {
			out[id] = true
		}
	}
	return out
}

func (s *State) applyVote(args []string) {
	if len(args) != 3 {
		s.logf("malformed VOTE command: %v", args)
		return
	}
	voter, err := parseInt32(args[0])
	if err != nil {
		s.logf("malformed VOTE voter: %v", err)
		return
	}
	target, err := parseInt32(args[1])
	if err != nil {
		s.logf("malformed VOTE target: %v", err)
		return
	}
	kind, ok := parseVoteKind(args[2])
	if !ok {
		s.logf("malformed VOTE kind: %q", args[2])
		return
	}
	if s.Vote == nil || s.Vote.Kind != kind {
		s.logf("dropping VOTE for %s: no matching session open", kind)
		return
	}
	if _, already := s.Vote.Ballots[voter]; already {
		s.logf("dropping duplicate VOTE from %d", voter)
		return
	}
	if !s.Vote.Eligible[voter] {
		s.logf("dropping VOTE from ineligible voter %d", voter)
		return
	}
	s.Vote.cast(voter, target)
	if s.Vote.closed() {
		s.finalizeVote()
	}
}

func (s *State) finalizeVote() {
	kind := s.Vote.Kind
	if target, ok := s.Vote.tally(); ok {
		s.Alive[target] = false
		s.Roles[target] = Dead
	}
	s.Vote = nil

	wolves, villagers := s.aliveCounts()
	switch {
	case wolves == 0:
		s.Phase = GameOver
		s.Winner = "Villagers"
		return
	case wolves >= villagers:
		s.Phase = GameOver
		s.Winner = "Werewolves"
		return
	}

	if kind == WolfKill {
		s.Phase = Day
		s.Vote = newVoteSession(VillagerLynch, s.aliveAll())
	} else {
		s.Phase = Night
		s.Vote = newVoteSession(WolfKill, s.aliveWerewolves())
	}
}

// applyReset restores the Lobby. Unlike every other command, RESET_GAME
// is always legal regardless of phase — it is the escape hatch for a
// stuck or finished game.
func (s *State) applyReset() {
	s.Phase = Lobby
	s.Roles = make(map[int32]Role)
	s.Alive = make(map[int32]bool)
	s.LobbyReady = make(map[int32]bool)
	s.Vote = nil
	s.Winner = ""
}

func (s *State) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Logf(format, args...)
	}
}
