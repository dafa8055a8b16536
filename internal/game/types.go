// Package game implements the deterministic application state machine: a
// pure function from the decided command sequence to phase, roles, the
// alive set, and vote tallies. Every peer that applies the same sequence
// of decided commands must end up with byte-identical state; nothing in
// this package may read wall-clock time, host randomness, or any other
// non-replicated input once a game has started.
package game

// Phase is the current stage of the game.
type Phase int

const (
	Lobby Phase = iota
	Night
	Day
	GameOver
)

func (p Phase) String() string {
	switch p {
	case Lobby:
		return "Lobby"
	case Night:
		return "Night"
	case Day:
		return "Day"
	case GameOver:
		return "GameOver"
	default:
		return "Unknown"
	}
}

// Role is a player's hidden (or revealed-on-death) allegiance.
type Role int

const (
	Unassigned Role = iota
	Villager
	Werewolf
	Dead
)

func (r Role) String() string {
	switch r {
	case Villager:
		return "Villager"
	case Werewolf:
		return "Werewolf"
	case Dead:
		return "Dead"
	default:
		return "Unassigned"
	}
}

// VoteKind distinguishes the two elimination rounds a game alternates
// between.
type VoteKind int

const (
	WolfKill VoteKind = iota
	VillagerLynch
)

func (k VoteKind) String() string {
	if k == WolfKill {
		return "WolfKill"
	}
	return "VillagerLynch"
}

func parseVoteKind(s string) (VoteKind, bool) {
	switch s {
	case "WolfKill":
		return WolfKill, true
	case "VillagerLynch":
		return VillagerLynch, true
	default:
		return 0, false
	}
}

// VoteSession holds the ballots and eligible voters for one round of
// elimination.
type VoteSession struct {
	Kind     VoteKind
	Ballots  map[int32]int32 // voter -> target
	Eligible map[int32]bool
}

func newVoteSession(kind VoteKind, eligible map[int32]bool) *VoteSession {
	elig := make(map[int32]bool, len(eligible))
	for id, ok := range eligible {
		if ok {
			elig[id] = true
		}
	}
	return &VoteSession{Kind: kind, Ballots: make(map[int32]int32), Eligible: elig}
}
