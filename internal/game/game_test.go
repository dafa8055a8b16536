package game

import "testing"

type fakeLogger struct{ lines []string }

func (f *fakeLogger) Logf(format string, args ...any) { f.lines = append(f.lines, format) }

type fakeSubmitter struct {
	calls []string
	err   error
}

func (f *fakeSubmitter) Submit(command string) error {
	f.calls = append(f.calls, command)
	return f.err
}

func readyLobby(t *testing.T, selfID int32, players []int32) (*State, *fakeSubmitter) {
	t.Helper()
	sub := &fakeSubmitter{}
	s := New(selfID, sub, &fakeLogger{})
	s.SetKnownPlayers(players)
	return s, sub
}

func TestLowestKnownPlayerAutoSubmitsStartGame(t *testing.T) {
	s, sub := readyLobby(t, 1, []int32{1, 2, 3})
	s.Apply(FormatVoteStart(1))
	s.Apply(FormatVoteStart(2))
	if len(sub.calls) != 0 {
		t.Fatalf("submitted before all players ready: %v", sub.calls)
	}
	s.Apply(FormatVoteStart(3))
	if len(sub.calls) != 1 || sub.calls[0] != CmdStartGame {
		t.Fatalf("expected exactly one START_GAME submit, got %v", sub.calls)
	}
}

func TestOnlyLowestKnownPlayerSubmitsStartGame(t *testing.T) {
	s, sub := readyLobby(t, 2, []int32{1, 2, 3})
	s.Apply(FormatVoteStart(1))
	s.Apply(FormatVoteStart(2))
	s.Apply(FormatVoteStart(3))
	if len(sub.calls) != 0 {
		t.Fatalf("non-lowest peer submitted START_GAME: %v", sub.calls)
	}
}

func TestDeterministicRoleAssignmentAcrossPeers(t *testing.T) {
	players := []int32{1, 2, 3, 4, 5, 6}
	var seed int64
	for _, id := range players {
		seed += int64(id)
	}
	if seed != 21 {
		t.Fatalf("sanity check failed: expected seed 21 for players 1..6, got %d", seed)
	}
	a := New(1, nil, nil)
	a.SetKnownPlayers(players)
	a.Apply(CmdStartGame)

	b := New(2, nil, nil)
	b.SetKnownPlayers(players)
	b.Apply(CmdStartGame)

	for _, id := range players {
		if a.Roles[id] != b.Roles[id] {
			t.Fatalf("role assignment diverged for player %d: %v vs %v", id, a.Roles[id], b.Roles[id])
		}
	}
	wolves, villagers := a.aliveCounts()
	if wolves != 2 || villagers != 4 {
		t.Fatalf("expected 2 wolves / 4 villagers for 6 players, got %d/%d", wolves, villagers)
	}
	if a.Phase != Night {
		t.Fatalf("expected Night phase after START_GAME, got %s", a.Phase)
	}
	if a.Vote == nil || a.Vote.Kind != WolfKill {
		t.Fatal("expected an open WolfKill session after START_GAME")
	}
}

func TestWolfKillEliminationEndsThreePlayerGame(t *testing.T) {
	// Three players means one wolf and two villagers. The wolf's first
	// kill leaves one wolf and one villager alive, which satisfies the
	// wolves >= villagers win condition immediately.
	s := New(1, nil, nil)
	s.SetKnownPlayers([]int32{1, 2, 3})
	s.Apply(CmdStartGame)

	var wolf, villager int32
	for id, r := range s.Roles {
		if r == Werewolf {
			wolf = id
		} else {
			villager = id
		}
	}
	s.Apply(FormatVote(wolf, villager, WolfKill))

	if !s.Alive[wolf] {
		t.Fatal("werewolf should still be alive after casting its own ballot")
	}
	if s.Alive[villager] {
		t.Fatal("targeted villager should have been eliminated once the WolfKill session closed")
	}
	if s.Phase != GameOver {
		t.Fatalf("expected GameOver once wolves >= villagers, got %s", s.Phase)
	}
	if s.Winner != "Werewolves" {
		t.Fatalf("expected Werewolves to win, got %q", s.Winner)
	}
}

func TestThreePeerStartScenario(t *testing.T) {
	// Peers {101, 202, 303}: seed is 606, wolf count is max(1, 3/3) = 1,
	// and two peers applying the same START_GAME slot must produce
	// identical role assignments.
	players := []int32{101, 202, 303}

	a := New(101, nil, nil)
	a.SetKnownPlayers(players)
	a.Apply(CmdStartGame)

	b := New(303, nil, nil)
	b.SetKnownPlayers(players)
	b.Apply(CmdStartGame)

	if a.Phase != Night || b.Phase != Night {
		t.Fatalf("expected both peers in Night, got %s and %s", a.Phase, b.Phase)
	}
	wolves, villagers := a.aliveCounts()
	if wolves != 1 || villagers != 2 {
		t.Fatalf("expected 1 wolf / 2 villagers, got %d/%d", wolves, villagers)
	}
	for _, id := range players {
		if a.Roles[id] != b.Roles[id] {
			t.Fatalf("role assignment diverged for player %d: %v vs %v", id, a.Roles[id], b.Roles[id])
		}
	}
}

func TestTieVoteEliminatesNoOneAndAdvancesPhase(t *testing.T) {
	s := New(1, nil, nil)
	s.SetKnownPlayers([]int32{1, 2, 3, 4})
	s.Apply(CmdStartGame)
	s.Phase = Day
	eligible := s.aliveAll()
	s.Vote = newVoteSession(VillagerLynch, eligible)

	ids := make([]int32, 0, 4)
	for id := range eligible {
		ids = append(ids, id)
	}
	s.Apply(FormatVote(ids[0], ids[0], VillagerLynch))
	s.Apply(FormatVote(ids[1], ids[0], VillagerLynch))
	s.Apply(FormatVote(ids[2], ids[1], VillagerLynch))
	s.Apply(FormatVote(ids[3], ids[1], VillagerLynch))

	for _, id := range ids {
		if !s.Alive[id] {
			t.Fatalf("player %d eliminated despite a tied vote", id)
		}
	}
	if s.Phase != Night {
		t.Fatalf("expected phase to advance to Night after a tied Day vote, got %s", s.Phase)
	}
}

func TestDuplicateBallotIsDropped(t *testing.T) {
	// Seven players yields two wolves, so one wolf's ballot leaves the
	// WolfKill session open for the duplicate attempt to be dropped into.
	s := New(1, nil, nil)
	s.SetKnownPlayers([]int32{1, 2, 3, 4, 5, 6, 7})
	s.Apply(CmdStartGame)

	wolves := make([]int32, 0, 2)
	for id, r := range s.Roles {
		if r == Werewolf {
			wolves = append(wolves, id)
		}
	}
	if len(wolves) != 2 {
		t.Fatalf("expected 2 wolves among 7 players, got %d", len(wolves))
	}

	s.Apply(FormatVote(wolves[0], wolves[1], WolfKill))
	if s.Vote == nil {
		t.Fatal("session closed after one of two eligible ballots")
	}
	before := len(s.Vote.Ballots)
	s.Apply(FormatVote(wolves[0], wolves[0], WolfKill))
	if s.Vote == nil || len(s.Vote.Ballots) != before {
		t.Fatal("duplicate ballot from the same voter was not dropped")
	}
}

func TestMalformedCommandIsDroppedWithoutPanic(t *testing.T) {
	s := New(1, nil, nil)
	s.SetKnownPlayers([]int32{1, 2})
	s.Apply("VOTE_START:notanumber")
	s.Apply("VOTE:1:2")
	s.Apply("VOTE:a:b:WolfKill")
	s.Apply("NONSENSE_COMMAND")
	if s.Phase != Lobby {
		t.Fatalf("malformed commands should leave phase untouched, got %s", s.Phase)
	}
}

func TestResetGameIsLegalInAnyPhase(t *testing.T) {
	s := New(1, nil, nil)
	s.SetKnownPlayers([]int32{1, 2, 3})
	s.Apply(CmdStartGame)
	if s.Phase == Lobby {
		t.Fatal("setup failed: game did not start")
	}
	s.Apply(CmdResetGame)
	if s.Phase != Lobby {
		t.Fatalf("expected RESET_GAME to return to Lobby, got %s", s.Phase)
	}
	if len(s.Roles) != 0 || len(s.Alive) != 0 || s.Vote != nil {
		t.Fatal("RESET_GAME did not clear role/alive/vote state")
	}
}

func TestIneligibleVoterBallotDropped(t *testing.T) {
	s := New(1, nil, nil)
	s.SetKnownPlayers([]int32{1, 2, 3})
	s.Apply(CmdStartGame)
	var villager int32
	for id, r := range s.Roles {
		if r == Villager {
			villager = id
			break
		}
	}
	// Villagers are not eligible to cast a WolfKill ballot.
	s.Apply(FormatVote(villager, villager, WolfKill))
	if _, voted := s.Vote.Ballots[villager]; voted {
		t.Fatal("ineligible voter's ballot was recorded")
	}
}
