package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Command constructors — the only places in this codebase that produce
// the strings submitted to the replicated log.

// FormatVoteStart builds the VOTE_START command a node submits to signal
// it is ready to leave the lobby.
func FormatVoteStart(id int32) string {
	return fmt.Sprintf("VOTE_START:%d", id)
}

// CmdStartGame is the literal command that begins the game.
const CmdStartGame = "START_GAME"

// FormatVote builds a VOTE ballot command for the active session.
func FormatVote(voter, target int32, kind VoteKind) string {
	return fmt.Sprintf("VOTE:%d:%d:%s", voter, target, kind)
}

// CmdResetGame is the replicated reset command: any node may submit it to
// return a stuck or finished game to the lobby, for every peer at once.
const CmdResetGame = "RESET_GAME"

// parsed is the result of splitting a decided command into its tag and
// arguments. Malformed or unknown commands are never fatal — a parse
// failure is logged and dropped, the state machine is left untouched, and
// the driver still advances past the slot.
type parsed struct {
	tag  string
	args []string
}

func parseCommand(command string) parsed {
	parts := strings.Split(command, ":")
	return parsed{tag: parts[0], args: parts[1:]}
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int32(v), nil
}
