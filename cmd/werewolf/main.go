package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/senutpal/werewolf/internal/game"
	"github.com/senutpal/werewolf/internal/node"
	"github.com/senutpal/werewolf/internal/transport"
)

const (
	defaultTCPPort       = 7070
	defaultDiscoveryPort = 7071
)

// slogLogger adapts a *slog.Logger to the Logf-style capability every
// internal package expects.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Logf(format string, args ...any) { s.l.Info(fmt.Sprintf(format, args...)) }

func main() {
	port := flag.Int("port", defaultTCPPort, "TCP port to listen on")
	discoveryPort := flag.Int("discovery-port", defaultDiscoveryPort, "UDP port used for peer discovery")
	name := flag.String("name", "", "display name (prompted interactively if empty)")
	flag.Parse()

	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	logger := slog.New(handler)
	log := slogLogger{logger}

	pterm.Print("\n")
	title, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Were", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("wolf", pterm.FgRed.ToStyle()),
	).Srender()
	pterm.Print(title)

	playerName := *name
	if playerName == "" {
		playerName, _ = pterm.DefaultInteractiveTextInput.
			WithDefaultText("Enter your username").WithDefaultValue("").Show()
	}
	pterm.Println()
	pterm.Info.Printfln("Playing as %s", playerName)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		pterm.Error.Printfln("listen on port %d: %v", *port, err)
		os.Exit(1)
	}
	pterm.Info.Printfln("Listening on %s", listener.Addr())

	id, err := node.NewNodeID()
	if err != nil {
		pterm.Error.Printfln("generating node id: %v", err)
		os.Exit(1)
	}

	srv := transport.NewServer(id, playerName, listener, log)
	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error("transport accept loop stopped", "error", err)
		}
	}()

	disc := transport.NewDiscoverer(*discoveryPort, *port)
	if err := disc.Start(); err != nil {
		pterm.Warning.Printfln("discovery disabled: %v", err)
	} else {
		go dialDiscovered(srv, disc, log)
	}

	n := node.New(id, playerName, srv, log)
	go n.Run()

	pterm.Success.Printfln("Node %d ready. Type 'ready' when every player has joined.", id)
	runLobbyPrompt(n)
	renderLoop(n)
}

// dialDiscovered connects to newly sighted peers as they're announced.
// Connection failures are logged and otherwise ignored: discovery repeats
// every couple of seconds, so a transient failure self-heals.
func dialDiscovered(srv *transport.Server, disc *transport.Discoverer, log slogLogger) {
	for found := range disc.Sightings {
		addr := fmt.Sprintf("%s:%d", found.Addr, found.Port)
		if err := srv.Dial(addr); err != nil {
			log.Logf("dial %s failed: %v", addr, err)
		}
	}
}

// runLobbyPrompt lets the local player signal readiness once, then
// returns; the actual game start is driven by consensus, not this
// function.
func runLobbyPrompt(n *node.Node) {
	for {
		snap := n.Snapshot()
		if snap.Phase != game.Lobby {
			return
		}
		line, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Type 'ready' to signal you want to start").WithDefaultValue("").Show()
		if strings.TrimSpace(strings.ToLower(line)) == "ready" {
			if err := n.VoteStart(); err != nil {
				pterm.Error.Printfln("vote start: %v", err)
				continue
			}
			return
		}
	}
}

// renderLoop redraws the current phase, membership, and (once assigned)
// this player's own role after every observable change, and prompts for
// a ballot whenever a voting session this player can act in is open.
func renderLoop(n *node.Node) {
	area, _ := pterm.DefaultArea.Start()
	var lastPhase game.Phase = -1
	for {
		snap := n.Snapshot()
		area.Update(renderSnapshot(n.ID(), snap))

		if snap.Phase == game.GameOver {
			pterm.Success.Printfln("Game over. Winner: %s", snap.Winner)
			area.Stop()
			return
		}

		if snap.Phase != lastPhase && snap.Phase != game.Lobby {
			promptBallotIfEligible(n, snap)
		}
		lastPhase = snap.Phase

		time.Sleep(500 * time.Millisecond)
	}
}

func renderSnapshot(self int32, snap node.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s\n", displayName(snap.Names, self))
	fmt.Fprintf(&b, "Phase: %s\n", snap.Phase)
	if role, ok := snap.Roles[self]; ok {
		fmt.Fprintf(&b, "Your role: %s\n", role)
	}
	fmt.Fprintf(&b, "Players known: %d, ready: %d\n", len(snap.Known), len(snap.LobbyReady))
	for id := range snap.Known {
		status := "waiting"
		if snap.LobbyReady[id] {
			status = "ready"
		}
		fmt.Fprintf(&b, "  - %s (%s)\n", displayName(snap.Names, id), status)
	}
	if snap.HasVote {
		fmt.Fprintf(&b, "Vote in progress (%s): %d/%d ballots cast\n", snap.VoteKind, snap.Ballots, snap.Eligible)
	}
	return b.String()
}

// displayName falls back to a numeric label for a player whose name this
// node has not learned yet (for example, a peer it only knows about
// transitively and has not itself connected to).
func displayName(names map[int32]string, id int32) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("player %d", id)
}

func promptBallotIfEligible(n *node.Node, snap node.Snapshot) {
	if !snap.HasVote {
		return
	}
	if snap.VoteKind == game.WolfKill && snap.Roles[n.ID()] != game.Werewolf {
		return
	}
	if !snap.Alive[n.ID()] {
		return
	}
	pterm.Info.Printfln("Eligible targets: %s", rosterLine(snap))
	targetStr, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(fmt.Sprintf("Enter the player id to target for %s", snap.VoteKind)).Show()
	target, err := strconv.Atoi(strings.TrimSpace(targetStr))
	if err != nil {
		pterm.Error.Println("invalid player id")
		return
	}
	if err := n.Vote(int32(target), snap.VoteKind); err != nil {
		pterm.Error.Printfln("vote: %v", err)
	}
}

// rosterLine renders "id:name" pairs for every alive player, so a voter
// can pick an id while seeing whose name it belongs to.
func rosterLine(snap node.Snapshot) string {
	var parts []string
	for id, alive := range snap.Alive {
		if !alive {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d:%s", id, displayName(snap.Names, id)))
	}
	return strings.Join(parts, ", ")
}
