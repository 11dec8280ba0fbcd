// Command pitchroom-call is a terminal client for the relay gateway: it
// lists personas, places a role-play call through the gateway, and shows
// the live call status until the call ends.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pitchroom "github.com/pitchroom/pitchroom/sdk"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("pitchroom-call", flag.ContinueOnError)
	fs.SetOutput(stderr)
	gateway := fs.String("gateway", "http://localhost:8080", "relay gateway base URL")
	personaID := fs.String("persona", "", "persona id to call (empty lists personas and exits)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := pitchroom.NewClient(*gateway)

	personas, err := client.Personas(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "pitchroom-call: list personas: %v\n", err)
		return 1
	}

	if *personaID == "" {
		for _, p := range personas {
			voice := ""
			if p.VoiceEnabled() {
				voice = " [voice]"
			}
			fmt.Fprintf(stdout, "%s  %s - %s, %s%s\n", p.ID, p.Name, p.Role, p.Company, voice)
		}
		return 0
	}

	var selected *pitchroom.Persona
	for i := range personas {
		if personas[i].ID == *personaID {
			selected = &personas[i]
			break
		}
	}
	if selected == nil {
		fmt.Fprintf(stderr, "pitchroom-call: unknown persona %q\n", *personaID)
		return 1
	}

	session := pitchroom.NewCallSession(client, pitchroom.NoopMicrophone{})
	defer session.Close()

	if err := session.SelectPersona(*selected); err != nil {
		fmt.Fprintf(stderr, "pitchroom-call: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "calling %s (%s, %s)...\n", selected.Name, selected.Role, selected.Company)
	if err := session.StartCall(ctx); err != nil {
		fmt.Fprintf(stderr, "pitchroom-call: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "connected. commands: m = toggle mute, q = hang up")

	// Stdin commands arrive on their own goroutine so the status line
	// keeps updating while we wait.
	cmds := make(chan string)
	go func() {
		defer close(cmds)
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			cmds <- strings.TrimSpace(sc.Text())
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			session.EndCall()
			fmt.Fprintln(stdout, "\ncall ended")
			return 0
		case cmd, ok := <-cmds:
			switch {
			case !ok, cmd == "q":
				session.EndCall()
				fmt.Fprintln(stdout, "\ncall ended")
				return 0
			case cmd == "m":
				if session.ToggleMute() {
					fmt.Fprintln(stdout, "muted")
				} else {
					fmt.Fprintln(stdout, "unmuted")
				}
			}
		case <-ticker.C:
			if session.State() == pitchroom.StateIdle {
				if err := session.LastError(); err != nil {
					fmt.Fprintf(stderr, "\npitchroom-call: %v\n", err)
					return 1
				}
				fmt.Fprintln(stdout, "\ncall ended")
				return 0
			}
			d := session.Duration()
			fmt.Fprintf(stdout, "\r%02d:%02d  speaking=%s  muted=%v ",
				d/60, d%60, session.Speaking(), session.Muted())
		}
	}
}
