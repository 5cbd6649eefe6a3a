// Command tutorchat is a terminal chat client for the BrainMate tutoring
// backend. It drives the full session lifecycle: tutor lookup, the password
// gate when the tutor requires one, and the message timeline with
// optimistic sends.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brainmate-ai/tutorchat/backend"
	"github.com/brainmate-ai/tutorchat/chat"
	"github.com/brainmate-ai/tutorchat/speech"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "backend base URL")
	tutorID := flag.String("tutor", "", "tutor to start a session with")
	studentID := flag.String("student", "", "student identifier")
	voice := flag.String("voice", "", "speak assistant replies with this voice")
	flag.Parse()

	if *tutorID == "" {
		fmt.Fprintln(os.Stderr, "tutorchat: -tutor is required")
		os.Exit(2)
	}

	notices := make(chan chat.Notice, 16)
	be := backend.New(*serverURL)

	opts := []chat.Option{
		chat.WithStudentID(*studentID),
		chat.WithPollInterval(5 * time.Second),
		chat.WithNotify(func(n chat.Notice) {
			select {
			case notices <- n:
			default:
			}
		}),
	}
	if *voice != "" {
		synth := speech.NewRemoteSynthesizer(be, nil, *voice)
		bridge := speech.NewBridge(synth, nil, speech.WithVoiceOutput(true))
		defer bridge.Close()
		opts = append(opts, chat.WithSpeaker(bridge))
	}

	client := chat.New(be, *tutorID, opts...)
	defer client.Close()

	final, err := tea.NewProgram(newModel(client, notices), tea.WithAltScreen()).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tutorchat: %v\n", err)
		os.Exit(1)
	}
	if m, ok := final.(model); ok && m.fatalErr != nil {
		fmt.Fprintf(os.Stderr, "tutorchat: %v\n", m.fatalErr)
		os.Exit(1)
	}
}

// startSession runs the client's Start on a background command so the UI
// stays responsive while the tutor is fetched.
func startSession(client *chat.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.Start(ctx); err != nil {
			return sessionErrMsg{err}
		}
		return stateChangedMsg{}
	}
}

func submitPassword(client *chat.Client, candidate string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.SubmitPassword(ctx, candidate); err != nil {
			return passwordErrMsg{err}
		}
		return stateChangedMsg{}
	}
}

func sendMessage(client *chat.Client, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := client.Send(ctx, content, chat.ModeChat); err != nil {
			return sendErrMsg{err}
		}
		return timelineMsg{}
	}
}
