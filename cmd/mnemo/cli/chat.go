package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/observe"
	"github.com/felixgeelhaar/mnemo/internal/server"
	"github.com/felixgeelhaar/mnemo/internal/ui"
	"github.com/felixgeelhaar/mnemo/internal/ui/tui"
)

var (
	chatUser         string
	chatConversation string
	interactive      bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runChat(ctx)
	},
}

func init() {
	RootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", defaultUser(), "Name to chat as")
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "Conversation id (default: a new one)")
	chatCmd.Flags().BoolVarP(&interactive, "tui", "i", false, "Start interactive TUI")
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "you"
}

func runChat(ctx context.Context) error {
	// The TUI owns the terminal, so logs are dropped there.
	obs := newObserver(os.Stderr)
	if interactive {
		obs = observe.Discard()
	}

	e, err := openEnv(obs)
	if err != nil {
		return err
	}
	defer e.close()

	m, err := e.model()
	if err != nil {
		return err
	}
	reg := e.registry(m)
	server.Track(reg.Bus(), e.store, obs)

	conv := chatConversation
	if conv == "" {
		conv = "chat-" + uuid.NewString()[:8]
	}
	sess := reg.Session(conv)

	if interactive {
		model := tui.NewModel(ctx, "mnemo", chatUser, sess)
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		ui.Bind(reg.Bus(), conv, tui.NewTUI(program))
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	}

	console := ui.NewConsole(os.Stdout, verbose)
	ui.Bind(reg.Bus(), conv, console)
	return NewRunner(obs, sess, chatUser, os.Stdin, os.Stdout, console).Run(ctx)
}
