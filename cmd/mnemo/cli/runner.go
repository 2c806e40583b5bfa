package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/mnemo/internal/agent"
	"github.com/felixgeelhaar/mnemo/internal/observe"
	"github.com/felixgeelhaar/mnemo/internal/ui"
)

// Runner drives a line-oriented chat over a reader and writer.
type Runner struct {
	Observer *observe.Observer
	Session  *agent.Session
	User     string
	In       io.Reader
	Out      io.Writer
	UI       ui.UI
}

func NewRunner(obs *observe.Observer, s *agent.Session, user string, in io.Reader, out io.Writer, u ui.UI) *Runner {
	if u == nil {
		u = ui.SilentUI{}
	}
	return &Runner{
		Observer: obs,
		Session:  s,
		User:     user,
		In:       in,
		Out:      out,
		UI:       u,
	}
}

// Run reads one message per line until EOF, /quit, or ctx is done. Invalid
// messages are reported and skipped; other turn failures end the chat.
func (r *Runner) Run(ctx context.Context) error {
	r.Observer.Log().Info().Str("conversation", r.Session.ID()).Str("user", r.User).Msg("chat started")
	fmt.Fprintf(r.Out, "Talking as %s in %s. Commands: /memories, /state, /quit\n", r.User, r.Session.ID())

	sc := bufio.NewScanner(r.In)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.Out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(r.Out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/memories":
			r.printMemories()
			continue
		case "/state":
			r.printState()
			continue
		}

		rep, err := r.Session.Turn(ctx, r.User, line)
		if errors.Is(err, agent.ErrInvalidInput) {
			fmt.Fprintf(r.Out, "! %v\n", err)
			continue
		}
		if err != nil {
			r.Observer.Log().Error().Err(err).Msg("turn failed")
			return err
		}
		fmt.Fprintf(r.Out, "mnemo: %s\n", rep.Reply)
		r.UI.UpdateState(r.Session.Snapshot(r.User))
	}
}

func (r *Runner) printMemories() {
	mems := r.Session.Memories()
	if len(mems) == 0 {
		fmt.Fprintln(r.Out, "no memories yet")
		return
	}
	for _, e := range mems {
		fmt.Fprintf(r.Out, "  %s  %-12s v=%s a=%s  %q\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.Label,
			observe.Score(e.Valence), observe.Score(e.Arousal), e.UserText)
	}
}

func (r *Runner) printState() {
	snap := r.Session.Snapshot(r.User)
	fmt.Fprintf(r.Out, "  mood %s (v=%s a=%s), settled %s\n",
		snap.MoodLabel, observe.Score(snap.Mood.Valence), observe.Score(snap.Mood.Arousal), snap.CentroidLabel)
	fmt.Fprintf(r.Out, "  relationship %s: %d points over %d interactions\n",
		snap.Bucket, snap.Relationship.RelationshipPoints, snap.Relationship.InteractionCount)
	fmt.Fprintf(r.Out, "  %d memories, %d buffered turns\n", snap.Memories, snap.Buffered)
}
