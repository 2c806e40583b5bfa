package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/dialogue"
	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/relationship"
)

// DefaultPersona is used when the configuration names none.
const DefaultPersona = "You are Mnemo, a warm personal companion. You remember what people tell you and let your feelings about them show, gently."

const summaryPrompt = `Summarize the following conversation excerpt in two or three sentences.
Keep names, facts the user shared, and how they seemed to feel. Write in the third person.`

// replyPrompt assembles the system prompt for the reply request.
func replyPrompt(persona string, mood affect.Label, rel relationship.Data, mems []memory.Scored, now time.Time) string {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Your current mood: %s.\n", mood)
	fmt.Fprintf(&b, "How you feel about %s: %s (%d interactions so far).\n",
		rel.UserName, strings.ToLower(string(rel.Bucket())), rel.InteractionCount)

	if len(mems) > 0 {
		b.WriteString("\nThings you remember from earlier:\n")
		for _, m := range mems {
			e := m.Entry
			fmt.Fprintf(&b, "- %s ago, feeling %s: they said %q", ago(now.Sub(e.CreatedAt)), e.Label, e.UserText)
			if e.AssistantText != "" {
				fmt.Fprintf(&b, " and you replied %q", e.AssistantText)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nReply in character, briefly and naturally. Do not mention scores or internal state.")
	return b.String()
}

// curatedTexts lists the memory texts already surfaced in the prompt.
func curatedTexts(mems []memory.Scored) []string {
	out := make([]string, 0, 2*len(mems))
	for _, m := range mems {
		if m.Entry.UserText != "" {
			out = append(out, m.Entry.UserText)
		}
		if m.Entry.AssistantText != "" {
			out = append(out, m.Entry.AssistantText)
		}
	}
	return out
}

// renderTurns flattens turns for the summarizer.
func renderTurns(turns []dialogue.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	return strings.TrimSpace(b.String())
}

func ago(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "moments"
	case d < time.Hour:
		return units(int(d.Minutes()), "minute")
	case d < 48*time.Hour:
		return units(int(d.Hours()), "hour")
	}
	return units(int(d.Hours()/24), "day")
}

func units(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
