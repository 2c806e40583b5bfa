package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/mnemo/internal/agent"
	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/relationship"
)

type fakeChat struct {
	reply string
	err   error
	texts []string
	mems  []memory.Entry
}

func (f *fakeChat) Turn(_ context.Context, _ string, text string) (*agent.Report, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Report{Reply: f.reply}, nil
}

func (f *fakeChat) Snapshot(user string) agent.Snapshot {
	return agent.Snapshot{
		MoodLabel:    "joy",
		Bucket:       relationship.Friendly,
		Relationship: relationship.Data{UserName: user, RelationshipPoints: 35},
		Turns:        len(f.texts),
	}
}

func (f *fakeChat) Memories() []memory.Entry { return f.mems }

func ready(t *testing.T, chat Chatter) Model {
	t.Helper()
	m := NewModel(context.Background(), "mnemo", "ada", chat)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func enter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.Input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_Turn(t *testing.T) {
	chat := &fakeChat{reply: "Hello Ada!"}
	m := ready(t, chat)

	m, cmd := enter(t, m, "hi there")
	if !m.Busy || cmd == nil {
		t.Fatal("expected a pending turn")
	}
	if m.Input.Value() != "" {
		t.Errorf("input should be cleared, got %q", m.Input.Value())
	}

	// A second submit while busy is ignored.
	m2, cmd2 := enter(t, m, "again")
	if cmd2 != nil || len(m2.Transcript) != len(m.Transcript) {
		t.Error("submit while busy should be ignored")
	}

	msg := cmd()
	rep, ok := msg.(ReplyMsg)
	if !ok {
		t.Fatalf("expected ReplyMsg, got %T", msg)
	}
	next, _ := m.Update(rep)
	m = next.(Model)

	if m.Busy {
		t.Error("turn should be finished")
	}
	if len(chat.texts) != 1 || chat.texts[0] != "hi there" {
		t.Errorf("unexpected turns sent: %v", chat.texts)
	}
	if len(m.Transcript) != 2 || !strings.Contains(m.Transcript[1], "Hello Ada!") {
		t.Errorf("unexpected transcript: %v", m.Transcript)
	}
	if m.State.Relationship.RelationshipPoints != 35 {
		t.Errorf("state not refreshed: %+v", m.State)
	}
	if view := m.View(); !strings.Contains(view, "Friendly") || !strings.Contains(view, "mood joy") {
		t.Errorf("view missing meter line:\n%s", view)
	}
}

func TestModel_TurnError(t *testing.T) {
	m := ready(t, &fakeChat{err: errors.New("model offline")})
	m, cmd := enter(t, m, "hello")
	next, _ := m.Update(cmd())
	m = next.(Model)
	if m.Busy {
		t.Error("error should end the turn")
	}
	last := m.Transcript[len(m.Transcript)-1]
	if !strings.Contains(last, "model offline") {
		t.Errorf("expected error line, got %q", last)
	}
}

func TestModel_Commands(t *testing.T) {
	chat := &fakeChat{mems: []memory.Entry{{
		CreatedAt: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		Label:     "joy",
		UserText:  "I adopted a cat",
	}}}
	m := ready(t, chat)

	m, cmd := enter(t, m, "/memories")
	if cmd != nil {
		t.Error("/memories should not start a turn")
	}
	if got := m.Transcript[0]; !strings.Contains(got, "1 memories") || !strings.Contains(got, `"I adopted a cat"`) {
		t.Errorf("unexpected memories listing %q", got)
	}

	m, _ = enter(t, m, "   ")
	if len(m.Transcript) != 1 {
		t.Error("blank input should be ignored")
	}

	m, cmd = enter(t, m, "/quit")
	if !m.Quitting || cmd == nil {
		t.Error("/quit should quit")
	}
	if len(chat.texts) != 0 {
		t.Errorf("commands should not reach the conversation: %v", chat.texts)
	}
}

func TestModel_Messages(t *testing.T) {
	m := ready(t, &fakeChat{})
	next, _ := m.Update(StatusMsg("recalled 2 of 5 memories"))
	next, _ = next.Update(LogMsg("note"))
	next, _ = next.Update(StateMsg(agent.Snapshot{Bucket: relationship.Love}))
	m = next.(Model)
	if m.Status != "recalled 2 of 5 memories" || m.Transcript[0] != "note" || m.State.Bucket != relationship.Love {
		t.Errorf("unexpected model state: status=%q transcript=%v bucket=%s", m.Status, m.Transcript, m.State.Bucket)
	}
}

func TestModel_NotReady(t *testing.T) {
	m := NewModel(context.Background(), "mnemo", "ada", &fakeChat{})
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("expected initializing view before the first resize")
	}
}

func TestMeterFraction(t *testing.T) {
	tests := []struct {
		points int
		want   float64
	}{
		{relationship.MinPoints, 0},
		{0, 0.5},
		{relationship.MaxPoints, 1},
		{500, 1},
	}
	for _, tt := range tests {
		if got := MeterFraction(tt.points); got != tt.want {
			t.Errorf("MeterFraction(%d) = %v, want %v", tt.points, got, tt.want)
		}
	}
}
