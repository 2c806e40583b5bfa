package dialogue

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func fill(m *Manager, pairs int) {
	for i := 0; i < pairs; i++ {
		m.Append(context.Background(), fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i))
	}
}

func TestManager_AppendUnderCapacity(t *testing.T) {
	m := New(16, 8, nil)
	fill(m, 8)
	if m.Len() != 16 {
		t.Fatalf("expected 16 turns, got %d", m.Len())
	}
	turns := m.Turns()
	if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Errorf("unexpected roles: %+v", turns[:2])
	}
}

func TestManager_SummarizesOldestHalf(t *testing.T) {
	var got []Turn
	s := SummarizerFunc(func(ctx context.Context, turns []Turn) (string, error) {
		got = turns
		return "  they chatted about the weather  ", nil
	})
	m := New(16, 8, s)
	fill(m, 8)

	c := m.Append(context.Background(), "u8", "a8")
	if !c.Summarized || c.Folded != 8 || c.Err != nil {
		t.Fatalf("unexpected compaction: %+v", c)
	}
	if len(got) != 8 || got[0].Text != "u0" || got[7].Text != "a3" {
		t.Errorf("summarizer saw the wrong turns: %+v", got)
	}

	turns := m.Turns()
	if len(turns) != 11 {
		t.Fatalf("expected 1 summary + 10 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleSummary || turns[0].Text != "they chatted about the weather" {
		t.Errorf("expected summary first, got %+v", turns[0])
	}
	if turns[1].Text != "u4" {
		t.Errorf("expected u4 after the summary, got %q", turns[1].Text)
	}
}

func TestManager_SummaryFailureTrimsOverflowOnly(t *testing.T) {
	boom := errors.New("model down")
	m := New(16, 8, SummarizerFunc(func(context.Context, []Turn) (string, error) {
		return "", boom
	}))
	fill(m, 8)
	c := m.Append(context.Background(), "u8", "a8")

	turns := m.Turns()
	if len(turns) != 16 {
		t.Fatalf("expected buffer kept at 16 turns, got %d", len(turns))
	}
	if turns[0].Text != "u1" {
		t.Errorf("expected u1 first, got %q", turns[0].Text)
	}
	if c.Folded != 0 || c.Trimmed != 2 {
		t.Errorf("expected 0 folded and 2 trimmed, got %+v", c)
	}
}

func TestManager_FailureIsReported(t *testing.T) {
	boom := errors.New("model down")
	m := New(4, 2, SummarizerFunc(func(context.Context, []Turn) (string, error) {
		return "", boom
	}))
	fill(m, 2)
	c := m.Append(context.Background(), "u2", "a2")
	if !errors.Is(c.Err, boom) || c.Summarized {
		t.Errorf("expected failed compaction, got %+v", c)
	}
}

func TestManager_TrimsWhenStillOver(t *testing.T) {
	m := New(4, 1, SummarizerFunc(func(context.Context, []Turn) (string, error) {
		return "s", nil
	}))
	fill(m, 2)
	c := m.Append(context.Background(), "u2", "a2")

	if m.Len() != 4 {
		t.Fatalf("expected buffer capped at 4, got %d", m.Len())
	}
	if c.Trimmed != 2 {
		t.Errorf("expected 2 trimmed, got %d", c.Trimmed)
	}
	turns := m.Turns()
	if turns[len(turns)-1].Text != "a2" {
		t.Errorf("newest turn must survive trimming: %+v", turns)
	}
}

func TestNew_Defaults(t *testing.T) {
	m := New(0, 0, nil)
	if m.maxTurns != DefaultMaxTurns || m.batch != DefaultSummarizeBatch {
		t.Errorf("unexpected defaults: %d/%d", m.maxTurns, m.batch)
	}
	m = New(4, 10, nil)
	if m.batch != 4 {
		t.Errorf("batch should be capped at max, got %d", m.batch)
	}
}

func TestManager_ContextExcludesCurated(t *testing.T) {
	m := New(16, 8, nil)
	m.Append(context.Background(), "where is my key", "under the mat")
	m.Append(context.Background(), "thanks", "any time")

	ctx := m.Context([]string{"under the mat", "not buffered"})
	if len(ctx) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(ctx))
	}
	for _, turn := range ctx {
		if turn.Text == "under the mat" {
			t.Error("curated text should be excluded")
		}
	}
	if m.Len() != 4 {
		t.Error("Context must not mutate the buffer")
	}
}
