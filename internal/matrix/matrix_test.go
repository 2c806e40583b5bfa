package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"maunium.net/go/mautrix/id"

	"github.com/felixgeelhaar/mnemo/internal/agent"
	"github.com/felixgeelhaar/mnemo/internal/clock"
	"github.com/felixgeelhaar/mnemo/internal/provider"
	"github.com/felixgeelhaar/mnemo/internal/retry"
)

type sent struct {
	room, text string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sent
	typing  []bool
	sendErr error
}

func (f *fakeSender) SendText(_ context.Context, roomID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{roomID, text})
	return f.sendErr
}

func (f *fakeSender) SetTyping(_ context.Context, _ string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typing)
	return nil
}

func newRegistry(script ...provider.StubReply) *agent.Registry {
	stub := provider.NewStubProvider(script...)
	model := provider.NewClient(stub, retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond}, nil)
	return agent.NewRegistry(agent.Deps{Model: model, Clock: clock.NewManual(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))}, agent.DefaultConfig())
}

func TestBridge_Handle(t *testing.T) {
	reg := newRegistry(
		provider.StubReply{Content: `{"pleasantness": 2}`},
		provider.StubReply{Content: "Hi Alice!"},
	)
	send := &fakeSender{}
	b := NewBridge(reg, send, "@mnemo:example.org", nil, nil)

	err := b.Handle(context.Background(), Message{RoomID: "!room:example.org", Sender: "@alice:example.org", Body: " hello "})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(send.sent) != 1 || send.sent[0].text != "Hi Alice!" || send.sent[0].room != "!room:example.org" {
		t.Errorf("unexpected messages: %+v", send.sent)
	}
	if fmt.Sprint(send.typing) != "[true false]" {
		t.Errorf("expected typing on then off, got %v", send.typing)
	}

	sess, ok := reg.Lookup(ConversationID("!room:example.org"))
	if !ok {
		t.Fatal("room conversation should exist")
	}
	snap := sess.Snapshot("@alice:example.org")
	if snap.Relationship.RelationshipPoints != 2 || sess.Memories()[0].UserText != "hello" {
		t.Errorf("turn not folded for the sender: %+v", snap)
	}
}

func TestBridge_Accepts(t *testing.T) {
	b := NewBridge(newRegistry(), &fakeSender{}, "@mnemo:x", []string{"!a:x"}, nil)
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"allowed room", Message{RoomID: "!a:x", Sender: "@bob:x", Body: "hi"}, true},
		{"other room", Message{RoomID: "!b:x", Sender: "@bob:x", Body: "hi"}, false},
		{"own message", Message{RoomID: "!a:x", Sender: "@mnemo:x", Body: "hi"}, false},
		{"blank", Message{RoomID: "!a:x", Sender: "@bob:x", Body: "  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Accepts(tt.msg); got != tt.want {
				t.Errorf("Accepts() = %v, want %v", got, tt.want)
			}
		})
	}

	open := NewBridge(newRegistry(), &fakeSender{}, "@mnemo:x", nil, nil)
	if !open.Accepts(Message{RoomID: "!anything:x", Sender: "@bob:x", Body: "hi"}) {
		t.Error("an empty room list should accept every room")
	}
}

func TestBridge_Failures(t *testing.T) {
	t.Run("model failure answers politely", func(t *testing.T) {
		reg := newRegistry(provider.StubReply{Content: `{}`}, provider.StubReply{Err: provider.ErrModelUnavailable})
		send := &fakeSender{}
		b := NewBridge(reg, send, "@mnemo:x", nil, nil)
		if err := b.Handle(context.Background(), Message{RoomID: "!r:x", Sender: "@bob:x", Body: "hi"}); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if send.sent[0].text != unavailableReply {
			t.Errorf("unexpected reply %q", send.sent[0].text)
		}
	})

	t.Run("rejected input explains", func(t *testing.T) {
		send := &fakeSender{}
		b := NewBridge(newRegistry(), send, "@mnemo:x", nil, nil)
		long := strings.Repeat("x", 5000)
		b.Handle(context.Background(), Message{RoomID: "!r:x", Sender: "@bob:x", Body: long})
		if !strings.HasPrefix(send.sent[0].text, rejectedPrefix) || strings.Contains(send.sent[0].text, "agent:") {
			t.Errorf("unexpected rejection %q", send.sent[0].text)
		}
	})

	t.Run("delivery failure is returned", func(t *testing.T) {
		send := &fakeSender{sendErr: errors.New("room gone")}
		b := NewBridge(newRegistry(), send, "@mnemo:x", nil, nil)
		if err := b.Handle(context.Background(), Message{RoomID: "!r:x", Sender: "@bob:x", Body: "hi"}); err == nil {
			t.Error("expected delivery error")
		}
	})
}

type mapKV map[string]string

func (m mapKV) SetConfig(k, v string) error        { m[k] = v; return nil }
func (m mapKV) GetConfig(k string) (string, error) { return m[k], nil }

func TestSyncStore(t *testing.T) {
	kv := mapKV{}
	s := NewSyncStore(kv)
	ctx := context.Background()
	user := id.UserID("@mnemo:example.org")

	if v, err := s.LoadNextBatch(ctx, user); err != nil || v != "" {
		t.Errorf("fresh store = %q, %v", v, err)
	}
	s.SaveNextBatch(ctx, user, "s72594_4483_1934")
	s.SaveFilterID(ctx, user, "7")

	if v, _ := s.LoadNextBatch(ctx, user); v != "s72594_4483_1934" {
		t.Errorf("next batch = %q", v)
	}
	if v, _ := s.LoadFilterID(ctx, user); v != "7" {
		t.Errorf("filter id = %q", v)
	}
	if _, ok := kv["matrix.@mnemo:example.org.next_batch"]; !ok {
		t.Errorf("unexpected keys: %v", kv)
	}
}
