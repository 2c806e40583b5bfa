// Package matrix connects conversations to Matrix rooms. Each room is its
// own conversation and each sender its own relationship.
package matrix

import (
	"context"
	"errors"
	"strings"

	"github.com/felixgeelhaar/mnemo/internal/agent"
	"github.com/felixgeelhaar/mnemo/internal/observe"
)

const (
	unavailableReply = "Sorry, I can't answer right now. Please try again in a moment."
	rejectedPrefix   = "I couldn't take that message: "
)

// Sender delivers messages back into rooms.
type Sender interface {
	SendText(ctx context.Context, roomID, text string) error
	SetTyping(ctx context.Context, roomID string, typing bool) error
}

// Turner runs turns. *agent.Registry satisfies it.
type Turner interface {
	RunTurn(ctx context.Context, conversationID, userID, text string) (*agent.Report, error)
}

// Message is one incoming text message.
type Message struct {
	RoomID string
	Sender string
	Body   string
}

// Bridge routes room messages into conversations and posts the replies.
type Bridge struct {
	turns Turner
	send  Sender
	self  string
	rooms map[string]bool
	obs   *observe.Observer
}

// NewBridge builds a bridge answering as self. An empty rooms list accepts
// every joined room.
func NewBridge(turns Turner, send Sender, self string, rooms []string, obs *observe.Observer) *Bridge {
	if obs == nil {
		obs = observe.Discard()
	}
	allowed := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		allowed[r] = true
	}
	return &Bridge{turns: turns, send: send, self: self, rooms: allowed, obs: obs}
}

// ConversationID names the conversation backing a room.
func ConversationID(roomID string) string {
	return "matrix:" + roomID
}

// Accepts reports whether the bridge answers msg at all.
func (b *Bridge) Accepts(msg Message) bool {
	if msg.Sender == b.self || strings.TrimSpace(msg.Body) == "" {
		return false
	}
	return len(b.rooms) == 0 || b.rooms[msg.RoomID]
}

// Handle runs one turn for msg and replies in the room. Turn failures are
// answered in the room; only delivery failures are returned.
func (b *Bridge) Handle(ctx context.Context, msg Message) error {
	if !b.Accepts(msg) {
		return nil
	}
	log := b.obs.Log()

	if err := b.send.SetTyping(ctx, msg.RoomID, true); err != nil {
		log.Warn().Err(err).Str("room", msg.RoomID).Msg("failed to set typing")
	}
	rep, err := b.turns.RunTurn(ctx, ConversationID(msg.RoomID), msg.Sender, strings.TrimSpace(msg.Body))
	if terr := b.send.SetTyping(ctx, msg.RoomID, false); terr != nil {
		log.Warn().Err(terr).Str("room", msg.RoomID).Msg("failed to clear typing")
	}

	var text string
	switch {
	case errors.Is(err, agent.ErrInvalidInput):
		text = rejectedPrefix + strings.TrimPrefix(err.Error(), agent.ErrInvalidInput.Error()+": ")
	case err != nil:
		log.Error().Err(err).Str("room", msg.RoomID).Str("sender", msg.Sender).Msg("turn failed")
		text = unavailableReply
	default:
		text = rep.Reply
	}
	return b.send.SendText(ctx, msg.RoomID, text)
}
