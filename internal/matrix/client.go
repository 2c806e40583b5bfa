package matrix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/felixgeelhaar/mnemo/internal/observe"
)

const typingTimeout = 30 * time.Second

// Config holds Matrix connection settings.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms are joined on start. Messages from other rooms are ignored
	// unless Rooms is empty.
	Rooms []string
}

// Client wraps the Matrix client.
type Client struct {
	client  *mautrix.Client
	cfg     Config
	obs     *observe.Observer
	started time.Time
}

// New creates a client. When kv is non-nil the sync position is persisted
// in it.
func New(cfg Config, kv KV, obs *observe.Observer) (*Client, error) {
	if obs == nil {
		obs = observe.Discard()
	}
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}
	if kv != nil {
		client.Store = NewSyncStore(kv)
	} else {
		obs.Log().Warn().Msg("no sync store configured, room history will replay on restart")
	}
	return &Client{client: client, cfg: cfg, obs: obs}, nil
}

func (c *Client) SendText(ctx context.Context, roomID, text string) error {
	if _, err := c.client.SendText(ctx, id.RoomID(roomID), text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, typingTimeout); err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}

// Run joins the configured rooms and feeds messages to the bridge until
// ctx is cancelled. Sync errors are retried with exponential backoff.
func (c *Client) Run(ctx context.Context, b *Bridge) error {
	c.started = time.Now()

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("unexpected Matrix syncer")
	}
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		c.handleMessage(ctx, b, evt)
	})

	for _, room := range c.cfg.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(room)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", room, err)
		}
	}

	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	for {
		err := c.client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		c.obs.Log().Error().Err(err).Str("backoff", backoff.String()).Msg("Matrix sync stopped, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}
}

func (c *Client) handleMessage(ctx context.Context, b *Bridge, evt *event.Event) {
	// Messages sent before startup were either answered by a previous run
	// or are history.
	if time.UnixMilli(evt.Timestamp).Before(c.started) {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}
	msg := Message{RoomID: evt.RoomID.String(), Sender: evt.Sender.String(), Body: content.Body}
	if err := b.Handle(ctx, msg); err != nil {
		c.obs.Log().Error().Err(err).Str("room", msg.RoomID).Msg("failed to deliver reply")
	}
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, mautrix.MForbidden) {
			c.obs.Log().Warn().Str("room", roomID.String()).Msg("join refused, continuing")
			return nil
		}
		return err
	}
	return nil
}
