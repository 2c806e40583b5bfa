package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a conversation record does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is the bookkeeping row for a conversation. Turn content and
// memories are never written to disk.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Turns     int
}

// Storage defines the interface for persistence.
type Storage interface {
	// Configuration
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
	ListConfig() (map[string]string, error)
	DeleteConfig(key string) error

	// Conversations
	RecordTurn(conversationID string, at time.Time) error
	GetConversation(id string) (*Conversation, error)
	ListConversations() ([]*Conversation, error)

	Close() error
}
