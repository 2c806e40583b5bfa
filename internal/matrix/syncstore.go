package matrix

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

var _ mautrix.SyncStore = (*SyncStore)(nil)

// KV is the configuration store the sync position is kept in.
type KV interface {
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
}

// SyncStore persists the /sync position in the configuration store so a
// restart resumes where it stopped instead of replaying room history.
type SyncStore struct {
	kv KV
}

func NewSyncStore(kv KV) *SyncStore {
	return &SyncStore{kv: kv}
}

func syncKey(userID id.UserID, name string) string {
	return "matrix." + userID.String() + "." + name
}

func (s *SyncStore) SaveFilterID(_ context.Context, userID id.UserID, filterID string) error {
	return s.kv.SetConfig(syncKey(userID, "filter_id"), filterID)
}

func (s *SyncStore) LoadFilterID(_ context.Context, userID id.UserID) (string, error) {
	return s.kv.GetConfig(syncKey(userID, "filter_id"))
}

func (s *SyncStore) SaveNextBatch(_ context.Context, userID id.UserID, nextBatchToken string) error {
	return s.kv.SetConfig(syncKey(userID, "next_batch"), nextBatchToken)
}

func (s *SyncStore) LoadNextBatch(_ context.Context, userID id.UserID) (string, error) {
	return s.kv.GetConfig(syncKey(userID, "next_batch"))
}
