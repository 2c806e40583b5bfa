package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "mnemo"
	redisTimeout       = 5 * time.Second
)

// RedisStore keeps configuration and conversation bookkeeping in Redis so
// several servers can share one settings store.
//
// Layout under the prefix:
//
//	<prefix>:config             hash of configuration values
//	<prefix>:conversations      set of conversation ids
//	<prefix>:conversation:<id>  hash with created_at, updated_at, turns
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to the server named by a redis:// URL and checks
// that it answers.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, prefix: defaultRedisPrefix}, nil
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisTimeout)
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Configuration

func (s *RedisStore) SetConfig(key, value string) error {
	if key == "" {
		return errors.New("config key must not be empty")
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.rdb.HSet(ctx, s.key("config"), key, value).Err()
}

// GetConfig returns "" for keys that were never set.
func (s *RedisStore) GetConfig(key string) (string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	v, err := s.rdb.HGet(ctx, s.key("config"), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisStore) ListConfig() (map[string]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.rdb.HGetAll(ctx, s.key("config")).Result()
}

func (s *RedisStore) DeleteConfig(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.rdb.HDel(ctx, s.key("config"), key).Err()
}

// Conversations

// RecordTurn creates the conversation hash on first use and bumps its turn
// counter afterwards, in one transaction.
func (s *RedisStore) RecordTurn(conversationID string, at time.Time) error {
	if conversationID == "" {
		return errors.New("conversation id must not be empty")
	}
	ts := at.UTC().Format(timeLayout)
	ck := s.key("conversation", conversationID)

	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, ck, "created_at", ts)
		p.HSet(ctx, ck, "updated_at", ts)
		p.HIncrBy(ctx, ck, "turns", 1)
		p.SAdd(ctx, s.key("conversations"), conversationID)
		return nil
	})
	return err
}

func (s *RedisStore) GetConversation(id string) (*Conversation, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	fields, err := s.rdb.HGetAll(ctx, s.key("conversation", id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return parseConversation(id, fields)
}

// ListConversations returns every conversation ordered by creation time,
// then id.
func (s *RedisStore) ListConversations() ([]*Conversation, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	ids, err := s.rdb.SMembers(ctx, s.key("conversations")).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.key("conversation", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Conversation, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		c, err := parseConversation(id, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func parseConversation(id string, fields map[string]string) (*Conversation, error) {
	c := &Conversation{ID: id}
	var err error
	if c.CreatedAt, err = time.Parse(timeLayout, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("bad created_at for %s: %w", id, err)
	}
	if c.UpdatedAt, err = time.Parse(timeLayout, fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("bad updated_at for %s: %w", id, err)
	}
	if c.Turns, err = strconv.Atoi(fields["turns"]); err != nil {
		return nil, fmt.Errorf("bad turns for %s: %w", id, err)
	}
	return c, nil
}

var (
	_ Storage = (*SQLiteStore)(nil)
	_ Storage = (*RedisStore)(nil)
)
