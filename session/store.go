package session

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const activeSessionsKey = "active_sessions"

func sessionKey(id string) string { return "session:" + id }
func historyKey(id string) string { return "session:" + id + ":history" }

// redisStore mirrors session metadata and history so other processes can
// inspect live sessions. A nil store is valid and does nothing.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// connectRedis returns nil when addr is empty or Redis is unreachable
func connectRedis(addr, password string, ttl time.Duration) (*redisStore, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &redisStore{client: client, ttl: ttl}, nil
}

func (s *redisStore) save(ctx context.Context, cs *ClientSession) error {
	if s == nil {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(cs.ID), map[string]interface{}{
		"created_at":    cs.CreatedAt.Format(time.RFC3339),
		"last_activity": cs.Activity().Format(time.RFC3339),
		"status":        "active",
		"remote_addr":   cs.ClientConn.RemoteAddr().String(),
	})
	pipe.SAdd(ctx, activeSessionsKey, cs.ID)
	pipe.Expire(ctx, sessionKey(cs.ID), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) saveHistory(ctx context.Context, cs *ClientSession) error {
	if s == nil {
		return nil
	}
	data, err := sonic.Marshal(cs.Conversation.Messages())
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, historyKey(cs.ID), data, s.ttl)
	pipe.HSet(ctx, sessionKey(cs.ID), "last_activity", cs.Activity().Format(time.RFC3339))
	pipe.Expire(ctx, sessionKey(cs.ID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) remove(ctx context.Context, id string) error {
	if s == nil {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id), historyKey(id))
	pipe.SRem(ctx, activeSessionsKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
