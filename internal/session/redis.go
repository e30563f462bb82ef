package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
)

// Session TTL; inactive conversations expire on their own.
const sessionTTL = 24 * time.Hour

// RedisStore keeps sessions in Redis so dialog state survives restarts.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(host, port string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func sessionKey(telegramID int64) string {
	return fmt.Sprintf("session:%d", telegramID)
}

// Get falls back to a fresh session on any Redis or decode error; a
// dropped dialog beats a crashed turn.
func (r *RedisStore) Get(telegramID int64) *Session {
	ctx := context.Background()

	result := r.client.Get(ctx, sessionKey(telegramID))
	if result.Err() != nil {
		if result.Err() != redis.Nil {
			logger.Warningf("redis session read failed for %d: %v", telegramID, result.Err())
		}
		return &Session{TelegramID: telegramID, State: StateNone}
	}

	var s Session
	if err := json.Unmarshal([]byte(result.Val()), &s); err != nil {
		logger.Warningf("corrupt session for %d, starting fresh: %v", telegramID, err)
		return &Session{TelegramID: telegramID, State: StateNone}
	}
	return &s
}

func (r *RedisStore) Save(s *Session) {
	data, err := json.Marshal(s)
	if err != nil {
		logger.Errorf("failed to marshal session for %d: %v", s.TelegramID, err)
		return
	}
	if err := r.client.Set(context.Background(), sessionKey(s.TelegramID), data, sessionTTL).Err(); err != nil {
		logger.Warningf("redis session write failed for %d: %v", s.TelegramID, err)
	}
}

func (r *RedisStore) Clear(telegramID int64) {
	if err := r.client.Del(context.Background(), sessionKey(telegramID)).Err(); err != nil {
		logger.Warningf("redis session delete failed for %d: %v", telegramID, err)
	}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
