package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/data/redisStore"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var ErrUnknownSession = errors.New("unknown session")

// RedisMessageStore keeps a marker key per session plus a list of JSON turns.
// Both expire together after RedisMessageStoreTTL without writes.
type RedisMessageStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

var _ jobModel.MessageStore = (*RedisMessageStore)(nil)

// GetRedisMessageStore returns nil when redis is offline.
func GetRedisMessageStore(ctx context.Context, settings *config.Settings) *RedisMessageStore {
	s := redisStore.GetRedisStore(ctx, settings, config.RedisMessageStore)
	if s == nil {
		return nil
	}
	return TestMessageStore(s)
}

func TestMessageStore(store *redisStore.Store) *RedisMessageStore {
	return &RedisMessageStore{
		store:  store,
		logger: logger_i.NewLogger("MessageStore"),
	}
}

func sessionKey(id string) string { return "session:" + id }
func historyKey(id string) string { return "history:" + id }

func (s *RedisMessageStore) ValidateSessionId(ctx context.Context, id string) bool {
	log := s.logger.WithContext(ctx).With("sessionId", id)
	isFound, err := s.store.Exists(ctx, sessionKey(id))
	if err != nil {
		log.Error("Failed to check if session exists", "err", err)
		return false
	}
	return isFound
}

func (s *RedisMessageStore) InitNewSession(ctx context.Context, id string) error {
	s.logger.WithContext(ctx).Debug("Initializing new session", "sessionId", id)
	if err := s.store.Del(ctx, historyKey(id)); err != nil {
		return err
	}
	return s.store.Set(ctx, sessionKey(id), "1", config.RedisMessageStoreTTL)
}

func (s *RedisMessageStore) AppendTurns(ctx context.Context, id string, turns ...commonModels.Turn) error {
	log := s.logger.WithContext(ctx).With("sessionId", id)
	if !s.ValidateSessionId(ctx, id) {
		return ErrUnknownSession
	}
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		values = append(values, data)
	}
	if err := s.store.ListAppend(ctx, historyKey(id), config.RedisMessageStoreTTL, values, sessionKey(id)); err != nil {
		log.Error("error saving turns", "error", err)
		return err
	}
	log.Debug("Saved turns successfully", "turns", len(turns))
	return nil
}

func (s *RedisMessageStore) GetHistory(ctx context.Context, id string, limit int) ([]commonModels.Turn, error) {
	log := s.logger.WithContext(ctx).With("sessionId", id)
	if !s.ValidateSessionId(ctx, id) {
		return nil, ErrUnknownSession
	}

	raw, err := s.store.ListTail(ctx, historyKey(id), int64(limit))
	if err != nil {
		log.Error("Error getting history", "error", err)
		return nil, err
	}
	turns := make([]commonModels.Turn, 0, len(raw))
	for _, r := range raw {
		var t commonModels.Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			log.Warn("Skipping malformed turn", "error", err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisMessageStore) DeleteSession(ctx context.Context, id string) error {
	return s.store.Del(ctx, sessionKey(id), historyKey(id))
}
