package store

import (
	"context"
	"sync"

	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
)

type InMemoryMessageStore struct {
	chatLock *sync.RWMutex
	chatMap  map[string][]commonModels.Turn
}

var _ jobModel.MessageStore = (*InMemoryMessageStore)(nil)

func InitMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{
		chatLock: new(sync.RWMutex),
		chatMap:  make(map[string][]commonModels.Turn),
	}
}

func (store *InMemoryMessageStore) ValidateSessionId(ctx context.Context, id string) bool {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	_, ok := store.chatMap[id]
	return ok
}

func (store *InMemoryMessageStore) InitNewSession(ctx context.Context, id string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = make([]commonModels.Turn, 0)
	return nil
}

// AppendTurns on an unknown session is a no-op, so history of a deleted
// session is never resurrected by a late worker.
func (store *InMemoryMessageStore) AppendTurns(ctx context.Context, id string, turns ...commonModels.Turn) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	history, ok := store.chatMap[id]
	if !ok {
		return ErrUnknownSession
	}
	store.chatMap[id] = append(history, turns...)
	inMemLogger().WithContext(ctx).Debug("Saved turns to message store", "sessionId", id, "turns", len(turns))
	return nil
}

func (store *InMemoryMessageStore) GetHistory(ctx context.Context, id string, limit int) ([]commonModels.Turn, error) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	history, ok := store.chatMap[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return tail(history, limit), nil
}

func (store *InMemoryMessageStore) DeleteSession(ctx context.Context, id string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	delete(store.chatMap, id)
	return nil
}

// tail copies the last limit turns; limit <= 0 copies all.
func tail(turns []commonModels.Turn, limit int) []commonModels.Turn {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]commonModels.Turn, len(turns))
	copy(out, turns)
	return out
}
