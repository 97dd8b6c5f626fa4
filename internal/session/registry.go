package session

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/PDFChat/internal/adapter/utils"
	"github.com/akolanti/PDFChat/internal/metrics"
	"github.com/akolanti/PDFChat/internal/rag"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

// Registry owns session lifecycle. The engine never creates or drops sessions
// itself.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*rag.Session
	idleTTL  time.Duration
	logger   *logger_i.Logger

	// OnExpire runs for every session removed by the sweeper, after removal.
	OnExpire func(ctx context.Context, sess *rag.Session)
}

func NewRegistry(idleTTL time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*rag.Session),
		idleTTL:  idleTTL,
		logger:   logger_i.NewLogger("Session Registry"),
	}
}

func (r *Registry) Create() *rag.Session {
	return r.GetOrCreate(utils.GetNewUUID())
}

func (r *Registry) GetOrCreate(id string) *rag.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		sess.Touch()
		return sess
	}
	sess := rag.NewSession(id)
	r.sessions[id] = sess
	metrics.SetActiveSessions(len(r.sessions))
	r.logger.Debug("Session created", "sessionId", id)
	return sess
}

func (r *Registry) Get(id string) (*rag.Session, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		sess.Touch()
	}
	return sess, ok
}

// Delete removes the session and returns it so the caller can tear it down.
func (r *Registry) Delete(id string) (*rag.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	metrics.SetActiveSessions(len(r.sessions))
	return sess, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle since before now minus the idle TTL.
func (r *Registry) Sweep(now time.Time) []*rag.Session {
	if r.idleTTL <= 0 {
		return nil
	}
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []*rag.Session
	for id, sess := range r.sessions {
		if sess.LastActive().Before(cutoff) {
			delete(r.sessions, id)
			expired = append(expired, sess)
		}
	}
	if len(expired) > 0 {
		metrics.SetActiveSessions(len(r.sessions))
	}
	return expired
}

// StartSweeper expires idle sessions every interval until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Session sweeper stopped")
				return
			case now := <-ticker.C:
				for _, sess := range r.Sweep(now) {
					r.logger.Info("Session expired", "sessionId", sess.Id(), "lastActive", sess.LastActive())
					if r.OnExpire != nil {
						r.OnExpire(ctx, sess)
					}
				}
			}
		}
	}()
}
