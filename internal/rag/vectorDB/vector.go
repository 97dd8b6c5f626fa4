package vectorDB

import (
	"context"
)

// CacheScope ties a cached answer to one session and one state of its
// corpus. Any change to the index moves the revision, so older answers stop
// matching.
type CacheScope struct {
	SessionId string
	Revision  uint64
}

// AnswerCache is the semantic answer cache consulted before generation.
type AnswerCache interface {
	Lookup(ctx context.Context, scope CacheScope, queryVector []float32) (string, bool, error)
	Store(ctx context.Context, scope CacheScope, queryVector []float32, answer string) error
	Invalidate(ctx context.Context, sessionId string) error
}
