package qdrantDB

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/PDFChat/internal/adapter/utils"
	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadSession  = "session_id"
	payloadRevision = "revision"
	payloadAnswer   = "answer"
)

var _ vectorDB.AnswerCache = (*ClientHolder)(nil)

func scopeFilter(scope vectorDB.CacheScope) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadSession, scope.SessionId),
			qdrant.NewMatchInt(payloadRevision, int64(scope.Revision)),
		},
	}
}

func (db *ClientHolder) Lookup(ctx context.Context, scope vectorDB.CacheScope, queryVector []float32) (string, bool, error) {
	loggr := logger().WithContext(ctx)
	if uint64(len(queryVector)) != db.dimension {
		return "", false, nil
	}

	searchResult, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: db.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         scopeFilter(scope),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Cache Query failed", "error", err)
		return "", false, err
	}
	if len(searchResult) == 0 {
		return "", false, nil
	}

	loggr.Debug("Closest cached answer", "semantic similarity score", searchResult[0].Score)
	if searchResult[0].Score < config.CacheSimilarityCutoff {
		return "", false, nil
	}

	loggr.Info("semantic cache hit")
	answer := searchResult[0].Payload[payloadAnswer].GetStringValue()
	return answer, answer != "", nil
}

func (db *ClientHolder) Store(ctx context.Context, scope vectorDB.CacheScope, queryVector []float32, answer string) error {
	loggr := logger().WithContext(ctx)
	if uint64(len(queryVector)) != db.dimension {
		return fmt.Errorf("cache expects %d dimensions, got %d", db.dimension, len(queryVector))
	}

	loggr.Debug("Saving answer to cache")
	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: db.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(utils.GetNewUUID()),
				Vectors: qdrant.NewVectors(queryVector...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadSession:  scope.SessionId,
					payloadRevision: int64(scope.Revision),
					payloadAnswer:   answer,
					"timestamp":     time.Now().Unix(),
				}),
			},
		},
	})
	if err != nil {
		loggr.Error("Saving answer to cache failed", "error", err)
	}
	return err
}

// Invalidate drops every cached answer of the session.
func (db *ClientHolder) Invalidate(ctx context.Context, sessionId string) error {
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: db.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadSession, sessionId)},
		}),
	})
	if err != nil {
		logger().WithContext(ctx).Error("Cache invalidation failed", "error", err)
	}
	return err
}
