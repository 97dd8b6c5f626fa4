package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var (
	logger   = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("Qdrant") })
	instance *ClientHolder
	once     sync.Once
)

// ClientHolder is the semantic answer cache backed by one qdrant collection.
type ClientHolder struct {
	QObj       *qdrant.Client
	collection string
	dimension  uint64
}

// GetQdrantClient connects once and makes sure the cache collection for the
// active embedder's dimension exists. It returns nil when qdrant is not
// configured or not reachable; callers run without a cache then.
func GetQdrantClient(ctx context.Context, settings *config.Settings, dimension int) *ClientHolder {
	once.Do(func() {
		if settings.Qdrant.Host == "" {
			logger().Info("Qdrant host not configured, semantic cache disabled")
			return
		}
		if dimension <= 0 {
			logger().Error("Invalid embedding dimension, semantic cache disabled", "dimension", dimension)
			return
		}
		instance = connect(ctx, settings, uint64(dimension))
	})
	return instance
}

// collectionName keeps vectors of different embedders apart, so switching
// provider never queries a collection of the wrong size.
func collectionName(dimension uint64) string {
	return fmt.Sprintf("%s-%d", config.SemanticCacheCollection, dimension)
}

func connect(ctx context.Context, settings *config.Settings, dimension uint64) *ClientHolder {
	log := logger().With("host", settings.Qdrant.Host, "port", settings.Qdrant.Port)
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     settings.Qdrant.Host,
		Port:     settings.Qdrant.Port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		log.Error("Could not create qdrant client", "error", err)
		return nil
	}

	name := collectionName(dimension)
	setupCtx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()
	if err := ensureCollection(setupCtx, client, name, dimension); err != nil {
		log.Error("Could not prepare cache collection", "collection", name, "error", err)
		_ = client.Close()
		return nil
	}

	go closeQdrant(ctx, client)
	log.Info("Semantic cache ready", "collection", name)
	return &ClientHolder{QObj: client, collection: name, dimension: dimension}
}

func closeQdrant(ctx context.Context, client *qdrant.Client) {
	<-ctx.Done()
	logger().Info("Shutting down Qdrant")
	if err := client.Close(); err != nil {
		logger().Error("Could not close Qdrant", "error", err)
	}
}

// ensureCollection creates the collection and the payload indexes the scope
// filter runs on.
func ensureCollection(ctx context.Context, client *qdrant.Client, name string, dimension uint64) error {
	if name == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return err
	}

	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{payloadSession, qdrant.FieldType_FieldTypeKeyword},
		{payloadRevision, qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		_, err := client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      idx.field,
			FieldType:      qdrant.PtrOf(idx.kind),
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", idx.field, err)
		}
	}
	return nil
}
