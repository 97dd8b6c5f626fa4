package store

import (
	"context"
	"encoding/json"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// BoltMessageStore persists history in a single file for deployments without
// redis. Each session is one key holding its JSON encoded turns.
type BoltMessageStore struct {
	db     *bbolt.DB
	logger *logger_i.Logger
}

var _ jobModel.MessageStore = (*BoltMessageStore)(nil)

func NewBoltMessageStore(path string) (*BoltMessageStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: config.BoltOpenTimeout})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltMessageStore{db: db, logger: logger_i.NewLogger("Bolt MessageStore")}, nil
}

// CloseOnDone closes the database once ctx is cancelled.
func (s *BoltMessageStore) CloseOnDone(ctx context.Context) {
	go func() {
		<-ctx.Done()
		if err := s.Close(); err != nil {
			s.logger.Error("Error closing bolt store", "error", err)
			return
		}
		s.logger.Info("Bolt store closed")
	}()
}

func (s *BoltMessageStore) Close() error {
	return s.db.Close()
}

func (s *BoltMessageStore) ValidateSessionId(ctx context.Context, id string) bool {
	found := false
	_ = s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketSessions).Get([]byte(id)) != nil
		return nil
	})
	return found
}

func (s *BoltMessageStore) InitNewSession(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(id), []byte("[]"))
	})
}

func (s *BoltMessageStore) AppendTurns(ctx context.Context, id string, turns ...commonModels.Turn) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		history, err := readTurns(b, id)
		if err != nil {
			return err
		}
		data, err := json.Marshal(append(history, turns...))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
	if err == nil {
		s.logger.WithContext(ctx).Debug("Saved turns", "sessionId", id, "turns", len(turns))
	}
	return err
}

func (s *BoltMessageStore) GetHistory(ctx context.Context, id string, limit int) ([]commonModels.Turn, error) {
	var history []commonModels.Turn
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		history, err = readTurns(tx.Bucket(bucketSessions), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tail(history, limit), nil
}

func (s *BoltMessageStore) DeleteSession(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(id))
	})
}

func readTurns(b *bbolt.Bucket, id string) ([]commonModels.Turn, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, ErrUnknownSession
	}
	var turns []commonModels.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}
