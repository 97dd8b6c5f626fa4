package store_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/data/store"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
)

func messageStores(t *testing.T) map[string]jobModel.MessageStore {
	t.Helper()
	_, internalStore := newRedisStore(t)

	bolt, err := store.NewBoltMessageStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]jobModel.MessageStore{
		"redis":  store.TestMessageStore(internalStore),
		"bolt":   bolt,
		"memory": store.InitMessageStore(),
	}
}

func turn(role commonModels.Role, content string) commonModels.Turn {
	return commonModels.Turn{Role: role, Content: content, Timestamp: time.Unix(1700000000, 0).UTC()}
}

func TestMessageStores(t *testing.T) {
	for name, ms := range messageStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testCtx("history-trace")

			if ms.ValidateSessionId(ctx, "s1") {
				t.Fatal("unknown session reported as valid")
			}
			if err := ms.AppendTurns(ctx, "s1", turn(commonModels.RoleUser, "hi")); !errors.Is(err, store.ErrUnknownSession) {
				t.Errorf("append to unknown session: got %v", err)
			}

			if err := ms.InitNewSession(ctx, "s1"); err != nil {
				t.Fatalf("init: %v", err)
			}
			if !ms.ValidateSessionId(ctx, "s1") {
				t.Fatal("initialised session not valid")
			}

			history, err := ms.GetHistory(ctx, "s1", 0)
			if err != nil || len(history) != 0 {
				t.Fatalf("fresh session history = %v, %v", history, err)
			}

			for i, q := range []string{"q1", "q2", "q3"} {
				err := ms.AppendTurns(ctx, "s1",
					turn(commonModels.RoleUser, q),
					turn(commonModels.RoleAssistant, "a"+q[1:]))
				if err != nil {
					t.Fatalf("append %d: %v", i, err)
				}
			}

			history, err = ms.GetHistory(ctx, "s1", 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(history) != 6 {
				t.Fatalf("expected 6 turns, got %d", len(history))
			}
			if history[0].Content != "q1" || history[5].Content != "a3" {
				t.Errorf("order not preserved: first %q last %q", history[0].Content, history[5].Content)
			}
			if history[1].Role != commonModels.RoleAssistant {
				t.Errorf("role lost, got %q", history[1].Role)
			}
			if !history[0].Timestamp.Equal(time.Unix(1700000000, 0)) {
				t.Errorf("timestamp lost, got %v", history[0].Timestamp)
			}

			last, err := ms.GetHistory(ctx, "s1", 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(last) != 2 || last[0].Content != "q3" || last[1].Content != "a3" {
				t.Errorf("limit should keep the newest turns, got %+v", last)
			}

			if err := ms.InitNewSession(ctx, "s1"); err != nil {
				t.Fatal(err)
			}
			if history, _ := ms.GetHistory(ctx, "s1", 0); len(history) != 0 {
				t.Errorf("re-init should reset history, got %d turns", len(history))
			}

			if err := ms.DeleteSession(ctx, "s1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if ms.ValidateSessionId(ctx, "s1") {
				t.Error("deleted session still valid")
			}
			if _, err := ms.GetHistory(ctx, "s1", 0); !errors.Is(err, store.ErrUnknownSession) {
				t.Errorf("history of deleted session: got %v", err)
			}
		})
	}
}

func TestRedisMessageStore_Expiry(t *testing.T) {
	mr, internalStore := newRedisStore(t)
	ms := store.TestMessageStore(internalStore)
	ctx := testCtx("expiry-trace")

	if err := ms.InitNewSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := ms.AppendTurns(ctx, "s1", turn(commonModels.RoleUser, "hello")); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(config.RedisMessageStoreTTL + time.Second)
	if ms.ValidateSessionId(ctx, "s1") {
		t.Error("session marker should expire")
	}
	if mr.Exists("history:s1") {
		t.Error("history list should expire with the session")
	}
}

func TestBoltMessageStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := testCtx("reopen-trace")

	first, err := store.NewBoltMessageStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.InitNewSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := first.AppendTurns(ctx, "s1", turn(commonModels.RoleUser, "persisted")); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := store.NewBoltMessageStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	history, err := second.GetHistory(ctx, "s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Content != "persisted" {
		t.Errorf("history not persisted, got %+v", history)
	}
}
