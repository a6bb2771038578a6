package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/pkg/models"
)

func webClient(id string) models.ClientInfo {
	return models.ClientInfo{ClientID: id, Platform: models.SpokeWeb}
}

func TestGetOrCreateReusesUserSession(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	first := store.GetOrCreate(ctx, "alice", webClient("c1"))
	second := store.GetOrCreate(ctx, "alice", models.ClientInfo{ClientID: "c2", Platform: models.SpokeTUI})
	if first != second {
		t.Errorf("same user got two sessions: %s vs %s", first, second)
	}
	if store.ActiveCount(ctx) != 1 {
		t.Errorf("ActiveCount = %d", store.ActiveCount(ctx))
	}

	other := store.GetOrCreate(ctx, "bob", webClient("c3"))
	if other == first {
		t.Error("different users share a session")
	}
	if store.GetUserSession(ctx, "alice") != first {
		t.Error("GetUserSession mismatch")
	}
}

func TestSessionAccumulatesClients(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()
	id := store.GetOrCreate(ctx, "alice", webClient("c1"))
	store.GetOrCreate(ctx, "alice", models.ClientInfo{ClientID: "c2", Platform: models.SpokeLark})

	ok := store.WithSession(ctx, id, func(s *Session) {
		if len(s.Clients) != 2 {
			t.Errorf("clients = %d, want 2", len(s.Clients))
		}
	})
	if !ok {
		t.Fatal("session not found")
	}
}

func TestAddMessageAndHistory(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()
	id := store.GetOrCreate(ctx, "alice", webClient("c1"))

	store.AddMessage(ctx, id, models.UserMessage("one"))
	store.AddMessage(ctx, id, models.AssistantMessage("two"))
	store.AddMessage(ctx, id, models.UserMessage("three"))

	all := store.GetHistory(ctx, id, 0)
	if len(all) != 3 || all[0].Content != "one" || all[2].Content != "three" {
		t.Errorf("history = %v", all)
	}

	limited := store.GetHistory(ctx, id, 2)
	if len(limited) != 2 || limited[0].Content != "two" {
		t.Errorf("limited history = %v", limited)
	}
	if limited[1].Role != "user" {
		t.Errorf("role = %q", limited[1].Role)
	}
}

func TestCancelTokenLifecycle(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()
	id := store.GetOrCreate(ctx, "alice", webClient("c1"))

	first := store.NewCancelToken(ctx, id)
	if first == nil || first.Err() != nil {
		t.Fatal("fresh token should be live")
	}

	// A replacement token cancels its predecessor.
	second := store.NewCancelToken(ctx, id)
	if first.Err() == nil {
		t.Error("prior token should be cancelled")
	}
	if second.Err() != nil {
		t.Error("new token should be live")
	}

	store.SetStatus(ctx, id, models.SessionProcessing)
	store.Cancel(ctx, id)
	if second.Err() == nil {
		t.Error("Cancel should trip the active token")
	}
	store.WithSession(ctx, id, func(s *Session) {
		if s.Status != models.SessionIdle {
			t.Errorf("status after cancel = %s", s.Status)
		}
	})
}

func TestCleanupExpiredRespectsClients(t *testing.T) {
	store := NewMemoryStore(10, 10*time.Millisecond)
	ctx := context.Background()
	id := store.GetOrCreate(ctx, "alice", webClient("c1"))

	store.WithSession(ctx, id, func(s *Session) {
		s.LastActive = time.Now().Add(-time.Minute)
	})

	// Still connected: must survive.
	if n := store.CleanupExpired(ctx); n != 0 {
		t.Fatalf("removed %d sessions with live clients", n)
	}

	store.RemoveClient(ctx, id, models.SpokeWeb)
	store.WithSession(ctx, id, func(s *Session) {
		s.LastActive = time.Now().Add(-time.Minute)
	})
	if n := store.CleanupExpired(ctx); n != 1 {
		t.Fatalf("removed %d sessions, want 1", n)
	}
	if store.GetUserSession(ctx, "alice") != "" {
		t.Error("user mapping should be gone")
	}
}

func TestSetContextReplacesConversation(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()
	id := store.GetOrCreate(ctx, "alice", webClient("c1"))

	fresh := memory.NewContextManager(5)
	fresh.PushMessage(models.SystemMessage("summary"))
	store.SetContext(ctx, id, fresh)

	got := store.GetContext(ctx, id)
	if got != fresh {
		t.Fatal("context not replaced")
	}
	if msgs := got.Messages(); len(msgs) != 1 || msgs[0].Content != "summary" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestUnknownSessionIsSafe(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	if store.GetContext(ctx, "missing") != nil {
		t.Error("GetContext should be nil for unknown sessions")
	}
	if store.NewCancelToken(ctx, "missing") != nil {
		t.Error("NewCancelToken should be nil for unknown sessions")
	}
	if store.WithSession(ctx, "missing", func(*Session) {}) {
		t.Error("WithSession should report missing sessions")
	}
	store.AddMessage(ctx, "missing", models.UserMessage("dropped"))
	store.Cancel(ctx, "missing")
}
