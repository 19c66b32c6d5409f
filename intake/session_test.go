package intake

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreUpsertOnRead(t *testing.T) {
	s := NewStore()

	first := s.Get(1)
	if first == nil {
		t.Fatal("Get returned nil")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	if s.Get(1) != first {
		t.Fatal("second Get returned a different session")
	}
}

func TestStoreResetClearsInPlace(t *testing.T) {
	s := NewStore()

	sess := s.Get(1)
	sess.mu.Lock()
	sess.Language = LangRussian
	sess.Name = "Ivan"
	sess.Photos = []string{"p.jpg"}
	sess.Finished = true
	sess.FinishedAt = time.Now()
	sess.mu.Unlock()

	if got := s.Reset(1); got != sess {
		t.Fatal("Reset returned a different session pointer")
	}
	if got := sess.Step(); got != StepLanguage {
		t.Fatalf("step after reset = %v, want language", got)
	}
}

func TestStoreConcurrentUsers(t *testing.T) {
	m := NewMachine(Config{Notifier: &fakeNotifier{}})
	ctx := context.Background()

	const users = 32
	var wg sync.WaitGroup
	wg.Add(users)
	for u := 0; u < users; u++ {
		go func(userID int64) {
			defer wg.Done()
			m.OnStart(ctx, userID)
			m.OnText(ctx, userID, "English")
			m.OnText(ctx, userID, fmt.Sprintf("User %d", userID))
			m.OnText(ctx, userID, fmt.Sprintf("+100%d", userID))
			m.OnText(ctx, userID, "issue")
			m.OnPhoto(ctx, userID, fmt.Sprintf("photo_%d.jpg", userID))
			m.OnSkip(ctx, userID)
		}(int64(u))
	}
	wg.Wait()

	if got := m.Store().Len(); got != users {
		t.Fatalf("store len = %d, want %d", got, users)
	}
	for u := 0; u < users; u++ {
		sess := m.Store().Get(int64(u))
		if got := sess.Step(); got != StepFinished {
			t.Fatalf("user %d step = %v, want finished", u, got)
		}
		sess.mu.Lock()
		if sess.Name != fmt.Sprintf("User %d", u) {
			t.Fatalf("user %d name = %q", u, sess.Name)
		}
		sess.mu.Unlock()
	}
}

func TestRemoveIfFinishedBefore(t *testing.T) {
	s := NewStore()
	now := time.Now()

	old := s.Get(1)
	old.mu.Lock()
	old.Finished = true
	old.FinishedAt = now.Add(-2 * time.Hour)
	old.mu.Unlock()

	fresh := s.Get(2)
	fresh.mu.Lock()
	fresh.Finished = true
	fresh.FinishedAt = now
	fresh.mu.Unlock()

	inflight := s.Get(3)
	inflight.mu.Lock()
	inflight.Name = "Jane"
	inflight.mu.Unlock()

	removed := s.RemoveIfFinishedBefore(now.Add(-time.Hour))
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}

	// The in-flight session must survive even when older than the cutoff.
	if got := s.Get(3).Step(); got != StepPhone {
		t.Fatalf("in-flight session was replaced; step = %v", got)
	}
}
