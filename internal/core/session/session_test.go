package session

import (
	"testing"
	"time"

	"github.com/snapsolve/snapsolve/internal/core"
)

func newTestManager(maxAge time.Duration) *Manager {
	return NewManager(Config{SigningKey: []byte("test-signing-key"), MaxAge: maxAge})
}

func TestManagerCreateVerifyShouldRoundTrip(t *testing.T) {
	m := newTestManager(time.Hour)

	created, token, err := m.Create(42)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.ID != created.ID || got.UserID != 42 {
		t.Errorf("verified session mismatch: %+v", got)
	}
}

func TestManagerVerifyShouldRejectEmptyAndGarbageTokens(t *testing.T) {
	m := newTestManager(time.Hour)

	if _, err := m.Verify(""); err != core.ErrAuthRequired {
		t.Errorf("empty token: expected ErrAuthRequired, got %v", err)
	}
	if _, err := m.Verify("not-a-jwt"); err != core.ErrSessionNotFound {
		t.Errorf("garbage token: expected ErrSessionNotFound, got %v", err)
	}
}

func TestManagerVerifyShouldRejectForeignSigningKey(t *testing.T) {
	m := newTestManager(time.Hour)
	other := NewManager(Config{SigningKey: []byte("other-key"), MaxAge: time.Hour})

	_, token, _ := other.Create(1)
	if _, err := m.Verify(token); err != core.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestManagerDestroyShouldDropSession(t *testing.T) {
	m := newTestManager(time.Hour)

	s, token, _ := m.Create(1)
	m.Destroy(s.ID)

	if _, err := m.Verify(token); err != core.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after destroy, got %v", err)
	}
}

func TestManagerSweepOnCreateShouldBoundGrowth(t *testing.T) {
	m := newTestManager(20 * time.Millisecond)

	// sessions whose cookies are never presented again
	for i := 0; i < sweepEvery-1; i++ {
		if _, _, err := m.Create(int64(i)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	// crossing the sweep interval drops the expired ones
	if _, _, err := m.Create(999); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if n := m.Len(); n != 1 {
		t.Errorf("abandoned expired sessions should be swept, size=%d", n)
	}
}

func TestManagerDataShouldHoldSessionScopedValues(t *testing.T) {
	m := newTestManager(time.Hour)
	s, _, _ := m.Create(1)

	if _, ok := m.GetValue(s, KeyCSRFSecret); ok {
		t.Error("fresh session should have no csrf secret")
	}

	m.SetValue(s, KeyCSRFSecret, "secret-1")
	if v, ok := m.GetValue(s, KeyCSRFSecret); !ok || v != "secret-1" {
		t.Errorf("expected secret-1, got %q (ok=%v)", v, ok)
	}

	// values are per session
	other, _, _ := m.Create(2)
	if _, ok := m.GetValue(other, KeyCSRFSecret); ok {
		t.Error("another session should not see the value")
	}
}
