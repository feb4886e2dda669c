package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hisho-bot/hisho/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(WithDSN(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("opening SQLite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStateRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	saved := models.ConversationState{
		Action:        models.StateWaitingLocation,
		OriginalQuery: "近くのカフェ",
	}
	if err := s.SaveState("U1", saved); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetState("U1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("state missing after save")
	}
	if *got != saved {
		t.Errorf("state = %+v, want %+v", *got, saved)
	}

	if err := s.ClearState("U1"); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetState("U1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("state survived clear: %+v", got)
	}
}

func TestSQLiteStateExpiry(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := time.Now()
	current := base
	s.now = func() time.Time { return current }

	if err := s.SaveState("U1", models.ConversationState{Action: models.StateSelectDate}); err != nil {
		t.Fatal(err)
	}

	current = base.Add(599 * time.Second)
	got, err := s.GetState("U1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("state expired at 599s")
	}

	current = base.Add(601 * time.Second)
	got, err = s.GetState("U1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("state alive at 601s: %+v", got)
	}
}

func TestSQLiteTokenUpsert(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.SaveTokens(TokenRecord{UserID: "U1", AccessToken: "at1", RefreshToken: "rt1", TokenExpiry: 100}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTokens(TokenRecord{UserID: "U1", AccessToken: "at2", TokenExpiry: 200}); err != nil {
		t.Fatal(err)
	}

	rec, err := s.GetTokens("U1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("tokens missing")
	}
	if rec.AccessToken != "at2" || rec.TokenExpiry != 200 {
		t.Errorf("record = %+v, want updated access token", rec)
	}
	if rec.RefreshToken != "rt1" {
		t.Errorf("RefreshToken = %q, want preserved rt1", rec.RefreshToken)
	}

	if err := s.DeleteTokens("U1"); err != nil {
		t.Fatal(err)
	}
	rec, err = s.GetTokens("U1")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Error("tokens survived delete")
	}
}

func TestSQLiteDedup(t *testing.T) {
	s := newTestSQLiteStore(t)

	fresh, err := s.RecordInbound("evt-1", "U1")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("first delivery reported duplicate")
	}
	fresh, err = s.RecordInbound("evt-1", "U1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("redelivery reported fresh")
	}
}
