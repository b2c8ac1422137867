package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"sessions", "captures"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	for _, idx := range []string{"idx_captures_session_id", "idx_captures_created_at"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q should exist after migrations: %v", idx, err)
		}
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Sessions().Create(&Session{ID: "s1", Mode: "face"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.Sessions().GetByID("s1"); err != nil {
		t.Errorf("session lost across reopen: %v", err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestSessionRepository_CRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	rec := &Session{ID: "sess-1", Mode: "document", Variant: "scanner"}
	if err := repo.Create(rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.Status != StatusActive {
		t.Errorf("Status = %q, want active", rec.Status)
	}

	got, err := repo.GetByID("sess-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Mode != "document" || got.Variant != "scanner" || got.Status != StatusActive {
		t.Errorf("GetByID() = %+v", got)
	}

	if err := repo.RecordReset("sess-1"); err != nil {
		t.Fatalf("RecordReset() error = %v", err)
	}
	if err := repo.SetStatus("sess-1", StatusClosed); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	got, _ = repo.GetByID("sess-1")
	if got.Resets != 1 || got.Status != StatusClosed {
		t.Errorf("after updates = %+v", got)
	}

	if err := repo.Delete("sess-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID("sess-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_NotFound(t *testing.T) {
	repo := newTestStore(t).Sessions()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v", err)
	}
	if err := repo.SetStatus("missing", StatusClosed); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus() error = %v", err)
	}
	if err := repo.RecordReset("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RecordReset() error = %v", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestSessionRepository_RejectsUnknownMode(t *testing.T) {
	repo := newTestStore(t).Sessions()
	if err := repo.Create(&Session{ID: "x", Mode: "selfie"}); err == nil {
		t.Error("Create() with an unknown mode should fail the CHECK constraint")
	}
}

func TestSessionRepository_ListAndCloseActive(t *testing.T) {
	repo := newTestStore(t).Sessions()

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Create(&Session{ID: id, Mode: "face"}); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	repo.SetStatus("a", StatusClosed)

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 || list[0].ID != "c" {
		t.Fatalf("List() = %d sessions, first %q; want 3, c", len(list), list[0].ID)
	}

	n, err := repo.CloseActive()
	if err != nil {
		t.Fatalf("CloseActive() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CloseActive() closed %d, want 2", n)
	}
}

func TestCaptureRepository(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions().Create(&Session{ID: "sess", Mode: "hand"}); err != nil {
		t.Fatalf("Create session error = %v", err)
	}

	img := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}
	c := &Capture{
		ID:         "cap-1",
		SessionID:  "sess",
		Mode:       "hand",
		HandSide:   "Left",
		FrameIndex: 42,
		Width:      640,
		Height:     480,
		Image:      img,
	}
	if err := s.Captures().Create(c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sess, _ := s.Sessions().GetByID("sess")
	if sess.Status != StatusCaptured {
		t.Errorf("session status = %q, want captured", sess.Status)
	}

	got, err := s.Captures().GetByID("cap-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !bytes.Equal(got.Image, img) || got.HandSide != "Left" || got.FrameIndex != 42 {
		t.Errorf("GetByID() = %+v", got)
	}

	list, err := s.Captures().ListBySession("sess")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(list) != 1 || list[0].Image != nil {
		t.Errorf("ListBySession() = %+v, want one capture without image", list)
	}

	latest, err := s.Captures().Latest()
	if err != nil || latest.ID != "cap-1" {
		t.Errorf("Latest() = %+v, %v", latest, err)
	}

	// deleting the session cascades
	if err := s.Sessions().Delete("sess"); err != nil {
		t.Fatalf("Delete session error = %v", err)
	}
	if _, err := s.Captures().GetByID("cap-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("capture should be gone after session delete, err = %v", err)
	}
}

func TestCaptureRepository_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	err := s.Captures().Create(&Capture{ID: "c", SessionID: "ghost", Mode: "face", Image: []byte{1}})
	if err == nil {
		t.Error("Create() for a missing session should fail")
	}
	if _, err := s.Captures().Latest(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() on empty store error = %v, want ErrNotFound", err)
	}
	if err := s.Captures().Delete("c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}
