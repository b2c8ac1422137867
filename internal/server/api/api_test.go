package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/kyccapture/internal/gate"
	"github.com/ayusman/kyccapture/internal/session"
	"github.com/ayusman/kyccapture/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fakeController struct {
	store  *store.Store
	mu     sync.Mutex
	active *session.Session
}

func (f *fakeController) StartSession(mode gate.Mode, variant gate.DocumentVariant, doc gate.DocumentType) (*session.Session, error) {
	opts := gate.DefaultOptions()
	opts.Variant = variant
	opts.DocumentType = doc
	s, err := session.New(mode, opts)
	if err != nil {
		return nil, err
	}
	if err := f.store.Sessions().Create(&store.Session{ID: s.ID(), Mode: mode.String(), Variant: string(variant)}); err != nil {
		s.Close()
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		f.active.Close()
	}
	f.active = s
	return s, nil
}

func (f *fakeController) ResetSession(id string) error {
	s := f.Active()
	if s == nil || s.ID() != id {
		return session.ErrClosed
	}
	return s.Reset()
}

func (f *fakeController) StopSession(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil || f.active.ID() != id {
		return session.ErrClosed
	}
	f.active.Close()
	f.active = nil
	return f.store.Sessions().SetStatus(id, store.StatusClosed)
}

func (f *fakeController) Active() *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionHandler_StartAndGet(t *testing.T) {
	s := newTestStore(t)
	ctrl := &fakeController{store: s}
	h := NewSessionHandler(s, ctrl)
	t.Cleanup(func() {
		if a := ctrl.Active(); a != nil {
			a.Close()
		}
	})

	rec := do(t, h, http.MethodPost, "/api/sessions", startSessionRequest{Mode: "document", Variant: "scanner"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var snap session.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.Mode != gate.ModeDocument || snap.Required != gate.RequiredScanner {
		t.Errorf("snapshot = %+v", snap)
	}

	rec = do(t, h, http.MethodGet, "/api/sessions/"+snap.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET session status = %d", rec.Code)
	}
	var got sessionResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Variant != "scanner" || got.Status != store.StatusActive || got.Live == nil {
		t.Errorf("session = %+v", got)
	}

	rec = do(t, h, http.MethodGet, "/api/sessions", nil)
	var list listSessionsResponse
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Sessions) != 1 || list.Active != snap.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestSessionHandler_StartValidation(t *testing.T) {
	s := newTestStore(t)
	h := NewSessionHandler(s, &fakeController{store: s})

	tests := []struct {
		name string
		body any
	}{
		{"unknown mode", startSessionRequest{Mode: "selfie"}},
		{"unknown variant", startSessionRequest{Mode: "document", Variant: "fax"}},
		{"unknown document type", startSessionRequest{Mode: "document", DocumentType: "visa"}},
		{"invalid json", "not an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/sessions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestSessionHandler_ResetAndStop(t *testing.T) {
	s := newTestStore(t)
	ctrl := &fakeController{store: s}
	h := NewSessionHandler(s, ctrl)

	sess, err := ctrl.StartSession(gate.ModeFace, gate.VariantStream, gate.DocumentPassport)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	id := sess.ID()

	rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d: %s", rec.Code, rec.Body.String())
	}
	var snap session.Snapshot
	json.NewDecoder(rec.Body).Decode(&snap)
	if snap.Resets != 1 {
		t.Errorf("Resets = %d, want 1", snap.Resets)
	}

	if rec := do(t, h, http.MethodGet, "/api/sessions/"+id+"/reset", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET reset status = %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/api/sessions/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	if !sess.State().Closed {
		t.Error("session should be closed after DELETE")
	}

	// stopped sessions conflict, unknown ones are missing
	if rec := do(t, h, http.MethodDelete, "/api/sessions/"+id, nil); rec.Code != http.StatusConflict {
		t.Errorf("second DELETE status = %d, want 409", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/reset", nil); rec.Code != http.StatusConflict {
		t.Errorf("reset after stop status = %d, want 409", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/sessions/nope/reset", nil); rec.Code != http.StatusNotFound {
		t.Errorf("reset unknown status = %d, want 404", rec.Code)
	}
}

func TestSessionHandler_ReadOnly(t *testing.T) {
	h := NewSessionHandler(newTestStore(t), nil)

	if rec := do(t, h, http.MethodPost, "/api/sessions", startSessionRequest{Mode: "face"}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("POST without controller status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/sessions/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET missing status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/sessions/x/other", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown subpath status = %d", rec.Code)
	}
}

func TestCaptureHandler(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions().Create(&store.Session{ID: "sess", Mode: "face"}); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	img := []byte{0xff, 0xd8, 0xff, 0xd9}
	if err := s.Captures().Create(&store.Capture{ID: "cap", SessionID: "sess", Mode: "face", FaceQuality: 120, Width: 300, Height: 400, Image: img}); err != nil {
		t.Fatalf("Create capture: %v", err)
	}

	sessions := NewSessionHandler(s, nil)
	rec := do(t, sessions, http.MethodGet, "/api/sessions/sess/captures", nil)
	var list listCapturesResponse
	json.NewDecoder(rec.Body).Decode(&list)
	if rec.Code != http.StatusOK || len(list.Captures) != 1 || list.Captures[0].Width != 300 {
		t.Errorf("captures = %d %+v", rec.Code, list)
	}
	if rec := do(t, sessions, http.MethodGet, "/api/sessions/none/captures", nil); rec.Code != http.StatusNotFound {
		t.Errorf("captures of missing session status = %d", rec.Code)
	}

	h := NewCaptureHandler(s)

	rec = do(t, h, http.MethodGet, "/api/captures/cap/image", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("image status = %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), img) {
		t.Errorf("image body = %v", rec.Body.Bytes())
	}

	rec = do(t, h, http.MethodGet, "/api/captures/latest", nil)
	var latest captureResponse
	json.NewDecoder(rec.Body).Decode(&latest)
	if latest.ID != "cap" || latest.FaceQuality != 120 {
		t.Errorf("latest = %+v", latest)
	}

	if rec := do(t, h, http.MethodDelete, "/api/captures/cap", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/captures/cap", nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET deleted status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/captures/latest", nil); rec.Code != http.StatusNotFound {
		t.Errorf("latest on empty status = %d", rec.Code)
	}
}
