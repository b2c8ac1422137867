package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/kyccapture/internal/gate"
	"github.com/ayusman/kyccapture/internal/session"
	"github.com/ayusman/kyccapture/internal/store"
)

// Controller starts and stops the live capture session.
type Controller interface {
	StartSession(mode gate.Mode, variant gate.DocumentVariant, doc gate.DocumentType) (*session.Session, error)
	ResetSession(id string) error
	StopSession(id string) error
	Active() *session.Session
}

// SessionHandler serves /api/sessions.
type SessionHandler struct {
	store *store.Store
	ctrl  Controller
}

// NewSessionHandler creates a SessionHandler. ctrl may be nil, in which case
// sessions are read-only.
func NewSessionHandler(s *store.Store, ctrl Controller) *SessionHandler {
	return &SessionHandler{store: s, ctrl: ctrl}
}

// ServeHTTP routes:
//
//	GET    /api/sessions
//	POST   /api/sessions
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	POST   /api/sessions/{id}/reset
//	GET    /api/sessions/{id}/captures
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions"), "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.start(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.stop(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "reset":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.reset(w, r, id)
	case len(parts) == 2 && parts[1] == "captures":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.captures(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type startSessionRequest struct {
	Mode         string `json:"mode"`
	Variant      string `json:"variant"`
	DocumentType string `json:"document_type"`
}

type sessionResponse struct {
	ID        string            `json:"id"`
	Mode      string            `json:"mode"`
	Variant   string            `json:"variant,omitempty"`
	Status    string            `json:"status"`
	Resets    int               `json:"resets"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Live      *session.Snapshot `json:"live,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
	Active   string            `json:"active,omitempty"`
}

type listCapturesResponse struct {
	Captures []captureResponse `json:"captures"`
}

func toSessionResponse(rec *store.Session) sessionResponse {
	return sessionResponse{
		ID:        rec.ID,
		Mode:      rec.Mode,
		Variant:   rec.Variant,
		Status:    rec.Status,
		Resets:    rec.Resets,
		CreatedAt: formatTime(rec.CreatedAt),
		UpdatedAt: formatTime(rec.UpdatedAt),
	}
}

// live returns the running session with id, if any.
func (h *SessionHandler) live(id string) *session.Session {
	if h.ctrl == nil {
		return nil
	}
	if s := h.ctrl.Active(); s != nil && s.ID() == id {
		return s
	}
	return nil
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(recs))}
	for _, rec := range recs {
		resp.Sessions = append(resp.Sessions, toSessionResponse(rec))
	}
	if h.ctrl != nil {
		if s := h.ctrl.Active(); s != nil {
			resp.Active = s.ID()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	resp := toSessionResponse(rec)
	if s := h.live(id); s != nil {
		snap := s.State()
		resp.Live = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	if h.ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, "Capture is not available")
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	mode, err := gate.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	variant, err := gate.ParseVariant(req.Variant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := gate.ParseDocumentType(req.DocumentType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.ctrl.StartSession(mode, variant, doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, s.State())
}

func (h *SessionHandler) reset(w http.ResponseWriter, r *http.Request, id string) {
	if h.ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, "Capture is not available")
		return
	}
	if err := h.ctrl.ResetSession(id); err != nil {
		h.controlError(w, id, err)
		return
	}
	s := h.live(id)
	if s == nil {
		writeError(w, http.StatusConflict, "Session is not active")
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request, id string) {
	if h.ctrl == nil {
		writeError(w, http.StatusServiceUnavailable, "Capture is not available")
		return
	}
	if err := h.ctrl.StopSession(id); err != nil {
		h.controlError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// controlError maps a controller failure. A session that exists but is not
// the running one is a conflict.
func (h *SessionHandler) controlError(w http.ResponseWriter, id string, err error) {
	if !errors.Is(err, session.ErrClosed) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, gerr := h.store.Sessions().GetByID(id); errors.Is(gerr, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeError(w, http.StatusConflict, "Session is not active")
}

func (h *SessionHandler) captures(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	caps, err := h.store.Captures().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list captures")
		return
	}

	resp := listCapturesResponse{Captures: make([]captureResponse, 0, len(caps))}
	for _, c := range caps {
		resp.Captures = append(resp.Captures, toCaptureResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}
