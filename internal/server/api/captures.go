package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/kyccapture/internal/store"
)

// CaptureHandler serves stored captures.
type CaptureHandler struct {
	store *store.Store
}

// NewCaptureHandler creates a CaptureHandler with the given store.
func NewCaptureHandler(s *store.Store) *CaptureHandler {
	return &CaptureHandler{store: s}
}

type captureResponse struct {
	ID          string  `json:"id"`
	SessionID   string  `json:"session_id"`
	Mode        string  `json:"mode"`
	HandSide    string  `json:"hand_side,omitempty"`
	FaceQuality float64 `json:"face_quality,omitempty"`
	FrameIndex  int64   `json:"frame_index"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	CreatedAt   string  `json:"created_at"`
}

func toCaptureResponse(c *store.Capture) captureResponse {
	return captureResponse{
		ID:          c.ID,
		SessionID:   c.SessionID,
		Mode:        c.Mode,
		HandSide:    c.HandSide,
		FaceQuality: c.FaceQuality,
		FrameIndex:  c.FrameIndex,
		Width:       c.Width,
		Height:      c.Height,
		CreatedAt:   formatTime(c.CreatedAt),
	}
}

// ServeHTTP routes GET /api/captures/{id}, GET /api/captures/{id}/image,
// DELETE /api/captures/{id} and GET /api/captures/latest.
func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/captures"), "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "":
		writeError(w, http.StatusNotFound, "Not found")
	case len(parts) == 1 && parts[0] == "latest":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.latest(w, r)
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "image":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.image(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *CaptureHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.store.Captures().GetByID(id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaptureResponse(c))
}

func (h *CaptureHandler) latest(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Captures().Latest()
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaptureResponse(c))
}

func (h *CaptureHandler) image(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.store.Captures().GetByID(id)
	if err != nil {
		h.storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(c.Image)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(c.Image)
}

func (h *CaptureHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Captures().Delete(id); err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CaptureHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Capture not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to read capture")
}
