// Package main provides a plugin that writes each capture to disk.
// The JPEG goes to <dir>/<session_id>/<capture_id>.jpg with a JSON sidecar
// next to it.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event       string          `json:"event"`
	SessionID   string          `json:"session_id"`
	CaptureID   string          `json:"capture_id"`
	Mode        string          `json:"mode"`
	HandSide    string          `json:"hand_side,omitempty"`
	FaceQuality float64         `json:"face_quality,omitempty"`
	FrameIndex  int64           `json:"frame_index,omitempty"`
	Width       int             `json:"width,omitempty"`
	Height      int             `json:"height,omitempty"`
	Image       []byte          `json:"image"`
	Config      json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is read from the request's config field.
type Config struct {
	Dir string `json:"dir"`
}

type sidecar struct {
	CaptureID   string    `json:"capture_id"`
	SessionID   string    `json:"session_id"`
	Mode        string    `json:"mode"`
	HandSide    string    `json:"hand_side,omitempty"`
	FaceQuality float64   `json:"face_quality,omitempty"`
	FrameIndex  int64     `json:"frame_index"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	SavedAt     time.Time `json:"saved_at"`
}

const defaultDir = "captures"

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "capture" {
		writeSuccessResponse(nil)
		return
	}

	path, err := save(&req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	data, _ := json.Marshal(map[string]string{"path": path})
	writeSuccessResponse(data)
}

func save(req *Request) (string, error) {
	if req.SessionID == "" || req.CaptureID == "" {
		return "", errors.New("session_id and capture_id are required")
	}
	if len(req.Image) == 0 {
		return "", errors.New("capture has no image")
	}

	cfg := Config{Dir: defaultDir}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", fmt.Errorf("invalid config: %w", err)
		}
	}

	dir := filepath.Join(cfg.Dir, filepath.Base(req.SessionID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	base := filepath.Join(dir, filepath.Base(req.CaptureID))
	if err := os.WriteFile(base+".jpg", req.Image, 0644); err != nil {
		return "", err
	}

	meta, err := json.MarshalIndent(sidecar{
		CaptureID:   req.CaptureID,
		SessionID:   req.SessionID,
		Mode:        req.Mode,
		HandSide:    req.HandSide,
		FaceQuality: req.FaceQuality,
		FrameIndex:  req.FrameIndex,
		Width:       req.Width,
		Height:      req.Height,
		SavedAt:     time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(base+".json", meta, 0644); err != nil {
		return "", err
	}

	return base + ".jpg", nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}
