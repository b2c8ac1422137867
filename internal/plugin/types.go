// Package plugin runs external executables when capture events happen.
// Plugins live in their own directory with a plugin.json manifest, read a
// JSON Request on stdin and answer with a JSON Response on stdout.
package plugin

import (
	"encoding/json"
	"slices"
)

// Event names a plugin can subscribe to.
const (
	EventCapture       = "capture"
	EventSessionStart  = "session_start"
	EventSessionClosed = "session_closed"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []string        `json:"events"`
	Config       json.RawMessage `json:"config,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Subscribes reports whether the plugin wants event. A manifest without
// events receives captures only.
func (m Manifest) Subscribes(event string) bool {
	if len(m.Events) == 0 {
		return event == EventCapture
	}
	return slices.Contains(m.Events, event)
}

// Request is written to the plugin's stdin. Image is a JPEG and encodes as
// base64 in JSON.
type Request struct {
	Event       string          `json:"event"`
	SessionID   string          `json:"session_id"`
	CaptureID   string          `json:"capture_id,omitempty"`
	Mode        string          `json:"mode"`
	HandSide    string          `json:"hand_side,omitempty"`
	FaceQuality float64         `json:"face_quality,omitempty"`
	FrameIndex  int64           `json:"frame_index,omitempty"`
	Width       int             `json:"width,omitempty"`
	Height      int             `json:"height,omitempty"`
	Image       []byte          `json:"image,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
