package plugin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, name, script string, events ...string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
			Events:     events,
		},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "test-plugin", `cat <<'EOF'
{"success":true,"data":{"message":"hello world"}}
EOF
`)

	request := &Request{
		Event:     EventCapture,
		SessionID: "sess-1",
		Mode:      "face",
		Config:    json.RawMessage(`{"key":"value"}`),
	}

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	if response.Error != "" {
		t.Errorf("expected empty error, got %q", response.Error)
	}

	var data map[string]any
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := scriptPlugin(t, "echo-plugin", `INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`)
	plugin.Manifest.Config = json.RawMessage(`{"dir":"/tmp/out"}`)

	image := []byte{0xff, 0xd8, 0xff, 0xd9}
	request := &Request{
		Event:      EventCapture,
		SessionID:  "sess-2",
		CaptureID:  "cap-9",
		Mode:       "hand",
		HandSide:   "Left",
		FrameIndex: 7,
		Image:      image,
	}

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data struct {
		Received map[string]any `json:"received"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}

	got := data.Received
	if got["event"] != EventCapture || got["session_id"] != "sess-2" || got["hand_side"] != "Left" {
		t.Errorf("received = %v", got)
	}
	if got["image"] != base64.StdEncoding.EncodeToString(image) {
		t.Errorf("image = %v, want base64 JPEG", got["image"])
	}
	cfg, ok := got["config"].(map[string]any)
	if !ok || cfg["dir"] != "/tmp/out" {
		t.Errorf("config = %v, want manifest config", got["config"])
	}
	if request.Config != nil {
		t.Error("Execute() should not modify the caller's request")
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := scriptPlugin(t, "slow-plugin", `sleep 10
echo '{"success":true}'
`)

	start := time.Now()
	_, err := NewExecutor(100).Execute(context.Background(), plugin, &Request{Event: EventCapture})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not stop the plugin")
	}
}

func TestExecutor_Execute_ErrorResponse(t *testing.T) {
	plugin := scriptPlugin(t, "error-plugin", `echo '{"success":false,"error":"something went wrong"}'
`)

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{Event: EventCapture})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if response.Success {
		t.Errorf("expected success=false, got true")
	}
	if response.Error != "something went wrong" {
		t.Errorf("expected error 'something went wrong', got %q", response.Error)
	}
}

func TestExecutor_Execute_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"invalid json", "echo 'not valid json'\n"},
		{"non-zero exit", "echo 'Error: something failed' >&2\nexit 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plugin := scriptPlugin(t, "bad-plugin", tt.script)
			if _, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{Event: EventCapture}); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNewExecutor(t *testing.T) {
	executor := NewExecutor(3000)
	if executor.Timeout() != 3*time.Second {
		t.Errorf("expected timeout 3s, got %v", executor.Timeout())
	}
}

func TestManifest_Subscribes(t *testing.T) {
	tests := []struct {
		events []string
		event  string
		want   bool
	}{
		{nil, EventCapture, true},
		{nil, EventSessionStart, false},
		{[]string{EventSessionStart}, EventCapture, false},
		{[]string{EventSessionStart, EventCapture}, EventCapture, true},
		{[]string{EventSessionClosed}, EventSessionClosed, true},
	}

	for _, tt := range tests {
		m := Manifest{Events: tt.events}
		if got := m.Subscribes(tt.event); got != tt.want {
			t.Errorf("Subscribes(%q) with %v = %v, want %v", tt.event, tt.events, got, tt.want)
		}
	}
}
