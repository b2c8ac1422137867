package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSave(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := json.Marshal(Config{Dir: dir})
	img := []byte{0xff, 0xd8, 0xff, 0xd9}

	path, err := save(&Request{
		Event:     "capture",
		SessionID: "sess-1",
		CaptureID: "cap-1",
		Mode:      "hand",
		HandSide:  "Right",
		Width:     640,
		Height:    480,
		Image:     img,
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("save() error = %v", err)
	}
	if path != filepath.Join(dir, "sess-1", "cap-1.jpg") {
		t.Errorf("path = %q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, img) {
		t.Fatalf("image = %v, %v", got, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "sess-1", "cap-1.json"))
	if err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("sidecar invalid: %v", err)
	}
	if meta.HandSide != "Right" || meta.Width != 640 || meta.CaptureID != "cap-1" {
		t.Errorf("sidecar = %+v", meta)
	}
}

func TestSave_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"no ids", Request{Image: []byte{1}}},
		{"no image", Request{SessionID: "s", CaptureID: "c"}},
		{"bad config", Request{SessionID: "s", CaptureID: "c", Image: []byte{1}, Config: json.RawMessage(`[1]`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := save(&tt.req); err == nil {
				t.Error("save() should fail")
			}
		})
	}
}

func TestSave_StripsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := json.Marshal(Config{Dir: dir})

	path, err := save(&Request{SessionID: "../../etc", CaptureID: "../x", Image: []byte{1}, Config: cfg})
	if err != nil {
		t.Fatalf("save() error = %v", err)
	}
	if filepath.Dir(filepath.Dir(path)) != dir {
		t.Errorf("path %q escaped %q", path, dir)
	}
}
