package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writePlugin(t *testing.T, root, name, script string, events []string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	manifest, _ := json.Marshal(Manifest{Name: name, Version: "1.0.0", Executable: "run.sh", Events: events})
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	root := t.TempDir()
	ok := "cat >/dev/null\necho '{\"success\":true}'\n"
	writePlugin(t, root, "b-archive", ok, nil)
	writePlugin(t, root, "a-notify", ok, []string{EventCapture, EventSessionStart})
	writePlugin(t, root, "c-broken", "exit 3\n", []string{EventCapture})
	writePlugin(t, root, "d-audit", ok, []string{EventSessionClosed})

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	d := NewDispatcher(manager, NewExecutor(5000))

	results := d.Dispatch(context.Background(), &Request{Event: EventCapture, SessionID: "s"})
	if len(results) != 3 {
		t.Fatalf("Dispatch(capture) = %d results, want 3", len(results))
	}

	want := []struct {
		name string
		ok   bool
	}{{"a-notify", true}, {"b-archive", true}, {"c-broken", false}}
	for i, w := range want {
		r := results[i]
		if r.Plugin != w.name {
			t.Errorf("results[%d].Plugin = %q, want %q", i, r.Plugin, w.name)
		}
		if w.ok && (r.Err != nil || r.Response == nil || !r.Response.Success) {
			t.Errorf("%s: err = %v, resp = %+v", r.Plugin, r.Err, r.Response)
		}
		if !w.ok && r.Err == nil {
			t.Errorf("%s: expected an error", r.Plugin)
		}
	}

	results = d.Dispatch(context.Background(), &Request{Event: EventSessionClosed})
	if len(results) != 1 || results[0].Plugin != "d-audit" {
		t.Errorf("Dispatch(session_closed) = %+v", results)
	}
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d := NewDispatcher(NewManager(t.TempDir()), NewExecutor(1000))
	if results := d.Dispatch(context.Background(), &Request{Event: EventCapture}); results != nil {
		t.Errorf("Dispatch() with no plugins = %v, want nil", results)
	}
}
