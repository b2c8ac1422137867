package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeManifest(t *testing.T, root, dir, body string) {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(path, manifestFile), []byte(body), 0644); err != nil {
		t.Fatalf("write manifest %s: %v", dir, err)
	}
}

func names(plugins []*Plugin) []string {
	var out []string
	for _, p := range plugins {
		out = append(out, p.Manifest.Name)
	}
	return out
}

func TestManager_Discover(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
		want  []string
	}{
		{
			name:  "empty directory",
			setup: func(t *testing.T, root string) {},
		},
		{
			name: "sorted by manifest name",
			setup: func(t *testing.T, root string) {
				writeManifest(t, root, "dir-1", `{"name":"webhook","executable":"run"}`)
				writeManifest(t, root, "dir-2", `{"name":"archive","executable":"run"}`)
			},
			want: []string{"archive", "webhook"},
		},
		{
			name: "broken manifests skipped",
			setup: func(t *testing.T, root string) {
				writeManifest(t, root, "good", `{"name":"good","executable":"run"}`)
				writeManifest(t, root, "garbled", `{"name":`)
				writeManifest(t, root, "nameless", `{"executable":"run"}`)
				writeManifest(t, root, "no-exec", `{"name":"no-exec"}`)
			},
			want: []string{"good"},
		},
		{
			name: "stray files and bare dirs ignored",
			setup: func(t *testing.T, root string) {
				writeManifest(t, root, "good", `{"name":"good","executable":"run"}`)
				os.WriteFile(filepath.Join(root, manifestFile), []byte(`{"name":"root","executable":"x"}`), 0644)
				os.MkdirAll(filepath.Join(root, "scratch"), 0755)
			},
			want: []string{"good"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(t, root)

			m := NewManager(root)
			if err := m.Discover(); err != nil {
				t.Fatalf("Discover() error = %v", err)
			}
			if got := names(m.List()); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("plugins = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_Discover_MissingRoot(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "plugins.json")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	for _, root := range []string{filepath.Join(tmp, "absent"), file} {
		m := NewManager(root)
		if err := m.Discover(); err != nil {
			t.Errorf("Discover(%s) error = %v, want nil", root, err)
		}
		if len(m.List()) != 0 {
			t.Errorf("Discover(%s) found plugins", root)
		}
	}
}

func TestManager_LoadsManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "archive", `{
		"name": "archive",
		"version": "0.2.0",
		"executable": "bin/archive",
		"events": ["capture", "session_closed"],
		"config": {"dir": "/srv/kyc"}
	}`)

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	p, err := m.Get("archive")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Path != filepath.Join(root, "archive") {
		t.Errorf("Path = %s", p.Path)
	}
	if p.Executable != filepath.Join(root, "archive", "bin", "archive") {
		t.Errorf("Executable = %s", p.Executable)
	}
	if !reflect.DeepEqual(p.Manifest.Events, []string{EventCapture, EventSessionClosed}) {
		t.Errorf("Events = %v", p.Manifest.Events)
	}
	if p.Manifest.Subscribes(EventSessionStart) {
		t.Error("archive should not receive session_start")
	}

	var cfg struct {
		Dir string `json:"dir"`
	}
	if err := json.Unmarshal(p.Manifest.Config, &cfg); err != nil || cfg.Dir != "/srv/kyc" {
		t.Errorf("Config = %s (%v)", p.Manifest.Config, err)
	}

	if _, err := m.Get("webhook"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get(webhook) error = %v, want ErrPluginNotFound", err)
	}
	if m.PluginDir() != root {
		t.Errorf("PluginDir() = %s, want %s", m.PluginDir(), root)
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "a", `{"name":"a","executable":"run"}`)
	writeManifest(t, root, "b", `{"name":"b","executable":"run"}`)

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "a")); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, root, "c", `{"name":"c","executable":"run"}`)

	if err := m.Discover(); err != nil {
		t.Fatalf("second Discover() error = %v", err)
	}
	if got := names(m.List()); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("after rescan plugins = %v, want [b c]", got)
	}
	if _, err := m.Get("a"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("removed plugin still resolvable: %v", err)
	}
}
