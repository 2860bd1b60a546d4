package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[optimizer]
enabled = true
simple-scoping = false

[pipeline]
workers = 8
on-error = "abort"

[cache]
enabled = true
path = "build/cache.db"

[log]
verbosity = 2
file = "avmprep.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !c.Optimizer.Enabled {
		t.Error("optimizer enabled = false, want true")
	}
	if c.Optimizer.SimpleScoping {
		t.Error("simple-scoping = true, want false")
	}
	if c.Pipeline.Workers != 8 {
		t.Errorf("workers = %d, want 8", c.Pipeline.Workers)
	}
	if !c.Abort() {
		t.Error("Abort() = false for on-error = abort")
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}

	abs, _ := filepath.Abs(dir)
	if got, want := c.CachePath(), filepath.Join(abs, "build", "cache.db"); got != want {
		t.Errorf("CachePath() = %q, want %q", got, want)
	}
	if got, want := c.LogFile(), filepath.Join(abs, "avmprep.log"); got != want {
		t.Errorf("LogFile() = %q, want %q", got, want)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[log]
verbosity = 0
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if c.Optimizer != def.Optimizer {
		t.Errorf("optimizer = %+v, want %+v", c.Optimizer, def.Optimizer)
	}
	if c.Pipeline != def.Pipeline {
		t.Errorf("pipeline = %+v, want %+v", c.Pipeline, def.Pipeline)
	}
	if c.Abort() {
		t.Error("default policy should isolate failures")
	}
	if c.Log.Verbosity != 0 {
		t.Errorf("verbosity = %d, want 0", c.Log.Verbosity)
	}
	if c.LogFile() != "" {
		t.Errorf("LogFile() = %q, want stderr", c.LogFile())
	}
}

func TestCachePathDisabled(t *testing.T) {
	tests := []struct {
		name  string
		cache Cache
	}{
		{"disabled", Cache{Enabled: false, Path: "x.db"}},
		{"memory only", Cache{Enabled: true, Path: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Cache = tt.cache
			if got := c.CachePath(); got != "" {
				t.Errorf("CachePath() = %q, want empty", got)
			}
		})
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad policy", "[pipeline]\non-error = \"retry\"\n"},
		{"no workers", "[pipeline]\nworkers = 0\n"},
		{"syntax", "[pipeline\n"},
		{"wrong type", "[pipeline]\nworkers = \"many\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load should fail without a file")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[pipeline]\nworkers = 2\n")

	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if c.Pipeline.Workers != 2 {
		t.Errorf("workers = %d, want 2", c.Pipeline.Workers)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c != nil {
		t.Error("expected nil config when no file exists")
	}
}
