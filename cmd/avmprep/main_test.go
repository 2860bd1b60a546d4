package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/avmprep/config"
	"github.com/chazu/avmprep/fixture"
	"github.com/chazu/avmprep/meta"
)

const pointFixture = "../../fixture/testdata/point.toml"

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *config.Config)
	}{
		{"defaults without cache", func(c *config.Config) { c.Cache.Enabled = false }},
		{"in-memory cache", func(c *config.Config) { c.Cache.Path = "" }},
		{"verify only", func(c *config.Config) {
			c.Cache.Enabled = false
			c.Optimizer.Enabled = false
		}},
		{"abort policy", func(c *config.Config) {
			c.Cache.Enabled = false
			c.Pipeline.OnError = config.OnErrorAbort
			c.Pipeline.Workers = 1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Dir = t.TempDir()
			tt.modify(cfg)
			failed, err := run(context.Background(), cfg, []string{pointFixture}, output{cfg: true, layout: true, quiet: true})
			if err != nil || failed != 0 {
				t.Errorf("run = %d failed, %v", failed, err)
			}
		})
	}
}

func TestRunPersistsCache(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()

	for i := 0; i < 2; i++ {
		if failed, err := run(context.Background(), cfg, []string{pointFixture}, output{quiet: true}); err != nil || failed != 0 {
			t.Fatalf("run %d = %d failed, %v", i, failed, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Dir, ".avmprep", "cache.db")); err != nil {
		t.Errorf("cache database missing: %v", err)
	}
}

func TestRunReportsFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	src := `
[[method]]
name = "ok"
code = "returnvoid"

[[method]]
name = "bad"
locals = 1
code = """
    getlocal 4
    returnvalue
"""
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Dir = dir
	cfg.Cache.Enabled = false
	failed, err := run(context.Background(), cfg, []string{path}, output{quiet: true})
	if err != nil || failed != 1 {
		t.Errorf("run = %d failed, %v, want 1 failure", failed, err)
	}

	cfg.Pipeline.OnError = config.OnErrorAbort
	if _, err := run(context.Background(), cfg, []string{path}, output{quiet: true}); err == nil {
		t.Error("abort policy should return the failure")
	}
}

func TestLoadConfigExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("[pipeline]\nworkers = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Pipeline.Workers != 2 || cfg.Dir == "" {
		t.Errorf("config = %+v", cfg)
	}
	if _, err := loadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestPrintLayouts(t *testing.T) {
	f, err := fixture.Load(pointFixture)
	if err != nil {
		t.Fatal(err)
	}
	d := meta.NewDomain()
	if err := f.Define(d); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printLayouts(&buf, d); err != nil {
		t.Fatalf("printLayouts: %v", err)
	}
	got := buf.String()
	for _, want := range []string{
		"class flash.geom::Point extends Object (2 slots)\n",
		"class flash.geom::Point3D extends flash.geom::Point (3 slots)\n",
		"  slot 3 flash.geom::z: Number const\n",
		"  slot 2 flash.geom::tag: *\n",
		"  method 1 flash.geom::length\n",
		"  accessor flash.geom::norm get 2\n",
		"interface flash.geom::Shape (0 slots)\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("layout missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "class int ") {
		t.Errorf("builtins should be skipped:\n%s", got)
	}
	if i, j := strings.Index(got, "flash.geom::Point "), strings.Index(got, "flash.geom::Point3D"); i > j {
		t.Error("classes should be sorted by name")
	}
}
