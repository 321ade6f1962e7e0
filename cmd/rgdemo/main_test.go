package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRun(t *testing.T) {
	o := options{frames: 2, width: 64, height: 48, lights: 4, objects: 9}
	if err := run(context.Background(), o); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

func TestRunWithFiles(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "vars.toml")
	graph := filepath.Join(dir, "graph.hcl")
	if err := os.WriteFile(config, []byte("[Render]\nDebug_DrawObjectBounds = true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(graph, []byte("pass \"depth\" {}\npass \"forward\" {}\npass \"debugbounds\" {\n  enabled = cvar.Render.Debug_DrawObjectBounds\n}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	o := options{config: config, graph: graph, frames: 1, width: 32, height: 32, lights: 1, objects: 1}
	if err := run(context.Background(), o); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

func TestRunMissingConfig(t *testing.T) {
	o := options{config: filepath.Join(t.TempDir(), "missing.toml"), frames: 1, width: 8, height: 8}
	if err := run(context.Background(), o); err == nil {
		t.Fatal("run() with missing config: expected error")
	}
}

func TestInstanceData(t *testing.T) {
	if got := len(instanceData(0)); got != 64 {
		t.Errorf("len(instanceData(0)) = %d, want 64", got)
	}
	if got := len(instanceData(5)); got != 5*64 {
		t.Errorf("len(instanceData(5)) = %d, want %d", got, 5*64)
	}
}
