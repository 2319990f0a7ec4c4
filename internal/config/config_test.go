package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Shell.Command != cfg.Shell.Command {
		t.Errorf("Shell.Command = %q, want %q", loaded.Shell.Command, cfg.Shell.Command)
	}
	if len(loaded.Hooks) != len(cfg.Hooks) {
		t.Fatalf("got %d hooks, want %d", len(loaded.Hooks), len(cfg.Hooks))
	}
	if loaded.Hooks[0].Key != "ctrl+;" {
		t.Errorf("Hooks[0].Key = %q, want ctrl+;", loaded.Hooks[0].Key)
	}
}

func TestEnsureExistsCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg, err := EnsureExists(path)
	if err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	if cfg.Shell.Command == "" {
		t.Error("default shell command should not be empty")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file was not created: %v", err)
	}

	// Second call loads the existing file instead of overwriting.
	if _, err := EnsureExists(path); err != nil {
		t.Errorf("EnsureExists on existing file: %v", err)
	}
}

func TestArgv(t *testing.T) {
	s := ShellConfig{Command: "/bin/bash -l", Args: []string{"-i"}}
	argv, err := s.Argv()
	if err != nil {
		t.Fatalf("Argv: %v", err)
	}
	want := []string{"/bin/bash", "-l", "-i"}
	if len(argv) != len(want) {
		t.Fatalf("Argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("Argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestArgvRejectsEmptyAndUnbalanced(t *testing.T) {
	if _, err := (ShellConfig{Command: ""}).Argv(); err == nil {
		t.Error("empty command should be rejected")
	}
	if _, err := (ShellConfig{Command: `bash "unclosed`}).Argv(); err == nil {
		t.Error("unbalanced quoting should be rejected")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("shell: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml should fail to load")
	}
}
