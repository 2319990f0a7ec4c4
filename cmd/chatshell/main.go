package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"github.com/user/chatshell/internal/bridge"
	"github.com/user/chatshell/internal/config"
	"github.com/user/chatshell/internal/history"
	"github.com/user/chatshell/internal/hook"
	"github.com/user/chatshell/internal/llm"
	"github.com/user/chatshell/internal/mirror"
	"github.com/user/chatshell/internal/pty"
	"github.com/user/chatshell/internal/term"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to the config file")
	logPath := flag.String("log", "", "log file path (default: cache dir, empty string disables)")
	flag.Parse()

	logger, closeLog := setupLogger(*logPath)
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		fmt.Fprintln(os.Stderr, "chatshell:", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("stdin is not a terminal")
	}

	cfg, err := config.EnsureExists(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	argv, err := cfg.Shell.Argv()
	if err != nil {
		return fmt.Errorf("shell command: %w", err)
	}

	terminal := term.New(os.Stdin, os.Stdout)
	defer terminal.Close()

	cols, rows, err := terminal.Size()
	if err != nil || cols <= 0 || rows <= 0 {
		cols, rows = 80, 24
	}

	// Spawn before entering raw mode so a startup failure never leaves
	// the terminal corrupted.
	session, err := pty.Spawn(argv, cfg.Shell.EnvSlice(), uint16(cols), uint16(rows))
	if err != nil {
		return fmt.Errorf("spawn shell: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(ctx, historyPath(cfg))
		if err != nil {
			logger.Warn("history disabled", "error", err)
		} else {
			defer store.Close()
		}
	}

	var assistant *llm.Client
	if needsAssistant(cfg) {
		assistant = llm.New(cfg.LLM)
	}

	executor := &hook.Executor{
		Surface:   terminal,
		Assistant: assistant,
		Store:     store,
		Logger:    logger,
	}
	registry := hook.NewRegistry(executor, logger)
	executor.ListHooks = registry.List

	for _, hc := range cfg.Hooks {
		h := hook.Hook{
			Name:        hc.Name,
			Pattern:     hc.Key,
			Action:      hook.ParseAction(hc.Action),
			Description: hc.Description,
			Enabled:     hc.Enabled,
		}
		if err := registry.Add(h); err != nil {
			// A bad entry is skipped, not fatal; its key passes through.
			logger.Warn("ignoring hook", "error", err)
		}
	}

	var observer bridge.Observer
	if cfg.Mirror.Enabled {
		srv, err := mirror.NewServer(cfg.Mirror.Addr, cfg.Mirror.Token, logger)
		if err != nil {
			logger.Warn("mirror disabled", "error", err)
		} else {
			srv.Start(ctx)
			observer = srv.Hub()
		}
	}

	if err := terminal.EnterRawMode(); err != nil {
		session.Teardown()
		return fmt.Errorf("enter raw mode: %w", err)
	}

	b := bridge.New(terminal, session, registry, bridge.Options{
		Mirror: observer,
		Logger: logger,
	})
	if err := b.Run(ctx); err != nil {
		return err
	}

	logger.Info("shell exited", "state", session.CurrentState())
	return nil
}

func needsAssistant(cfg *config.Config) bool {
	for _, hc := range cfg.Hooks {
		if hook.ParseAction(hc.Action).Kind == hook.ActionLLM {
			return true
		}
	}
	return false
}

func historyPath(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "chatshell-history.db"
	}
	return filepath.Join(home, ".local", "share", "chatshell", "history.db")
}

// setupLogger writes to a file; the wrapped shell owns stdout, so logging
// there would scramble the screen.
func setupLogger(path string) (*slog.Logger, func()) {
	if path == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			path = filepath.Join(dir, "chatshell", "chatshell.log")
		}
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return logger, func() { f.Close() }
}
