// Package config loads and persists the chatshell configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Shell   ShellConfig  `yaml:"shell"`
	LLM     LLMConfig    `yaml:"llm"`
	History History      `yaml:"history"`
	Mirror  Mirror       `yaml:"mirror"`
	Hooks   []HookConfig `yaml:"hooks"`
}

// ShellConfig describes the command launched inside the PTY.
type ShellConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Argv splits the command with shell quoting rules and appends Args.
func (s ShellConfig) Argv() ([]string, error) {
	parts, err := shellquote.Split(s.Command)
	if err != nil {
		return nil, fmt.Errorf("config: invalid shell command %q: %w", s.Command, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("config: shell command is empty")
	}
	return append(parts, s.Args...), nil
}

// EnvSlice renders Env as "KEY=VALUE" entries for exec.
func (s ShellConfig) EnvSlice() []string {
	if len(s.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		out = append(out, k+"="+v)
	}
	return out
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

type History struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type Mirror struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty"`
	Token   string `yaml:"token,omitempty"`
}

// HookConfig is one configured key binding. Pattern grammar and the action
// vocabulary are validated at registration time, not load time, so a bad
// entry never blocks startup.
type HookConfig struct {
	Name        string `yaml:"name"`
	Key         string `yaml:"key"`
	Action      string `yaml:"action"`
	Description string `yaml:"description,omitempty"`
	Enabled     bool   `yaml:"enabled"`
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		Shell: ShellConfig{
			Command: "/bin/bash",
			Args:    []string{"-i"},
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4",
			MaxTokens: 1000,
		},
		History: History{Enabled: true},
		Hooks: []HookConfig{
			{
				Name:        "assistant",
				Key:         "ctrl+;",
				Action:      "llm:prompt",
				Description: "Ask the assistant for a command",
				Enabled:     true,
			},
			{
				Name:        "help",
				Key:         "ctrl+alt+h",
				Action:      "fn:show_help",
				Description: "Show help",
				Enabled:     true,
			},
		},
	}
}

// DefaultPath returns ~/.config/chatshell/config.yaml, falling back to the
// working directory when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chatshell.yaml"
	}
	return filepath.Join(home, ".config", "chatshell", "config.yaml")
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// EnsureExists loads the config at path, writing defaults first if the file
// is missing.
func EnsureExists(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(&cfg, path); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return Load(path)
}
