package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is built once at startup and passed by pointer to every component.
// Nothing in the module reads process-wide state after Load returns.
type Config struct {
	Home   string
	Cwd    string
	Shell  string
	Editor string
	InTmux bool
	Debug  bool

	DataDir         string
	DBPath          string
	LogsDir         string
	LogPath         string
	ProjectsDir     string
	AppsDir         string
	ProjectListPath string
	HelpCachePath   string
	FilePath        string

	ProjectsRoot string
	WorktreesDir string
	SourceDir    string
	BinDir       string

	// Delegate is the interpreter entry point; the original arguments are
	// appended after it.
	Delegate []string

	Sync  SyncPolicy
	Idle  IdlePolicy
	Watch WatchPolicy
	Send  SendPolicy
}

type SyncPolicy struct {
	// FreshFor is how long a successful push keeps the fast path open.
	FreshFor time.Duration
}

type IdlePolicy struct {
	Poll   time.Duration
	Recent time.Duration
	Quiet  time.Duration
}

type WatchPolicy struct {
	Interval time.Duration
	Rules    []PromptRule
}

// PromptRule is an interactive confirmation prompt and the tmux keys that
// answer it. Rules are evaluated in order; the first match wins.
type PromptRule struct {
	Name  string
	Match string
	Keys  []string
}

type SendPolicy struct {
	EnterDelay time.Duration
}

// Env is the slice of the process environment the tool depends on.
type Env struct {
	Home     string
	Cwd      string
	Shell    string
	Editor   string
	Tmux     string
	DataDir  string
	Delegate string
	Debug    string
}

func EnvFromOS() Env {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "/tmp"
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = home
	}
	return Env{
		Home:     home,
		Cwd:      cwd,
		Shell:    os.Getenv("SHELL"),
		Editor:   os.Getenv("EDITOR"),
		Tmux:     os.Getenv("TMUX"),
		DataDir:  os.Getenv("A_DATA_DIR"),
		Delegate: os.Getenv("A_DELEGATE"),
		Debug:    os.Getenv("A_DEBUG"),
	}
}

func DefaultConfig() Config {
	return FromEnv(EnvFromOS())
}

// FromEnv derives the default configuration for env without touching the
// filesystem.
func FromEnv(env Env) Config {
	home := env.Home
	dataDir := strings.TrimSpace(env.DataDir)
	if dataDir == "" {
		dataDir = filepath.Join(home, ".local", "share", "a")
	}
	dataDir = ExpandHome(dataDir, home)
	shell := strings.TrimSpace(env.Shell)
	if shell == "" {
		shell = "/bin/bash"
	}
	editor := strings.TrimSpace(env.Editor)
	if editor == "" {
		editor = "vi"
	}
	projectsRoot := filepath.Join(home, "projects")
	sourceDir := filepath.Join(projectsRoot, "a")
	logsDir := filepath.Join(dataDir, "logs")

	cfg := Config{
		Home:   home,
		Cwd:    env.Cwd,
		Shell:  shell,
		Editor: editor,
		InTmux: strings.TrimSpace(env.Tmux) != "",
		Debug:  strings.TrimSpace(env.Debug) != "",

		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, "aio.db"),
		LogsDir:         logsDir,
		LogPath:         filepath.Join(logsDir, "a.log"),
		ProjectsDir:     filepath.Join(dataDir, "projects"),
		AppsDir:         filepath.Join(dataDir, "apps"),
		ProjectListPath: filepath.Join(dataDir, "projects.txt"),
		HelpCachePath:   filepath.Join(dataDir, "help_cache.txt"),
		FilePath:        filepath.Join(dataDir, "config.yaml"),

		ProjectsRoot: projectsRoot,
		WorktreesDir: filepath.Join(projectsRoot, "aiosWorktrees"),
		SourceDir:    sourceDir,
		BinDir:       filepath.Join(home, ".local", "bin"),

		Delegate: []string{"python3", filepath.Join(sourceDir, "lib", "a_main.py")},

		Sync: SyncPolicy{FreshFor: 10 * time.Minute},
		Idle: IdlePolicy{
			Poll:   500 * time.Millisecond,
			Recent: 2 * time.Second,
			Quiet:  3 * time.Second,
		},
		Watch: WatchPolicy{
			Interval: 100 * time.Millisecond,
			Rules:    DefaultPromptRules(),
		},
		Send: SendPolicy{EnterDelay: 100 * time.Millisecond},
	}
	if d := strings.Fields(env.Delegate); len(d) > 0 {
		cfg.Delegate = d
	}
	return cfg
}

// DefaultPromptRules lists the confirmation prompts answered by watch:
// generic shell prompts first, then agent dialogs.
func DefaultPromptRules() []PromptRule {
	return []PromptRule{
		{Name: "are-you-sure", Match: "Are you sure?", Keys: []string{"y", "Enter"}},
		{Name: "continue", Match: "Continue?", Keys: []string{"yes", "Enter"}},
		{Name: "default-no", Match: "[y/N]", Keys: []string{"y", "Enter"}},
		{Name: "default-yes", Match: "[Y/n]", Keys: []string{"y", "Enter"}},
		{Name: "trust-folder", Match: "Do you trust the files in this folder?", Keys: []string{"Enter"}},
		{Name: "safety-check", Match: "Quick safety check", Keys: []string{"Enter"}},
		{Name: "bypass-permissions", Match: "Bypass Permissions mode", Keys: []string{"Down", "Enter"}},
		{Name: "proceed", Match: "Do you want to proceed?", Keys: []string{"Enter"}},
		{Name: "edit", Match: "Do you want to make this edit", Keys: []string{"Enter"}},
		{Name: "create", Match: "Do you want to create", Keys: []string{"Enter"}},
		{Name: "yes-no", Match: "(y/n)", Keys: []string{"y", "Enter"}},
	}
}

// ExpandHome replaces a leading "~" with home.
func ExpandHome(path, home string) string {
	switch {
	case path == "~":
		return home
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:])
	default:
		return path
	}
}
