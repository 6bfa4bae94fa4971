package model

import "time"

// ProjectEntry is one parsed project description file.
type ProjectEntry struct {
	Name   string
	Path   string
	Remote string
}

// AppEntry is one parsed app description file.
type AppEntry struct {
	Name    string
	Command string
}

type ConfigEntry struct {
	Key   string
	Value string
}

// ConfigKeyDefaultPrompt holds the prompt text used when none is given.
const ConfigKeyDefaultPrompt = "default_prompt"

// SessionRecord is one row of the multi-run ledger.
type SessionRecord struct {
	ID        string
	Repo      string
	CreatedAt time.Time
}

// Session is a live tmux session and the cwd of its active pane.
type Session struct {
	Name string
	Path string
}

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path     string
	Head     string
	Branch   string
	Bare     bool
	Detached bool
}

type ActionKind string

const (
	ActionExit ActionKind = "exit"
	ActionExec ActionKind = "exec"
)

// Action is the last thing the driver does. Handlers describe process
// replacement instead of performing it.
type Action struct {
	Kind    ActionKind
	Code    int
	Program string
	Args    []string
	Dir     string
}

func Exit(code int) Action { return Action{Kind: ActionExit, Code: code} }

func Exec(dir, program string, args ...string) Action {
	return Action{Kind: ActionExec, Program: program, Args: args, Dir: dir}
}
