// Package router classifies the first argument of an invocation. The order
// is fixed: empty, numeric index, built-in name or alias, existing path, and
// finally delegation to the external interpreter.
package router

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/g960059/aio/internal/config"
)

type Kind int

const (
	KindHelp Kind = iota
	KindIndex
	KindBuiltin
	KindPath
	KindDelegate
)

func (k Kind) String() string {
	switch k {
	case KindHelp:
		return "help"
	case KindIndex:
		return "index"
	case KindBuiltin:
		return "builtin"
	case KindPath:
		return "path"
	default:
		return "delegate"
	}
}

type Resolution struct {
	Kind Kind
	// Index is set for KindIndex. It is -1 when the digits overflow int.
	Index int
	// Command is the canonical built-in name for KindBuiltin.
	Command string
	// Path is the absolute path for KindPath.
	Path string
	// Reason says why a token was delegated.
	Reason string
	Args   []string
}

// Table maps every built-in name and alias to its canonical name. Aliases
// are declared, never inferred from prefixes.
type Table map[string]string

// Add registers name and its aliases. Later registrations do not override
// earlier ones.
func (t Table) Add(name string, aliases ...string) {
	for _, n := range append([]string{name}, aliases...) {
		if _, ok := t[n]; !ok {
			t[n] = name
		}
	}
}

type Router struct {
	Table Table
	Cwd   string
	Home  string
}

var (
	digits       = regexp.MustCompile(`^[0-9]+$`)
	worktreeLike = regexp.MustCompile(`^[A-Za-z0-9._-]+(\+\+|@)$`)
	shortToken   = regexp.MustCompile(`^[a-z]{1,3}$`)
)

func (r *Router) Resolve(args []string) Resolution {
	if len(args) == 0 {
		return Resolution{Kind: KindHelp}
	}
	first := args[0]
	if digits.MatchString(first) {
		n, err := strconv.Atoi(first)
		if err != nil {
			// Too large to be any index; never a command name.
			n = -1
		}
		return Resolution{Kind: KindIndex, Index: n, Args: args[1:]}
	}
	if name, ok := r.Table[first]; ok {
		return Resolution{Kind: KindBuiltin, Command: name, Args: args[1:]}
	}
	if p, ok := r.existingPath(first); ok {
		return Resolution{Kind: KindPath, Path: p, Args: args[1:]}
	}
	return Resolution{Kind: KindDelegate, Reason: delegateReason(first), Args: args}
}

func (r *Router) existingPath(token string) (string, bool) {
	if token == "" || strings.HasPrefix(token, "-") {
		return "", false
	}
	p := config.ExpandHome(token, r.Home)
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.Cwd, p)
	}
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return filepath.Clean(p), true
}

func delegateReason(token string) string {
	switch {
	case worktreeLike.MatchString(token):
		return "worktree"
	case shortToken.MatchString(token):
		return "short"
	default:
		return "unknown"
	}
}
