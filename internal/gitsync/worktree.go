package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/model"
	"github.com/g960059/aio/internal/proc"
)

// IsRepo reports whether dir is inside a git working tree.
func IsRepo(ctx context.Context, r proc.Runner, dir string) bool {
	res, err := proc.Git(ctx, r, dir, "rev-parse", "--git-dir")
	return err == nil && res.OK()
}

// SubRepos lists the immediate subdirectories of dir that hold a .git entry.
func SubRepos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(sub, ".git")); err == nil {
			out = append(out, sub)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AddWorktree checks out a new branch wt-<repo>-<stamp> from HEAD of repo
// into root/<repo>-<stamp> and returns that path.
func AddWorktree(ctx context.Context, r proc.Runner, repo, root string, now time.Time) (string, error) {
	if !IsRepo(ctx, r, repo) {
		return "", ErrNotRepo
	}
	name := filepath.Base(repo) + "-" + now.Format("20060102-150405")
	path := filepath.Join(root, name)
	res, err := proc.Git(ctx, r, repo, "worktree", "add", "-b", "wt-"+name, path, "HEAD")
	if err != nil {
		return "", clierr.Wrap(clierr.External, err, "git worktree add")
	}
	if !res.OK() {
		return "", clierr.Externalf("git worktree add: %s", res.FirstLine())
	}
	return path, nil
}

// ListWorktrees returns the worktrees of the repository containing dir.
func ListWorktrees(ctx context.Context, r proc.Runner, dir string) ([]model.Worktree, error) {
	res, err := proc.Git(ctx, r, dir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, clierr.Wrap(clierr.External, err, "git worktree list")
	}
	if !res.OK() {
		return nil, clierr.Externalf("git worktree list: %s", res.FirstLine())
	}
	return ParseWorktrees(string(res.Output)), nil
}

// ParseWorktrees parses `git worktree list --porcelain`. Entries are
// separated by blank lines; the first is the main checkout.
func ParseWorktrees(out string) []model.Worktree {
	var (
		list []model.Worktree
		cur  *model.Worktree
	)
	flush := func() {
		if cur != nil {
			list = append(list, *cur)
			cur = nil
		}
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur = &model.Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case cur == nil:
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "bare":
			cur.Bare = true
		case line == "detached":
			cur.Detached = true
		}
	}
	flush()
	return list
}
