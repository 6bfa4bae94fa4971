// Package gitsync pushes and pulls working trees. A push takes a fast
// background path when the tree was verified recently and a synchronous,
// verified path otherwise.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/clock"
	"github.com/g960059/aio/internal/config"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/proc"
)

// ErrNotRepo is returned by Push when neither dir nor any immediate
// subdirectory is a git repository.
var ErrNotRepo = errors.New("not a git repository")

type Confirmer interface {
	Confirm(question string) (bool, error)
}

type Syncer struct {
	Runner  proc.Runner
	Spawner proc.Spawner
	Clock   clock.Clock
	Confirm Confirmer
	LogsDir string
	Policy  config.SyncPolicy
	Out     io.Writer
	Log     *zap.Logger
}

// DefaultMessage is the commit message used when none is given.
func DefaultMessage(dir string) string {
	return "Update " + filepath.Base(filepath.Clean(dir))
}

// Push commits and pushes dir, or every repo directly under it when dir is
// not a repo itself.
func (s *Syncer) Push(ctx context.Context, dir, message string) error {
	if IsRepo(ctx, s.Runner, dir) {
		if message == "" {
			message = DefaultMessage(dir)
		}
		line, err := s.pushOne(ctx, dir, message)
		if err != nil {
			return err
		}
		s.println(line)
		return nil
	}

	repos, err := SubRepos(dir)
	if err != nil || len(repos) == 0 {
		return ErrNotRepo
	}
	return s.PushAll(ctx, repos, message)
}

// PushAll pushes each repo with the same message after one confirmation.
// A failing repo is reported and the rest continue.
func (s *Syncer) PushAll(ctx context.Context, repos []string, message string) error {
	for _, r := range repos {
		s.println("  " + filepath.Base(r))
	}
	ok, err := s.Confirm.Confirm(fmt.Sprintf("Push %d repos?", len(repos)))
	if err != nil {
		return err
	}
	if !ok {
		return clierr.ErrDeclined
	}
	failed := 0
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := message
		if msg == "" {
			msg = DefaultMessage(repo)
		}
		line, err := s.pushOne(ctx, repo, msg)
		if err != nil {
			failed++
			s.logger().Warn("push failed", zap.String("repo", repo), zap.Error(err))
			s.println(fmt.Sprintf("%s: %s", filepath.Base(repo), format.Fail("%s", err.Error())))
			continue
		}
		s.println(fmt.Sprintf("%s: %s", filepath.Base(repo), line))
	}
	if failed > 0 {
		return clierr.Externalf("%d of %d repos failed to push", failed, len(repos))
	}
	return nil
}

func (s *Syncer) pushOne(ctx context.Context, dir, message string) (string, error) {
	tag, err := s.dirtyTag(ctx, dir)
	if err != nil {
		return "", err
	}
	marker := MarkerPath(s.LogsDir, dir)
	if Fresh(marker, s.Clock.Now(), s.Policy.FreshFor) {
		return s.fastPush(ctx, dir, message, tag)
	}
	return s.slowPush(ctx, dir, message, tag, marker)
}

func (s *Syncer) dirtyTag(ctx context.Context, dir string) (string, error) {
	res, err := proc.Git(ctx, s.Runner, dir, "status", "--porcelain")
	if err != nil {
		return "", clierr.Wrap(clierr.External, err, "git status")
	}
	if !res.OK() {
		return "", clierr.Externalf("git status: %s", res.FirstLine())
	}
	if strings.TrimSpace(string(res.Output)) != "" {
		return "+changes", nil
	}
	return "clean", nil
}

// fastPush commits synchronously and leaves the push to a detached git
// process whose outcome is never observed.
func (s *Syncer) fastPush(ctx context.Context, dir, message, tag string) (string, error) {
	if err := s.git(ctx, dir, "add", "-A"); err != nil {
		return "", err
	}
	if err := s.git(ctx, dir, "commit", "--allow-empty", "-m", message); err != nil {
		return "", err
	}
	if err := s.Spawner.Detach(dir, "git", "push"); err != nil {
		return "", clierr.Wrap(clierr.External, err, "start background push")
	}
	s.logger().Info("push detached", zap.String("dir", dir), zap.String("tag", tag))
	return format.OK("%s pushing (background)", tag), nil
}

func (s *Syncer) slowPush(ctx context.Context, dir, message, tag, marker string) (string, error) {
	remotes, err := proc.Git(ctx, s.Runner, dir, "remote")
	if err != nil {
		return "", clierr.Wrap(clierr.External, err, "git remote")
	}
	if strings.TrimSpace(string(remotes.Output)) == "" {
		name := filepath.Base(filepath.Clean(dir))
		res, err := s.Runner.Run(ctx, dir, "gh", "repo", "create", name, "--private", "--source", ".", "--remote", "origin")
		if err != nil {
			return "", clierr.Wrap(clierr.External, err, "gh repo create %s", name)
		}
		if !res.OK() {
			return "", clierr.Externalf("gh repo create %s: %s", name, res.FirstLine())
		}
		s.logger().Info("remote created", zap.String("dir", dir), zap.String("name", name))
		s.println(format.OK("created %s", name))
	}

	if err := s.git(ctx, dir, "add", "-A"); err != nil {
		return "", err
	}
	// A failing commit usually means there was nothing to commit.
	if res, err := proc.Git(ctx, s.Runner, dir, "commit", "-m", message); err != nil {
		return "", clierr.Wrap(clierr.External, err, "git commit")
	} else if !res.OK() {
		s.logger().Debug("commit skipped", zap.String("dir", dir), zap.String("output", res.FirstLine()))
	}

	res, err := proc.Git(ctx, s.Runner, dir, "push", "-u", "origin", "HEAD")
	if err != nil {
		return "", clierr.Wrap(clierr.External, err, "git push")
	}
	if !pushSucceeded(res) {
		return "", clierr.Externalf("push failed: %s", res.FirstLine())
	}
	if err := Touch(marker, s.Clock.Now()); err != nil {
		s.logger().Warn("touch marker", zap.String("marker", marker), zap.Error(err))
	}
	s.logger().Info("push verified", zap.String("dir", dir), zap.String("tag", tag))
	return format.OK("%s pushed", tag), nil
}

func pushSucceeded(res proc.Result) bool {
	if res.OK() {
		return true
	}
	out := strings.ToLower(string(res.Output))
	return strings.Contains(out, "up to date") || strings.Contains(out, "up-to-date")
}

// Pull hard-resets dir to the remote default branch after showing the
// target commit. Nothing is modified unless yes is set or the user agrees.
func (s *Syncer) Pull(ctx context.Context, dir string, yes bool) error {
	if !IsRepo(ctx, s.Runner, dir) {
		return clierr.Wrap(clierr.NotFound, ErrNotRepo, "%s", dir)
	}
	if err := s.git(ctx, dir, "fetch", "origin"); err != nil {
		return err
	}
	branch := "master"
	if res, err := proc.Git(ctx, s.Runner, dir, "rev-parse", "--verify", "--quiet", "origin/main"); err == nil && res.OK() {
		branch = "main"
	}
	ref := "origin/" + branch
	info, err := proc.Git(ctx, s.Runner, dir, "log", "-1", "--format=%h %s", ref)
	if err != nil {
		return clierr.Wrap(clierr.External, err, "git log %s", ref)
	}
	if !info.OK() {
		return clierr.Externalf("git log %s: %s", ref, info.FirstLine())
	}
	s.println(fmt.Sprintf("%s: %s", ref, info.Text()))

	if !yes {
		ok, err := s.Confirm.Confirm(fmt.Sprintf("Reset %s to %s? Local changes will be lost.", filepath.Base(dir), ref))
		if err != nil {
			return err
		}
		if !ok {
			return clierr.ErrDeclined
		}
	}
	if err := s.git(ctx, dir, "reset", "--hard", ref); err != nil {
		return err
	}
	if err := s.git(ctx, dir, "clean", "-fd"); err != nil {
		return err
	}
	s.println(format.OK("synced to %s", info.Text()))
	return nil
}

// Probe checks that origin answers and records a verified sync on success.
func (s *Syncer) Probe(ctx context.Context, dir string) error {
	res, err := proc.Git(ctx, s.Runner, dir, "ls-remote", "--exit-code", "origin", "HEAD")
	if err != nil {
		return clierr.Wrap(clierr.External, err, "git ls-remote")
	}
	if !res.OK() {
		return clierr.Externalf("origin unreachable: %s", res.FirstLine())
	}
	return Touch(MarkerPath(s.LogsDir, dir), s.Clock.Now())
}

func (s *Syncer) git(ctx context.Context, dir string, args ...string) error {
	res, err := proc.Git(ctx, s.Runner, dir, args...)
	if err != nil {
		return clierr.Wrap(clierr.External, err, "git %s", args[0])
	}
	if !res.OK() {
		return clierr.Externalf("git %s: %s", args[0], res.FirstLine())
	}
	return nil
}

func (s *Syncer) println(line string) {
	if s.Out != nil {
		_, _ = fmt.Fprintln(s.Out, line)
	}
}

func (s *Syncer) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
