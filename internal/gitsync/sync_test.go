package gitsync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/clock"
	"github.com/g960059/aio/internal/config"
	"github.com/g960059/aio/internal/proc"
	"github.com/g960059/aio/internal/testutil"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type answer struct {
	ok    bool
	asked []string
}

func (a *answer) Confirm(q string) (bool, error) {
	a.asked = append(a.asked, q)
	return a.ok, nil
}

var epoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newSyncer(t *testing.T, runner *testutil.FakeRunner) (*Syncer, *testutil.FakeSpawner, *bytes.Buffer, *answer) {
	t.Helper()
	spawner := &testutil.FakeSpawner{}
	out := &bytes.Buffer{}
	ans := &answer{ok: true}
	return &Syncer{
		Runner:  runner,
		Spawner: spawner,
		Clock:   clock.NewFake(epoch),
		Confirm: ans,
		LogsDir: t.TempDir(),
		Policy:  config.SyncPolicy{FreshFor: 10 * time.Minute},
		Out:     out,
	}, spawner, out, ans
}

func TestMarkerPathIsStable(t *testing.T) {
	a := MarkerPath("/logs", "/home/u/projects/alpha")
	b := MarkerPath("/logs", "/home/u/projects/alpha/")
	c := MarkerPath("/logs", "/home/u/projects/beta")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(filepath.Base(a), "push-"))
	assert.Len(t, filepath.Base(a), len("push-")+16+len(".ok"))
}

func TestFreshWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.ok")
	assert.False(t, Fresh(path, epoch, 10*time.Minute))
	require.NoError(t, Touch(path, epoch))
	assert.True(t, Fresh(path, epoch.Add(9*time.Minute), 10*time.Minute))
	assert.False(t, Fresh(path, epoch.Add(10*time.Minute), 10*time.Minute))
	got, err := MarkerTime(path)
	require.NoError(t, err)
	assert.True(t, got.Equal(epoch))
}

func TestPushSlowPathVerifiesAndTouchesMarker(t *testing.T) {
	dir := "/work/alpha"
	runner := testutil.NewFakeRunner().
		On("git status --porcelain", " M main.go\n", 0).
		On("git remote", "origin\n", 0).
		On("git commit", "", 0).
		On("git push -u origin HEAD", "To github.com:u/alpha.git\n", 0)
	s, spawner, out, _ := newSyncer(t, runner)

	require.NoError(t, s.Push(context.Background(), dir, ""))
	assert.Equal(t, []string{
		"git rev-parse --git-dir",
		"git status --porcelain",
		"git remote",
		"git add -A",
		"git commit -m Update alpha",
		"git push -u origin HEAD",
	}, runner.Lines())
	assert.Empty(t, spawner.Calls())
	assert.Contains(t, out.String(), "✓ +changes pushed")
	assert.True(t, Fresh(MarkerPath(s.LogsDir, dir), epoch, time.Minute))
}

func TestPushSlowPathUpToDateCountsAsSuccess(t *testing.T) {
	runner := testutil.NewFakeRunner().
		On("git remote", "origin\n", 0).
		On("git commit", "nothing to commit, working tree clean\n", 1).
		On("git push", "Everything up-to-date\n", 1)
	s, _, out, _ := newSyncer(t, runner)

	require.NoError(t, s.Push(context.Background(), "/work/beta", "msg"))
	assert.Contains(t, out.String(), "✓ clean pushed")
	assert.True(t, Fresh(MarkerPath(s.LogsDir, "/work/beta"), epoch, time.Minute))
}

func TestPushSlowPathFailureLeavesMarker(t *testing.T) {
	runner := testutil.NewFakeRunner().
		On("git remote", "origin\n", 0).
		On("git push", "fatal: could not read from remote repository\nmore\n", 128)
	s, _, _, _ := newSyncer(t, runner)

	err := s.Push(context.Background(), "/work/gamma", "")
	require.Error(t, err)
	assert.True(t, clierr.Is(err, clierr.External))
	assert.Contains(t, err.Error(), "fatal: could not read from remote repository")
	assert.NotContains(t, err.Error(), "more")
	_, statErr := os.Stat(MarkerPath(s.LogsDir, "/work/gamma"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestPushWithoutRemoteCreatesRepoThenPushes(t *testing.T) {
	dir := "/work/newproj"
	runner := testutil.NewFakeRunner().
		On("git status --porcelain", " M main.go\n", 0).
		On("git remote", "", 0)
	s, _, out, _ := newSyncer(t, runner)

	require.NoError(t, s.Push(context.Background(), dir, ""))
	assert.Equal(t, []string{
		"git rev-parse --git-dir",
		"git status --porcelain",
		"git remote",
		"gh repo create newproj --private --source . --remote origin",
		"git add -A",
		"git commit -m Update newproj",
		"git push -u origin HEAD",
	}, runner.Lines())
	assert.Contains(t, out.String(), "✓ created newproj")
	assert.Contains(t, out.String(), "✓ +changes pushed")
	assert.True(t, Fresh(MarkerPath(s.LogsDir, dir), epoch, time.Minute))
}

func TestPushWithoutRemoteFailedPushLeavesMarker(t *testing.T) {
	dir := "/work/newproj"
	runner := testutil.NewFakeRunner().
		On("git remote", "", 0).
		On("git push", "fatal: repository not found\n", 128)
	s, _, _, _ := newSyncer(t, runner)

	err := s.Push(context.Background(), dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository not found")
	assert.False(t, Fresh(MarkerPath(s.LogsDir, dir), epoch, time.Minute))
}

func TestPushFastPathDetachesPush(t *testing.T) {
	dir := "/work/alpha"
	runner := testutil.NewFakeRunner()
	s, spawner, out, _ := newSyncer(t, runner)
	require.NoError(t, Touch(MarkerPath(s.LogsDir, dir), epoch.Add(-2*time.Minute)))

	require.NoError(t, s.Push(context.Background(), dir, "wip"))
	assert.Equal(t, []string{
		"git rev-parse --git-dir",
		"git status --porcelain",
		"git add -A",
		"git commit --allow-empty -m wip",
	}, runner.Lines())
	require.Len(t, spawner.Calls(), 1)
	assert.Equal(t, testutil.Call{Dir: dir, Name: "git", Args: []string{"push"}}, spawner.Calls()[0])
	assert.Contains(t, out.String(), "✓ clean pushing (background)")
}

func TestPushStaleMarkerTakesSlowPath(t *testing.T) {
	dir := "/work/alpha"
	runner := testutil.NewFakeRunner().On("git remote", "origin\n", 0)
	s, spawner, _, _ := newSyncer(t, runner)
	require.NoError(t, Touch(MarkerPath(s.LogsDir, dir), epoch.Add(-11*time.Minute)))

	require.NoError(t, s.Push(context.Background(), dir, ""))
	assert.Empty(t, spawner.Calls())
	assert.True(t, runner.Ran("git push -u origin HEAD"))
}

func TestPushAllOverSubdirectories(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"one", "two", "plain"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "one", ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "two", ".git"), 0o755))

	runner := testutil.NewFakeRunner().On("git remote", "origin\n", 0)
	runner.Hook = func(c testutil.Call) (proc.Result, bool) {
		if c.Dir == root && c.Line() == "git rev-parse --git-dir" {
			return proc.Result{Output: []byte("fatal: not a git repository"), Code: 128}, true
		}
		if c.Dir == filepath.Join(root, "two") && strings.HasPrefix(c.Line(), "git push") {
			return proc.Result{Output: []byte("rejected"), Code: 1}, true
		}
		return proc.Result{}, false
	}
	s, _, out, ans := newSyncer(t, runner)

	err := s.Push(context.Background(), root, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 repos failed")
	assert.Equal(t, []string{"Push 2 repos?"}, ans.asked)
	assert.Contains(t, out.String(), "one: ✓ clean pushed")
	assert.Contains(t, out.String(), "two: x push failed: rejected")
	assert.True(t, runner.Ran("git commit -m Update one"))
}

func TestPushNoRepoAnywhere(t *testing.T) {
	root := t.TempDir()
	runner := testutil.NewFakeRunner().On("git rev-parse", "", 128)
	s, _, _, _ := newSyncer(t, runner)
	assert.ErrorIs(t, s.Push(context.Background(), root, ""), ErrNotRepo)
}

func TestPullDeclinedLeavesTreeUntouched(t *testing.T) {
	runner := testutil.NewFakeRunner().
		On("git rev-parse --verify --quiet origin/main", "", 1).
		On("git log -1", "abc1234 Fix thing\n", 0)
	s, _, out, ans := newSyncer(t, runner)
	ans.ok = false

	err := s.Pull(context.Background(), "/work/alpha", false)
	assert.True(t, clierr.Is(err, clierr.Declined))
	assert.True(t, runner.Ran("git log -1 --format=%h %s origin/master"))
	assert.False(t, runner.Ran("git reset"))
	assert.False(t, runner.Ran("git clean"))
	assert.Contains(t, out.String(), "origin/master: abc1234 Fix thing")
	require.Len(t, ans.asked, 1)
}

func TestPullYesResets(t *testing.T) {
	runner := testutil.NewFakeRunner().On("git log -1", "def5678 Ship\n", 0)
	s, _, out, ans := newSyncer(t, runner)

	require.NoError(t, s.Pull(context.Background(), "/work/alpha", true))
	assert.Empty(t, ans.asked)
	lines := runner.Lines()
	assert.Equal(t, "git reset --hard origin/main", lines[len(lines)-2])
	assert.Equal(t, "git clean -fd", lines[len(lines)-1])
	assert.Contains(t, out.String(), "synced to def5678 Ship")
}

func TestProbeTouchesMarkerOnlyOnSuccess(t *testing.T) {
	runner := testutil.NewFakeRunner().
		On("git ls-remote", "", 2).
		On("git ls-remote", "abc\tHEAD\n", 0)
	s, _, _, _ := newSyncer(t, runner)
	marker := MarkerPath(s.LogsDir, "/work/x")

	require.Error(t, s.Probe(context.Background(), "/work/x"))
	assert.False(t, Fresh(marker, epoch, time.Minute))
	require.NoError(t, s.Probe(context.Background(), "/work/x"))
	assert.True(t, Fresh(marker, epoch, time.Minute))
}

func TestParseWorktrees(t *testing.T) {
	out := "worktree /home/u/projects/a\nHEAD 1111\nbranch refs/heads/main\n\n" +
		"worktree /home/u/projects/aiosWorktrees/a-1\nHEAD 2222\ndetached\n\n" +
		"worktree /srv/bare\nbare\n"
	got := ParseWorktrees(out)
	require.Len(t, got, 3)
	assert.Equal(t, "main", got[0].Branch)
	assert.Equal(t, "1111", got[0].Head)
	assert.True(t, got[1].Detached)
	assert.Equal(t, "/home/u/projects/aiosWorktrees/a-1", got[1].Path)
	assert.True(t, got[2].Bare)
}

func TestAddWorktreeNamesBranchAfterRepoAndTime(t *testing.T) {
	runner := testutil.NewFakeRunner()
	path, err := AddWorktree(context.Background(), runner, "/home/u/projects/alpha", "/home/u/wt", epoch)
	require.NoError(t, err)
	assert.Equal(t, "/home/u/wt/alpha-20260501-090000", path)
	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/home/u/projects/alpha", calls[1].Dir)
	assert.Equal(t, "git worktree add -b wt-alpha-20260501-090000 /home/u/wt/alpha-20260501-090000 HEAD", calls[1].Line())
}

func TestAddWorktreeOutsideRepo(t *testing.T) {
	runner := testutil.NewFakeRunner().On("git rev-parse --git-dir", "fatal: not a git repository", 128)
	_, err := AddWorktree(context.Background(), runner, "/tmp/plain", "/home/u/wt", epoch)
	assert.ErrorIs(t, err, ErrNotRepo)
	assert.False(t, runner.Ran("git worktree add"))
}

func TestAddWorktreeFailure(t *testing.T) {
	runner := testutil.NewFakeRunner().On("git worktree add", "fatal: a branch named 'wt-alpha' already exists\n", 128)
	_, err := AddWorktree(context.Background(), runner, "/home/u/projects/alpha", "/home/u/wt", epoch)
	require.Error(t, err)
	assert.Equal(t, clierr.External, clierr.CategoryOf(err))
}
