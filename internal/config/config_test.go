package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(Env{Home: "/home/u", Cwd: "/home/u/src"})

	assert.Equal(t, "/home/u/.local/share/a", cfg.DataDir)
	assert.Equal(t, "/home/u/.local/share/a/aio.db", cfg.DBPath)
	assert.Equal(t, "/home/u/.local/share/a/logs", cfg.LogsDir)
	assert.Equal(t, "/home/u/.local/share/a/help_cache.txt", cfg.HelpCachePath)
	assert.Equal(t, "/home/u/projects", cfg.ProjectsRoot)
	assert.Equal(t, "/bin/bash", cfg.Shell)
	assert.Equal(t, "vi", cfg.Editor)
	assert.False(t, cfg.InTmux)
	assert.Equal(t, []string{"python3", "/home/u/projects/a/lib/a_main.py"}, cfg.Delegate)
	assert.Equal(t, 10*time.Minute, cfg.Sync.FreshFor)
	assert.Equal(t, 500*time.Millisecond, cfg.Idle.Poll)
	assert.Equal(t, 2*time.Second, cfg.Idle.Recent)
	assert.Equal(t, 3*time.Second, cfg.Idle.Quiet)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Interval)
	assert.Equal(t, 100*time.Millisecond, cfg.Send.EnterDelay)
	assert.NotEmpty(t, cfg.Watch.Rules)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg := FromEnv(Env{
		Home:     "/home/u",
		Shell:    "/bin/zsh",
		Editor:   "nvim",
		Tmux:     "/tmp/tmux-1000/default,1,0",
		DataDir:  "~/data",
		Delegate: "node /opt/a.js",
		Debug:    "1",
	})
	assert.Equal(t, "/home/u/data", cfg.DataDir)
	assert.Equal(t, "/bin/zsh", cfg.Shell)
	assert.Equal(t, "nvim", cfg.Editor)
	assert.True(t, cfg.InTmux)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"node", "/opt/a.js"}, cfg.Delegate)
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(Env{Home: home})
	require.NoError(t, err)
	assert.Equal(t, FromEnv(Env{Home: home}), cfg)
}

func TestLoadAppliesYAML(t *testing.T) {
	home := t.TempDir()
	env := Env{Home: home, DataDir: filepath.Join(home, "data")}
	require.NoError(t, os.MkdirAll(env.DataDir, 0o755))
	yaml := `
projects_root: ~/code
source_dir: ~/code/a
sync:
  fresh_for: 90s
idle:
  quiet: 5s
watch:
  interval: 250ms
  rules:
    - name: continue
      match: "Press enter to continue"
      keys: [Enter]
`
	require.NoError(t, os.WriteFile(filepath.Join(env.DataDir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(env)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "code"), cfg.ProjectsRoot)
	assert.Equal(t, []string{"python3", filepath.Join(home, "code", "a", "lib", "a_main.py")}, cfg.Delegate)
	assert.Equal(t, 90*time.Second, cfg.Sync.FreshFor)
	assert.Equal(t, 5*time.Second, cfg.Idle.Quiet)
	assert.Equal(t, 2*time.Second, cfg.Idle.Recent)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Interval)
	require.Len(t, cfg.Watch.Rules, 1)
	assert.Equal(t, "continue", cfg.Watch.Rules[0].Name)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	home := t.TempDir()
	env := Env{Home: home}
	cfg := FromEnv(env)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.FilePath, []byte("sync:\n  fresh_for: soon\n"), 0o600))

	_, err := Load(env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.fresh_for")
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/h", ExpandHome("~", "/h"))
	assert.Equal(t, "/h/x/y", ExpandHome("~/x/y", "/h"))
	assert.Equal(t, "/abs", ExpandHome("/abs", "/h"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x", "/h"))
}
