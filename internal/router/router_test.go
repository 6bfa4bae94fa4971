package router

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g960059/aio/internal/model"
)

func newRouter(t *testing.T) (*Router, string) {
	t.Helper()
	cwd := t.TempDir()
	table := Table{}
	table.Add("push", "p")
	table.Add("kill", "k", "x")
	table.Add("ls")
	table.Add("pull", "p")
	return &Router{Table: table, Cwd: cwd, Home: "/nonexistent-home"}, cwd
}

func TestResolutionOrder(t *testing.T) {
	r, cwd := newRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(cwd, "notes.md"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(cwd, "ls"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(cwd, "42"), 0o755))

	assert.Equal(t, KindHelp, r.Resolve(nil).Kind)

	res := r.Resolve([]string{"42", "extra"})
	assert.Equal(t, KindIndex, res.Kind, "digits win over an existing path")
	assert.Equal(t, 42, res.Index)
	assert.Equal(t, []string{"extra"}, res.Args)

	res = r.Resolve([]string{"ls"})
	assert.Equal(t, KindBuiltin, res.Kind, "built-ins win over an existing path")

	res = r.Resolve([]string{"x", "all"})
	assert.Equal(t, Resolution{Kind: KindBuiltin, Command: "kill", Args: []string{"all"}}, res)

	res = r.Resolve([]string{"p"})
	assert.Equal(t, "push", res.Command, "first declared alias owner keeps it")

	res = r.Resolve([]string{"notes.md"})
	assert.Equal(t, KindPath, res.Kind)
	assert.Equal(t, filepath.Join(cwd, "notes.md"), res.Path)

	res = r.Resolve([]string{"pus"})
	assert.Equal(t, KindDelegate, res.Kind, "no prefix matching")
	assert.Equal(t, "short", res.Reason)
	assert.Equal(t, []string{"pus"}, res.Args)
}

func TestOverflowingDigitsStayAnIndex(t *testing.T) {
	r, _ := newRouter(t)
	res := r.Resolve([]string{"99999999999999999999999"})
	assert.Equal(t, KindIndex, res.Kind)
	assert.Equal(t, -1, res.Index)
}

func TestDelegateReasons(t *testing.T) {
	r, _ := newRouter(t)
	assert.Equal(t, "worktree", r.Resolve([]string{"myrepo++"}).Reason)
	assert.Equal(t, "worktree", r.Resolve([]string{"myrepo@"}).Reason)
	assert.Equal(t, "short", r.Resolve([]string{"c"}).Reason)
	assert.Equal(t, "unknown", r.Resolve([]string{"gemini-review"}).Reason)
	assert.Equal(t, KindDelegate, r.Resolve([]string{"-x"}).Kind)
	assert.Equal(t, KindDelegate, r.Resolve([]string{"-1"}).Kind)
}

func TestOpenPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	files := map[string]string{"run.py": "", "go.sh": "", "README.md": ""}
	for name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	var out bytes.Buffer
	action, err := OpenPath(dir, "", &out)
	require.NoError(t, err)
	assert.Equal(t, model.Exit(0), action)
	assert.Contains(t, out.String(), "  sub/\n")
	assert.Contains(t, out.String(), "  run.py\n")

	action, err = OpenPath(filepath.Join(dir, "run.py"), "", &out)
	require.NoError(t, err)
	assert.Equal(t, model.Exec("", "python3", filepath.Join(dir, "run.py")), action)

	action, err = OpenPath(filepath.Join(dir, "go.sh"), "", &out)
	require.NoError(t, err)
	assert.Equal(t, model.Exec("", "sh", filepath.Join(dir, "go.sh")), action)

	action, err = OpenPath(filepath.Join(dir, "README.md"), "code -w", &out)
	require.NoError(t, err)
	assert.Equal(t, model.Exec("", "code", "-w", filepath.Join(dir, "README.md")), action)

	action, err = OpenPath(filepath.Join(dir, "README.md"), "", &out)
	require.NoError(t, err)
	assert.Equal(t, "vi", action.Program)
}
