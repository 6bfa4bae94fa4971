package install

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BinaryName is the name the dispatcher is linked as.
const BinaryName = "a"

type Options struct {
	HomeDir     string
	BinDir      string
	DataDir     string
	ProjectsDir string
	AppsDir     string
	LogsDir     string
	// Self is the absolute path of the running binary.
	Self   string
	DryRun bool
}

type Result struct {
	DryRun       bool     `json:"dry_run"`
	Link         string   `json:"link,omitempty"`
	DirsCreated  []string `json:"dirs_created,omitempty"`
	FilesWritten []string `json:"files_written,omitempty"`
	FilesRemoved []string `json:"files_removed,omitempty"`
	Backups      []string `json:"backups,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

const projectsReadme = `# One file per project. Lines are "Key: value".
#   Name: <required, shown in the index>
#   Path: <optional, defaults to ~/projects/<Name>>
#   Repo: <optional git remote, cloned on first open>
`

const appsReadme = `# One file per app. Lines are "Key: value".
#   Name: <required, shown in the index>
#   Command: <shell command run on open>
`

// Install creates the data layout and links Self as <BinDir>/a.
func Install(opts Options) (Result, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return Result{}, err
	}
	res := Result{DryRun: opts.DryRun}

	for _, dir := range []string{opts.DataDir, opts.ProjectsDir, opts.AppsDir, opts.LogsDir, opts.BinDir} {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		res.DirsCreated = append(res.DirsCreated, dir)
		if opts.DryRun {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	if err := writeManagedFile(filepath.Join(opts.ProjectsDir, "README"), projectsReadme, 0o644, opts.DryRun, &res); err != nil {
		return Result{}, err
	}
	if err := writeManagedFile(filepath.Join(opts.AppsDir, "README"), appsReadme, 0o644, opts.DryRun, &res); err != nil {
		return Result{}, err
	}

	link := filepath.Join(opts.BinDir, BinaryName)
	if err := linkBinary(link, opts.Self, opts.DryRun, &res); err != nil {
		return Result{}, err
	}
	if !strings.Contains(":"+os.Getenv("PATH")+":", ":"+opts.BinDir+":") {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s is not on PATH", opts.BinDir))
	}
	return res, nil
}

// Uninstall removes the link (only when it is a symlink) and the generated
// caches. Description files and the store are kept.
func Uninstall(opts Options, caches ...string) (Result, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return Result{}, err
	}
	res := Result{DryRun: opts.DryRun}
	link := filepath.Join(opts.BinDir, BinaryName)
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s is not a symlink; left in place", link))
		} else {
			if err := remove(link, opts.DryRun, &res); err != nil {
				return Result{}, err
			}
		}
	}
	for _, path := range caches {
		if err := remove(path, opts.DryRun, &res); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func remove(path string, dryRun bool, res *Result) error {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	res.FilesRemoved = append(res.FilesRemoved, path)
	if dryRun {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func normalizeOptions(opts Options) (Options, error) {
	if strings.TrimSpace(opts.HomeDir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Options{}, fmt.Errorf("resolve home dir: %w", err)
		}
		opts.HomeDir = home
	}
	if opts.BinDir == "" {
		opts.BinDir = filepath.Join(opts.HomeDir, ".local", "bin")
	}
	if opts.DataDir == "" {
		opts.DataDir = filepath.Join(opts.HomeDir, ".local", "share", "a")
	}
	if opts.ProjectsDir == "" {
		opts.ProjectsDir = filepath.Join(opts.DataDir, "projects")
	}
	if opts.AppsDir == "" {
		opts.AppsDir = filepath.Join(opts.DataDir, "apps")
	}
	if opts.LogsDir == "" {
		opts.LogsDir = filepath.Join(opts.DataDir, "logs")
	}
	if opts.Self == "" {
		self, err := os.Executable()
		if err != nil {
			return Options{}, fmt.Errorf("resolve executable: %w", err)
		}
		opts.Self = self
	}
	abs, err := filepath.Abs(opts.Self)
	if err != nil {
		return Options{}, fmt.Errorf("resolve %s: %w", opts.Self, err)
	}
	opts.Self = abs
	return opts, nil
}

// linkBinary points link at target. A regular file in the way is backed up
// first; an existing symlink is replaced.
func linkBinary(link, target string, dryRun bool, res *Result) error {
	res.Link = link
	if current, err := os.Readlink(link); err == nil && current == target {
		return nil
	}
	if dryRun {
		return nil
	}
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			backupPath := fmt.Sprintf("%s.bak.%d", link, time.Now().UTC().UnixNano())
			if err := os.Rename(link, backupPath); err != nil {
				return fmt.Errorf("back up %s: %w", link, err)
			}
			res.Backups = append(res.Backups, backupPath)
		}
	}
	tmpLink := fmt.Sprintf("%s.tmp.%d", link, time.Now().UTC().UnixNano())
	if err := os.Symlink(target, tmpLink); err != nil {
		return fmt.Errorf("symlink %s: %w", link, err)
	}
	if err := os.Rename(tmpLink, link); err != nil {
		_ = os.Remove(tmpLink)
		return fmt.Errorf("rename link %s: %w", link, err)
	}
	return nil
}

func writeManagedFile(path, content string, perm os.FileMode, dryRun bool, res *Result) error {
	existing, err := readOptional(path)
	if err != nil {
		return err
	}
	if bytes.Equal(existing, []byte(content)) {
		return nil
	}

	if dryRun {
		res.FilesWritten = append(res.FilesWritten, path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if len(existing) > 0 {
		backupPath := fmt.Sprintf("%s.bak.%d", path, time.Now().UTC().UnixNano())
		if err := os.WriteFile(backupPath, existing, 0o600); err != nil {
			return fmt.Errorf("write backup %s: %w", backupPath, err)
		}
		res.Backups = append(res.Backups, backupPath)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UTC().UnixNano())
	if err := os.WriteFile(tmpPath, []byte(content), perm); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file %s: %w", path, err)
	}
	res.FilesWritten = append(res.FilesWritten, path)
	return nil
}

func readOptional(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return b, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return nil, fmt.Errorf("read %s: %w", path, err)
}
