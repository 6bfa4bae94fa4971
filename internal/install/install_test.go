package install

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	home := t.TempDir()
	self := filepath.Join(home, "build", "a")
	if err := os.MkdirAll(filepath.Dir(self), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(self, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write self: %v", err)
	}
	return Options{HomeDir: home, Self: self}
}

func TestInstallCreatesLayoutAndLink(t *testing.T) {
	opts := testOptions(t)
	res, err := Install(opts)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	link := filepath.Join(opts.HomeDir, ".local", "bin", "a")
	if res.Link != link {
		t.Fatalf("unexpected link path %q", res.Link)
	}
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != opts.Self {
		t.Fatalf("link points to %q, want %q", target, opts.Self)
	}
	for _, dir := range []string{"projects", "apps", "logs"} {
		if _, err := os.Stat(filepath.Join(opts.HomeDir, ".local", "share", "a", dir)); err != nil {
			t.Fatalf("expected %s dir: %v", dir, err)
		}
	}
	readme, err := os.ReadFile(filepath.Join(opts.HomeDir, ".local", "share", "a", "projects", "README"))
	if err != nil {
		t.Fatalf("read readme: %v", err)
	}
	if !strings.Contains(string(readme), "#   Name:") {
		t.Fatalf("unexpected readme: %q", readme)
	}

	again, err := Install(opts)
	if err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	if len(again.FilesWritten) != 0 || len(again.DirsCreated) != 0 || len(again.Backups) != 0 {
		t.Fatalf("expected reinstall to be a no-op, got %+v", again)
	}
}

func TestInstallBacksUpRegularFile(t *testing.T) {
	opts := testOptions(t)
	link := filepath.Join(opts.HomeDir, ".local", "bin", "a")
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(link, []byte("old"), 0o755); err != nil {
		t.Fatalf("write old binary: %v", err)
	}
	res, err := Install(opts)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(res.Backups) != 1 {
		t.Fatalf("expected one backup, got %+v", res.Backups)
	}
	if b, err := os.ReadFile(res.Backups[0]); err != nil || string(b) != "old" {
		t.Fatalf("backup content: %q %v", b, err)
	}
}

func TestInstallDryRunWritesNothing(t *testing.T) {
	opts := testOptions(t)
	opts.DryRun = true
	res, err := Install(opts)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !res.DryRun || len(res.DirsCreated) == 0 || len(res.FilesWritten) != 2 {
		t.Fatalf("unexpected dry-run result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(opts.HomeDir, ".local")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run touched the filesystem: %v", err)
	}
}

func TestUninstallRemovesLinkAndCaches(t *testing.T) {
	opts := testOptions(t)
	if _, err := Install(opts); err != nil {
		t.Fatalf("install: %v", err)
	}
	cache := filepath.Join(opts.HomeDir, ".local", "share", "a", "help_cache.txt")
	if err := os.WriteFile(cache, []byte("help"), 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	missing := filepath.Join(opts.HomeDir, "never-written.txt")

	res, err := Uninstall(opts, cache, missing)
	if err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if len(res.FilesRemoved) != 2 {
		t.Fatalf("expected link and cache removed, got %+v", res.FilesRemoved)
	}
	if _, err := os.Lstat(filepath.Join(opts.HomeDir, ".local", "bin", "a")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("link still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(opts.HomeDir, ".local", "share", "a", "projects", "README")); err != nil {
		t.Fatalf("description dir should be kept: %v", err)
	}
}

func TestUninstallLeavesRegularFile(t *testing.T) {
	opts := testOptions(t)
	link := filepath.Join(opts.HomeDir, ".local", "bin", "a")
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(link, []byte("someone else's"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := Uninstall(opts)
	if err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected a warning, got %+v", res)
	}
	if _, err := os.Stat(link); err != nil {
		t.Fatalf("regular file removed: %v", err)
	}
}
