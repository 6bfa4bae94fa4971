// Package registry discovers projects and apps from description files and
// assigns them per-invocation indices.
package registry

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/config"
	"github.com/g960059/aio/internal/model"
)

// Registry holds projects then apps. Index i < len(Projects) addresses a
// project; the next len(Apps) indices address apps. Indices are only
// meaningful for the invocation that loaded them.
type Registry struct {
	Projects []model.ProjectEntry
	Apps     []model.AppEntry
}

func (r *Registry) Len() int { return len(r.Projects) + len(r.Apps) }

// Target is the entry an index resolves to. Exactly one of Project or App is
// set.
type Target struct {
	Index   int
	Project *model.ProjectEntry
	App     *model.AppEntry
}

func (r *Registry) Resolve(i int) (Target, error) {
	if i >= 0 && i < len(r.Projects) {
		p := r.Projects[i]
		return Target{Index: i, Project: &p}, nil
	}
	if j := i - len(r.Projects); i >= 0 && j < len(r.Apps) {
		a := r.Apps[j]
		return Target{Index: i, App: &a}, nil
	}
	return Target{}, clierr.NotFoundf("invalid index: %d", i).WithSuggestion("a help")
}

// Load reads both description directories named by cfg.
func Load(cfg *config.Config) (*Registry, error) {
	projects, err := LoadProjects(cfg.ProjectsDir, cfg.Home, cfg.ProjectsRoot)
	if err != nil {
		return nil, err
	}
	apps, err := LoadApps(cfg.AppsDir)
	if err != nil {
		return nil, err
	}
	return &Registry{Projects: projects, Apps: apps}, nil
}

// LoadProjects parses every project file in dir. Path defaults to
// <root>/<Name>; root defaults to <home>/projects.
func LoadProjects(dir, home, root string) ([]model.ProjectEntry, error) {
	if root == "" {
		root = filepath.Join(home, "projects")
	}
	records, err := readRecords(dir)
	if err != nil {
		return nil, err
	}
	out := make([]model.ProjectEntry, 0, len(records))
	for _, rec := range records {
		name := rec["Name"]
		if name == "" {
			continue
		}
		path := rec["Path"]
		if path == "" {
			path = filepath.Join(root, name)
		}
		out = append(out, model.ProjectEntry{
			Name:   name,
			Path:   config.ExpandHome(path, home),
			Remote: rec["Repo"],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func LoadApps(dir string) ([]model.AppEntry, error) {
	records, err := readRecords(dir)
	if err != nil {
		return nil, err
	}
	out := make([]model.AppEntry, 0, len(records))
	for _, rec := range records {
		if rec["Name"] == "" {
			continue
		}
		out = append(out, model.AppEntry{Name: rec["Name"], Command: rec["Command"]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// readRecords parses the visible regular files of dir in file-name order.
// A missing dir is empty.
func readRecords(dir string) ([]map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []map[string]string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, ParseRecord(raw))
	}
	return out, nil
}

// ParseRecord reads "Key: value" lines. The first colon splits; keys are
// case-sensitive and the last occurrence of a key wins.
func ParseRecord(raw []byte) map[string]string {
	rec := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		rec[key] = strings.TrimSpace(value)
	}
	return rec
}
