package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/model"
)

// CachePaths names the files RefreshCache owns.
type CachePaths struct {
	ProjectList string
	HelpCache   string
	Home        string
}

// Liveness reports whether p can be opened as-is, cloned, or neither.
func Liveness(p model.ProjectEntry) format.Liveness {
	if info, err := os.Stat(p.Path); err == nil && info.IsDir() {
		return format.Exists
	}
	if p.Remote != "" {
		return format.Clonable
	}
	return format.Unusable
}

// RenderHelp returns the help screen for reg. Output depends only on reg,
// header and on-disk liveness.
func RenderHelp(reg *Registry, header, home string) string {
	var b bytes.Buffer
	b.WriteString(strings.TrimRight(header, "\n"))
	b.WriteString("\n")
	if len(reg.Projects) > 0 {
		b.WriteString("\nPROJECTS\n")
		rows := make([]string, 0, len(reg.Projects))
		for _, p := range reg.Projects {
			rows = append(rows, fmt.Sprintf("%s %s  %s", Liveness(p), p.Name, format.ShortenHome(p.Path, home)))
		}
		indexed(&b, 0, rows, reg.Len())
	}
	if len(reg.Apps) > 0 {
		b.WriteString("\nAPPS\n")
		rows := make([]string, 0, len(reg.Apps))
		for _, a := range reg.Apps {
			rows = append(rows, fmt.Sprintf("%s  -> %s", a.Name, format.Truncate(a.Command, 60)))
		}
		indexed(&b, len(reg.Projects), rows, reg.Len())
	}
	return b.String()
}

func indexed(b *bytes.Buffer, start int, rows []string, total int) {
	width := len(fmt.Sprint(total - 1))
	for i, row := range rows {
		fmt.Fprintf(b, "  %*d. %s\n", width, start+i, row)
	}
}

// RenderProjectList returns one project path per line in index order.
func RenderProjectList(reg *Registry) string {
	var b strings.Builder
	for _, p := range reg.Projects {
		b.WriteString(p.Path)
		b.WriteString("\n")
	}
	return b.String()
}

// RefreshCache rewrites the project list and help cache. Running it twice
// without changes yields byte-identical files.
func RefreshCache(reg *Registry, paths CachePaths, header string) error {
	if err := writeFileAtomic(paths.ProjectList, []byte(RenderProjectList(reg)), 0o644); err != nil {
		return err
	}
	return writeFileAtomic(paths.HelpCache, []byte(RenderHelp(reg, header, paths.Home)), 0o644)
}

// EnsureCache refreshes only when the help cache is absent and reports
// whether it did.
func EnsureCache(reg *Registry, paths CachePaths, header string) (bool, error) {
	if _, err := os.Stat(paths.HelpCache); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", paths.HelpCache, err)
	}
	return true, RefreshCache(reg, paths, header)
}

func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UTC().UnixNano())
	if err := os.WriteFile(tmpPath, content, perm); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file %s: %w", path, err)
	}
	return nil
}
