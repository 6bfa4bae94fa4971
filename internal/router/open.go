package router

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/g960059/aio/internal/model"
)

// OpenPath turns an existing path into an action: directories are listed,
// scripts run with their interpreter and anything else goes to editor.
func OpenPath(path, editor string, out io.Writer) (model.Action, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Action{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return model.Action{}, fmt.Errorf("read %s: %w", path, err)
		}
		_, _ = fmt.Fprintf(out, "%s:\n", path)
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			_, _ = fmt.Fprintf(out, "  %s\n", name)
		}
		return model.Exit(0), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return model.Exec("", "python3", path), nil
	case ".sh":
		return model.Exec("", "sh", path), nil
	}
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	return model.Exec("", parts[0], append(parts[1:], path)...), nil
}
