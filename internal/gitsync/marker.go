package gitsync

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// MarkerPath returns the sync marker for the working tree at dir. The
// marker's mtime is the time of the last verified push.
func MarkerPath(logsDir, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	sum := blake3.Sum256([]byte(abs))
	return filepath.Join(logsDir, "push-"+hex.EncodeToString(sum[:])[:16]+".ok")
}

// Fresh reports whether the marker at path was touched less than window
// before now.
func Fresh(path string, now time.Time, window time.Duration) bool {
	at, err := MarkerTime(path)
	if err != nil || at.IsZero() {
		return false
	}
	age := now.Sub(at)
	return age >= 0 && age < window
}

// Touch creates the marker if needed and sets its mtime to now.
func Touch(path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("touch %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("chtimes %s: %w", path, err)
	}
	return nil
}

// MarkerTime returns the marker mtime, or the zero time when absent.
func MarkerTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
