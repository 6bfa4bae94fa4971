package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// ErrNotFound reports that the program to exec could not be located.
var ErrNotFound = errors.New("program not found")

// Replace turns the current process into program. It only returns on failure.
func Replace(program string, args []string, dir string) error {
	path, err := exec.LookPath(program)
	if err != nil {
		return fmt.Errorf("%s: %w", program, ErrNotFound)
	}
	if dir != "" {
		if err := os.Chdir(dir); err != nil {
			return fmt.Errorf("chdir %s: %w", dir, err)
		}
	}
	argv := append([]string{program}, args...)
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", program, err)
	}
	return nil
}

// Available reports whether program resolves on PATH.
func Available(program string) bool {
	_, err := exec.LookPath(program)
	return err == nil
}
