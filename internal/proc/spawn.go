package proc

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Spawner starts fire-and-forget work. The caller never observes the result.
type Spawner interface {
	Detach(dir, name string, args ...string) error
}

// OSSpawner starts the child in its own session with stdio bound to
// /dev/null so it survives the parent replacing itself.
type OSSpawner struct{}

func (OSSpawner) Detach(dir, name string, args ...string) error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", name, err)
	}
	return cmd.Process.Release()
}
