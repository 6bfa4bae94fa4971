package install

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type DoctorOptions struct {
	Options
	// Delegate is the interpreter command line used for unknown commands.
	Delegate []string
	// LookPath resolves a program; nil uses exec.LookPath.
	LookPath func(string) (string, error)
}

type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass | warn | fail
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type DoctorResult struct {
	OK       bool          `json:"ok"`
	Checks   []DoctorCheck `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Doctor checks the external programs and on-disk layout the dispatcher
// depends on.
func Doctor(opts DoctorOptions) (DoctorResult, error) {
	normalized, err := normalizeOptions(opts.Options)
	if err != nil {
		return DoctorResult{}, err
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	out := DoctorResult{OK: true}
	add := func(c DoctorCheck) {
		out.Checks = append(out.Checks, c)
		if c.Status == "warn" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %s", c.Name, c.Message))
		}
		if c.Status == "fail" {
			out.OK = false
		}
	}

	add(checkProgram(lookPath, "tmux", "fail"))
	add(checkProgram(lookPath, "git", "fail"))
	add(checkProgram(lookPath, "gh", "warn"))
	if len(opts.Delegate) > 0 {
		c := checkProgram(lookPath, opts.Delegate[0], "fail")
		c.Name = "delegate"
		add(c)
		for _, arg := range opts.Delegate[1:] {
			if filepath.IsAbs(arg) {
				add(checkFile("delegate_entry", arg))
			}
		}
	} else {
		add(DoctorCheck{Name: "delegate", Status: "warn", Message: "no delegate configured"})
	}
	add(checkWritableDir("data_dir", normalized.DataDir))
	add(checkLink(filepath.Join(normalized.BinDir, BinaryName), normalized.Self))
	return out, nil
}

func checkProgram(lookPath func(string) (string, error), name, missing string) DoctorCheck {
	path, err := lookPath(name)
	if err != nil {
		return DoctorCheck{Name: name, Status: missing, Message: "not found on PATH"}
	}
	return DoctorCheck{Name: name, Status: "pass", Message: "found", Path: path}
}

func checkFile(name, path string) DoctorCheck {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return DoctorCheck{Name: name, Status: "fail", Message: "file not found", Path: path}
		}
		return DoctorCheck{Name: name, Status: "fail", Message: fmt.Sprintf("stat error: %v", err), Path: path}
	}
	return DoctorCheck{Name: name, Status: "pass", Message: "present", Path: path}
}

func checkWritableDir(name, dir string) DoctorCheck {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return DoctorCheck{Name: name, Status: "warn", Message: "missing; run `a install`", Path: dir}
		}
		return DoctorCheck{Name: name, Status: "fail", Message: fmt.Sprintf("stat error: %v", err), Path: dir}
	}
	if !info.IsDir() {
		return DoctorCheck{Name: name, Status: "fail", Message: "not a directory", Path: dir}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return DoctorCheck{Name: name, Status: "fail", Message: "not writable", Path: dir}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return DoctorCheck{Name: name, Status: "pass", Message: "writable", Path: dir}
}

func checkLink(link, self string) DoctorCheck {
	target, err := os.Readlink(link)
	if err != nil {
		if _, statErr := os.Stat(link); statErr == nil {
			return DoctorCheck{Name: "link", Status: "warn", Message: "exists but is not a symlink", Path: link}
		}
		return DoctorCheck{Name: "link", Status: "warn", Message: "not installed; run `a install`", Path: link}
	}
	if target != self {
		return DoctorCheck{Name: "link", Status: "warn", Message: fmt.Sprintf("points to %s", target), Path: link}
	}
	return DoctorCheck{Name: "link", Status: "pass", Message: "installed", Path: link}
}
