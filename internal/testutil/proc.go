package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/g960059/aio/internal/proc"
)

type Call struct {
	Dir  string
	Name string
	Args []string
}

// Line renders the call as a single command line.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

type response struct {
	res proc.Result
	err error
}

// FakeRunner records every call and answers from scripted responses keyed by
// command-line prefix. The longest matching prefix wins; queued responses are
// consumed in order and the last one repeats. Unscripted calls succeed with
// no output.
type FakeRunner struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string][]response
	// Hook, when set, runs before scripted lookup and may override it.
	Hook func(Call) (proc.Result, bool)
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: map[string][]response{}}
}

// On queues output and exit code for commands starting with prefix.
func (f *FakeRunner) On(prefix, output string, code int) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = append(f.responses[prefix], response{res: proc.Result{Output: []byte(output), Code: code}})
	return f
}

// Fail makes commands starting with prefix fail to start.
func (f *FakeRunner) Fail(prefix string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = append(f.responses[prefix], response{res: proc.Result{Code: -1}, err: err})
	return f
}

func (f *FakeRunner) Run(_ context.Context, dir, name string, args ...string) (proc.Result, error) {
	call := Call{Dir: dir, Name: name, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.Hook
	f.mu.Unlock()

	if hook != nil {
		if res, ok := hook(call); ok {
			return res, nil
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	line := call.Line()
	best := ""
	found := false
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && (!found || len(prefix) > len(best)) {
			best = prefix
			found = true
		}
	}
	if !found {
		return proc.Result{}, nil
	}
	queue := f.responses[best]
	r := queue[0]
	if len(queue) > 1 {
		f.responses[best] = queue[1:]
	}
	return r.res, r.err
}

func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Lines returns every recorded call as a command line.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Line())
	}
	return out
}

// Ran reports whether any call started with prefix.
func (f *FakeRunner) Ran(prefix string) bool {
	for _, line := range f.Lines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// FakeSpawner records detached spawns without starting anything.
type FakeSpawner struct {
	mu    sync.Mutex
	calls []Call
	Err   error
}

func (f *FakeSpawner) Detach(dir, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	return f.Err
}

func (f *FakeSpawner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

var (
	_ proc.Runner  = (*FakeRunner)(nil)
	_ proc.Spawner = (*FakeSpawner)(nil)
)
