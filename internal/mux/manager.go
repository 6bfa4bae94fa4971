package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/clock"
	"github.com/g960059/aio/internal/config"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/model"
)

// clearScreen homes the cursor and erases the display.
const clearScreen = "\033[H\033[2J"

type Manager struct {
	Client      *Client
	Clock       clock.Clock
	InTmux      bool
	Home        string
	IdlePolicy  config.IdlePolicy
	WatchPolicy config.WatchPolicy
	SendPolicy  config.SendPolicy
	Out         io.Writer
	Log         *zap.Logger
}

func (m *Manager) List(ctx context.Context) ([]model.Session, error) {
	return m.Client.ListSessions(ctx)
}

// PrintList writes the indexed session table followed by a Select block
// listing hints, when any sessions exist.
func (m *Manager) PrintList(ctx context.Context, hints ...string) error {
	sessions, err := m.List(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		m.println("No tmux sessions found")
		return nil
	}
	m.println("Tmux Sessions:\n")
	rows := make([]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, fmt.Sprintf("%s: %s", format.Bold.Sprint(s.Name), format.ShortenHome(s.Path, m.Home)))
	}
	format.Indexed(m.Out, 0, rows)
	if len(hints) > 0 {
		m.println("\nSelect:")
		for _, h := range hints {
			m.println("  " + h)
		}
	}
	return nil
}

// ByIndex resolves index against the sorted session list.
func (m *Manager) ByIndex(ctx context.Context, index int) (model.Session, error) {
	sessions, err := m.List(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if index < 0 || index >= len(sessions) {
		return model.Session{}, clierr.NotFoundf("no session at index %d (%d running)", index, len(sessions)).WithSuggestion("a ls")
	}
	return sessions[index], nil
}

// AttachAction returns the command that puts the terminal on session.
func (m *Manager) AttachAction(session string) model.Action {
	if m.InTmux {
		return model.Exec("", "tmux", "switch-client", "-t", target(session))
	}
	return model.Exec("", "tmux", "attach", "-t", target(session))
}

func (m *Manager) Attach(ctx context.Context, index int) (model.Action, error) {
	s, err := m.ByIndex(ctx, index)
	if err != nil {
		return model.Action{}, err
	}
	return m.AttachAction(s.Name), nil
}

func (m *Manager) Kill(ctx context.Context, index int) error {
	s, err := m.ByIndex(ctx, index)
	if err != nil {
		return err
	}
	if err := m.Client.KillSession(ctx, s.Name); err != nil {
		return m.sessionErr(s.Name, err)
	}
	m.println(format.OK("killed %s", s.Name))
	return nil
}

// KillAll stops the tmux server. It succeeds when nothing is running.
func (m *Manager) KillAll(ctx context.Context) error {
	if err := m.Client.KillServer(ctx); err != nil {
		m.logger().Debug("kill-server", zap.Error(err))
	}
	_, _ = fmt.Fprint(m.Out, clearScreen)
	m.println(format.OK("killed all sessions"))
	return nil
}

type SendOptions struct {
	Wait    bool
	NoEnter bool
}

// Send types text into session and, unless NoEnter, submits it after the
// configured delay. With Wait it blocks until the session goes idle.
func (m *Manager) Send(ctx context.Context, session, text string, opts SendOptions) error {
	if err := m.requireSession(ctx, session); err != nil {
		return err
	}
	if err := m.Client.SendLiteral(ctx, session, text); err != nil {
		return m.sessionErr(session, err)
	}
	if opts.NoEnter {
		m.println(format.OK("inserted into %s", session))
		return nil
	}
	if err := m.sleep(ctx, m.SendPolicy.EnterDelay); err != nil {
		return err
	}
	if err := m.Client.SendEnter(ctx, session); err != nil {
		return m.sessionErr(session, err)
	}
	m.println(format.OK("sent to %s", session))
	if !opts.Wait {
		return nil
	}
	return m.WaitIdle(ctx, session)
}

// WaitIdle polls session until it has been quiet for longer than the idle
// policy allows.
func (m *Manager) WaitIdle(ctx context.Context, session string) error {
	tracker := NewIdleTracker(m.IdlePolicy)
	last := IdleState("")
	for {
		if err := m.sleep(ctx, m.IdlePolicy.Poll); err != nil {
			return err
		}
		activity, err := m.Client.Activity(ctx, session)
		if err != nil {
			return m.sessionErr(session, err)
		}
		content, err := m.Client.Capture(ctx, session, 0)
		if err != nil {
			return m.sessionErr(session, err)
		}
		state := tracker.Observe(m.Clock.Now(), activity, content)
		if state != last && state != StateSettling {
			switch state {
			case StateWorking:
				m.println("  working...")
			case StateIdle:
				m.println(format.OK("%s idle", session))
			}
		}
		last = state
		if state == StateIdle {
			return nil
		}
	}
}

// Watch answers known prompts in session until d elapses (0 = until
// cancelled). Rules are checked only when the pane content changes.
func (m *Manager) Watch(ctx context.Context, session string, d time.Duration) error {
	if err := m.requireSession(ctx, session); err != nil {
		return err
	}
	rules := m.WatchPolicy.Rules
	var deadline time.Time
	if d > 0 {
		deadline = m.Clock.Now().Add(d)
		m.println(fmt.Sprintf("Watching %s for %s", session, d))
	} else {
		m.println(fmt.Sprintf("Watching %s (Ctrl-C to stop)", session))
	}
	last := ""
	responded := 0
	for {
		content, err := m.Client.Capture(ctx, session, 0)
		if err != nil {
			return m.sessionErr(session, err)
		}
		if content != last {
			last = content
			if rule, ok := MatchPrompt(content, rules); ok {
				if err := m.Client.SendKeys(ctx, session, rule.Keys...); err != nil {
					return m.sessionErr(session, err)
				}
				responded++
				m.logger().Info("prompt answered", zap.String("session", session), zap.String("rule", rule.Name))
				m.println(format.OK("answered %s", rule.Name))
			}
		}
		if !deadline.IsZero() && !m.Clock.Now().Before(deadline) {
			m.println(fmt.Sprintf("Watch finished: %d prompts answered", responded))
			return nil
		}
		if err := m.sleep(ctx, m.WatchPolicy.Interval); err != nil {
			if errors.Is(err, context.Canceled) {
				m.println(fmt.Sprintf("Watch stopped: %d prompts answered", responded))
				return nil
			}
			return err
		}
	}
}

// MatchPrompt returns the first rule whose text appears anywhere in the
// captured pane.
func MatchPrompt(content string, rules []config.PromptRule) (config.PromptRule, bool) {
	for _, r := range rules {
		if r.Match != "" && strings.Contains(content, r.Match) {
			return r, true
		}
	}
	return config.PromptRule{}, false
}

func tailLines(content string, n int) string {
	lines := strings.Split(strings.TrimRight(content, "\n \t"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Peek prints the last lines of session index's pane.
func (m *Manager) Peek(ctx context.Context, index, lines int) error {
	s, err := m.ByIndex(ctx, index)
	if err != nil {
		return err
	}
	content, err := m.Client.Capture(ctx, s.Name, lines)
	if err != nil {
		return m.sessionErr(s.Name, err)
	}
	m.println(format.Bold.Sprintf("%s: %s", s.Name, format.ShortenHome(s.Path, m.Home)))
	m.println(tailLines(content, lines))
	return nil
}

func (m *Manager) requireSession(ctx context.Context, session string) error {
	ok, err := m.Client.HasSession(ctx, session)
	if err != nil {
		return err
	}
	if !ok {
		return m.sessionErr(session, ErrNoSession)
	}
	return nil
}

func (m *Manager) sessionErr(session string, err error) error {
	if errors.Is(err, ErrNoSession) {
		return clierr.Wrap(clierr.NotFound, ErrNoSession, "session %s", session).WithSuggestion("a ls")
	}
	return err
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.Clock.After(d):
		return nil
	}
}

func (m *Manager) println(line string) {
	if m.Out != nil {
		_, _ = fmt.Fprintln(m.Out, line)
	}
}

func (m *Manager) logger() *zap.Logger {
	if m.Log == nil {
		return zap.NewNop()
	}
	return m.Log
}
