// Package mux drives tmux sessions: listing, attaching, killing, sending
// input and answering agent prompts.
package mux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/model"
	"github.com/g960059/aio/internal/proc"
	"github.com/g960059/aio/internal/tmuxfmt"
)

// ErrNoSession is returned when the named session does not exist.
var ErrNoSession = errors.New("no such session")

// Client is a thin wrapper over the tmux binary.
type Client struct {
	Runner proc.Runner
	Bin    string
}

func NewClient(r proc.Runner) *Client {
	return &Client{Runner: r, Bin: "tmux"}
}

func (c *Client) run(ctx context.Context, args ...string) (proc.Result, error) {
	bin := c.Bin
	if bin == "" {
		bin = "tmux"
	}
	res, err := c.Runner.Run(ctx, "", bin, args...)
	if err != nil {
		return res, clierr.Wrap(clierr.External, err, "tmux %s", args[0])
	}
	return res, nil
}

// noServer reports output meaning the tmux daemon is not running.
func noServer(res proc.Result) bool {
	out := strings.ToLower(string(res.Output))
	return strings.Contains(out, "no server running") ||
		strings.Contains(out, "error connecting to") ||
		strings.Contains(out, "no sessions")
}

// ListSessions returns every session sorted by name. A missing daemon is an
// empty list.
func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	res, err := c.run(ctx, "list-sessions", "-F", tmuxfmt.Join("#{session_name}", "#{pane_current_path}"))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		if res.Code == 1 || noServer(res) {
			return nil, nil
		}
		return nil, clierr.Externalf("tmux list-sessions: %s", res.FirstLine())
	}
	return parseSessions(string(res.Output)), nil
}

func parseSessions(out string) []model.Session {
	var sessions []model.Session
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		line := strings.TrimRight(s.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := tmuxfmt.SplitLine(line, 2)
		sess := model.Session{Name: parts[0]}
		if len(parts) == 2 {
			sess.Path = parts[1]
		}
		sessions = append(sessions, sess)
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Name < sessions[j].Name })
	return sessions
}

// target addresses a session by exact name; paneTarget addresses the active
// pane of that session.
func target(session string) string     { return "=" + session }
func paneTarget(session string) string { return "=" + session + ":" }

func (c *Client) HasSession(ctx context.Context, session string) (bool, error) {
	res, err := c.run(ctx, "has-session", "-t", target(session))
	if err != nil {
		return false, err
	}
	return res.OK(), nil
}

func (c *Client) CurrentPath(ctx context.Context, session string) (string, error) {
	res, err := c.run(ctx, "display-message", "-p", "-t", paneTarget(session), "#{pane_current_path}")
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", fmt.Errorf("%s: %w", session, ErrNoSession)
	}
	return res.Text(), nil
}

// Capture returns the visible pane contents. lines > 0 also includes that
// many lines of scrollback.
func (c *Client) Capture(ctx context.Context, session string, lines int) (string, error) {
	args := []string{"capture-pane", "-p", "-t", paneTarget(session)}
	if lines > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(lines))
	}
	res, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", fmt.Errorf("%s: %w", session, ErrNoSession)
	}
	return string(res.Output), nil
}

// SendLiteral types text without interpreting key names.
func (c *Client) SendLiteral(ctx context.Context, session, text string) error {
	return c.sendKeys(ctx, session, "-l", text)
}

// SendKeys sends tmux key names such as Enter or Down.
func (c *Client) SendKeys(ctx context.Context, session string, keys ...string) error {
	return c.sendKeys(ctx, session, keys...)
}

func (c *Client) SendEnter(ctx context.Context, session string) error {
	return c.sendKeys(ctx, session, "Enter")
}

func (c *Client) sendKeys(ctx context.Context, session string, keys ...string) error {
	args := append([]string{"send-keys", "-t", paneTarget(session)}, keys...)
	res, err := c.run(ctx, args...)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s: %w", session, ErrNoSession)
	}
	return nil
}

// Activity returns the last time the session's active window produced
// output.
func (c *Client) Activity(ctx context.Context, session string) (time.Time, error) {
	res, err := c.run(ctx, "display-message", "-p", "-t", paneTarget(session), "#{window_activity}")
	if err != nil {
		return time.Time{}, err
	}
	if !res.OK() {
		return time.Time{}, fmt.Errorf("%s: %w", session, ErrNoSession)
	}
	secs, err := strconv.ParseInt(res.Text(), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse window_activity %q: %w", res.Text(), err)
	}
	return time.Unix(secs, 0), nil
}

func (c *Client) KillSession(ctx context.Context, session string) error {
	res, err := c.run(ctx, "kill-session", "-t", target(session))
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s: %w", session, ErrNoSession)
	}
	return nil
}

// KillServer stops the daemon. It is idempotent: a missing daemon is not an
// error.
func (c *Client) KillServer(ctx context.Context) error {
	_, err := c.run(ctx, "kill-server")
	return err
}
