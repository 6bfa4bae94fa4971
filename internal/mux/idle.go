package mux

import (
	"encoding/binary"
	"time"

	"github.com/zeebo/blake3"

	"github.com/g960059/aio/internal/config"
)

type IdleState string

const (
	StateWorking  IdleState = "working"
	StateSettling IdleState = "settling"
	StateIdle     IdleState = "idle"
)

// IdleTracker decides when a session has gone quiet. Activity is the later
// of tmux's window activity and the last time the pane content changed. A
// poll that sees activity younger than Recent counts as working; the session
// is idle once no poll has seen recent activity for longer than Quiet.
type IdleTracker struct {
	policy         config.IdlePolicy
	signature      uint64
	seen           bool
	lastChangeAt   time.Time
	lastRecentSeen time.Time
}

func NewIdleTracker(policy config.IdlePolicy) *IdleTracker {
	return &IdleTracker{policy: policy}
}

// Observe folds in one poll and returns the resulting state. The first poll
// starts the quiet clock.
func (t *IdleTracker) Observe(now, activity time.Time, content string) IdleState {
	sig := signature(content)
	switch {
	case !t.seen:
		t.seen = true
		t.signature = sig
		t.lastRecentSeen = now
	case sig != t.signature:
		t.signature = sig
		t.lastChangeAt = now
	}
	last := activity
	if t.lastChangeAt.After(last) {
		last = t.lastChangeAt
	}
	if now.Sub(last) < t.policy.Recent {
		t.lastRecentSeen = now
		return StateWorking
	}
	if now.Sub(t.lastRecentSeen) > t.policy.Quiet {
		return StateIdle
	}
	return StateSettling
}

func signature(content string) uint64 {
	sum := blake3.Sum256([]byte(content))
	return binary.LittleEndian.Uint64(sum[:8])
}
