package model

import (
	"fmt"
	"strings"
	"time"
)

// ProcessKind identifies a category of background automation process.
type ProcessKind string

const (
	ProcessKindExecutor ProcessKind = "executor"
	ProcessKindReviewer ProcessKind = "reviewer"
	ProcessKindQA       ProcessKind = "qa"
)

// LockKinds lists the kinds that hold an advisory lock file while running.
// QA runs are fire-and-forget and never take a lock.
var LockKinds = []ProcessKind{ProcessKindExecutor, ProcessKindReviewer}

func ParseProcessKind(raw string) (ProcessKind, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "executor", "run":
		return ProcessKindExecutor, nil
	case "reviewer", "review":
		return ProcessKindReviewer, nil
	case "qa":
		return ProcessKindQA, nil
	default:
		return "", fmt.Errorf("unknown process kind %q", raw)
	}
}

// HasLock reports whether this kind is gated by a lock file.
func (k ProcessKind) HasLock() bool {
	return k == ProcessKindExecutor || k == ProcessKindReviewer
}

// AgentSubcommand maps the kind onto the external agent CLI verb.
func (k ProcessKind) AgentSubcommand() string {
	switch k {
	case ProcessKindExecutor:
		return "run"
	case ProcessKindReviewer:
		return "review"
	case ProcessKindQA:
		return "qa"
	default:
		return string(k)
	}
}

type PRDStatus string

const (
	PRDStatusPending PRDStatus = "pending"
	PRDStatusClaimed PRDStatus = "claimed"
	PRDStatusDone    PRDStatus = "done"
)

// PRDItem is one work item as seen on disk. Status semantics beyond the
// pending/claimed/done placement are owned by the external agent and passed
// through untouched.
type PRDItem struct {
	Name   string    `json:"name"`
	Status PRDStatus `json:"status"`
	Path   string    `json:"path"`
}

type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HeadRef string `json:"head_ref,omitempty"`
	URL     string `json:"url,omitempty"`
}

type CrontabStatus struct {
	Installed bool     `json:"installed"`
	Entries   []string `json:"entries"`
}

// ProcessInfo is derived from lock files on every aggregation and is never
// persisted anywhere.
type ProcessInfo struct {
	Name    ProcessKind `json:"name"`
	Running bool        `json:"running"`
	Pid     int         `json:"pid,omitempty"`
}

type ProjectInfo struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
}

// ExecutorStartedPayload is the minimal body of an executor_started push.
type ExecutorStartedPayload struct {
	Kind      ProcessKind `json:"kind"`
	Pid       int         `json:"pid"`
	StartedAt time.Time   `json:"started_at"`
}
