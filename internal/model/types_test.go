package model

import (
	"errors"
	"testing"
)

func TestParseProcessKindAcceptsVerbsAndNames(t *testing.T) {
	cases := map[string]ProcessKind{
		"run":      ProcessKindExecutor,
		"executor": ProcessKindExecutor,
		"REVIEW":   ProcessKindReviewer,
		"reviewer": ProcessKindReviewer,
		" qa ":     ProcessKindQA,
	}
	for raw, expected := range cases {
		kind, err := ParseProcessKind(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if kind != expected {
			t.Fatalf("parse %q: expected %s, got %s", raw, expected, kind)
		}
	}
	if _, err := ParseProcessKind("compile"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestKindLockGating(t *testing.T) {
	if !ProcessKindExecutor.HasLock() || !ProcessKindReviewer.HasLock() {
		t.Fatalf("executor and reviewer must be lock-gated")
	}
	if ProcessKindQA.HasLock() {
		t.Fatalf("qa must not take a lock")
	}
}

func TestConflictErrorCarriesPid(t *testing.T) {
	var err error = &ConflictError{Kind: ProcessKindExecutor, Pid: 4321}
	conflict, ok := AsConflict(err)
	if !ok {
		t.Fatalf("expected conflict detection")
	}
	if conflict.Pid != 4321 {
		t.Fatalf("expected pid 4321, got %d", conflict.Pid)
	}
	if conflict.Error() != "executor already running (pid 4321)" {
		t.Fatalf("unexpected message %q", conflict.Error())
	}
}

func TestNotFoundWrapping(t *testing.T) {
	err := NotFoundf("project %q", "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found classification")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatalf("unexpected not-found classification")
	}
}

func TestIOErrorUnwraps(t *testing.T) {
	inner := errors.New("disk gone")
	err := WrapIO("read lock", inner)
	if !errors.Is(err, inner) {
		t.Fatalf("expected unwrap to inner error")
	}
	if WrapIO("noop", nil) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
}
