package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every operation: unknown targets, duplicate
// starts, filesystem trouble, and process-creation failures. Handlers map
// these onto HTTP status codes; the CLI prints them as-is.

var ErrNotFound = errors.New("not found")

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ConflictError reports that a process of the given kind is already running,
// or that a clear was refused because the lock is live. Pid is the blocking
// process when known, so callers can present a precise remediation.
type ConflictError struct {
	Kind ProcessKind
	Pid  int
}

func (e *ConflictError) Error() string {
	if e.Pid > 0 {
		return fmt.Sprintf("%s already running (pid %d)", e.Kind, e.Pid)
	}
	return fmt.Sprintf("%s already running", e.Kind)
}

func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// IOError wraps a filesystem or collaborator failure during snapshot or
// lock access.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}

// SpawnError reports OS process creation failure, including the degenerate
// success case where no pid was assigned.
type SpawnError struct {
	Kind ProcessKind
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Kind, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

func IsSpawnError(err error) bool {
	var spawnErr *SpawnError
	return errors.As(err, &spawnErr)
}
