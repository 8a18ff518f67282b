package nsview

import (
	"fmt"
	"strings"
)

// CommandError is returned when an external listing command exits
// unsuccessfully. It carries the command line and whatever the command
// wrote to stderr.
type CommandError struct {
	Command  []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("cmd: %s failed (%d)", strings.Join(e.Command, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ConsistencyError reports a violated data-model invariant, such as a
// duplicate key in an index or a program record whose device name and
// ifindex resolve to different interfaces.
type ConsistencyError struct {
	What   string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent %s: %s", e.What, e.Detail)
}

// NotFoundError is returned when a lookup by name, index or id fails.
// Scope names the index the lookup was made against (a namespace id,
// or a nested view's observer).
type NotFoundError struct {
	Kind  string
	Key   string
	Scope string
}

func (e *NotFoundError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
	}
	return fmt.Sprintf("%s %s not found in %s", e.Kind, e.Key, e.Scope)
}

// ProgramQueryError records why attached programs could not be listed
// for a namespace. It is never fatal; see ProgramListing.
type ProgramQueryError struct {
	Handle string
	Err    error
}

func (e *ProgramQueryError) Error() string {
	return fmt.Sprintf("list programs in %q: %v", e.Handle, e.Err)
}

func (e *ProgramQueryError) Unwrap() error { return e.Err }
