package weather

import (
	"errors"
	"fmt"
)

// Kind classifies the errors that end a run.
type Kind int

const (
	KindMode Kind = iota + 1
	KindConfigFile
	KindStoreInit
	KindStoreAccess
	KindRemoteService
)

func (k Kind) String() string {
	switch k {
	case KindMode:
		return "ModeError"
	case KindConfigFile:
		return "ConfigFileError"
	case KindStoreInit:
		return "StoreInitError"
	case KindStoreAccess:
		return "StoreAccessError"
	case KindRemoteService:
		return "RemoteServiceError"
	default:
		return "UnknownError"
	}
}

// ExitCode is the process exit status suggested for errors of this kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindMode:
		return 2
	case KindConfigFile:
		return 3
	case KindStoreInit:
		return 4
	case KindStoreAccess:
		return 5
	case KindRemoteService:
		return 6
	default:
		return 1
	}
}

// Error is a typed failure carrying its kind, the operation that failed and
// the underlying cause. Callers decide whether to terminate.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. A nil cause is allowed.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns the exit status hint for the error's kind.
func (e *Error) ExitCode() int { return e.Kind.ExitCode() }

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind == kind
	}
	return false
}

// ExitCode returns the exit status hint for err: 0 for nil, the kind's code for
// an *Error anywhere in the chain, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var we *Error
	if errors.As(err, &we) {
		return we.ExitCode()
	}
	return 1
}
