package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how callers are expected to react to it.
type Kind string

const (
	KindAuthTransient       Kind = "auth_transient"
	KindAuthUnrecoverable   Kind = "auth_unrecoverable"
	KindSyncPagingFailed    Kind = "sync_paging_failed"
	KindSyncListFailed      Kind = "sync_list_failed"
	KindFetchNetworkFailure Kind = "fetch_network_failure"
	KindFatal               Kind = "fatal"
)

// Error is a classified error. Two errors match under errors.Is when their
// kinds are equal, so the sentinels below work as targets.
type Error struct {
	Kind Kind
	// Operation that failed, e.g. "list events primary"
	Op  string
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrAuthTransient       = &Error{Kind: KindAuthTransient}
	ErrAuthUnrecoverable   = &Error{Kind: KindAuthUnrecoverable}
	ErrSyncPagingFailed    = &Error{Kind: KindSyncPagingFailed}
	ErrSyncListFailed      = &Error{Kind: KindSyncListFailed}
	ErrFetchNetworkFailure = &Error{Kind: KindFetchNetworkFailure}
	ErrFatal               = &Error{Kind: KindFatal}
)

// Wrap classifies err under kind for operation op.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsAuth reports whether err is either kind of authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuthTransient) || errors.Is(err, ErrAuthUnrecoverable)
}

// IsSync reports whether err came from listing or paging.
func IsSync(err error) bool {
	return errors.Is(err, ErrSyncPagingFailed) || errors.Is(err, ErrSyncListFailed)
}
