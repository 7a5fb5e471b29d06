// Package fault classifies every externally observable failure of the service
// into one of five kinds. Each kind maps to exactly one outcome at the HTTP
// boundary; no operation swallows an error.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the failure class of a Fault.
type Kind string

const (
	// KindValidation covers malformed input rejected before any I/O.
	KindValidation Kind = "VALIDATION"
	// KindNotFound covers lookups of absent chunk ids or tracking ids.
	KindNotFound Kind = "NOT_FOUND"
	// KindConsistency covers vector points with no backing metadata row.
	// The orphan is deleted before the fault surfaces; callers should retry.
	KindConsistency Kind = "CONSISTENCY"
	// KindUpstream covers embedding or reranker provider failures. Not
	// retried internally.
	KindUpstream Kind = "UPSTREAM"
	// KindQuota covers ingests that would exceed the dataset's chunk quota,
	// rejected before any embedding is computed.
	KindQuota Kind = "QUOTA"
)

// Fault is a classified error. It may wrap an underlying cause.
type Fault struct {
	Kind Kind
	Msg  string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is lets errors.Is match any fault of the same kind.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind && t.Msg == ""
}

// New builds a fault with a formatted message.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a fault around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Fault {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Fault {
	return New(KindNotFound, format, args...)
}

func Consistency(format string, args ...any) *Fault {
	return New(KindConsistency, format, args...)
}

func Upstream(err error, format string, args ...any) *Fault {
	return Wrap(KindUpstream, err, format, args...)
}

func Quota(format string, args ...any) *Fault {
	return New(KindQuota, format, args...)
}

// KindOf returns the kind of err if it is (or wraps) a Fault, or "" otherwise.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Retryable reports whether the caller should retry the original request.
// Only consistency faults are retryable: the offending orphan has already
// been removed, so a retry is expected to succeed.
func Retryable(err error) bool {
	return KindOf(err) == KindConsistency
}
