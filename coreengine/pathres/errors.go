package pathres

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSyntax is wrapped by every tokenizer failure.
	ErrSyntax = errors.New("invalid path syntax")
	// ErrUnknownRoot means the first segment is not a whitelisted collection.
	ErrUnknownRoot = errors.New("root not allowed")
	// ErrNotFound means an attribute, key or index does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTypeMismatch means a segment or value does not fit the target's shape.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrReadOnly means the final segment cannot be assigned.
	ErrReadOnly = errors.New("read-only")
)

// SyntaxError reports where tokenizing failed.
type SyntaxError struct {
	Path   string
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid path syntax at position %d in %q: %s", e.Offset, e.Path, e.Reason)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

func newSyntaxError(path string, offset int, reason string) *SyntaxError {
	return &SyntaxError{Path: path, Offset: offset, Reason: reason}
}

// ResolveError reports the segment at which a walk failed.
type ResolveError struct {
	Path    string
	Segment string
	Err     error
}

func (e *ResolveError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Segment, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

func newResolveError(path string, seg Segment, err error) *ResolveError {
	return &ResolveError{Path: path, Segment: seg.String(), Err: err}
}
