package engine

import (
	"errors"
	"fmt"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

// ErrTypeMismatch reports that an Operator targeted a tree node whose
// existing CRDT kind differs from the one the Operator expects — e.g.
// AtKey("tags", KindArray, ...) reaching a key that was first written
// as a KindMap.
type ErrTypeMismatch struct {
	Expected Kind
	Got      Kind
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("engine: type mismatch at node: expected %s, got %s", e.Expected, e.Got)
}

// ErrMissingElement reports that an ORArray Operator (AtElement,
// MoveElement, DeleteElement) targeted a uid the document has never
// observed.
type ErrMissingElement struct {
	UID string
}

func (e *ErrMissingElement) Error() string {
	return fmt.Sprintf("engine: no such array element: %q", e.UID)
}

// ErrInvalidPosition reports a malformed ORArray Position, such as one
// produced by calling Between with non-increasing bounds.
type ErrInvalidPosition struct {
	Reason string
}

func (e *ErrInvalidPosition) Error() string {
	return fmt.Sprintf("engine: invalid position: %s", e.Reason)
}

// convertError translates an internal/crdt error into its public
// pkg/engine equivalent, so callers never need to import internal/crdt
// to inspect why an Apply or Join failed. Errors it doesn't recognize
// — including nil — pass through unchanged.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var typeMismatch *crdt.ErrTypeMismatch
	if errors.As(err, &typeMismatch) {
		return &ErrTypeMismatch{Expected: Kind(typeMismatch.Expected), Got: Kind(typeMismatch.Got)}
	}

	var missingElement *crdt.ErrMissingElement
	if errors.As(err, &missingElement) {
		return &ErrMissingElement{UID: missingElement.UID}
	}

	var invalidPosition *crdt.ErrInvalidPosition
	if errors.As(err, &invalidPosition) {
		return &ErrInvalidPosition{Reason: invalidPosition.Reason}
	}

	var dotReuse *crdt.ErrDotReuse
	if errors.As(err, &dotReuse) {
		return fmt.Errorf("engine: internal invariant violated: %w", err)
	}

	return err
}
