package component

import (
	"errors"
	"fmt"
)

// Sentinel errors for lifecycle preconditions.
var (
	// ErrNotMounted is returned when an operation requires a mounted
	// instance.
	ErrNotMounted = errors.New("component: not mounted")

	// ErrAlreadyMounted is returned when Mount is called twice.
	ErrAlreadyMounted = errors.New("component: already mounted")

	// ErrUnmounted is returned when an operation is attempted after
	// Unmount. Unmounting is terminal.
	ErrUnmounted = errors.New("component: unmounted")

	// ErrNotFound is returned when a component id is not in the registry.
	ErrNotFound = errors.New("component: not found")
)

// MountError wraps a failed init hook. Mount failures are fatal to the
// instance and are not retried.
type MountError struct {
	ComponentID string
	Err         error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("component: mount %s: %v", e.ComponentID, e.Err)
}

func (e *MountError) Unwrap() error {
	return e.Err
}

// RenderError wraps a failed render. The previous snapshot stays in place
// and no patches are produced for the cycle.
type RenderError struct {
	ComponentID string
	Err         error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("component: render %s: %v", e.ComponentID, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic recovered from a user hook or event handler.
type PanicError struct {
	ComponentID string
	Op          string
	EventName   string
	Panic       any
	Stack       []byte
}

func (e *PanicError) Error() string {
	if e.EventName != "" {
		return fmt.Sprintf("component: panic in %s handler %q on %s: %v",
			e.Op, e.EventName, e.ComponentID, e.Panic)
	}
	return fmt.Sprintf("component: panic in %s on %s: %v", e.Op, e.ComponentID, e.Panic)
}
