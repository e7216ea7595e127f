package deckhand

import "fmt"

// ValidationError reports malformed input to a public operation. The call
// fails; device and entity state are unaffected.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("deckhand: %s: %s", e.Op, e.Reason)
}

// UnrecognizedSourceError reports an image layer that could not be resolved.
// The layer is dropped and loading continues with the remaining sources.
type UnrecognizedSourceError struct {
	Index int
	Err   error
}

func (e *UnrecognizedSourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("deckhand: image source %d: unrecognized source", e.Index)
	}
	return fmt.Sprintf("deckhand: image source %d: %v", e.Index, e.Err)
}

func (e *UnrecognizedSourceError) Unwrap() error { return e.Err }

// TransportError reports a failed hardware write. It is surfaced through the
// deck's error notifications; the render queue keeps draining.
type TransportError struct {
	Op    string
	Index int
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("deckhand: transport %s (key %d): %v", e.Op, e.Index, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LifecycleError reports an operation invoked on a destroyed entity.
type LifecycleError struct {
	Entity string
	Op     string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("deckhand: %s on destroyed %s", e.Op, e.Entity)
}
