package model

import (
	"errors"
	"fmt"
)

// ErrDestinationNotRegistered reports an unregister of a channel that was
// never registered for the game. A client condition, not a server fault.
var ErrDestinationNotRegistered = errors.New("destination not registered")

// SourceFetchError reports a failed source fetch. Non-fatal: the game simply
// contributes no candidates to the cycle it occurred in.
type SourceFetchError struct {
	Game   Game
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s fetch for %s failed: %v", e.Source, e.Game, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// DeliveryError reports a destination that exhausted its delivery attempts.
// It never aborts delivery to other destinations or the cycle's persistence.
type DeliveryError struct {
	Game        Game
	Destination string
	Attempts    int
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of %s codes to %s failed after %d attempts: %v",
		e.Game, e.Destination, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// PersistenceError reports a seen-code store failure. The cycle still
// completes; the affected codes may be re-announced next cycle since they
// were never marked seen.
type PersistenceError struct {
	Game Game
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("seen-code store %s for %s failed: %v", e.Op, e.Game, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MalformedInputError rejects an unparseable manual code entry with a
// user-facing usage message.
type MalformedInputError struct {
	Entry string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("invalid code entry %q; expected format: CODE1 reward-1,CODE2 reward-2", e.Entry)
}
