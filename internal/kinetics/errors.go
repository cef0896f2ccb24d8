package kinetics

import (
	"errors"
	"fmt"
)

var (
	// ErrReservedName is returned when a user declares a species with the
	// internal prefix.
	ErrReservedName = errors.New("names prefixed with '__' are reserved for internal use")

	// ErrNotInitialized is returned by run operations before Initialize.
	ErrNotInitialized = errors.New("model is not initialized")

	// ErrAlreadyInitialized is returned when the model is initialized twice.
	ErrAlreadyInitialized = errors.New("model is already initialized")

	// ErrRunNotFound is returned when no run is stored under an ID.
	ErrRunNotFound = errors.New("run not found")
)

// ConsistencyError reports a broken internal invariant: a copy number that
// would go negative or a reaction referencing state nobody registered.
// Simulation state is invalid after one of these and the run must stop.
type ConsistencyError struct {
	Species  SpeciesName
	Reaction string
	Reason   string
}

func (e *ConsistencyError) Error() string {
	msg := "internal consistency violation"
	if e.Species != "" {
		msg += fmt.Sprintf(": species %q", e.Species)
	}
	if e.Reaction != "" {
		msg += fmt.Sprintf(": reaction %s", e.Reaction)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// IsConsistencyError reports whether err wraps a ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
