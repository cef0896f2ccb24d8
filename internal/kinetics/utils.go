package kinetics

import "github.com/google/uuid"

// NewRunID returns a random run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}
