package stackarena

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidSize is returned for allocation requests of zero or negative size.
	ErrInvalidSize = errors.New("stackarena: invalid allocation size")

	// ErrOutOfBudget is returned when an allocation would push the bytes in
	// use over the configured budget.
	ErrOutOfBudget = errors.New("malloc: budget reached")

	// ErrOutOfSpace is returned when the physical arena has no room left
	// for the requested footprint.
	ErrOutOfSpace = errors.New("malloc: no space left")

	// ErrInvalidBudget is returned by SetBudget for budgets outside [0, capacity].
	ErrInvalidBudget = errors.New("stackarena: budget exceeds capacity")

	// ErrInvalidPointer is raised in checked mode for pointers that do not
	// denote a block of this arena.
	ErrInvalidPointer = errors.New("stackarena: invalid pointer")

	// ErrBackingUnsupported is returned when the requested arena backing is
	// not available on this platform.
	ErrBackingUnsupported = errors.New("stackarena: backing not supported")
)

// IsOutOfMemory reports whether err is one of the two capacity failures.
func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfBudget) || errors.Is(err, ErrOutOfSpace)
}
