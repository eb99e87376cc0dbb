package jsrt

import "github.com/cockroachdb/errors"

var (
	// ErrOutOfMemory is returned when the heap refuses an allocation. The
	// heap's own reason, when it reports one, is kept in the chain.
	ErrOutOfMemory = errors.New("jsrt: out of memory")

	// ErrNotObject is returned for property access on a primitive value.
	ErrNotObject = errors.New("jsrt: not an object")

	// ErrNotFunction is returned when calling a value that is not a function.
	ErrNotFunction = errors.New("jsrt: not a function")
)
