//go:build !unix

package stackarena

import "github.com/cockroachdb/errors"

// NewMmapArena is not available on this platform.
func NewMmapArena(capacity int) (*Arena, error) {
	return nil, errors.Wrapf(ErrBackingUnsupported, "backing %q", BackingMmap)
}
