package stackarena

import (
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Arena backings accepted by Config.Backing.
const (
	BackingHeap = "heap"
	BackingMmap = "mmap"
)

// MaxCapacity is the largest arena an Allocator manages. Block sizes are
// recorded in 32-bit word counts, this keeps every block representable.
const MaxCapacity = math.MaxInt32

// Config holds the allocator construction parameters.
type Config struct {
	Capacity int    // arena size in bytes, 0 selects DefaultCapacity
	Budget   int    // soft ceiling on bytes in use, 0 for none
	Backing  string // BackingHeap or BackingMmap
	Checked  bool   // validate pointers handed back by the host
}

// DefaultConfig returns a heap-backed 640 KiB arena without a budget.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		Budget:   0,
		Backing:  BackingHeap,
		Checked:  false,
	}
}

func (cfg Config) validate() error {
	if cfg.Capacity < 0 || cfg.Capacity > MaxCapacity {
		return errors.Newf("stackarena: capacity %d outside [0, %d]", cfg.Capacity, MaxCapacity)
	}
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if cfg.Budget < 0 || cfg.Budget > capacity {
		return errors.Wrapf(ErrInvalidBudget, "budget %d, capacity %d", cfg.Budget, capacity)
	}
	switch cfg.Backing {
	case "", BackingHeap, BackingMmap:
	default:
		return errors.Wrapf(ErrBackingUnsupported, "backing %q", cfg.Backing)
	}
	return nil
}

// NewAllocator validates cfg and creates an Allocator over a freshly
// reserved arena.
func NewAllocator(cfg Config) (*Allocator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	var arena *Arena
	switch cfg.Backing {
	case BackingMmap:
		var err error
		if arena, err = NewMmapArena(cfg.Capacity); err != nil {
			return nil, err
		}
	default:
		arena = NewArena(cfg.Capacity)
	}
	al := newAllocator(arena)
	al.checked = cfg.Checked
	if err := al.SetBudget(cfg.Budget); err != nil {
		return nil, errors.CombineErrors(err, arena.Release())
	}
	logger.Debug("stackarena: allocator created",
		slog.Int("capacity", arena.Capacity()),
		slog.Int("budget", al.budget),
		slog.String("backing", arena.Backing()))
	return al, nil
}
