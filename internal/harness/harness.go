// Package harness drives repeated runtime sessions over one stackarena
// allocator: create a runtime, evaluate the payload, tear everything down,
// reset the session, repeat.
package harness

import (
	"fmt"
	"io"
	"os"
	"time"

	sigar "github.com/cloudfoundry/gosigar"
	"golang.org/x/exp/slog"

	"github.com/pavanmanishd/stackarena"
	"github.com/pavanmanishd/stackarena/internal/jsrt"
)

// DefaultIterations is the number of sessions Run performs by default.
const DefaultIterations = 10000

// Config controls a harness run.
type Config struct {
	Iterations int
	Allocator  stackarena.Config
}

// DefaultConfig returns DefaultIterations sessions over the default allocator.
func DefaultConfig() Config {
	return Config{
		Iterations: DefaultIterations,
		Allocator:  stackarena.DefaultConfig(),
	}
}

// Report summarises a run.
type Report struct {
	Iterations int
	Failures   int   // sessions whose evaluation failed
	LastError  error // reason of the most recent failure
	Peak       int   // highest bytes in use over all sessions
	Last       stackarena.Stats
	RSS        uint64 // resident set size of the process after the run
	Elapsed    time.Duration
}

// Stranded is the space the last session still held when it ended, the
// footprint of blocks freed out of stack order.
func (r Report) Stranded() int {
	return r.Last.InUse
}

// Run performs cfg.Iterations sessions, writing the payload's output to out.
// Evaluation failures are counted and the run goes on; only configuration
// errors abort it.
func Run(cfg Config, out io.Writer) (Report, error) {
	al, err := stackarena.NewAllocator(cfg.Allocator)
	if err != nil {
		return Report{}, err
	}
	defer al.Release()
	if out == nil {
		out = io.Discard
	}

	hooks := al.Hooks()
	log := stackarena.Logger()
	rep := Report{}
	start := time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		if err := session(hooks, out); err != nil {
			rep.Failures++
			rep.LastError = err
			log.Warn("harness: evaluation failed", slog.Int("iteration", i), slog.Any("err", err))
		}
		rep.Last = al.Stats()
		if rep.Last.Peak > rep.Peak {
			rep.Peak = rep.Last.Peak
		}
		if rep.Last.Live != 0 {
			log.Debug("harness: session leaked blocks", slog.Int("iteration", i), slog.Int("live", rep.Last.Live))
		}
		al.Reset()
		rep.Iterations++
	}
	rep.Elapsed = time.Since(start)
	rep.RSS = residentSize()
	log.Info("harness: done",
		slog.Int("iterations", rep.Iterations), slog.Int("failures", rep.Failures),
		slog.Int("peak", rep.Peak), slog.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

// session runs one runtime lifetime against h.
func session(h jsrt.Heap, out io.Writer) error {
	rt, err := jsrt.NewRuntime(h)
	if err != nil {
		return err
	}
	defer rt.Free()
	ctx, err := rt.NewContext()
	if err != nil {
		return err
	}
	defer ctx.Free()

	if err := installDOM(ctx, out); err != nil {
		return err
	}
	err = evalTagManager(ctx, time.Now())
	fmt.Fprintln(out, "after eval")
	return err
}

func residentSize() uint64 {
	mem := sigar.ProcMem{}
	if err := mem.Get(os.Getpid()); err != nil {
		return 0
	}
	return mem.Resident
}
