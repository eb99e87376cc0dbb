// Command jsheap repeatedly hosts the simulated script runtime inside a
// fixed stackarena and reports how the allocator held up.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/exp/slog"

	"github.com/pavanmanishd/stackarena"
	"github.com/pavanmanishd/stackarena/internal/harness"
)

func main() {
	cfg := harness.DefaultConfig()
	var quiet bool
	var level string

	flag.IntVar(&cfg.Iterations, "n", cfg.Iterations, "number of runtime sessions")
	flag.IntVar(&cfg.Allocator.Capacity, "capacity", cfg.Allocator.Capacity, "arena capacity in bytes")
	flag.IntVar(&cfg.Allocator.Budget, "budget", cfg.Allocator.Budget, "byte budget in bytes, 0 for none")
	flag.StringVar(&cfg.Allocator.Backing, "backing", cfg.Allocator.Backing, "arena backing: heap or mmap")
	flag.BoolVar(&cfg.Allocator.Checked, "checked", cfg.Allocator.Checked, "validate pointers freed by the runtime")
	flag.BoolVar(&quiet, "quiet", false, "suppress payload output")
	flag.StringVar(&level, "log", "warn", "log level: debug, info, warn or error")
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "jsheap: %v\n", err)
		os.Exit(2)
	}
	stackarena.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	var out io.Writer = os.Stdout
	if quiet {
		out = io.Discard
	}
	rep, err := harness.Run(cfg, out)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "jsheap: %v\n", err)
		os.Exit(1)
	}
	printReport(os.Stdout, rep)
}

func printReport(w io.Writer, rep harness.Report) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "sessions   %d in %v\n", rep.Iterations, rep.Elapsed)
	status := color.New(color.FgGreen)
	if rep.Failures > 0 {
		status = color.New(color.FgRed)
	}
	status.Fprintf(w, "failures   %d\n", rep.Failures)
	if rep.LastError != nil {
		status.Fprintf(w, "last error %v\n", rep.LastError)
	}
	fmt.Fprintf(w, "peak       %s of %s\n",
		humanize.IBytes(uint64(rep.Peak)), humanize.IBytes(uint64(rep.Last.Capacity)))
	stranded := color.New(color.FgGreen)
	if rep.Stranded() > 0 {
		stranded = color.New(color.FgYellow)
	}
	stranded.Fprintf(w, "stranded   %s (live %d)\n", humanize.IBytes(uint64(rep.Stranded())), rep.Last.Live)
	fmt.Fprintf(w, "last       %v\n", rep.Last)
	fmt.Fprintf(w, "rss        %s\n", humanize.IBytes(rep.RSS))
}
