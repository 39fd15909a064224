// Command planctl inspects and maintains a plancore snapshot store. The
// backend is selected through PLANCORE_STORAGE_DRIVER and its companion
// variables; the default is the in-memory backend, which is only useful for
// exercising seed output.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"plancore/internal/core"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func usage(stderr io.Writer) {
	fmt.Fprintln(stderr, "usage: planctl [-v] <stats|export|import|reset|reaggregate> [args]")
	fmt.Fprintln(stderr, "  stats                print per-collection counts and snapshot size")
	fmt.Fprintln(stderr, "  export [file]        write the full-store snapshot to file or stdout")
	fmt.Fprintln(stderr, "  import <file>        replace the store with the snapshot in file")
	fmt.Fprintln(stderr, "  reset                drop the snapshot and reseed")
	fmt.Fprintln(stderr, "  reaggregate          recompute every master's derived fields")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("planctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "enable debug logging")
	timeout := fs.Duration("timeout", 30*time.Second, "overall operation timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := core.NewSlogLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	backend, err := core.OpenSnapshotKV(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "planctl: open storage backend: %v\n", err)
		return 1
	}
	svc, err := core.NewService(ctx, core.WithKV(backend), core.WithLogger(log))
	if err != nil {
		fmt.Fprintf(stderr, "planctl: %v\n", err)
		return 1
	}

	switch cmd := fs.Arg(0); cmd {
	case "stats":
		return runStats(ctx, svc, stdout, stderr)
	case "export":
		return runExport(ctx, svc, fs.Args()[1:], stdout, stderr)
	case "import":
		return runImport(ctx, svc, fs.Args()[1:], stderr)
	case "reset":
		if err := svc.Reset(ctx); err != nil {
			fmt.Fprintf(stderr, "planctl: reset: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "store reset to seed data")
		return 0
	case "reaggregate":
		if err := svc.ReaggregateAll(ctx); err != nil {
			fmt.Fprintf(stderr, "planctl: reaggregate: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "master aggregates recomputed")
		return 0
	default:
		fmt.Fprintf(stderr, "planctl: unknown command %q\n", cmd)
		usage(stderr)
		return 2
	}
}

func runStats(ctx context.Context, svc *core.Service, stdout, stderr io.Writer) int {
	stats, err := svc.Stats(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "planctl: stats: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		fmt.Fprintf(stderr, "planctl: stats: %v\n", err)
		return 1
	}
	return 0
}

func runExport(ctx context.Context, svc *core.Service, args []string, stdout, stderr io.Writer) int {
	payload, err := svc.Export(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "planctl: export: %v\n", err)
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(stdout, payload)
		return 0
	}
	if err := os.WriteFile(args[0], []byte(payload), 0o644); err != nil {
		fmt.Fprintf(stderr, "planctl: export: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "snapshot written to %s (%d bytes)\n", args[0], len(payload))
	return 0
}

func runImport(ctx context.Context, svc *core.Service, args []string, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "planctl: import requires a snapshot file")
		return 2
	}
	payload, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "planctl: import: %v\n", err)
		return 1
	}
	if err := svc.Import(ctx, string(payload)); err != nil {
		fmt.Fprintf(stderr, "planctl: import: %v\n", err)
		return 1
	}
	return 0
}
