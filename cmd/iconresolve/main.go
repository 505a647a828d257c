package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"iconresolve/internal/app"
	"iconresolve/internal/config"
)

const (
	exitOK    = 0
	exitError = 1
	exitDrift = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iconresolve: %v\n", err)
		return exitError
	}

	// No run-level deadline: every check carries its own timeout.
	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iconresolve: %v\n", err)
		return exitError
	}
	defer a.Close()

	if cfg.Interval > 0 {
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := a.Watch(ctx, cfg.Interval, printRun); err != nil {
			fmt.Fprintf(os.Stderr, "iconresolve: %v\n", err)
			return exitError
		}
		return exitOK
	}

	report, err := a.Run(ctx)
	switch {
	case errors.Is(err, app.ErrDrift):
		fmt.Println(report.String())
		for _, c := range report.Changes {
			fmt.Printf("  %s: %s -> %s\n", c.ID, show(c.Old, c.Added), show(c.New, c.Removed))
		}
		return exitDrift
	case err != nil:
		fmt.Fprintf(os.Stderr, "iconresolve: %v\n", err)
		return exitError
	}
	fmt.Println(report.String())
	return exitOK
}

// printRun reports one run of an interval loop. Failures are printed and the
// loop carries on.
func printRun(report app.Report, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "iconresolve: %v\n", err)
		return
	}
	fmt.Println(report.String())
}

func show(v *string, missing bool) string {
	switch {
	case missing:
		return "(missing)"
	case v == nil:
		return "null"
	default:
		return fmt.Sprintf("%q", *v)
	}
}
