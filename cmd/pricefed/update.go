package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pevans/pricefed"
)

func handleRun(app *pricefed.App, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	force := fs.Bool("force", false, "Run even when stored prices are fresh")
	format := fs.String("format", "table", "Output format: table or json")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		summary *pricefed.Summary
		err     error
	)
	if *force {
		summary, err = app.Updater.RunNow(ctx)
	} else {
		var started bool
		summary, started, err = app.Updater.RunIfStale(ctx)
		if err == nil && !started {
			fmt.Println("Prices are fresh; nothing to do. Use --force to run anyway.")
			return nil
		}
	}

	if summary != nil {
		if *format == "json" {
			if err := printJSON(summary); err != nil {
				return err
			}
		} else {
			printSummary(summary)
		}
	}

	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func handleCheck(app *pricefed.App, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx := context.Background()
	last, err := app.Store.LastPriceTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last price time: %w", err)
	}
	lastRun, err := app.Store.LastSuccessfulRunAt(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last run time: %w", err)
	}

	threshold := app.Config.Update.StalenessThreshold
	stale, err := app.Pipeline.ShouldRun(ctx, threshold)
	if err != nil {
		return err
	}

	fmt.Printf("Last price:  %s\n", formatOptionalTime(last))
	fmt.Printf("Last run:    %s\n", formatOptionalTime(lastRun))
	fmt.Printf("Threshold:   %s\n", threshold)
	if stale {
		fmt.Println("Status:      stale")
	} else {
		fmt.Println("Status:      fresh")
	}
	return nil
}

func handleRuns(app *pricefed.App, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Number of runs to show")
	format := fs.String("format", "table", "Output format: table or json")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	runs, err := app.Store.ListRuns(context.Background(), *limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if *format == "json" {
		return printJSON(map[string]any{"runs": runs, "total": len(runs)})
	}
	printRunsTable(runs)
	return nil
}
