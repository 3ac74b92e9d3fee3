package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pevans/pricefed"
	"github.com/pevans/pricefed/config"
	"github.com/prometheus/client_golang/prometheus"
)

// errHelpShown stops a command after its flag set printed help.
var errHelpShown = errors.New("help shown")

// usageError is followed by the usage text.
type usageError string

func (e usageError) Error() string { return string(e) }

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	err := run(os.Args[1], os.Args[2:])
	if errors.Is(err, errHelpShown) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr)
			printUsage()
		}
		os.Exit(1)
	}
}

// run dispatches a subcommand. Only run seeds reference data; the other
// commands open the store for reading.
func run(subcommand string, args []string) error {
	switch subcommand {
	case "run":
		return withApp(pricefed.OpenApp, func(app *pricefed.App) error { return handleRun(app, args) })
	case "check":
		return withApp(openForReading, func(app *pricefed.App) error { return handleCheck(app, args) })
	case "runs":
		return withApp(openForReading, func(app *pricefed.App) error { return handleRuns(app, args) })
	case "cities":
		return withApp(openForReading, func(app *pricefed.App) error { return handleCities(app, args) })
	case "stations":
		return withApp(openForReading, func(app *pricefed.App) error { return handleStations(app, args) })
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		return usageError("unknown command: " + subcommand)
	}
}

type opener func(ctx context.Context, cfg *config.FileConfig, reg prometheus.Registerer) (*pricefed.App, error)

func openForReading(_ context.Context, cfg *config.FileConfig, _ prometheus.Registerer) (*pricefed.App, error) {
	return pricefed.OpenForReading(cfg)
}

// withApp loads configuration, opens the store with open and hands the app
// to fn. The store is closed before the error is returned.
func withApp(open opener, fn func(app *pricefed.App) error) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := open(context.Background(), cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}

func printUsage() {
	fmt.Println("pricefed - Fuel price ingestion CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pricefed <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Scrape, clean and store current prices")
	fmt.Println("  check      Report whether stored prices are stale")
	fmt.Println("  runs       List recent ingestion runs")
	fmt.Println("  cities     List known cities")
	fmt.Println("  stations   List competitor stations of a city")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  PRICEFED_CONFIG                Path to config file (default: ~/.pricefed/config.yaml)")
	fmt.Println("  PRICEFED_STORAGE_TYPE          sqlite or postgres (default: sqlite)")
	fmt.Println("  PRICEFED_DSN                   Database path or connection string (default: pricefed.db)")
	fmt.Println("  PRICEFED_REGION                Source region id (default: 46)")
	fmt.Println("  PRICEFED_MAX_PAGES             Maximum listing pages per run (default: 200)")
	fmt.Println("  PRICEFED_STALENESS_THRESHOLD   Age after which prices are stale (default: 12h)")
	fmt.Println("  PRICEFED_ARCHIVE_DIR           Directory for CSV archives (default: archive)")
}
