package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/pevans/pricefed"
	"github.com/pevans/pricefed/store"
)

// printJSON prints v as indented JSON
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

// parseFlags parses args into fs. Asking for help is not an error.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return errHelpShown
	}
	return err
}

// formatOptionalTime formats t in local time, or "never" when nil.
func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// printSummary prints a run summary in human-readable form
func printSummary(s *pricefed.Summary) {
	fmt.Printf("Run %s (region %d)\n", s.RunID, s.Region)
	fmt.Printf("  Pages fetched:     %d (stopped: %s)\n", s.PagesFetched, s.StopReason)
	fmt.Printf("  Listings:          %d\n", s.Listings)
	fmt.Printf("  Dropped:           %d without name, %d without city\n",
		s.Cleaning.DroppedNoName, s.Cleaning.DroppedNoCity)
	fmt.Printf("  Prices imputed:    %d (%d unfillable)\n", s.Cleaning.Imputed, s.Cleaning.Unfillable)
	fmt.Printf("  Records:           %d\n", s.Records)
	fmt.Printf("  Cities created:    %d\n", s.CitiesCreated)
	fmt.Printf("  Stations created:  %d\n", s.StationsCreated)
	fmt.Printf("  Prices written:    %d (%d already stored)\n", s.PricesWritten, s.PricesSkipped)
	if s.UnknownFuel > 0 {
		fmt.Printf("  Unknown fuel:      %d\n", s.UnknownFuel)
	}
	if s.ArchivePath != "" {
		fmt.Printf("  Archive:           %s\n", s.ArchivePath)
	}
	fmt.Printf("  Duration:          %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}

// printRunsTable prints journal entries, newest first
func printRunsTable(runs []store.Run) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	fmt.Printf("%-36s %-10s %-16s %6s %8s %8s %s\n",
		"ID", "STATUS", "STARTED", "PAGES", "RECORDS", "WRITTEN", "ERROR")
	fmt.Println(strings.Repeat("-", 110))

	for _, run := range runs {
		errText := ""
		if run.Error != nil {
			errText = *run.Error
			if len(errText) > 40 {
				errText = errText[:37] + "..."
			}
		}

		fmt.Printf("%-36s %-10s %-16s %6d %8d %8d %s\n",
			run.RunID.String(),
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.PagesFetched,
			run.Records,
			run.PricesWritten,
			errText,
		)
	}
}

// printCitiesTable prints cities with their centroids
func printCitiesTable(cities []store.City) {
	if len(cities) == 0 {
		fmt.Println("No cities stored.")
		return
	}

	fmt.Printf("%-6s %-30s %s\n", "ID", "NAME", "CENTROID")
	fmt.Println(strings.Repeat("-", 60))

	for _, city := range cities {
		centroid := "-"
		if city.Lat != nil && city.Lon != nil {
			centroid = fmt.Sprintf("%.4f, %.4f", *city.Lat, *city.Lon)
		}
		fmt.Printf("%-6d %-30s %s\n", city.ID, city.Name, centroid)
	}
}

// printStationsTable prints a city's competitor stations and, when history is
// non-empty, each station's prices
func printStationsTable(city *store.City, stations []store.CompetitorStation, history map[int64][]store.FuelPrice, fuelCodes map[int64]string) {
	fmt.Printf("%s: %d stations\n\n", city.Name, len(stations))

	for _, st := range stations {
		fmt.Printf("%s\n", st.StationName)
		if st.Address != nil {
			fmt.Printf("   %s\n", *st.Address)
		}
		for _, p := range history[st.ID] {
			code := fuelCodes[p.FuelTypeID]
			if code == "" {
				code = fmt.Sprintf("#%d", p.FuelTypeID)
			}
			fmt.Printf("   %s  %-8s %8.2f\n", p.Date, code, p.Price)
		}
	}
}
