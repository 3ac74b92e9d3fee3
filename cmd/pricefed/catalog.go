package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/pevans/pricefed"
	"github.com/pevans/pricefed/store"
)

func handleCities(app *pricefed.App, args []string) error {
	fs := flag.NewFlagSet("cities", flag.ContinueOnError)
	format := fs.String("format", "table", "Output format: table or json")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cities, err := app.Store.ListCities(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list cities: %w", err)
	}

	if *format == "json" {
		return printJSON(map[string]any{"cities": cities, "total": len(cities)})
	}
	printCitiesTable(cities)
	return nil
}

func handleStations(app *pricefed.App, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("city name is required\nUsage: pricefed stations <city> [--prices]")
	}
	cityName := args[0]

	fs := flag.NewFlagSet("stations", flag.ContinueOnError)
	withPrices := fs.Bool("prices", false, "Show price history of each station")
	format := fs.String("format", "table", "Output format: table or json")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	ctx := context.Background()
	city, err := app.Store.GetCityByName(ctx, cityName)
	if errors.Is(err, store.ErrCityNotFound) {
		return fmt.Errorf("%w: %s", err, cityName)
	}
	if err != nil {
		return fmt.Errorf("failed to look up city: %w", err)
	}

	stations, err := app.Store.ListStations(ctx, city.ID)
	if err != nil {
		return fmt.Errorf("failed to list stations: %w", err)
	}

	history := map[int64][]store.FuelPrice{}
	if *withPrices {
		for _, st := range stations {
			p, err := app.Store.ListPrices(ctx, store.StationCompetitor, st.ID)
			if err != nil {
				return fmt.Errorf("failed to list prices: %w", err)
			}
			history[st.ID] = p
		}
	}

	if *format == "json" {
		output := map[string]any{
			"city":     city,
			"stations": stations,
			"total":    len(stations),
		}
		if *withPrices {
			output["prices"] = history
		}
		return printJSON(output)
	}

	fuelCodes := map[int64]string{}
	if *withPrices {
		fuels, err := app.Store.ListFuelTypes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list fuel types: %w", err)
		}
		for _, f := range fuels {
			fuelCodes[f.ID] = f.Code
		}
	}
	printStationsTable(city, stations, history, fuelCodes)
	return nil
}
