package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pevans/pricefed"
	"github.com/pevans/pricefed/api"
	"github.com/pevans/pricefed/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool parses a bool from environment variable or returns default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", getEnv("PRICEFED_API_ADDR", "localhost:8082"), "Listen address (PRICEFED_API_ADDR)")
	schedule := flag.Bool("schedule", getEnvBool("PRICEFED_API_SCHEDULE", false), "Also refresh stale prices on the check interval (PRICEFED_API_SCHEDULE)")

	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := pricefed.OpenApp(context.Background(), cfg, registry)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.Close()

	if *schedule {
		go func() {
			if err := app.Updater.Run(context.Background()); err != nil {
				log.Printf("ERROR: Update service stopped: %v", err)
			}
		}()
		defer app.Updater.Stop()
	}

	server := api.NewUpdateAPIServer(app.Updater, app.Store, registry)
	server.SetConfig(cfg)
	router := server.SetupRouter()

	log.Printf("Starting Update API server on http://%s/api/v1/update", *addr)

	if err := router.Run(*addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
