package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pevans/pricefed"
	"github.com/pevans/pricefed/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags default to the loaded configuration, which already carries the
	// PRICEFED_* environment overrides
	region := flag.Int("region", cfg.Source.Region, "Source region id (PRICEFED_REGION)")
	staleness := flag.Duration("staleness", cfg.Update.StalenessThreshold, "Age after which prices are refreshed (PRICEFED_STALENESS_THRESHOLD)")
	checkInterval := flag.Duration("check-interval", cfg.Update.CheckInterval, "How often staleness is checked (PRICEFED_CHECK_INTERVAL)")
	metricsAddr := flag.String("metrics-addr", getEnv("PRICEFED_METRICS_ADDR", ""), "Serve Prometheus metrics on this address when set (PRICEFED_METRICS_ADDR)")

	flag.Parse()

	cfg.Source.Region = *region
	cfg.Update.StalenessThreshold = *staleness
	cfg.Update.CheckInterval = *checkInterval
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	registry := prometheus.NewRegistry()

	log.Printf("Opening %s store: %s", cfg.Storage.Type, cfg.Storage.DSN)
	app, err := pricefed.OpenApp(context.Background(), cfg, registry)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.Close()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			log.Printf("Serving metrics on http://%s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("ERROR: Metrics server failed: %v", err)
			}
		}()
	}

	service := app.Updater

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	// Start service in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- service.Run(ctx)
	}()

	for {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal: %v", sig)
			if sig == syscall.SIGHUP {
				// SIGHUP: refresh now regardless of staleness
				go func() {
					if _, err := service.RunNow(ctx); err != nil && !errors.Is(err, pricefed.ErrServiceStopped) {
						log.Printf("ERROR: Forced run failed: %v", err)
					}
				}()
				continue
			}

			// SIGTERM/SIGINT: graceful shutdown
			log.Println("Shutting down gracefully...")
			cancel()
			service.Stop()

			// Wait for shutdown with timeout
			shutdownTimer := time.NewTimer(60 * time.Second)
			select {
			case <-errChan:
				log.Println("Service stopped")
			case <-shutdownTimer.C:
				log.Println("Shutdown timeout exceeded, forcing exit")
			}
			return
		case err := <-errChan:
			if err != nil {
				log.Fatalf("Service error: %v", err)
			}
			return
		}
	}
}
