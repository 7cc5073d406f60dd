// Command collector runs the QuantAgg aggregation collector.
//
// The collector accepts one structured floating-point value per
// contributor per round, quantizes them with stochastic rounding,
// sums the integer encodings and publishes the reconstructed sum and
// distortion measurement for every completed round.
//
// # Configuration File
//
// Create a YAML file with collector settings:
//
//	http_addr: ":8080"
//	metrics_addr: ":9090"
//	spec_file: "spec.json"
//	step_size: 0.125
//	min_contributors: 3
//	round_duration: "30s"
//	postgres:
//	  host: "localhost"
//	  port: 5432
//	  user: "quantagg"
//	  password: "secret"
//	  database: "quantagg"
//
// The spec file holds the JSON value spec, e.g. a float32 vector:
//
//	{"dtype": "float32", "shape": [7]}
//
// Without a postgres section, rounds are kept in memory.
//
// # Usage
//
//	go run ./cmd/collector --config=collector.yaml
//	go run ./cmd/collector --spec=spec.json --step-size=0.125 --round-duration=10s
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashbots/quantagg/api/httpserver"
	"github.com/flashbots/quantagg/cmd/common"
	"github.com/flashbots/quantagg/services"
)

func main() {
	var (
		configPath      = flag.String("config", "", "Path to YAML config file")
		addr            = flag.String("addr", "", "HTTP listen address")
		metricsAddr     = flag.String("metrics-addr", "", "Metrics listen address")
		specPath        = flag.String("spec", "", "Path to JSON value spec file")
		stepSize        = flag.Float64("step-size", 0, "Quantization step size")
		minContributors = flag.Int("min-contributors", 0, "Minimum contributors per round")
		roundDuration   = flag.Duration("round-duration", 0, "Round duration")
		logJSON         = flag.Bool("log-json", false, "Log in JSON format")
		logDebug        = flag.Bool("log-debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg := common.DefaultConfig()
	if *configPath != "" {
		loaded, err := common.LoadConfig(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Command-line flags override config file.
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *specPath != "" {
		cfg.SpecFile = *specPath
	}
	if *stepSize > 0 {
		cfg.StepSize = *stepSize
	}
	if *minContributors > 0 {
		cfg.MinContributors = *minContributors
	}
	if *roundDuration > 0 {
		cfg.RoundDuration = common.Duration(*roundDuration)
	}
	if *logJSON {
		cfg.LogJSON = true
	}
	if *logDebug {
		cfg.LogDebug = true
	}

	if cfg.SpecFile == "" {
		fmt.Println("Error: spec file is required (via --spec or config file)")
		os.Exit(1)
	}

	log := common.NewLogger(cfg.LogJSON, cfg.LogDebug)

	spec, err := common.LoadSpec(cfg.SpecFile)
	if err != nil {
		log.Error("Loading value spec failed", "err", err)
		os.Exit(1)
	}

	store, err := common.NewStore(cfg)
	if err != nil {
		log.Error("Creating round store failed", "err", err)
		os.Exit(1)
	}

	coordinator := services.NewTickerCoordinator(time.Duration(cfg.RoundDuration))
	collector, err := services.NewCollector(&services.ServiceConfig{
		Spec:            spec,
		StepSize:        cfg.StepSize,
		MinContributors: cfg.MinContributors,
		RoundDuration:   time.Duration(cfg.RoundDuration),
		Log:             log,
	}, store, coordinator)
	if err != nil {
		log.Error("Creating collector failed", "err", err)
		os.Exit(1)
	}

	srv, err := httpserver.New(&httpserver.Config{
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              10 * time.Second,
		WriteTimeout:             10 * time.Second,
	}, collector)
	if err != nil {
		log.Error("Creating HTTP server failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator.Start(ctx)
	if err := collector.Start(ctx); err != nil {
		log.Error("Starting collector failed", "err", err)
		os.Exit(1)
	}
	srv.RunInBackground()

	log.Info("Collector running",
		"addr", cfg.HTTPAddr,
		"stepSize", cfg.StepSize,
		"roundDuration", time.Duration(cfg.RoundDuration).String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down")
	cancel()
	srv.Shutdown()
}
