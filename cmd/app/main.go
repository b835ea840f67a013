package main

import (
	"flag"
	"fmt"
	"os"

	"SentiTrade/internal/di"
	"SentiTrade/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sentitrade: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config; env vars override it")
	checkOnly := flag.Bool("check", false, "validate the config and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkOnly {
		fmt.Printf("config ok: env=%s storage=%s broker=%s\n", cfg.Environment, cfg.Storage.Type, cfg.Broker.Type)
		return nil
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	// until SIGINT or SIGTERM
	return app.Run()
}
