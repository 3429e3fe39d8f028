package main

import (
	"flag"
	"log"
	"os"

	"CrashCast/internal/di"
	"CrashCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s tick=%s max_multiplier=%.1f", cfg.Environment, cfg.Engine.TickInterval, cfg.Engine.MaxMultiplier)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
