package main

import (
	"flag"
	"log"
	"os"

	"tcgsync_api/config"
	"tcgsync_api/internal/tcg/app"
	"tcgsync_api/pkg/dbconnect/postgres"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the yaml config")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	// Environment settings are the base; yaml values override field by field.
	pgConfig := config.GetPostgresConfig()
	pgConfig.Merge(cfg.Postgres)
	cfg.Postgres = pgConfig

	server := app.NewSyncServer(postgres.NewPgConnector(cfg.Postgres), cfg, os.Stdout)
	if err := server.Run(); err != nil {
		log.Fatalf("Sync server stopped: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
