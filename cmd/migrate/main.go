package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"covid-waves/internal/config"
	"covid-waves/migrations"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	steps, err := migrations.List(migrations.Direction(*direction))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list migrations: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.Connection().DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	for _, m := range steps {
		fmt.Printf("Running migration: %s (%s)\n", m.Name, *direction)
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to execute migration %s: %v\n", m.Name, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Applied %d migration(s)\n", len(steps))
}
