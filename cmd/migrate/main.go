package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/geocoder89/carshare/internal/config"
	"github.com/geocoder89/carshare/internal/db"
	"github.com/geocoder89/carshare/internal/observability"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env).With("component", "migrate")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBURL, db.WithAppName("carshare-migrate"))
	if err != nil {
		log.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	m := db.NewMigrator(pool, log)

	switch *command {
	case "up":
		err = m.Up(ctx)
	case "status":
		err = m.Status(ctx)
	case "down":
		err = m.Down(ctx, *target)
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(2)
	}

	if err != nil {
		log.Error("migration command failed", "command", *command, "err", err)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command)
}
