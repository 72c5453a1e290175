// Command migrate applies or inspects the database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"devshelf/internal/config"
	"devshelf/internal/database"
	"devshelf/internal/seed"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate <up|status|reset>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	ctx := context.Background()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(db.WithContext(ctx)); err != nil {
			return err
		}
		log.Println("schema migrated")
	case "status":
		for _, m := range database.PersistentModels() {
			stmt := db.Model(m).Statement
			if err := stmt.Parse(m); err != nil {
				return fmt.Errorf("parse model %T: %w", m, err)
			}
			log.Printf("%-24s exists=%t", stmt.Schema.Table, db.Migrator().HasTable(m))
		}
	case "reset":
		if cfg.IsProduction() {
			return fmt.Errorf("reset is disabled in production")
		}
		if err := seed.Clean(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		log.Println("all tables emptied")
	default:
		return usage()
	}
	return nil
}
