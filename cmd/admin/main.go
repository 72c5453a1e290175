// Command admin manages administrator and ban flags on DevShelf accounts.
package main

import (
	"fmt"
	"os"

	"devshelf/internal/config"
	"devshelf/internal/database"
	"devshelf/internal/repository"
)

func main() {
	open := func() (repository.UserRepository, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewUserRepository(db), nil
	}

	if err := newRootCmd(open).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
