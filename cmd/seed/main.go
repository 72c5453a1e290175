// Command seed fills the database with demo users, blogs and resources.
package main

import (
	"context"
	"flag"
	"log"

	"devshelf/internal/config"
	"devshelf/internal/database"
	"devshelf/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	numBlogs := flag.Int("blogs", defaults.NumBlogs, "Number of blogs to create")
	numResources := flag.Int("resources", defaults.NumResources, "Number of resources to create")
	draftRatio := flag.Float64("drafts", float64(defaults.DraftRatio), "Fraction of blogs left unpublished")
	maxDays := flag.Int("days", defaults.MaxDays, "Spread created_at over this many past days")
	randomSeed := flag.Int64("rand", 0, "Random seed, 0 for time based")
	clean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing to the database")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := seed.Options{
		NumUsers:     *numUsers,
		NumBlogs:     *numBlogs,
		NumResources: *numResources,
		DraftRatio:   float32(*draftRatio),
		MaxDays:      *maxDays,
		BatchSize:    defaults.BatchSize,
		RandomSeed:   *randomSeed,
		DryRun:       *dryRun,
		Clean:        *clean,
	}
	sum, err := seed.NewSeeder(db, opts).Seed(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d blogs, %d resources", sum.Users, sum.Blogs, sum.Resources)
	log.Printf("All demo users have the password: %s", seed.DefaultPassword)
}
