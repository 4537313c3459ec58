// Command main runs the database seeder for Timeout.
package main

import (
	"context"
	"flag"
	"log"

	"timeout/internal/bootstrap"
	"timeout/internal/cache"
	"timeout/internal/config"
	"timeout/internal/database"
	"timeout/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 30, "Number of users to create")
	postsPerUser := flag.Int("posts", 4, "Posts per user")
	eventsPerUser := flag.Int("events", 12, "Calendar events per user")
	notesPerUser := flag.Int("notes", 3, "Notes per user")
	maxDays := flag.Int("days", 30, "Spread post dates over this many past days")
	randSeed := flag.Int64("seed", 0, "Random seed; 0 picks one from the clock")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	fast := flag.Bool("fast", false, "Skip bcrypt and store the plain seed password")
	scenario := flag.String("scenario", "", "Apply a YAML scenario file instead of random data")
	flag.Parse()

	bootstrap.LoadEnv()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	cache.InitRedis(ctx, cfg.RedisURL)

	opts := seed.Options{
		NumUsers:      *numUsers,
		PostsPerUser:  *postsPerUser,
		EventsPerUser: *eventsPerUser,
		NotesPerUser:  *notesPerUser,
		ShouldClean:   *shouldClean,
		DryRun:        *dryRun,
		SkipBcrypt:    *fast,
		MaxDays:       *maxDays,
		RandSeed:      *randSeed,
		Cache:         cache.ClientStore(cache.GetClient()),
	}

	if *scenario != "" {
		sc, err := seed.LoadScenario(*scenario)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
		if *shouldClean {
			if err := seed.Clean(ctx, db, opts.Cache); err != nil {
				log.Fatalf("Cleanup failed: %v", err)
			}
		}
		users, err := seed.ApplyScenario(ctx, db, sc, opts)
		if err != nil {
			log.Fatalf("Scenario seeding failed: %v", err)
		}
		log.Printf("Scenario applied: %d users", len(users))
	} else {
		sum, err := seed.Seed(ctx, db, opts)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("Seeded %d users, %d events (%d conflicts skipped), %d posts, %d notes",
			sum.Users, sum.Events, sum.Conflicts, sum.Posts, sum.Notes)
	}

	log.Printf("All test users have the password: %s", seed.DefaultPassword)
}
