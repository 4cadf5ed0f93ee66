package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/campus-hunt/internal/config"
	"github.com/campus-hunt/internal/domain"
	"github.com/campus-hunt/internal/postgres"
	"github.com/google/uuid"
)

// seedLocation is one hunt stop with its challenge and ordered hints
type seedLocation struct {
	name        string
	description string
	qrCode      string
	question    string
	answer      string
	points      int
	options     []string
	hints       []string
}

var campusHunt = []seedLocation{
	{
		name:        "Main Library",
		description: "The oldest building on campus, home to two million volumes.",
		qrCode:      "hunt-library-001",
		question:    "In which year was the main library founded?",
		answer:      "1897",
		points:      100,
		options:     []string{"1897", "1905", "1923", "1884"},
		hints: []string{
			"Look at the cornerstone near the east entrance.",
			"It was the same year the physics department opened.",
		},
	},
	{
		name:        "Clock Tower",
		description: "The bell tower at the center of the main quad.",
		qrCode:      "hunt-clocktower-002",
		question:    "How many bells hang in the clock tower?",
		answer:      "12",
		points:      150,
		options:     []string{"8", "10", "12", "16"},
		hints: []string{
			"One bell for each month of the year.",
		},
	},
	{
		name:        "Botanical Garden",
		description: "Greenhouse and garden maintained by the biology department.",
		qrCode:      "hunt-garden-003",
		question:    "What is the name of the carnivorous plant collection's largest specimen?",
		answer:      "Audrey",
		points:      200,
		options:     []string{"Audrey", "Venus", "Triffid", "Flora"},
		hints: []string{
			"The name comes from a 1986 musical film.",
			"Check the plaque on the largest pitcher plant.",
			"Feed me, Seymour.",
		},
	},
	{
		name:        "Science Hall",
		description: "Lecture halls and the Foucault pendulum in the atrium.",
		qrCode:      "hunt-science-004",
		question:    "How long is the cable of the Foucault pendulum in meters?",
		answer:      "22",
		points:      150,
		options:     []string{"15", "18", "22", "30"},
		hints: []string{
			"The answer is printed on the display at the pendulum's base.",
		},
	},
	{
		name:        "Stadium",
		description: "Home field of the university's athletics teams.",
		qrCode:      "hunt-stadium-005",
		question:    "What animal is the university mascot?",
		answer:      "Falcon",
		points:      100,
		options:     []string{"Falcon", "Bear", "Wolf", "Eagle"},
		hints: []string{
			"It flies over the stadium before every home game.",
			"It is a bird of prey.",
		},
	},
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config file, using defaults: %v\n", err)
		cfg = config.DefaultConfig()
	}

	ctx := context.Background()

	fmt.Printf("Connecting to PostgreSQL at %s:%d/%s\n", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	created, skipped := 0, 0
	for _, s := range campusHunt {
		ok, err := seedOne(ctx, repo, s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed %q: %v\n", s.name, err)
			os.Exit(1)
		}
		if ok {
			fmt.Printf("  + %s (%s)\n", s.name, s.qrCode)
			created++
		} else {
			fmt.Printf("  = %s (already seeded)\n", s.name)
			skipped++
		}
	}

	fmt.Printf("Done. %d locations created, %d already present.\n", created, skipped)
}

// seedOne creates a location with its challenge and hints. It returns false
// without touching anything when the QR code is already registered, so the
// command can be re-run safely.
func seedOne(ctx context.Context, repo *postgres.Repository, s seedLocation) (bool, error) {
	_, err := repo.GetLocationByQR(ctx, s.qrCode)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrLocationNotFound) {
		return false, err
	}

	now := time.Now()
	location := &domain.Location{
		ID:          uuid.NewString(),
		Name:        s.name,
		Description: s.description,
		QRCode:      s.qrCode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateLocation(ctx, location); err != nil {
		return false, err
	}

	challenge := &domain.Challenge{
		ID:            uuid.NewString(),
		LocationID:    location.ID,
		Question:      s.question,
		CorrectAnswer: s.answer,
		Points:        s.points,
		Options:       s.options,
	}
	if err := repo.CreateChallenge(ctx, challenge); err != nil {
		return false, err
	}

	for i, text := range s.hints {
		hint := &domain.Hint{
			ID:         uuid.NewString(),
			LocationID: location.ID,
			Order:      i,
			Text:       text,
		}
		if err := repo.CreateHint(ctx, hint); err != nil {
			return false, err
		}
	}

	return true, nil
}
