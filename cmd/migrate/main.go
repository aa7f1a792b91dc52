package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

const usage = "Usage: go run ./cmd/migrate [up|drop|seed]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := run(ctx, conn, dropQueries); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := run(ctx, conn, createQueries); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

var dropQueries = []string{
	`DROP TABLE IF EXISTS youtube_videos CASCADE`,
	`DROP TABLE IF EXISTS creators CASCADE`,
}

var createQueries = []string{
	`CREATE TABLE IF NOT EXISTS creators (
		channel_id        TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		channel_url       TEXT NOT NULL,
		thumbnail_url     TEXT NOT NULL DEFAULT '',
		subscribers_count BIGINT NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_creators_created_at ON creators (created_at, channel_id)`,

	`CREATE TABLE IF NOT EXISTS youtube_videos (
		id             BIGSERIAL PRIMARY KEY,
		video_id       TEXT NOT NULL UNIQUE,
		channel_id     TEXT NOT NULL REFERENCES creators (channel_id) ON DELETE CASCADE,
		channel_name   TEXT NOT NULL,
		title          TEXT NOT NULL,
		url            TEXT NOT NULL,
		thumbnail_url  TEXT NOT NULL,
		published_at   TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL,
		views          BIGINT NOT NULL DEFAULT 0,
		rating_count   BIGINT NOT NULL DEFAULT 0,
		rating_average DOUBLE PRECISION NOT NULL DEFAULT 0,
		rating_min     SMALLINT NOT NULL DEFAULT 1,
		rating_max     SMALLINT NOT NULL DEFAULT 5,
		ingested_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_youtube_videos_published_at ON youtube_videos (published_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_youtube_videos_channel_published ON youtube_videos (channel_id, published_at DESC)`,
}

func run(ctx context.Context, conn *pgx.Conn, queries []string) error {
	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Executed: %.60s...\n", query)
	}
	return nil
}

// seedData registers a few well-known channels; the first ingestion run
// fills in their videos
func seedData(ctx context.Context, conn *pgx.Conn) error {
	creators := []struct {
		channelID string
		name      string
	}{
		{"UC_x5XG1OV2P6uZZ5FSM9Ttw", "Google for Developers"},
		{"UCsBjURrPoezykLs9EqgamOA", "Fireship"},
		{"UCXuqSBlHAE6Xw-yeJA0Tunw", "Linus Tech Tips"},
	}

	batch := &pgx.Batch{}
	for _, c := range creators {
		batch.Queue(`
			INSERT INTO creators (channel_id, name, channel_url)
			VALUES ($1, $2, $3)
			ON CONFLICT (channel_id) DO NOTHING`,
			c.channelID, c.name, "https://www.youtube.com/channel/"+c.channelID,
		)
	}

	if err := conn.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed creators: %w", err)
	}

	fmt.Printf("  Seeded %d creators\n", len(creators))
	return nil
}
