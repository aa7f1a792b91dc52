package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/database"
)

// creatorRepository handles creator rows in PostgreSQL
type creatorRepository struct {
	db *database.PostgresDB
}

// NewCreatorRepository creates a new creator repository
func NewCreatorRepository(db *database.PostgresDB) CreatorRepository {
	return &creatorRepository{db: db}
}

func (r *creatorRepository) ListChannelIDs(ctx context.Context) ([]string, error) {
	query := `SELECT channel_id FROM creators ORDER BY created_at, channel_id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list creators: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan creators: %w", err)
	}
	return ids, nil
}

func (r *creatorRepository) CreatorExists(ctx context.Context, channelID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM creators WHERE channel_id = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, channelID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check creator: %w", err)
	}
	return exists, nil
}

func (r *creatorRepository) List(ctx context.Context) ([]*domain.Creator, error) {
	query := `
		SELECT channel_id, name, channel_url, thumbnail_url, subscribers_count, created_at
		FROM creators
		ORDER BY created_at, channel_id
	`

	rows, err := r.db.GetReadPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list creators: %w", err)
	}
	defer rows.Close()

	creators := make([]*domain.Creator, 0)
	for rows.Next() {
		c := &domain.Creator{}
		if err := rows.Scan(&c.ChannelID, &c.Name, &c.ChannelURL, &c.ThumbnailURL, &c.SubscribersCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan creator: %w", err)
		}
		creators = append(creators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating creators: %w", err)
	}

	return creators, nil
}

func (r *creatorRepository) Get(ctx context.Context, channelID string) (*domain.Creator, error) {
	query := `
		SELECT channel_id, name, channel_url, thumbnail_url, subscribers_count, created_at
		FROM creators
		WHERE channel_id = $1
	`

	c := &domain.Creator{}
	err := r.db.GetReadPool().QueryRow(ctx, query, channelID).Scan(
		&c.ChannelID, &c.Name, &c.ChannelURL, &c.ThumbnailURL, &c.SubscribersCount, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}
	return c, nil
}

func (r *creatorRepository) Create(ctx context.Context, creator *domain.Creator) error {
	query := `
		INSERT INTO creators (channel_id, name, channel_url, thumbnail_url, subscribers_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (channel_id) DO NOTHING
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		creator.ChannelID,
		creator.Name,
		creator.ChannelURL,
		creator.ThumbnailURL,
		creator.SubscribersCount,
		creator.CreatedAt,
	).Scan(&creator.CreatedAt)

	if err == pgx.ErrNoRows {
		return ErrCreatorExists
	}
	if err != nil {
		return fmt.Errorf("failed to create creator: %w", err)
	}
	return nil
}

func (r *creatorRepository) Delete(ctx context.Context, channelID string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM creators WHERE channel_id = $1`, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to delete creator: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *creatorRepository) UpdateSubscribers(ctx context.Context, updates []domain.SubscriberUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	query := `UPDATE creators SET subscribers_count = $2 WHERE channel_id = $1`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.ChannelID, u.SubscribersCount)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	for range updates {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to update subscriber counts: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to update subscriber counts: %w", err)
	}
	return nil
}
