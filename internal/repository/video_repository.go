package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/database"
)

const upsertVideoQuery = `
	INSERT INTO youtube_videos (
		video_id, channel_id, channel_name, title, url, thumbnail_url,
		published_at, updated_at, views, rating_count, rating_average,
		rating_min, rating_max, ingested_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	ON CONFLICT (video_id) DO UPDATE SET
		channel_id = EXCLUDED.channel_id,
		channel_name = EXCLUDED.channel_name,
		title = EXCLUDED.title,
		url = EXCLUDED.url,
		thumbnail_url = EXCLUDED.thumbnail_url,
		published_at = EXCLUDED.published_at,
		updated_at = EXCLUDED.updated_at,
		views = EXCLUDED.views,
		rating_count = EXCLUDED.rating_count,
		rating_average = EXCLUDED.rating_average,
		rating_min = EXCLUDED.rating_min,
		rating_max = EXCLUDED.rating_max,
		ingested_at = EXCLUDED.ingested_at
`

type videoRepository struct {
	db *database.PostgresDB
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db *database.PostgresDB) VideoRepository {
	return &videoRepository{db: db}
}

// UpsertVideos queues one upsert per record and sends them as a single batch.
// pgx runs an unwrapped batch as one implicit transaction, so a creator's
// records are written together or not at all.
func (r *videoRepository) UpsertVideos(ctx context.Context, records []domain.VideoRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, v := range records {
		batch.Queue(upsertVideoQuery,
			v.VideoID,
			v.ChannelID,
			v.ChannelName,
			v.Title,
			v.URL,
			v.ThumbnailURL,
			v.PublishedAt,
			v.UpdatedAt,
			v.Views,
			v.RatingCount,
			v.RatingAverage,
			v.RatingMin,
			v.RatingMax,
		)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	for i := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to upsert video %s: %w", records[i].VideoID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to upsert videos: %w", err)
	}
	return nil
}

func (r *videoRepository) ListVideos(ctx context.Context, q domain.VideoQuery) ([]domain.VideoRecord, error) {
	q.Normalize()

	query := `
		SELECT video_id, channel_id, channel_name, title, url, thumbnail_url,
		       published_at, updated_at, views, rating_count, rating_average,
		       rating_min, rating_max
		FROM youtube_videos
		WHERE ($1 = '' OR channel_id = $1)
		  AND ($2::timestamptz IS NULL OR published_at >= $2)
		ORDER BY published_at DESC, video_id
		LIMIT $3
	`

	var since *time.Time
	if !q.Since.IsZero() {
		since = &q.Since
	}

	rows, err := r.db.GetReadPool().Query(ctx, query, q.ChannelID, since, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := make([]domain.VideoRecord, 0, q.Limit)
	for rows.Next() {
		var v domain.VideoRecord
		if err := rows.Scan(
			&v.VideoID, &v.ChannelID, &v.ChannelName, &v.Title, &v.URL, &v.ThumbnailURL,
			&v.PublishedAt, &v.UpdatedAt, &v.Views, &v.RatingCount, &v.RatingAverage,
			&v.RatingMin, &v.RatingMax,
		); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}

	return videos, nil
}
