package search

import (
	"context"
	"fmt"

	"github.com/meilisearch/meilisearch-go"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/logger"
)

const primaryKey = "video_id"

// videoDocument is a VideoRecord plus a sortable publish timestamp
type videoDocument struct {
	domain.VideoRecord
	PublishedTS int64 `json:"published_ts"`
}

// Indexer mirrors ingested videos into a Meilisearch index
type Indexer struct {
	client    meilisearch.ServiceManager
	indexName string
	logger    *logger.Logger
}

// NewIndexer creates an indexer. No request is made until EnsureIndex or
// IndexVideos is called.
func NewIndexer(host, apiKey, indexName string, log *logger.Logger) *Indexer {
	return &Indexer{
		client:    meilisearch.New(host, meilisearch.WithAPIKey(apiKey)),
		indexName: indexName,
		logger:    log.Named("search"),
	}
}

// EnsureIndex creates the index and its settings. Existing indexes are kept.
func (i *Indexer) EnsureIndex() error {
	if _, err := i.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        i.indexName,
		PrimaryKey: primaryKey,
	}); err != nil {
		return fmt.Errorf("failed to create index %s: %w", i.indexName, err)
	}

	index := i.client.Index(i.indexName)
	if _, err := index.UpdateSearchableAttributes(&[]string{"title", "channel_name"}); err != nil {
		return fmt.Errorf("failed to set searchable attributes: %w", err)
	}
	if _, err := index.UpdateSortableAttributes(&[]string{"published_ts", "views"}); err != nil {
		return fmt.Errorf("failed to set sortable attributes: %w", err)
	}
	filterable := []interface{}{"channel_id", "published_ts"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		return fmt.Errorf("failed to set filterable attributes: %w", err)
	}

	i.logger.WithField("index", i.indexName).Info("Search index ready")
	return nil
}

// IndexVideos upserts records by video_id. Meilisearch applies the update
// asynchronously; the returned task is only logged.
func (i *Indexer) IndexVideos(ctx context.Context, records []domain.VideoRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]videoDocument, len(records))
	for n, r := range records {
		docs[n] = videoDocument{VideoRecord: r, PublishedTS: r.PublishedAt.Unix()}
	}

	pk := primaryKey
	task, err := i.client.Index(i.indexName).UpdateDocumentsWithContext(ctx, docs, &meilisearch.DocumentOptions{PrimaryKey: &pk})
	if err != nil {
		return fmt.Errorf("failed to index videos: %w", err)
	}

	i.logger.WithFields(map[string]interface{}{
		"task_uid":  task.TaskUID,
		"documents": len(docs),
	}).Debug("Queued search index update")
	return nil
}
