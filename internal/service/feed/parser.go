package feed

import (
	"fmt"
	"strings"
	"time"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/errors"
)

// UnknownChannelName is used when a feed carries no author
const UnknownChannelName = "Unknown Channel"

const videoIDPrefix = "yt:video:"

// Parsed is the normalized content of one channel feed
type Parsed struct {
	ChannelID   string
	ChannelName string
	Entries     []domain.FeedEntry
}

// Parse normalizes a decoded feed. Entry order is preserved and repeated
// video ids keep their first occurrence.
func Parse(doc *Document) (*Parsed, error) {
	if doc == nil {
		return nil, errors.NewParseError("feed document is empty", nil)
	}

	name := strings.TrimSpace(doc.Author.Name)
	if name == "" {
		name = UnknownChannelName
	}

	parsed := &Parsed{
		ChannelID:   strings.TrimSpace(doc.ChannelID),
		ChannelName: name,
		Entries:     make([]domain.FeedEntry, 0, len(doc.Entries)),
	}

	seen := make(map[string]struct{}, len(doc.Entries))
	for i := range doc.Entries {
		entry, err := parseEntry(&doc.Entries[i])
		if err != nil {
			return nil, errors.NewParseError(fmt.Sprintf("entry %d: %s", i, err.Error()), err)
		}
		if _, dup := seen[entry.VideoID]; dup {
			continue
		}
		seen[entry.VideoID] = struct{}{}
		parsed.Entries = append(parsed.Entries, entry)
	}

	return parsed, nil
}

func parseEntry(e *Entry) (domain.FeedEntry, error) {
	entryID := strings.TrimSpace(e.ID)
	if entryID == "" {
		return domain.FeedEntry{}, fmt.Errorf("missing id")
	}

	videoID := VideoIDFromEntryID(entryID)
	if videoID == "" {
		videoID = strings.TrimSpace(e.VideoID)
	}
	if videoID == "" {
		return domain.FeedEntry{}, fmt.Errorf("cannot derive video id from %q", entryID)
	}

	title := strings.TrimSpace(e.Title)
	if title == "" {
		return domain.FeedEntry{}, fmt.Errorf("missing title")
	}

	link := strings.TrimSpace(e.AlternateHref())
	if link == "" {
		return domain.FeedEntry{}, fmt.Errorf("missing link")
	}

	if strings.TrimSpace(e.Published) == "" {
		return domain.FeedEntry{}, fmt.Errorf("missing published")
	}
	published, err := parseTimestamp(e.Published)
	if err != nil {
		return domain.FeedEntry{}, fmt.Errorf("invalid published: %w", err)
	}

	updated := published
	if strings.TrimSpace(e.Updated) != "" {
		if updated, err = parseTimestamp(e.Updated); err != nil {
			return domain.FeedEntry{}, fmt.Errorf("invalid updated: %w", err)
		}
	}

	return domain.FeedEntry{
		EntryID:      entryID,
		VideoID:      videoID,
		Title:        title,
		Link:         link,
		ThumbnailURL: ThumbnailURL(videoID),
		PublishedAt:  published,
		UpdatedAt:    updated,
	}, nil
}

// VideoIDFromEntryID strips the "yt:video:" namespace from an entry id. Ids
// in any other namespace yield their last ':'-separated segment.
func VideoIDFromEntryID(entryID string) string {
	if id, ok := strings.CutPrefix(entryID, videoIDPrefix); ok {
		return id
	}
	if i := strings.LastIndexByte(entryID, ':'); i >= 0 {
		return entryID[i+1:]
	}
	return entryID
}

// ThumbnailURL returns the high quality thumbnail address of a video
func ThumbnailURL(videoID string) string {
	return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
}

func parseTimestamp(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
