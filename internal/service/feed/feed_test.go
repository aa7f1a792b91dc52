package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorfeed/pkg/errors"
	"creatorfeed/pkg/logger"
)

const feedHeader = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <link rel="self" href="http://www.youtube.com/feeds/videos.xml?channel_id=UCtest"/>
 <id>yt:channel:UCtest</id>
 <yt:channelId>UCtest</yt:channelId>
 <title>Test Creator</title>
`

func entryXML(id, title, published, updated string) string {
	var b strings.Builder
	b.WriteString(" <entry>\n")
	fmt.Fprintf(&b, "  <id>yt:video:%s</id>\n  <yt:videoId>%s</yt:videoId>\n", id, id)
	if title != "" {
		fmt.Fprintf(&b, "  <title>%s</title>\n", title)
	}
	fmt.Fprintf(&b, "  <link rel=\"alternate\" href=\"https://www.youtube.com/watch?v=%s\"/>\n", id)
	if published != "" {
		fmt.Fprintf(&b, "  <published>%s</published>\n", published)
	}
	if updated != "" {
		fmt.Fprintf(&b, "  <updated>%s</updated>\n", updated)
	}
	b.WriteString("  <media:group><media:title>t</media:title></media:group>\n </entry>\n")
	return b.String()
}

func feedXML(author string, entries ...string) string {
	var b strings.Builder
	b.WriteString(feedHeader)
	if author != "" {
		fmt.Fprintf(&b, " <author><name>%s</name><uri>https://www.youtube.com/channel/UCtest</uri></author>\n", author)
	}
	for _, e := range entries {
		b.WriteString(e)
	}
	b.WriteString("</feed>\n")
	return b.String()
}

func newFeedServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/feeds/videos.xml", r.URL.Path)
		assert.Equal(t, "UCtest", r.URL.Query().Get("channel_id"))
		w.Header().Set("Content-Type", "application/atom+xml; charset=UTF-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetcher_Fetch(t *testing.T) {
	body := feedXML("Test Creator",
		entryXML("abc123", "First", "2024-01-15T10:00:00+00:00", "2024-01-15T12:00:00+00:00"),
		entryXML("xyz789", "Second", "2024-01-14T10:00:00+00:00", ""),
	)
	srv, calls := newFeedServer(t, http.StatusOK, body)

	f := NewFetcher(srv.URL, srv.Client(), logger.NewNop())
	doc, err := f.Fetch(context.Background(), "UCtest")
	require.NoError(t, err)

	assert.Equal(t, 1, *calls, "exactly one outbound request")
	assert.Equal(t, "UCtest", doc.ChannelID)
	assert.Equal(t, "Test Creator", doc.Author.Name)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, "abc123", doc.Entries[0].VideoID)
}

func TestFetcher_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantType   errors.ErrorType
		wantStatus int
		retryable  bool
	}{
		{"not found", http.StatusNotFound, "nope", errors.ErrorTypeFetch, 404, false},
		{"rate limited", http.StatusTooManyRequests, "", errors.ErrorTypeFetch, 429, true},
		{"server error", http.StatusInternalServerError, "", errors.ErrorTypeFetch, 500, true},
		{"html body", http.StatusOK, "<html><body>consent</body></html>", errors.ErrorTypeParse, 0, false},
		{"truncated xml", http.StatusOK, feedHeader, errors.ErrorTypeParse, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newFeedServer(t, tt.status, tt.body)
			f := NewFetcher(srv.URL, srv.Client(), logger.NewNop())

			_, err := f.Fetch(context.Background(), "UCtest")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
			assert.Equal(t, tt.wantStatus, errors.UpstreamStatus(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestFetcher_Fetch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := NewFetcher(url, &http.Client{Timeout: time.Second}, logger.NewNop())
	_, err := f.Fetch(context.Background(), "UCtest")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFetch))
	assert.Equal(t, 0, errors.UpstreamStatus(err))
	assert.True(t, IsRetryable(err))
}

func TestFetcher_Fetch_EmptyChannel(t *testing.T) {
	f := NewFetcher("", nil, logger.NewNop())
	_, err := f.Fetch(context.Background(), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFetcher_FeedURL(t *testing.T) {
	f := NewFetcher("", nil, logger.NewNop())
	assert.Equal(t, "https://www.youtube.com/feeds/videos.xml?channel_id=UCabc", f.FeedURL("UCabc"))
}

func TestParse(t *testing.T) {
	srv, _ := newFeedServer(t, http.StatusOK, feedXML("Test Creator",
		entryXML("abc123", "First", "2024-01-15T10:00:00+00:00", "2024-01-15T12:00:00+00:00"),
		entryXML("xyz789", "Second", "2024-01-14T10:00:00Z", ""),
		entryXML("abc123", "First again", "2024-01-15T10:00:00+00:00", ""),
	))
	doc, err := NewFetcher(srv.URL, srv.Client(), logger.NewNop()).Fetch(context.Background(), "UCtest")
	require.NoError(t, err)

	parsed, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, "Test Creator", parsed.ChannelName)
	require.Len(t, parsed.Entries, 2, "repeated video ids are collapsed")

	first := parsed.Entries[0]
	assert.Equal(t, "yt:video:abc123", first.EntryID)
	assert.Equal(t, "abc123", first.VideoID)
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", first.Link)
	assert.Equal(t, "https://i.ytimg.com/vi/abc123/hqdefault.jpg", first.ThumbnailURL)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), first.UpdatedAt)

	second := parsed.Entries[1]
	assert.Equal(t, "xyz789", second.VideoID)
	assert.Equal(t, second.PublishedAt, second.UpdatedAt, "missing updated falls back to published")
}

func TestParse_EmptyFeed(t *testing.T) {
	parsed, err := Parse(&Document{})
	require.NoError(t, err)
	assert.Empty(t, parsed.Entries)
	assert.Equal(t, UnknownChannelName, parsed.ChannelName)
}

func TestParse_InvalidEntries(t *testing.T) {
	link := []Link{{Rel: "alternate", Href: "https://www.youtube.com/watch?v=a"}}

	tests := []struct {
		name  string
		entry Entry
	}{
		{"missing id", Entry{Title: "t", Links: link, Published: "2024-01-15T10:00:00Z"}},
		{"missing title", Entry{ID: "yt:video:a", Links: link, Published: "2024-01-15T10:00:00Z"}},
		{"missing link", Entry{ID: "yt:video:a", Title: "t", Published: "2024-01-15T10:00:00Z"}},
		{"missing published", Entry{ID: "yt:video:a", Title: "t", Links: link}},
		{"bad published", Entry{ID: "yt:video:a", Title: "t", Links: link, Published: "yesterday"}},
		{"bad updated", Entry{ID: "yt:video:a", Title: "t", Links: link, Published: "2024-01-15T10:00:00Z", Updated: "soon"}},
		{"empty video id", Entry{ID: "yt:video:", Title: "t", Links: link, Published: "2024-01-15T10:00:00Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(&Document{Entries: []Entry{tt.entry}})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
		})
	}
}

func TestVideoIDFromEntryID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"yt:video:abc123", "abc123"},
		{"yt:video:-_dash_ID", "-_dash_ID"},
		{"tag:example.com:video:42", "42"},
		{"plainid", "plainid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VideoIDFromEntryID(tt.in), tt.in)
	}
}
