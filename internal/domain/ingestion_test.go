package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIngestionSummary_Status(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		results    []CreatorResult
		wantStatus RunStatus
		wantVideos int
		wantErrors int
	}{
		{
			name:       "no creators",
			wantStatus: RunAllSucceeded,
		},
		{
			name: "all succeeded",
			results: []CreatorResult{
				{ChannelID: "UC1", VideosProcessed: 15},
				{ChannelID: "UC2", VideosProcessed: 3},
			},
			wantStatus: RunAllSucceeded,
			wantVideos: 18,
		},
		{
			name: "one failed",
			results: []CreatorResult{
				{ChannelID: "UC1", VideosProcessed: 15},
				{ChannelID: "UC2", Err: &CreatorError{ChannelID: "UC2", Error: "fetch: 404"}},
			},
			wantStatus: RunPartialFailure,
			wantVideos: 15,
			wantErrors: 1,
		},
		{
			name: "every creator failed is still partial",
			results: []CreatorResult{
				{ChannelID: "UC1", Err: &CreatorError{ChannelID: "UC1", Error: "boom"}},
			},
			wantStatus: RunPartialFailure,
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewIngestionSummary("", start)
			for _, r := range tt.results {
				s.Add(r)
			}
			s.Complete(start.Add(2 * time.Second))

			assert.Equal(t, tt.wantStatus, s.Status)
			assert.Equal(t, tt.wantVideos, s.TotalVideosProcessed)
			assert.Len(t, s.Errors, tt.wantErrors)
			assert.Equal(t, len(tt.results), s.CreatorsAttempted)
			assert.Equal(t, 2*time.Second, s.Elapsed)
		})
	}
}

func TestIngestionSummary_Fail(t *testing.T) {
	start := time.Now()
	s := NewIngestionSummary("", start)
	s.Fail("listing: store unreachable", start.Add(time.Second))

	assert.Equal(t, RunTotalFailure, s.Status)
	assert.Equal(t, 0, s.CreatorsAttempted)
	assert.NotEmpty(t, s.RunID.String())
}

func TestCreateCreatorRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateCreatorRequest
		wantErr bool
		wantURL string
	}{
		{"valid", CreateCreatorRequest{ChannelID: " UCabc ", Name: "Creator"}, false, "https://www.youtube.com/channel/UCabc"},
		{"keeps url", CreateCreatorRequest{ChannelID: "UCabc", Name: "Creator", ChannelURL: "https://youtube.com/@c"}, false, "https://youtube.com/@c"},
		{"missing id", CreateCreatorRequest{Name: "Creator"}, true, ""},
		{"bad id", CreateCreatorRequest{ChannelID: "UC abc", Name: "Creator"}, true, ""},
		{"missing name", CreateCreatorRequest{ChannelID: "UCabc"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantURL, tt.req.ChannelURL)
		})
	}
}

func TestVideoQuery_Normalize(t *testing.T) {
	q := VideoQuery{}
	q.Normalize()
	assert.Equal(t, DefaultVideoLimit, q.Limit)

	q = VideoQuery{Limit: 1000}
	q.Normalize()
	assert.Equal(t, MaxVideoLimit, q.Limit)
}
