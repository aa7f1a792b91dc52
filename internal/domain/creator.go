package domain

import (
	"fmt"
	"strings"
	"time"
)

// Creator is a tracked YouTube channel
type Creator struct {
	ChannelID        string    `json:"channel_id"`
	Name             string    `json:"name"`
	ChannelURL       string    `json:"channel_url"`
	ThumbnailURL     string    `json:"thumbnail_url"`
	SubscribersCount int64     `json:"subscribers_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateCreatorRequest is the registration payload. Channel lookup happens
// client-side; the server stores what it is given.
type CreateCreatorRequest struct {
	ChannelID    string `json:"channel_id"`
	Name         string `json:"name"`
	ChannelURL   string `json:"channel_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Validate normalizes and checks the request
func (r *CreateCreatorRequest) Validate() error {
	r.ChannelID = strings.TrimSpace(r.ChannelID)
	r.Name = strings.TrimSpace(r.Name)

	if r.ChannelID == "" {
		return fmt.Errorf("channel_id is required")
	}
	if strings.ContainsAny(r.ChannelID, " /?&#") {
		return fmt.Errorf("channel_id contains invalid characters")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(r.Name) > 255 {
		return fmt.Errorf("name must not exceed 255 characters")
	}
	if r.ChannelURL == "" {
		r.ChannelURL = "https://www.youtube.com/channel/" + r.ChannelID
	}
	return nil
}

// ToCreator builds the stored representation
func (r *CreateCreatorRequest) ToCreator(now time.Time) *Creator {
	return &Creator{
		ChannelID:    r.ChannelID,
		Name:         r.Name,
		ChannelURL:   r.ChannelURL,
		ThumbnailURL: r.ThumbnailURL,
		CreatedAt:    now,
	}
}

// SubscriberUpdate is one refreshed subscriber count
type SubscriberUpdate struct {
	ChannelID        string `json:"channel_id"`
	SubscribersCount int64  `json:"subscribers_count"`
}

// SubscriberRefreshResult summarizes a subscriber count refresh
type SubscriberRefreshResult struct {
	Updated []SubscriberUpdate `json:"updated"`
	Errors  []CreatorError     `json:"errors,omitempty"`
}
