package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/logger"
)

// Subjects
const (
	SubjectRunCompleted = "ingest.completed"
	SubjectRunRequested = "ingest.request"
)

// Conn is the subset of *nats.Conn the service uses
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Connect dials NATS with reconnects enabled
func Connect(url string, log *logger.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("creatorfeed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// RunCompletedEvent is published after every ingestion run
type RunCompletedEvent struct {
	RunID                string                `json:"runId"`
	Status               domain.RunStatus      `json:"status"`
	TargetChannelID      string                `json:"targetChannelId,omitempty"`
	CreatorsAttempted    int                   `json:"creatorsAttempted"`
	TotalVideosProcessed int                   `json:"totalVideosProcessed"`
	Errors               []domain.CreatorError `json:"errors,omitempty"`
	Failure              string                `json:"failure,omitempty"`
	FinishedAt           time.Time             `json:"finishedAt"`
	ElapsedSeconds       float64               `json:"elapsedSeconds"`
}

// Publisher announces finished runs on NATS
type Publisher struct {
	conn    Conn
	subject string
	logger  *logger.Logger
}

// NewPublisher creates a publisher. An empty subject uses SubjectRunCompleted.
func NewPublisher(conn Conn, subject string, log *logger.Logger) *Publisher {
	if subject == "" {
		subject = SubjectRunCompleted
	}
	return &Publisher{conn: conn, subject: subject, logger: log.Named("events")}
}

// PublishRunCompleted publishes the summary of a finished run
func (p *Publisher) PublishRunCompleted(_ context.Context, summary *domain.IngestionSummary) error {
	event := RunCompletedEvent{
		RunID:                summary.RunID.String(),
		Status:               summary.Status,
		TargetChannelID:      summary.TargetChannelID,
		CreatorsAttempted:    summary.CreatorsAttempted,
		TotalVideosProcessed: summary.TotalVideosProcessed,
		Errors:               summary.Errors,
		Failure:              summary.Failure,
		FinishedAt:           summary.FinishedAt,
		ElapsedSeconds:       summary.Elapsed.Seconds(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"subject": p.subject,
		"run_id":  event.RunID,
	}).Debug("Published run event")
	return nil
}

// SubscribeRunRequests calls trigger for every message on subject. The
// payload is a channel id for a targeted run, or empty for a full run.
func SubscribeRunRequests(conn Conn, subject string, trigger func(channelID string), log *logger.Logger) (*nats.Subscription, error) {
	if subject == "" {
		subject = SubjectRunRequested
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		channelID := strings.TrimSpace(string(msg.Data))
		log.WithFields(map[string]interface{}{
			"subject":    subject,
			"channel_id": channelID,
		}).Info("Run requested over NATS")
		trigger(channelID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}
