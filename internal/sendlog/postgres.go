package sendlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vendzz/internal/constants"
	"vendzz/pkg/metrics"
	"vendzz/pkg/models"
)

type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, send models.ScheduledSend) error {
	query := `
		INSERT INTO scheduled_sends (id, campaign_id, channel, recipient, message, subject, status, quiz_id, user_id, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (campaign_id, recipient) DO NOTHING
	`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		send.ID, send.CampaignID, send.Channel, send.Recipient,
		send.Message, send.Subject, string(send.Status),
		send.QuizID, send.UserID, send.ScheduledAt, send.CreatedAt,
	)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceName, "postgres", "insert_scheduled_send", time.Since(start))
	if err != nil {
		metrics.IncDatabaseQuery(constants.ServiceName, "postgres", "insert_scheduled_send", "error")
		return fmt.Errorf("failed to insert scheduled send: %w", err)
	}
	metrics.IncDatabaseQuery(constants.ServiceName, "postgres", "insert_scheduled_send", "success")
	return nil
}

func (r *PostgresRecorder) UpdateStatus(ctx context.Context, campaignID, recipient string, status models.SendStatus) error {
	query := `
		UPDATE scheduled_sends
		SET status = $3
		WHERE campaign_id = $1 AND recipient = $2
	`

	if _, err := r.db.ExecContext(ctx, query, campaignID, recipient, string(status)); err != nil {
		metrics.IncDatabaseQuery(constants.ServiceName, "postgres", "update_send_status", "error")
		return fmt.Errorf("failed to update send status: %w", err)
	}
	metrics.IncDatabaseQuery(constants.ServiceName, "postgres", "update_send_status", "success")
	return nil
}

func (r *PostgresRecorder) Backend() string {
	return "postgres"
}

// Get loads a single send, used by tests and the API.
func (r *PostgresRecorder) Get(ctx context.Context, campaignID, recipient string) (*models.ScheduledSend, error) {
	query := `
		SELECT id, campaign_id, channel, recipient, message, subject, status, quiz_id, user_id, scheduled_at, created_at
		FROM scheduled_sends
		WHERE campaign_id = $1 AND recipient = $2
	`

	var s models.ScheduledSend
	var status string
	err := r.db.QueryRowContext(ctx, query, campaignID, recipient).Scan(
		&s.ID, &s.CampaignID, &s.Channel, &s.Recipient, &s.Message, &s.Subject,
		&status, &s.QuizID, &s.UserID, &s.ScheduledAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled send: %w", err)
	}
	s.Status = models.SendStatus(status)
	return &s, nil
}
