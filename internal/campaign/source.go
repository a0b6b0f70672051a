package campaign

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vendzz/internal/constants"
	"vendzz/internal/logger"
	"vendzz/pkg/metrics"
)

// Source is the read-only campaign store queried on cache misses.
type Source interface {
	ListActiveCampaigns(ctx context.Context, quizID string) ([]Campaign, error)
}

// StaticSource serves a fixed campaign set. It backs deployments without
// Postgres and tests.
type StaticSource map[string][]Campaign

func (s StaticSource) ListActiveCampaigns(ctx context.Context, quizID string) ([]Campaign, error) {
	return s[quizID], nil
}

// ConditionValidator rejects targeting conditions that cannot be evaluated.
type ConditionValidator interface {
	ValidateCondition(expression string) error
}

type PostgresSource struct {
	db         *sql.DB
	conditions ConditionValidator
	logger     logger.Logger
}

// NewPostgresSource reads campaigns from db. When conditions is non-nil,
// campaigns whose condition does not compile are skipped at load time.
func NewPostgresSource(db *sql.DB, conditions ConditionValidator, log logger.Logger) *PostgresSource {
	return &PostgresSource{db: db, conditions: conditions, logger: log}
}

var channelQueries = map[Channel]string{
	ChannelSMS: `
		SELECT id, quiz_id, user_id, status, '' AS trigger_type, trigger_delay_minutes,
		       message, '' AS subject, '' AS body, '' AS script, '' AS voice_id, COALESCE(condition, '')
		FROM sms_campaigns
		WHERE quiz_id = $1
	`,
	ChannelEmail: `
		SELECT id, quiz_id, user_id, status, COALESCE(trigger_type, ''), trigger_delay_minutes,
		       '' AS message, subject, body, '' AS script, '' AS voice_id, COALESCE(condition, '')
		FROM email_campaigns
		WHERE quiz_id = $1
	`,
	ChannelWhatsApp: `
		SELECT id, quiz_id, user_id, status, '' AS trigger_type, trigger_delay_minutes,
		       message, '' AS subject, '' AS body, '' AS script, '' AS voice_id, COALESCE(condition, '')
		FROM whatsapp_campaigns
		WHERE quiz_id = $1
	`,
	ChannelVoice: `
		SELECT id, quiz_id, user_id, status, '' AS trigger_type, trigger_delay_minutes,
		       '' AS message, '' AS subject, '' AS body, script, COALESCE(voice_id, ''), COALESCE(condition, '')
		FROM voice_campaigns
		WHERE quiz_id = $1
	`,
}

func (s *PostgresSource) ListActiveCampaigns(ctx context.Context, quizID string) ([]Campaign, error) {
	var campaigns []Campaign
	for _, channel := range Channels {
		records, err := s.listChannel(ctx, channel, quizID)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if !Eligible(r) {
				continue
			}
			c, err := toCampaign(r, s.conditions)
			if err != nil {
				s.logger.WarnwCtx(ctx, "Skipping malformed campaign",
					"campaign_id", r.ID,
					"error", err,
				)
				continue
			}
			campaigns = append(campaigns, c)
		}
	}
	return campaigns, nil
}

func (s *PostgresSource) listChannel(ctx context.Context, channel Channel, quizID string) ([]Record, error) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.IncDatabaseQuery(constants.ServiceName, "postgres", "list_"+string(channel)+"_campaigns", status)
		metrics.ObserveDatabaseQueryDuration(constants.ServiceName, "postgres", "list_"+string(channel)+"_campaigns", time.Since(start))
	}()

	rows, err := s.db.QueryContext(ctx, channelQueries[channel], quizID)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("failed to query %s campaigns: %w", channel, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r := Record{Channel: channel}
		var delay sql.NullInt64
		if err := rows.Scan(
			&r.ID,
			&r.QuizID,
			&r.UserID,
			&r.Status,
			&r.TriggerType,
			&delay,
			&r.Message,
			&r.Subject,
			&r.Body,
			&r.Script,
			&r.VoiceID,
			&r.Condition,
		); err != nil {
			status = "error"
			return nil, fmt.Errorf("failed to scan %s campaign: %w", channel, err)
		}
		if delay.Valid {
			minutes := int(delay.Int64)
			r.TriggerDelayMinutes = &minutes
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		status = "error"
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

func toCampaign(r Record, conditions ConditionValidator) (Campaign, error) {
	c, err := Normalize(r)
	if err != nil {
		return nil, err
	}
	if r.Condition != "" && conditions != nil {
		if err := conditions.ValidateCondition(r.Condition); err != nil {
			return nil, fmt.Errorf("campaign %s: %w", r.ID, err)
		}
	}
	return c, nil
}
