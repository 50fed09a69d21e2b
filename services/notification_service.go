package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/types/notification"
)

type NotificationService struct {
	db database.DB
}

func NewNotificationService(db database.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Recipient is a user reachable over Telegram.
type Recipient struct {
	UserID uuid.UUID
	ChatID int64
}

// GetSettings returns the stored settings, or the defaults when none were saved.
func (s *NotificationService) GetSettings(ctx context.Context, userID uuid.UUID) (*notification.Settings, error) {
	st := &notification.Settings{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT enabled, daily_reminder, reminder_time, deadline_alert
		FROM notification_settings WHERE user_id = $1`, userID).
		Scan(&st.Enabled, &st.DailyReminder, &st.ReminderTime, &st.DeadlineAlert)
	if errors.Is(err, pgx.ErrNoRows) {
		return notification.DefaultSettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification settings: %w", err)
	}
	return st, nil
}

func (s *NotificationService) UpdateSettings(ctx context.Context, userID uuid.UUID, req *notification.UpdateSettingsRequest) (*notification.Settings, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_settings (user_id, enabled, daily_reminder, reminder_time, deadline_alert)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    daily_reminder = EXCLUDED.daily_reminder,
		    reminder_time = EXCLUDED.reminder_time,
		    deadline_alert = EXCLUDED.deadline_alert,
		    updated_at = NOW()`,
		userID, req.Enabled, req.DailyReminder, req.ReminderTime, req.DeadlineAlert)
	if err != nil {
		return nil, fmt.Errorf("update notification settings: %w", err)
	}
	return &notification.Settings{
		UserID:        userID,
		Enabled:       req.Enabled,
		DailyReminder: req.DailyReminder,
		ReminderTime:  req.ReminderTime,
		DeadlineAlert: req.DeadlineAlert,
	}, nil
}

// Recipient returns the user's chat when they have one and have not switched notifications off.
func (s *NotificationService) Recipient(ctx context.Context, userID uuid.UUID) (Recipient, bool, error) {
	r := Recipient{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT u.chat_id FROM users u
		LEFT JOIN notification_settings ns ON ns.user_id = u.id
		WHERE u.id = $1 AND u.chat_id IS NOT NULL AND COALESCE(ns.enabled, TRUE)`, userID).Scan(&r.ChatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, fmt.Errorf("load recipient: %w", err)
	}
	return r, true, nil
}

// GroupRecipients lists reachable members of a group other than exclude.
func (s *NotificationService) GroupRecipients(ctx context.Context, groupID, exclude uuid.UUID) ([]Recipient, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.chat_id
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN notification_settings ns ON ns.user_id = u.id
		WHERE m.group_id = $1 AND m.user_id <> $2
		  AND u.chat_id IS NOT NULL AND COALESCE(ns.enabled, TRUE)`, groupID, exclude)
	if err != nil {
		return nil, fmt.Errorf("list group recipients: %w", err)
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.UserID, &r.ChatID); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkSent records tag as delivered to userID on day. It reports false when
// the same tag was already recorded that day.
func (s *NotificationService) MarkSent(ctx context.Context, userID uuid.UUID, tag string, day time.Time) (bool, error) {
	res, err := s.db.Exec(ctx, `
		INSERT INTO notification_history (user_id, tag, sent_on) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`, userID, tag, dateString(day))
	if err != nil {
		return false, fmt.Errorf("record notification: %w", err)
	}
	return res.RowsAffected() == 1, nil
}
