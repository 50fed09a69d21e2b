package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/logger"
	"habitHeroAPI/internal/schedule"
)

const (
	reminderTagDaily     = "daily"
	reminderTagDeadline  = "deadline:"
	deadlineAlertEarlier = 55 * time.Minute
	deadlineAlertLater   = 65 * time.Minute
)

// pendingTask is today's task of one member that is not completed yet.
type pendingTask struct {
	UserID         uuid.UUID
	ChatID         int64
	DailyReminder  bool
	ReminderTime   string
	DeadlineAlert  bool
	ChallengeID    uuid.UUID
	ChallengeTitle string
	TaskTitle      string
	StartDate      time.Time
	DayNumber      int
	Deadline       *string
}

type plannedReminder struct {
	UserID uuid.UUID
	ChatID int64
	Tag    string
	Text   string
}

// planReminders decides which messages are due at now. It does not know what
// was already sent; callers dedupe by (user, tag, day).
func planReminders(now time.Time, pending []pendingTask) []plannedReminder {
	clock := now.Format("15:04")
	byUser := map[uuid.UUID][]pendingTask{}
	var order []uuid.UUID
	var out []plannedReminder

	for _, p := range pending {
		start := time.Date(p.StartDate.Year(), p.StartDate.Month(), p.StartDate.Day(), 0, 0, 0, 0, now.Location())
		if !schedule.IsDueToday(start, p.DayNumber, now) {
			continue
		}
		if _, seen := byUser[p.UserID]; !seen {
			order = append(order, p.UserID)
		}
		byUser[p.UserID] = append(byUser[p.UserID], p)

		if p.DeadlineAlert && p.Deadline != nil {
			at, ok := schedule.DeadlineAt(*p.Deadline, now)
			if !ok {
				continue
			}
			left := at.Sub(now)
			if left >= deadlineAlertEarlier && left <= deadlineAlertLater {
				out = append(out, plannedReminder{
					UserID: p.UserID,
					ChatID: p.ChatID,
					Tag:    reminderTagDeadline + p.ChallengeID.String(),
					Text: fmt.Sprintf("⏰ About an hour left to complete <b>%s</b> in %s (deadline %s).",
						html.EscapeString(p.TaskTitle), html.EscapeString(p.ChallengeTitle), html.EscapeString(*p.Deadline)),
				})
			}
		}
	}

	for _, userID := range order {
		tasks := byUser[userID]
		first := tasks[0]
		if !first.DailyReminder || first.ReminderTime != clock {
			continue
		}
		out = append(out, plannedReminder{
			UserID: userID,
			ChatID: first.ChatID,
			Tag:    reminderTagDaily,
			Text:   dailyReminderText(tasks),
		})
	}
	return out
}

func dailyReminderText(tasks []pendingTask) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("• %s: %s", html.EscapeString(t.ChallengeTitle), html.EscapeString(t.TaskTitle)))
	}
	sort.Strings(lines)
	return "📅 Don't break your streak! Still open today:\n" + strings.Join(lines, "\n")
}

// ReminderService sends daily reminders and deadline alerts once a minute.
type ReminderService struct {
	db            database.DB
	notifications *NotificationService
	dispatcher    *NotificationDispatcher
	now           Clock

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewReminderService(db database.DB, notifications *NotificationService, dispatcher *NotificationDispatcher) *ReminderService {
	return &ReminderService{
		db:            db,
		notifications: notifications,
		dispatcher:    dispatcher,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

func (s *ReminderService) SetClock(now Clock) {
	s.now = now
}

func (s *ReminderService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
				start := time.Now()
				sent, err := s.RunOnce(ctx)
				cancel()
				if err != nil || sent > 0 {
					logger.LogJob("reminders", time.Since(start), err, "sent", sent)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *ReminderService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// RunOnce plans and queues every reminder due now and returns how many were queued.
func (s *ReminderService) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	pending, err := s.pendingTasks(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range planReminders(now, pending) {
		fresh, err := s.notifications.MarkSent(ctx, r.UserID, r.Tag, now)
		if err != nil {
			slog.Warn("Failed to record reminder", "user_id", r.UserID, "tag", r.Tag, "error", err)
			continue
		}
		if !fresh {
			continue
		}
		s.dispatcher.Dispatch(&DispatchJob{UserID: r.UserID, ChatID: r.ChatID, Text: r.Text})
		sent++
	}
	return sent, nil
}

func (s *ReminderService) pendingTasks(ctx context.Context, now time.Time) ([]pendingTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.chat_id,
		       COALESCE(ns.daily_reminder, TRUE), COALESCE(ns.reminder_time, '20:00'), COALESCE(ns.deadline_alert, TRUE),
		       c.id, c.title, t.title, c.start_date, t.day_number, c.deadline_time
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		JOIN challenges c ON c.group_id = m.group_id AND c.status = 'active'
		JOIN tasks t ON t.challenge_id = c.id
		LEFT JOIN task_completions tc ON tc.task_id = t.id AND tc.member_id = m.id
		LEFT JOIN notification_settings ns ON ns.user_id = u.id
		WHERE u.chat_id IS NOT NULL
		  AND COALESCE(ns.enabled, TRUE)
		  AND tc.id IS NULL
		  AND c.start_date + (t.day_number - 1) = $1::date`, dateString(now))
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	var out []pendingTask
	for rows.Next() {
		var p pendingTask
		if err := rows.Scan(&p.UserID, &p.ChatID, &p.DailyReminder, &p.ReminderTime, &p.DeadlineAlert,
			&p.ChallengeID, &p.ChallengeTitle, &p.TaskTitle, &p.StartDate, &p.DayNumber, &p.Deadline); err != nil {
			return nil, fmt.Errorf("scan pending task: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
