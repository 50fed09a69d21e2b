package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"habitHeroAPI/internal/leaderboard"
	"habitHeroAPI/internal/logger"
	"habitHeroAPI/internal/queue"
)

// CompletionEvent describes a task completion after it has been committed.
type CompletionEvent struct {
	GroupID              uuid.UUID
	ChallengeID          uuid.UUID
	TaskID               uuid.UUID
	MemberID             uuid.UUID
	UserID               uuid.UUID
	DisplayName          string
	TaskTitle            string
	ChallengeTitle       string
	ChallengeDescription string
	DayNumber            int
	CompletedCount       int
	TotalTasks           int
	CompletedAt          time.Time
}

func (e CompletionEvent) ProgressPercent() int {
	return leaderboard.ProgressPercent(e.CompletedCount, e.TotalTasks)
}

// CompletionEffect is one side effect of a completion. Effects are independent:
// none sees another's result and a failure in one never affects the rest or
// the completion itself.
type CompletionEffect interface {
	Name() string
	Apply(ctx context.Context, ev CompletionEvent) error
}

type EffectRunner struct {
	effects []CompletionEffect
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewEffectRunner(effects ...CompletionEffect) *EffectRunner {
	return &EffectRunner{effects: effects, timeout: 15 * time.Second}
}

// Run starts every effect in its own goroutine and returns immediately.
func (r *EffectRunner) Run(ev CompletionEvent) {
	if r == nil {
		return
	}
	for _, eff := range r.effects {
		r.wg.Add(1)
		go r.apply(eff, ev)
	}
}

func (r *EffectRunner) apply(eff CompletionEffect, ev CompletionEvent) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			logger.LogError("Completion effect panicked", fmt.Errorf("%v", rec), "effect", eff.Name())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	err := eff.Apply(ctx, ev)
	logger.LogJob("effect:"+eff.Name(), time.Since(start), err, "task_id", ev.TaskID)
}

// Wait blocks until every started effect has returned.
func (r *EffectRunner) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

var taskCompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "habithero_task_completions_total",
	Help: "Total number of task completions",
})

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(taskCompletionsTotal, notificationsTotal)
}

// CelebrationEffect counts the completion and logs it.
type CelebrationEffect struct{}

func (CelebrationEffect) Name() string { return "celebration" }

func (CelebrationEffect) Apply(_ context.Context, ev CompletionEvent) error {
	taskCompletionsTotal.Inc()
	if ev.CompletedCount == ev.TotalTasks && ev.TotalTasks > 0 {
		slog.Info("Challenge fully completed", "member_id", ev.MemberID, "challenge_id", ev.ChallengeID)
	}
	return nil
}

type motivator interface {
	Message(ctx context.Context, title, description string, percent int) string
}

// MotivationEffect sends the completer a short encouragement over Telegram.
type MotivationEffect struct {
	Motivation    motivator
	Notifications *NotificationService
	Dispatcher    *NotificationDispatcher
}

func (e *MotivationEffect) Name() string { return "motivation" }

func (e *MotivationEffect) Apply(ctx context.Context, ev CompletionEvent) error {
	recipient, ok, err := e.Notifications.Recipient(ctx, ev.UserID)
	if err != nil || !ok {
		return err
	}
	msg := e.Motivation.Message(ctx, ev.ChallengeTitle, ev.ChallengeDescription, ev.ProgressPercent())
	e.Dispatcher.Dispatch(&DispatchJob{
		UserID: recipient.UserID,
		ChatID: recipient.ChatID,
		Text:   "🎉 " + html.EscapeString(msg),
	})
	return nil
}

// GroupNotifyEffect tells every other member about the completion.
type GroupNotifyEffect struct {
	Notifications *NotificationService
	Dispatcher    *NotificationDispatcher
}

func (e *GroupNotifyEffect) Name() string { return "group_notify" }

func CompletionNotice(displayName, taskTitle, challengeTitle string) string {
	return fmt.Sprintf("🔔 %s completed %q in %q!", displayName, taskTitle, challengeTitle)
}

func (e *GroupNotifyEffect) Apply(ctx context.Context, ev CompletionEvent) error {
	recipients, err := e.Notifications.GroupRecipients(ctx, ev.GroupID, ev.UserID)
	if err != nil {
		return err
	}
	text := html.EscapeString(CompletionNotice(ev.DisplayName, ev.TaskTitle, ev.ChallengeTitle))
	for _, r := range recipients {
		e.Dispatcher.Dispatch(&DispatchJob{UserID: r.UserID, ChatID: r.ChatID, Text: text})
	}
	return nil
}

type eventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// PublishEffect forwards the completion to the activity stream.
type PublishEffect struct {
	Producer eventPublisher
}

func (e *PublishEffect) Name() string { return "publish" }

func (e *PublishEffect) Apply(ctx context.Context, ev CompletionEvent) error {
	return e.Producer.Publish(ctx, queue.Event{
		Type:       "task_completed",
		GroupID:    ev.GroupID.String(),
		OccurredAt: ev.CompletedAt,
		Payload: map[string]any{
			"challengeId": ev.ChallengeID,
			"taskId":      ev.TaskID,
			"memberId":    ev.MemberID,
			"dayNumber":   ev.DayNumber,
			"progress":    ev.ProgressPercent(),
		},
	})
}
