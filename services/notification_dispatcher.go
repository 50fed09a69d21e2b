package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"habitHeroAPI/internal/telegram"
)

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "habithero_notifications_total",
		Help: "Telegram notifications by outcome",
	},
	[]string{"status"},
)

// NotificationDispatcher delivers Telegram messages from a bounded queue.
type NotificationDispatcher struct {
	messenger telegram.Messenger
	workers   int
	jobQueue  chan *DispatchJob
	stopChan  chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

type DispatchJob struct {
	UserID uuid.UUID
	ChatID int64
	Text   string
	Markup any
}

func NewNotificationDispatcher(messenger telegram.Messenger) *NotificationDispatcher {
	dispatcher := &NotificationDispatcher{
		messenger: messenger,
		workers:   5,
		jobQueue:  make(chan *DispatchJob, 100),
		stopChan:  make(chan struct{}),
	}

	dispatcher.startWorkers()
	return dispatcher
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.messenger.SendMessage(ctx, job.ChatID, job.Text, job.Markup); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		slog.Warn("Telegram notification failed", "user_id", job.UserID, "error", err)
		return
	}
	notificationsTotal.WithLabelValues("sent").Inc()
}

// Dispatch queues a job. A full queue drops the job after five seconds.
func (d *NotificationDispatcher) Dispatch(job *DispatchJob) {
	select {
	case d.jobQueue <- job:
	case <-time.After(5 * time.Second):
		notificationsTotal.WithLabelValues("dropped").Inc()
		slog.Warn("Notification queue full, dropping message", "user_id", job.UserID)
	}
}

func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		slog.Info("Stopping notification dispatcher")
		close(d.stopChan)
		d.wg.Wait()
		slog.Info("Notification dispatcher stopped")
	})
}
