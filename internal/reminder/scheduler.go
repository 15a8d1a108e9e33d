package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/logging"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/telegram"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// Store is the persistence surface the scheduler needs
type Store interface {
	ListTasks() ([]types.Task, error)
	DeleteTask(id string) error
	GetSettings(userID int64) (*types.UserSettings, error)
}

// Transport delivers the reminder message, threaded as a reply to the
// message that created the task.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int) error
}

// Scheduler is a long-lived polling loop that fires reminders for due
// tasks and prunes poison rows.
type Scheduler struct {
	store     Store
	transport Transport
	interval  time.Duration
	stopChan  chan struct{}

	// now is swapped out in tests
	now func() time.Time
}

// New creates a scheduler polling at the given interval
func New(store Store, transport Transport, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:     store,
		transport: transport,
		interval:  interval,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins the polling loop in its own goroutine
func (s *Scheduler) Start() {
	logging.Info("reminder", "scheduler started (interval: %s)", s.interval)
	go func() {
		s.checkDueTasks()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.checkDueTasks()
			case <-s.stopChan:
				logging.Info("reminder", "scheduler stopped")
				return
			}
		}
	}()
}

// Stop halts the loop
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// checkDueTasks runs one scan cycle. Per-task failures are contained so
// one bad row never aborts the rest of the scan.
func (s *Scheduler) checkDueTasks() {
	tasks, err := s.store.ListTasks()
	if err != nil {
		logging.Warn("reminder", "failed to load tasks: %v", err)
		return
	}

	now := s.now().UTC()
	for i := range tasks {
		s.processTask(&tasks[i], now)
	}
}

func (s *Scheduler) processTask(task *types.Task, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("reminder", "task %s: panic: %v", task.ID, r)
		}
	}()

	due, err := time.Parse(time.RFC3339, task.DueTime)
	if err != nil {
		// Poison row: a due time that never parses would error forever.
		logging.Warn("reminder", "task %s: unparsable due time %q, deleting", task.ID, task.DueTime)
		if err := s.store.DeleteTask(task.ID); err != nil {
			logging.Warn("reminder", "task %s: delete failed: %v", task.ID, err)
		}
		return
	}

	if due.After(now) {
		return
	}

	settings, err := s.store.GetSettings(task.UserID)
	if err != nil {
		logging.Warn("reminder", "task %s: settings lookup failed: %v", task.ID, err)
		return
	}

	if !settings.NotifyEnabled {
		logging.Debug("reminder", "task %s: notifications disabled, deleting silently", task.ID)
		if err := s.store.DeleteTask(task.ID); err != nil {
			logging.Warn("reminder", "task %s: delete failed: %v", task.ID, err)
		}
		return
	}

	text := reminderText(task)
	// Send failures keep the task for the next cycle; they are usually
	// transient transport errors.
	if err := s.transport.SendMessage(context.Background(), task.ChatID, text, task.MessageID); err != nil {
		logging.Warn("reminder", "task %s: send failed, will retry next cycle: %v", task.ID, err)
		return
	}

	logging.Info("reminder", "task %s: reminder sent to chat %d", task.ID, task.ChatID)
	if err := s.store.DeleteTask(task.ID); err != nil {
		logging.Warn("reminder", "task %s: delete after send failed: %v", task.ID, err)
	}
}

// reminderText renders the reminder with markup-significant characters
// escaped so user content cannot break the message formatting.
func reminderText(task *types.Task) string {
	text := fmt.Sprintf("⏰ Reminder: %s", telegram.EscapeMarkdown(task.Title))
	if task.Description != "" {
		text += "\n" + telegram.EscapeMarkdown(task.Description)
	}
	return text
}
