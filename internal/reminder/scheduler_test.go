package reminder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// memStore is an in-memory Store for scheduler tests
type memStore struct {
	tasks    []types.Task
	settings map[int64]*types.UserSettings
}

func (m *memStore) ListTasks() ([]types.Task, error) {
	return append([]types.Task(nil), m.tasks...), nil
}

func (m *memStore) DeleteTask(id string) error {
	for i, t := range m.tasks {
		if t.ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) GetSettings(userID int64) (*types.UserSettings, error) {
	if s, ok := m.settings[userID]; ok {
		return s, nil
	}
	return &types.UserSettings{UserID: userID, NotifyEnabled: true}, nil
}

// mockTransport records sent messages
type mockTransport struct {
	sent []sentMessage
	err  error
}

type sentMessage struct {
	chatID  int64
	text    string
	replyTo int
}

func (m *mockTransport) SendMessage(_ context.Context, chatID int64, text string, replyTo int) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{chatID, text, replyTo})
	return nil
}

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func newTestScheduler(store *memStore, transport *mockTransport) *Scheduler {
	s := New(store, transport, time.Minute)
	s.now = func() time.Time { return testNow }
	return s
}

func task(id string, userID int64, due string) types.Task {
	return types.Task{
		ID:        id,
		UserID:    userID,
		Title:     "water plants",
		DueTime:   due,
		ChatID:    42,
		MessageID: 7,
	}
}

// TestUnparsableDueTimeDeletesWithoutSending covers poison-row avoidance.
func TestUnparsableDueTimeDeletesWithoutSending(t *testing.T) {
	store := &memStore{tasks: []types.Task{task("t1", 1, "next Tuesday-ish")}}
	transport := &mockTransport{}
	s := newTestScheduler(store, transport)

	s.checkDueTasks()

	if len(store.tasks) != 0 {
		t.Error("unparsable task should be deleted")
	}
	if len(transport.sent) != 0 {
		t.Errorf("transport called %d times, want 0", len(transport.sent))
	}
}

// TestDisabledNotificationsDeleteSilently verifies the preference check.
func TestDisabledNotificationsDeleteSilently(t *testing.T) {
	store := &memStore{
		tasks:    []types.Task{task("t1", 1, "2026-08-29T11:00:00Z")},
		settings: map[int64]*types.UserSettings{1: {UserID: 1, NotifyEnabled: false}},
	}
	transport := &mockTransport{}
	s := newTestScheduler(store, transport)

	s.checkDueTasks()

	if len(store.tasks) != 0 {
		t.Error("due task with notifications disabled should be deleted")
	}
	if len(transport.sent) != 0 {
		t.Errorf("transport called %d times, want 0", len(transport.sent))
	}
}

// TestDueTaskSendsExactlyOnceThenDeletes verifies the happy path: one
// send, threaded to the originating message, then deletion.
func TestDueTaskSendsExactlyOnceThenDeletes(t *testing.T) {
	store := &memStore{tasks: []types.Task{task("t1", 1, "2026-08-29T11:00:00Z")}}
	transport := &mockTransport{}
	s := newTestScheduler(store, transport)

	s.checkDueTasks()

	if len(transport.sent) != 1 {
		t.Fatalf("transport called %d times, want exactly 1", len(transport.sent))
	}
	sent := transport.sent[0]
	if sent.chatID != 42 {
		t.Errorf("chat id = %d, want 42", sent.chatID)
	}
	if sent.replyTo != 7 {
		t.Errorf("reply id = %d, want 7", sent.replyTo)
	}
	if !strings.Contains(sent.text, "water plants") {
		t.Errorf("reminder text = %q", sent.text)
	}
	if len(store.tasks) != 0 {
		t.Error("task should be deleted after the reminder fires")
	}
}

// TestFutureTaskIsLeftAlone verifies not-yet-due tasks survive the cycle.
func TestFutureTaskIsLeftAlone(t *testing.T) {
	store := &memStore{tasks: []types.Task{task("t1", 1, "2026-08-29T13:00:00Z")}}
	transport := &mockTransport{}
	s := newTestScheduler(store, transport)

	s.checkDueTasks()

	if len(store.tasks) != 1 {
		t.Error("future task should be left untouched")
	}
	if len(transport.sent) != 0 {
		t.Errorf("transport called %d times, want 0", len(transport.sent))
	}
}

// TestSendFailureKeepsTaskForRetry verifies a transport failure leaves
// the task for the next cycle instead of losing the reminder.
func TestSendFailureKeepsTaskForRetry(t *testing.T) {
	store := &memStore{tasks: []types.Task{task("t1", 1, "2026-08-29T11:00:00Z")}}
	transport := &mockTransport{err: errors.New("telegram is down")}
	s := newTestScheduler(store, transport)

	s.checkDueTasks()
	if len(store.tasks) != 1 {
		t.Fatal("task should survive a send failure")
	}

	// Transport recovers; the next cycle delivers and deletes.
	transport.err = nil
	s.checkDueTasks()
	if len(transport.sent) != 1 {
		t.Errorf("transport called %d times after recovery, want 1", len(transport.sent))
	}
	if len(store.tasks) != 0 {
		t.Error("task should be deleted after successful retry")
	}
}

// TestOneBadTaskDoesNotAbortScan verifies per-task isolation.
func TestOneBadTaskDoesNotAbortScan(t *testing.T) {
	store := &memStore{tasks: []types.Task{
		task("bad", 1, "garbage"),
		task("good", 1, "2026-08-29T11:00:00Z"),
	}}
	transport := &mockTransport{}
	s := newTestScheduler(store, transport)

	s.checkDueTasks()

	if len(transport.sent) != 1 {
		t.Errorf("good task not processed after bad one (sent=%d)", len(transport.sent))
	}
	if len(store.tasks) != 0 {
		t.Errorf("tasks remaining = %d, want 0", len(store.tasks))
	}
}

// TestMarkupCharactersAreEscaped verifies user content cannot break the
// reminder formatting.
func TestMarkupCharactersAreEscaped(t *testing.T) {
	tk := task("t1", 1, "2026-08-29T11:00:00Z")
	tk.Title = "fix *bold* [link]"
	store := &memStore{tasks: []types.Task{tk}}
	transport := &mockTransport{}
	s := newTestScheduler(store, transport)

	s.checkDueTasks()

	if len(transport.sent) != 1 {
		t.Fatal("expected one send")
	}
	if !strings.Contains(transport.sent[0].text, `\*bold\*`) {
		t.Errorf("markup not escaped: %q", transport.sent[0].text)
	}
}
