package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/platform"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// mockDirectory serves canned recipient sets
type mockDirectory struct {
	resolved []types.Recipient
	enabled  []types.Recipient
}

func (m *mockDirectory) Resolve(int64, []string) ([]types.Recipient, error) {
	return m.resolved, nil
}

func (m *mockDirectory) EnabledFor(int64) ([]types.Recipient, error) {
	return m.enabled, nil
}

// mockStore records persisted tasks
type mockStore struct {
	tasks []*types.Task
	err   error
}

func (m *mockStore) CreateTask(task *types.Task) error {
	if m.err != nil {
		return m.err
	}
	task.ID = "task-1"
	m.tasks = append(m.tasks, task)
	return nil
}

// mockConnector fails or succeeds per-call via func fields
type mockConnector struct {
	createFunc  func() (string, error)
	attachFunc  func() error
	attachCalls int
	createCalls int
}

func (m *mockConnector) CreateTask(context.Context, platform.TaskData) (string, error) {
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc()
	}
	return "ext-1", nil
}

func (m *mockConnector) AttachFile(context.Context, string, []byte, string) error {
	m.attachCalls++
	if m.attachFunc != nil {
		return m.attachFunc()
	}
	return nil
}

func (m *mockConnector) TaskURL(externalID string) string {
	return "https://example.com/" + externalID
}

func recipient(id, name string, personal bool) types.Recipient {
	return types.Recipient{
		ID:         id,
		UserID:     1,
		Name:       name,
		Platform:   types.PlatformTodoist,
		IsPersonal: personal,
		Enabled:    true,
	}
}

// newTestDispatcher wires a dispatcher whose connectors come from the
// given map instead of real platform clients.
func newTestDispatcher(dir *mockDirectory, store *mockStore, conns map[string]*mockConnector) *Dispatcher {
	d := New(dir, store, platform.RetryConfig{MaxRetries: 1, BackoffFactor: 2.0})
	d.connect = func(r *types.Recipient) (platform.Connector, error) {
		c, ok := conns[r.ID]
		if !ok {
			return nil, errors.New("no connector for " + r.ID)
		}
		return c, nil
	}
	return d
}

// TestPartialFailureStillSucceeds verifies one permanently failing
// recipient neither blocks the others nor fails the overall dispatch.
func TestPartialFailureStillSucceeds(t *testing.T) {
	dir := &mockDirectory{resolved: []types.Recipient{
		recipient("a", "Work Todoist", true),
		recipient("b", "Home Trello", true),
	}}
	store := &mockStore{}
	bad := &mockConnector{createFunc: func() (string, error) {
		return "", &platform.Error{Kind: platform.KindAuthFailure, Platform: "todoist", Op: "create task", Err: errors.New("401")}
	}}
	good := &mockConnector{}
	d := newTestDispatcher(dir, store, map[string]*mockConnector{"a": bad, "b": good})

	res, err := d.CreateTask(context.Background(), Request{
		UserID: 1, Title: "buy milk", DueTime: "2026-09-01T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Success {
		t.Error("expected success=true when at least one recipient succeeded")
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(res.Outcomes))
	}
	if !strings.Contains(res.Feedback, "Home Trello: https://example.com/ext-1") {
		t.Errorf("feedback missing success line: %q", res.Feedback)
	}
	if !strings.Contains(res.Feedback, "failed: Work Todoist") {
		t.Errorf("feedback missing failure line: %q", res.Feedback)
	}
}

// TestPersistBeforeDispatch verifies the task row exists even when every
// platform call fails.
func TestPersistBeforeDispatch(t *testing.T) {
	dir := &mockDirectory{resolved: []types.Recipient{recipient("a", "A", true)}}
	store := &mockStore{}
	bad := &mockConnector{createFunc: func() (string, error) {
		return "", &platform.Error{Kind: platform.KindServerFailure, Platform: "todoist", Op: "create task", Err: errors.New("503")}
	}}
	d := newTestDispatcher(dir, store, map[string]*mockConnector{"a": bad})

	res, err := d.CreateTask(context.Background(), Request{UserID: 1, Title: "t", DueTime: "2026-09-01T09:00:00Z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Error("expected success=false when all recipients failed")
	}
	if len(store.tasks) != 1 {
		t.Fatalf("task rows = %d, want 1 (persist-first)", len(store.tasks))
	}
	if res.TaskID != "task-1" {
		t.Errorf("TaskID = %q, want task-1", res.TaskID)
	}
}

// TestPersistenceFailureAbortsDispatch verifies no platform calls happen
// when the local task row cannot be saved.
func TestPersistenceFailureAbortsDispatch(t *testing.T) {
	dir := &mockDirectory{resolved: []types.Recipient{recipient("a", "A", true)}}
	store := &mockStore{err: errors.New("disk full")}
	conn := &mockConnector{}
	d := newTestDispatcher(dir, store, map[string]*mockConnector{"a": conn})

	_, err := d.CreateTask(context.Background(), Request{UserID: 1, Title: "t", DueTime: "2026-09-01T09:00:00Z"})
	if err == nil {
		t.Fatal("expected persistence failure to be fatal")
	}
	if conn.createCalls != 0 {
		t.Errorf("connector called %d times despite persistence failure", conn.createCalls)
	}
}

// TestNoDefaultRecipientsIsDistinguished verifies the empty-defaults case
// is not a generic error and, with opt-in, still creates a task row.
func TestNoDefaultRecipientsIsDistinguished(t *testing.T) {
	enabled := []types.Recipient{recipient("c", "Shared Board", false)}
	dir := &mockDirectory{resolved: nil, enabled: enabled}
	store := &mockStore{}
	d := newTestDispatcher(dir, store, nil)

	// Without opt-in: no task row, distinguished outcome.
	res, err := d.CreateTask(context.Background(), Request{UserID: 1, Title: "t", DueTime: "2026-09-01T09:00:00Z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NoDefaultRecipients {
		t.Error("expected NoDefaultRecipients outcome")
	}
	if len(store.tasks) != 0 {
		t.Errorf("task rows = %d, want 0 without opt-in", len(store.tasks))
	}

	// With opt-in: task row created, zero outcomes, add-buttons offered.
	res, err = d.CreateTask(context.Background(), Request{
		UserID: 1, Title: "t", DueTime: "2026-09-01T09:00:00Z",
		CreateWithoutRecipients: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NoDefaultRecipients {
		t.Error("expected NoDefaultRecipients outcome with opt-in too")
	}
	if len(store.tasks) != 1 {
		t.Fatalf("task rows = %d, want 1 with opt-in", len(store.tasks))
	}
	if len(res.Outcomes) != 0 {
		t.Errorf("outcomes = %d, want 0", len(res.Outcomes))
	}
	foundAdd := false
	for _, a := range res.Actions {
		if a.Kind == types.ActionAddRecipient && a.RecipientID == "c" {
			foundAdd = true
		}
	}
	if !foundAdd {
		t.Errorf("expected an add action for the unused recipient, got %+v", res.Actions)
	}
}

// TestExplicitRecipientsAllDropped verifies explicitly selected but
// unavailable recipients yield a plain failure, not NoDefaultRecipients.
func TestExplicitRecipientsAllDropped(t *testing.T) {
	dir := &mockDirectory{resolved: nil}
	store := &mockStore{}
	d := newTestDispatcher(dir, store, nil)

	res, err := d.CreateTask(context.Background(), Request{
		UserID: 1, Title: "t", DueTime: "2026-09-01T09:00:00Z",
		ExplicitRecipientIDs: []string{"gone"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NoDefaultRecipients {
		t.Error("explicit selection must not report NoDefaultRecipients")
	}
	if res.Success {
		t.Error("expected success=false")
	}
	if len(store.tasks) != 0 {
		t.Errorf("task rows = %d, want 0", len(store.tasks))
	}
}

// TestAttachmentFailureIsNotFatal verifies a failed screenshot upload
// leaves the recipient outcome successful.
func TestAttachmentFailureIsNotFatal(t *testing.T) {
	dir := &mockDirectory{resolved: []types.Recipient{recipient("a", "A", true)}}
	store := &mockStore{}
	conn := &mockConnector{attachFunc: func() error { return errors.New("upload refused") }}
	d := newTestDispatcher(dir, store, map[string]*mockConnector{"a": conn})

	res, err := d.CreateTask(context.Background(), Request{
		UserID: 1, Title: "t", DueTime: "2026-09-01T09:00:00Z",
		Attachment: &types.Attachment{Filename: "shot.png", Data: []byte{1, 2, 3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Error("attachment failure must not fail the dispatch")
	}
	if conn.attachCalls != 1 {
		t.Errorf("attach calls = %d, want 1", conn.attachCalls)
	}
	if store.tasks[0].ScreenshotRef != "shot.png" {
		t.Errorf("screenshot ref = %q", store.tasks[0].ScreenshotRef)
	}
}

// TestFollowupActions verifies remove-actions for used recipients and
// add-actions for unused enabled ones.
func TestFollowupActions(t *testing.T) {
	used := recipient("a", "Work", true)
	unused := recipient("c", "Shared", false)
	dir := &mockDirectory{
		resolved: []types.Recipient{used},
		enabled:  []types.Recipient{used, unused},
	}
	store := &mockStore{}
	d := newTestDispatcher(dir, store, map[string]*mockConnector{"a": {}})

	res, err := d.CreateTask(context.Background(), Request{UserID: 1, Title: "t", DueTime: "2026-09-01T09:00:00Z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var removes, adds []string
	for _, a := range res.Actions {
		switch a.Kind {
		case types.ActionRemoveRecipient:
			removes = append(removes, a.RecipientID)
		case types.ActionAddRecipient:
			adds = append(adds, a.RecipientID)
		}
	}
	if len(removes) != 1 || removes[0] != "a" {
		t.Errorf("remove actions = %v, want [a]", removes)
	}
	if len(adds) != 1 || adds[0] != "c" {
		t.Errorf("add actions = %v, want [c]", adds)
	}
}
