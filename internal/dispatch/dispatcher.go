package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/logging"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/platform"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// Directory resolves which recipients a task goes to
type Directory interface {
	Resolve(userID int64, explicitIDs []string) ([]types.Recipient, error)
	EnabledFor(userID int64) ([]types.Recipient, error)
}

// TaskStore persists task rows
type TaskStore interface {
	CreateTask(task *types.Task) error
}

// Request describes one task-creation invocation
type Request struct {
	UserID      int64
	ChatID      int64
	MessageID   int
	Title       string
	Description string
	DueTime     string // UTC, RFC 3339
	// ExplicitRecipientIDs overrides the user's default recipient set
	ExplicitRecipientIDs []string
	Attachment           *types.Attachment
	// CreateWithoutRecipients opts into persisting a task even when the
	// user has no default recipients, so the caller can offer manual
	// "add to…" buttons afterwards.
	CreateWithoutRecipients bool
}

// Result is the aggregate outcome of one dispatch
type Result struct {
	// Success is true iff at least one recipient succeeded
	Success bool
	// NoDefaultRecipients marks the distinguished "nothing to dispatch to,
	// and the user never chose anything" outcome. Not a failure.
	NoDefaultRecipients bool
	TaskID              string
	Feedback            string
	Outcomes            []types.DispatchOutcome
	Actions             []types.FollowupAction
}

// Dispatcher fans a resolved task out to each recipient's platform with
// bounded retries and per-recipient failure isolation.
type Dispatcher struct {
	directory Directory
	store     TaskStore
	retry     platform.RetryConfig
	// connect builds a connector per recipient; swapped out in tests
	connect func(*types.Recipient) (platform.Connector, error)
}

// New creates a dispatcher
func New(directory Directory, store TaskStore, retry platform.RetryConfig) *Dispatcher {
	return &Dispatcher{
		directory: directory,
		store:     store,
		retry:     retry,
		connect:   platform.NewConnector,
	}
}

// CreateTask resolves recipients, persists the task, pushes it to every
// recipient and builds user feedback plus follow-up actions. The task row
// is persisted before any platform call so total platform failure still
// leaves a recoverable local record; a persistence failure aborts the
// whole operation.
func (d *Dispatcher) CreateTask(ctx context.Context, req Request) (*Result, error) {
	recipients, err := d.directory.Resolve(req.UserID, req.ExplicitRecipientIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	result := &Result{}

	if len(recipients) == 0 {
		if len(req.ExplicitRecipientIDs) == 0 {
			// The user deliberately has no defaults. Distinguished outcome:
			// the caller may still create the task and offer add-buttons.
			result.NoDefaultRecipients = true
			if !req.CreateWithoutRecipients {
				result.Feedback = "You have no default recipients set up. Add a platform first."
				return result, nil
			}
		} else {
			result.Feedback = "None of the selected recipients are available."
			return result, nil
		}
	}

	task := &types.Task{
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		DueTime:     req.DueTime,
		ChatID:      req.ChatID,
		MessageID:   req.MessageID,
	}
	if req.Attachment != nil {
		task.ScreenshotRef = req.Attachment.Filename
	}
	if err := d.store.CreateTask(task); err != nil {
		// Fatal: without a local record there is nothing to recover or
		// remind about, so no platform calls are attempted.
		return nil, fmt.Errorf("persist task: %w", err)
	}
	result.TaskID = task.ID

	for i := range recipients {
		outcome := d.dispatchOne(ctx, &recipients[i], req)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Success {
			result.Success = true
		}
	}

	result.Feedback = buildFeedback(req, result)

	actions, err := d.buildActions(req.UserID, recipients)
	if err != nil {
		logging.Warn("dispatch", "failed to build follow-up actions: %v", err)
	} else {
		result.Actions = actions
	}

	return result, nil
}

// dispatchOne pushes the task to a single recipient. Failures are folded
// into the outcome, never propagated, so one bad recipient cannot block
// the others.
func (d *Dispatcher) dispatchOne(ctx context.Context, r *types.Recipient, req Request) types.DispatchOutcome {
	outcome := types.DispatchOutcome{
		RecipientID:   r.ID,
		RecipientName: r.Name,
	}

	conn, err := d.connect(r)
	if err != nil {
		logging.Warn("dispatch", "no connector for %s (%s): %v", r.Name, r.Platform, err)
		outcome.FailureReason = err.Error()
		return outcome
	}

	data := platform.TaskData{
		Title:       req.Title,
		Description: req.Description,
		DueTime:     req.DueTime,
	}

	externalID, err := platform.Retry(ctx, d.retry, string(r.Platform)+" create task",
		func(ctx context.Context) (string, error) {
			return conn.CreateTask(ctx, data)
		})
	if err != nil {
		outcome.FailureReason = failureReason(err)
		logging.Info("dispatch", "push to %s failed: %v", r.Name, err)
		return outcome
	}

	outcome.Success = true
	outcome.ExternalID = externalID
	outcome.URL = conn.TaskURL(externalID)
	logging.Info("dispatch", "pushed task to %s: %s", r.Name, outcome.URL)

	if req.Attachment != nil {
		// Best effort: a failed attachment never turns a created task
		// into a failure.
		if err := conn.AttachFile(ctx, externalID, req.Attachment.Data, req.Attachment.Filename); err != nil {
			logging.Warn("dispatch", "attachment to %s failed: %v", r.Name, err)
		}
	}

	return outcome
}

// buildActions offers "remove from X" for every recipient that was used
// and "add to X" for every enabled recipient that was not.
func (d *Dispatcher) buildActions(userID int64, used []types.Recipient) ([]types.FollowupAction, error) {
	usedIDs := make(map[string]bool, len(used))
	var actions []types.FollowupAction
	for _, r := range used {
		usedIDs[r.ID] = true
		actions = append(actions, types.FollowupAction{
			Kind:        types.ActionRemoveRecipient,
			RecipientID: r.ID,
			Label:       "Remove from " + r.Name,
		})
	}

	enabled, err := d.directory.EnabledFor(userID)
	if err != nil {
		return nil, err
	}
	for _, r := range enabled {
		if usedIDs[r.ID] {
			continue
		}
		actions = append(actions, types.FollowupAction{
			Kind:        types.ActionAddRecipient,
			RecipientID: r.ID,
			Label:       "Add to " + r.Name,
		})
	}
	return actions, nil
}

// failureReason renders a specific, actionable reason for one recipient
func failureReason(err error) string {
	var pe *platform.Error
	if errors.As(err, &pe) {
		return fmt.Sprintf("%s — %s", pe.Kind, pe.Advice())
	}
	return err.Error()
}
