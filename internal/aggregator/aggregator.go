package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/dispatch"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/logging"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// Parser is the external NLP collaborator. Returning (nil, nil) means the
// content could not be parsed; the aggregator then falls back to a
// deterministic task.
type Parser interface {
	Parse(ctx context.Context, content, ownerName, location string) (*types.ParsedTask, error)
}

// TaskCreator is the dispatch engine the aggregator hands threads to
type TaskCreator interface {
	CreateTask(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// SettingsStore supplies per-user parser hints
type SettingsStore interface {
	GetSettings(userID int64) (*types.UserSettings, error)
}

// Config holds the two independent debounce windows
type Config struct {
	ThreadTimeout      time.Duration // quiet period after the last text message
	VoiceThreadTimeout time.Duration // quiet period while a transcription is in flight
}

// ResultFunc receives the outcome of one dispatched thread. err is set when
// parsing or dispatching failed entirely; res is set otherwise.
type ResultFunc func(userID, chatID int64, messageID int, res *dispatch.Result, err error)

// pendingThread is one user's in-flight message burst. gen increments on
// every append; a debounce fire carrying a stale gen is a no-op, which is
// the only cancellation mechanism ("last write wins the trigger, all
// writes contribute content").
type pendingThread struct {
	msgs  []types.InboundMessage
	gen   uint64
	timer *time.Timer
	voice bool
}

// Aggregator coalesces bursts of per-user messages into one thread handed
// to the parser and then to the dispatcher. All mutation of per-user state
// happens under one mutex; parsing and dispatch run outside it so a slow
// call for one user never blocks others.
type Aggregator struct {
	mu      sync.Mutex
	pending map[int64]*pendingThread

	parser     Parser
	dispatcher TaskCreator
	settings   SettingsStore
	cfg        Config
	onResult   ResultFunc
}

// New creates an aggregator
func New(parser Parser, dispatcher TaskCreator, settings SettingsStore, cfg Config, onResult ResultFunc) *Aggregator {
	return &Aggregator{
		pending:    make(map[int64]*pendingThread),
		parser:     parser,
		dispatcher: dispatcher,
		settings:   settings,
		cfg:        cfg,
		onResult:   onResult,
	}
}

// Append adds one message fragment to the user's thread and (re)schedules
// the debounce window. Only the newest append's timer fires; earlier
// pending fires become no-ops via the generation check.
func (a *Aggregator) Append(msg types.InboundMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.pending[msg.UserID]
	if p == nil {
		p = &pendingThread{}
		a.pending[msg.UserID] = p
	}

	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	p.msgs = append(p.msgs, msg)
	p.gen++

	a.scheduleLocked(msg.UserID, p)
	logging.Debug("aggregator", "user %d: buffered %q (%d pending)",
		msg.UserID, logging.Truncate(msg.Content, 40), len(p.msgs))
}

// BeginVoice marks a voice transcription in flight for the user. Text
// arriving meanwhile gets the longer voice window so it folds into the
// transcription's thread instead of firing early.
func (a *Aggregator) BeginVoice(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.pending[userID]
	if p == nil {
		p = &pendingThread{}
		a.pending[userID] = p
	}
	p.voice = true
	if p.timer != nil {
		a.scheduleLocked(userID, p)
	}
}

// EndVoice clears the voice flag. Callers must invoke it via defer so a
// failed transcription cannot stall the user's future dispatches. With
// flush set (transcription confirmation accepted) the thread is consumed
// immediately instead of waiting out the window.
func (a *Aggregator) EndVoice(userID int64, flush bool) {
	a.mu.Lock()
	p := a.pending[userID]
	if p == nil {
		a.mu.Unlock()
		return
	}
	p.voice = false

	if flush {
		msgs := a.consumeLocked(userID, p)
		a.mu.Unlock()
		if len(msgs) > 0 {
			a.process(msgs)
		}
		return
	}

	if len(p.msgs) == 0 {
		delete(a.pending, userID)
	} else if p.timer != nil {
		a.scheduleLocked(userID, p)
	}
	a.mu.Unlock()
}

// scheduleLocked resets the user's debounce timer for the current
// generation. Caller holds the mutex.
func (a *Aggregator) scheduleLocked(userID int64, p *pendingThread) {
	if p.timer != nil {
		p.timer.Stop()
	}
	timeout := a.cfg.ThreadTimeout
	if p.voice {
		timeout = a.cfg.VoiceThreadTimeout
	}
	gen := p.gen
	p.timer = time.AfterFunc(timeout, func() {
		a.fire(userID, gen)
	})
}

// fire runs when a debounce window elapses. A generation mismatch means a
// newer append rescheduled the window; this fire is then a no-op.
func (a *Aggregator) fire(userID int64, gen uint64) {
	a.mu.Lock()
	p := a.pending[userID]
	if p == nil || p.gen != gen {
		a.mu.Unlock()
		return
	}
	msgs := a.consumeLocked(userID, p)
	a.mu.Unlock()

	if len(msgs) > 0 {
		a.process(msgs)
	}
}

// consumeLocked swaps the thread contents out and clears the per-user
// state. Caller holds the mutex; the returned slice is processed outside
// it.
func (a *Aggregator) consumeLocked(userID int64, p *pendingThread) []types.InboundMessage {
	if p.timer != nil {
		p.timer.Stop()
	}
	msgs := p.msgs
	delete(a.pending, userID)
	return msgs
}

// process parses the coalesced thread and dispatches the result. The
// buffer is already cleared, so a failure here cannot leave the user's
// state stuck.
func (a *Aggregator) process(msgs []types.InboundMessage) {
	userID := msgs[0].UserID
	last := msgs[len(msgs)-1]

	defer func() {
		if r := recover(); r != nil {
			logging.Warn("aggregator", "user %d: panic while processing thread: %v", userID, r)
			a.report(userID, last.ChatID, last.MessageID, nil, fmt.Errorf("internal error: %v", r))
		}
	}()

	content := threadContent(msgs)
	logging.Info("aggregator", "user %d: dispatching thread of %d message(s)", userID, len(msgs))

	ctx := context.Background()

	var ownerName, location string
	if settings, err := a.settings.GetSettings(userID); err != nil {
		logging.Warn("aggregator", "user %d: settings lookup failed: %v", userID, err)
	} else {
		ownerName = settings.OwnerName
		location = settings.Location
	}

	parsed, err := a.parser.Parse(ctx, content, ownerName, location)
	if err != nil {
		logging.Warn("aggregator", "user %d: parse failed, using fallback: %v", userID, err)
	}
	if parsed == nil {
		parsed = fallbackTask(content)
	}

	req := dispatch.Request{
		UserID:      userID,
		ChatID:      last.ChatID,
		MessageID:   last.MessageID,
		Title:       parsed.Title,
		Description: parsed.Description,
		DueTime:     parsed.DueTime,
		Attachment:  firstAttachment(msgs),
		// The automatic path always keeps a local record; manual add
		// buttons cover the no-defaults case.
		CreateWithoutRecipients: true,
	}

	result, err := a.dispatcher.CreateTask(ctx, req)
	if err != nil {
		logging.Warn("aggregator", "user %d: dispatch failed: %v", userID, err)
		a.report(userID, last.ChatID, last.MessageID, nil, err)
		return
	}
	a.report(userID, last.ChatID, last.MessageID, result, nil)
}

func (a *Aggregator) report(userID, chatID int64, messageID int, res *dispatch.Result, err error) {
	if a.onResult != nil {
		a.onResult(userID, chatID, messageID, res, err)
	}
}

// threadContent concatenates the burst as "{sender}: {content}" lines
func threadContent(msgs []types.InboundMessage) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.SenderName+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func firstAttachment(msgs []types.InboundMessage) *types.Attachment {
	for _, m := range msgs {
		if m.Attachment != nil {
			return m.Attachment
		}
	}
	return nil
}

// fallbackTask is the deterministic stand-in when parsing fails:
// due tomorrow 09:00 UTC, title capped at 100 characters.
func fallbackTask(content string) *types.ParsedTask {
	title := content
	if runes := []rune(title); len(runes) > 100 {
		title = string(runes[:100])
	}
	due := time.Now().UTC().AddDate(0, 0, 1)
	due = time.Date(due.Year(), due.Month(), due.Day(), 9, 0, 0, 0, time.UTC)
	return &types.ParsedTask{
		Title:   title,
		DueTime: due.Format(time.RFC3339),
	}
}
