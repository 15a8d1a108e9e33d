package types

import "time"

// PlatformType identifies an external task platform
type PlatformType string

const (
	PlatformTodoist  PlatformType = "todoist"
	PlatformTrello   PlatformType = "trello"
	PlatformCalendar PlatformType = "google_calendar"
)

// Recipient is an external account/destination a task can be pushed to
type Recipient struct {
	ID          string            `json:"id"`
	UserID      int64             `json:"user_id"`
	Name        string            `json:"name"`
	Platform    PlatformType      `json:"platform_type"`
	Credentials string            `json:"credentials"`               // opaque token blob
	Config      map[string]string `json:"platform_config,omitempty"` // board/list ids etc
	IsPersonal  bool              `json:"is_personal"`               // owned by the user, auto-selectable
	IsDefault   bool              `json:"is_default"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Task is a persisted task record, one row regardless of recipient count
type Task struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	DueTime       string    `json:"due_time"` // UTC, RFC 3339
	ChatID        int64     `json:"chat_id"`
	MessageID     int       `json:"message_id"`
	ScreenshotRef string    `json:"screenshot_ref,omitempty"`
	Status        string    `json:"status"` // active, dispatched
	CreatedAt     time.Time `json:"created_at"`
}

// Attachment is raw image data captured from a chat message
type Attachment struct {
	Filename string `json:"filename"`
	Data     []byte `json:"-"`
}

// InboundMessage is one raw fragment of a user's message burst. Voice
// transcriptions and photo captions arrive here the same way plain text does.
type InboundMessage struct {
	UserID     int64       `json:"user_id"`
	ChatID     int64       `json:"chat_id"`
	MessageID  int         `json:"message_id"`
	SenderName string      `json:"sender_name"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
	ReceivedAt time.Time   `json:"received_at"`
}

// ParsedTask is the output of the parsing collaborator
type ParsedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueTime     string `json:"due_time"` // UTC, RFC 3339
}

// DispatchOutcome is the transient result of pushing one task to one recipient
type DispatchOutcome struct {
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
	Success       bool   `json:"success"`
	ExternalID    string `json:"external_id,omitempty"`
	URL           string `json:"url,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// ActionKind distinguishes follow-up actions offered after a dispatch
type ActionKind string

const (
	ActionAddRecipient    ActionKind = "add_recipient"
	ActionRemoveRecipient ActionKind = "remove_recipient"
)

// FollowupAction is an opaque (recipient, label) pair the transport layer
// renders as a button; the dispatcher knows nothing about buttons.
type FollowupAction struct {
	Kind        ActionKind `json:"kind"`
	RecipientID string     `json:"recipient_id"`
	Label       string     `json:"label"`
}

// UserSettings holds per-user preferences read by the parser and the
// reminder scheduler.
type UserSettings struct {
	UserID        int64  `json:"user_id"`
	OwnerName     string `json:"owner_name,omitempty"`
	Location      string `json:"location,omitempty"`
	NotifyEnabled bool   `json:"notify_enabled"`
}
