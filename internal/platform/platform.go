package platform

import (
	"context"
	"fmt"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// TaskData is the platform-independent payload of a create-task call
type TaskData struct {
	Title       string
	Description string
	DueTime     string // UTC, RFC 3339
}

// Connector creates tasks on one external platform. Implementations
// classify failures through the *Error taxonomy so the retrier and the
// dispatcher can act on them.
type Connector interface {
	// CreateTask creates a task and returns its external id
	CreateTask(ctx context.Context, data TaskData) (string, error)
	// AttachFile attaches raw bytes to an already-created task
	AttachFile(ctx context.Context, externalID string, data []byte, filename string) error
	// TaskURL returns a human-facing link to the external task
	TaskURL(externalID string) string
}

// NewConnector builds a connector for a recipient's platform. The set of
// platforms is closed at compile time; adding one means adding a case here
// and a constructor below it.
func NewConnector(r *types.Recipient) (Connector, error) {
	switch r.Platform {
	case types.PlatformTodoist:
		return NewTodoist(r.Credentials, r.Config), nil
	case types.PlatformTrello:
		return NewTrello(r.Credentials, r.Config), nil
	default:
		return nil, fmt.Errorf("unknown platform type: %s", r.Platform)
	}
}
