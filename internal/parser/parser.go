// Package parser turns raw chat text into a structured task via an LLM.
// The aggregator consumes it through the Parser interface and treats a nil
// result as "unparsable".
package parser

import (
	"context"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// Parser extracts {title, description, due_time} from a message thread.
// due_time is UTC RFC 3339. A (nil, nil) return means the content could
// not be parsed into a task.
type Parser interface {
	Parse(ctx context.Context, content, ownerName, location string) (*types.ParsedTask, error)
}
