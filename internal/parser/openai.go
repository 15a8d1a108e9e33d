package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/logging"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

const systemPrompt = `You extract a single actionable task from a chat thread.
Reply with JSON only: {"title": "...", "description": "...", "due_time": "..."}.
due_time must be an absolute UTC timestamp in RFC 3339 format. Resolve relative
times ("tomorrow", "in two hours") against the current time you are given.
If the thread contains no actionable task, reply with the JSON value null.`

// OpenAI is the production Parser implementation
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a parser using the given API key. model may be empty
// to use the default.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Parse extracts a task from the thread content. ownerName and location
// are optional hints that improve pronoun and timezone resolution.
func (p *OpenAI) Parse(ctx context.Context, content, ownerName, location string) (*types.ParsedTask, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Current time: %s\n", time.Now().UTC().Format(time.RFC3339))
	if ownerName != "" {
		fmt.Fprintf(&user, "The requester is called %s.\n", ownerName)
	}
	if location != "" {
		fmt.Fprintf(&user, "The requester is located in %s.\n", location)
	}
	user.WriteString("\nThread:\n")
	user.WriteString(content)

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user.String()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return extractTask(completion.Choices[0].Message.Content)
}

// extractTask pulls the task fields out of the model reply. Models wrap
// JSON in code fences often enough that a strict unmarshal is too brittle.
func extractTask(reply string) (*types.ParsedTask, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	if reply == "null" || reply == "" {
		return nil, nil
	}
	if !gjson.Valid(reply) {
		logging.Debug("parser", "invalid JSON reply: %s", logging.Truncate(reply, 80))
		return nil, nil
	}

	parsed := gjson.Parse(reply)
	title := parsed.Get("title").String()
	dueTime := parsed.Get("due_time").String()
	if title == "" || dueTime == "" {
		return nil, nil
	}
	if _, err := time.Parse(time.RFC3339, dueTime); err != nil {
		logging.Debug("parser", "model produced unparsable due time %q", dueTime)
		return nil, nil
	}

	return &types.ParsedTask{
		Title:       title,
		Description: parsed.Get("description").String(),
		DueTime:     dueTime,
	}, nil
}
