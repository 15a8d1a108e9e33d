package dispatch

import (
	"fmt"
	"strings"
)

// buildFeedback renders the user-facing summary of one dispatch
func buildFeedback(req Request, result *Result) string {
	var b strings.Builder

	switch {
	case result.Success:
		b.WriteString("✅ Task created\n")
	case result.NoDefaultRecipients:
		b.WriteString("📝 Task saved (no recipients yet)\n")
	default:
		b.WriteString("⚠️ Task saved locally, but could not be pushed anywhere\n")
	}

	b.WriteString("\n")
	b.WriteString(req.Title)
	if req.Description != "" {
		b.WriteString("\n")
		b.WriteString(req.Description)
	}
	fmt.Fprintf(&b, "\nDue: %s\n", req.DueTime)

	for _, o := range result.Outcomes {
		if o.Success {
			fmt.Fprintf(&b, "\n• %s: %s", o.RecipientName, o.URL)
		}
	}
	for _, o := range result.Outcomes {
		if !o.Success {
			fmt.Fprintf(&b, "\n• failed: %s — %s", o.RecipientName, o.FailureReason)
		}
	}

	return b.String()
}
