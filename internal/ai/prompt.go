package ai

import (
	"fmt"
	"strings"
)

// systemPrompt builds the instruction-independent part of the request:
// role, workspace, selected files, assembled file content, and the
// previous exchange when one exists.
func systemPrompt(req Request, prev *exchange) string {
	var sb strings.Builder

	sb.WriteString("You are an AI assistant helping a user explore and understand files.\n")
	sb.WriteString("Answer questions grounded in the file content provided below.\n\n")
	fmt.Fprintf(&sb, "Current workspace: %s\n", req.Workspace)

	if len(req.Selected) > 0 {
		sb.WriteString("Selected files:\n")
		for _, path := range req.Selected {
			fmt.Fprintf(&sb, "  %s\n", path)
		}
	}

	if req.Window != nil && len(req.Window.Entries) > 0 {
		sb.WriteString("\nFile content:\n\n")
		sb.WriteString(req.Window.Render())
		if req.Window.Truncated {
			sb.WriteString("[selection did not fit the context budget; some content was omitted]\n")
		}
	}

	if prev != nil {
		fmt.Fprintf(&sb, "\nPrevious question: %s\n", prev.instruction)
		response := prev.response
		if len(response) > 2000 {
			response = response[:2000] + "…"
		}
		fmt.Fprintf(&sb, "Previous answer: %s\n", response)
	}

	return sb.String()
}
