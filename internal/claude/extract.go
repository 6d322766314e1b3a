// ABOUTME: Normalizes heterogeneous response content into text and artifact refs
// ABOUTME: Iterates tagged blocks in order, ignoring shapes it does not recognize

package claude

import "strings"

// Result is the normalized outcome of one response payload.
type Result struct {
	Text        string
	FileIDs     []string
	ContainerID string
}

// Extract walks the response's content blocks in order, concatenating text
// blocks (no separator) and collecting artifact file IDs from tool-result
// blocks in encounter order. Unrecognized block shapes are skipped, which
// keeps the extractor forward-compatible with payloads it has never seen.
// An empty content sequence yields an empty result, never an error.
func Extract(resp *MessageResponse) Result {
	var texts strings.Builder
	var fileIDs []string

	for _, block := range resp.Content {
		switch block.Type {
		case BlockTypeText:
			texts.WriteString(block.Text)

		case BlockTypeToolResult:
			if block.ToolResult == nil || block.ToolResult.Type != resultTypeExecution {
				continue
			}
			for _, item := range block.ToolResult.Content {
				if item.FileID != "" {
					fileIDs = append(fileIDs, item.FileID)
				}
			}
		}
	}

	return Result{
		Text:        texts.String(),
		FileIDs:     fileIDs,
		ContainerID: resp.ContainerID(),
	}
}
