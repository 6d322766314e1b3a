// ABOUTME: Wire types for the Anthropic Messages API used by the document bot
// ABOUTME: Models content blocks as an explicit tagged union tolerant of unknown shapes

package claude

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content block type tags. Anything else decodes as an unknown block and is
// carried through untouched.
const (
	BlockTypeText       = "text"
	BlockTypeToolResult = "bash_code_execution_tool_result"

	// resultTypeExecution tags the nested payload inside a tool-result block.
	resultTypeExecution = "bash_code_execution_result"
)

// Stop reasons returned by the service.
const (
	StopPauseTurn = "pause_turn"
	StopEndTurn   = "end_turn"
)

// Turn is one exchange unit in a conversation. Content is either plain text
// (Text set, Blocks nil) or an ordered block sequence (assistant responses
// fed back during continuation).
type Turn struct {
	Role   Role
	Text   string
	Blocks []ContentBlock
}

// UserText builds a plain-text user turn.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// AssistantBlocks builds an assistant turn from raw response content.
func AssistantBlocks(blocks []ContentBlock) Turn {
	return Turn{Role: RoleAssistant, Blocks: blocks}
}

func (t Turn) MarshalJSON() ([]byte, error) {
	if t.Blocks != nil {
		return json.Marshal(struct {
			Role    Role           `json:"role"`
			Content []ContentBlock `json:"content"`
		}{t.Role, t.Blocks})
	}
	return json.Marshal(struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
	}{t.Role, t.Text})
}

// ContentBlock is one element of a response's content sequence. Type drives
// which fields are populated; unrecognized types keep only the raw payload
// so they round-trip verbatim when fed back to the service.
type ContentBlock struct {
	Type       string
	Text       string
	ToolResult *ToolResultBody

	raw json.RawMessage
}

// ToolResultBody is the object a tool-result block wraps. Its Content holds
// the execution's output items, some of which reference generated files.
type ToolResultBody struct {
	Type    string       `json:"type"`
	Content []ResultItem `json:"content"`
}

// ResultItem is one item inside an execution result. FileID is empty for
// items that do not reference a generated artifact.
type ResultItem struct {
	Type   string `json:"type"`
	FileID string `json:"file_id,omitempty"`
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	b.raw = append(json.RawMessage(nil), data...)

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decoding content block: %w", err)
	}
	b.Type = probe.Type

	switch probe.Type {
	case BlockTypeText:
		var t struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("decoding text block: %w", err)
		}
		b.Text = t.Text

	case BlockTypeToolResult:
		var t struct {
			Content ToolResultBody `json:"content"`
		}
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("decoding tool result block: %w", err)
		}
		b.ToolResult = &t.Content
	}

	return nil
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	// Blocks decoded from a response re-serialize byte-for-byte. The service
	// expects its own content echoed back unmodified during continuation.
	if len(b.raw) > 0 {
		return b.raw, nil
	}

	switch b.Type {
	case BlockTypeText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{BlockTypeText, b.Text})
	case BlockTypeToolResult:
		return json.Marshal(struct {
			Type    string          `json:"type"`
			Content *ToolResultBody `json:"content"`
		}{BlockTypeToolResult, b.ToolResult})
	}
	return nil, fmt.Errorf("cannot marshal constructed block of type %q", b.Type)
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// ToolResultBlock builds a tool-result block wrapping an execution result.
func ToolResultBlock(items ...ResultItem) ContentBlock {
	return ContentBlock{
		Type:       BlockTypeToolResult,
		ToolResult: &ToolResultBody{Type: resultTypeExecution, Content: items},
	}
}

// MessageResponse is one raw response payload from the service.
type MessageResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Container  *Container     `json:"container"`
}

// Container carries the continuation-context token letting the service
// reuse execution state across turns of one session.
type Container struct {
	ID string `json:"id"`
}

// ContainerID returns the response's context token, or empty if absent.
func (r *MessageResponse) ContainerID() string {
	if r.Container == nil {
		return ""
	}
	return r.Container.ID
}

// Paused reports whether the service needs another round to finish its turn.
func (r *MessageResponse) Paused() bool {
	return r.StopReason == StopPauseTurn
}
