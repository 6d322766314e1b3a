// ABOUTME: Tests for response content extraction
// ABOUTME: Covers text concatenation order, artifact collection, and unknown-shape tolerance

package claude

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Run("concatenates text blocks in order without separator", func(t *testing.T) {
		resp := &MessageResponse{Content: []ContentBlock{
			TextBlock("Documento generado: "),
			TextBlock("COT-2026-001.pdf"),
		}}

		got := Extract(resp)
		assert.Equal(t, "Documento generado: COT-2026-001.pdf", got.Text)
		assert.Empty(t, got.FileIDs)
	})

	t.Run("collects file ids in encounter order", func(t *testing.T) {
		resp := &MessageResponse{Content: []ContentBlock{
			ToolResultBlock(
				ResultItem{Type: "output", FileID: "file_a"},
				ResultItem{Type: "output", FileID: "file_b"},
			),
			TextBlock("Listo"),
		}}

		got := Extract(resp)
		assert.Equal(t, []string{"file_a", "file_b"}, got.FileIDs)
		assert.Equal(t, "Listo", got.Text)
	})

	t.Run("skips result items without a file reference", func(t *testing.T) {
		resp := &MessageResponse{Content: []ContentBlock{
			ToolResultBlock(
				ResultItem{Type: "stdout"},
				ResultItem{Type: "output", FileID: "file_x"},
			),
		}}

		assert.Equal(t, []string{"file_x"}, Extract(resp).FileIDs)
	})

	t.Run("ignores unknown block types", func(t *testing.T) {
		var resp MessageResponse
		payload := `{
			"content": [
				{"type": "thinking", "thinking": "..."},
				{"type": "text", "text": "Hola"},
				{"type": "server_tool_use", "id": "tu_1", "name": "code_execution"}
			],
			"stop_reason": "end_turn"
		}`
		require.NoError(t, json.Unmarshal([]byte(payload), &resp))

		got := Extract(&resp)
		assert.Equal(t, "Hola", got.Text)
		assert.Empty(t, got.FileIDs)
	})

	t.Run("empty content yields empty result", func(t *testing.T) {
		got := Extract(&MessageResponse{})
		assert.Equal(t, "", got.Text)
		assert.Empty(t, got.FileIDs)
		assert.Equal(t, "", got.ContainerID)
	})

	t.Run("carries the container token", func(t *testing.T) {
		resp := &MessageResponse{
			Content:   []ContentBlock{TextBlock("ok")},
			Container: &Container{ID: "cont_123"},
		}
		assert.Equal(t, "cont_123", Extract(resp).ContainerID)
	})
}

func TestContentBlockDecoding(t *testing.T) {
	t.Run("tool result nests file ids two levels deep", func(t *testing.T) {
		payload := `{
			"type": "bash_code_execution_tool_result",
			"content": {
				"type": "bash_code_execution_result",
				"content": [
					{"type": "output", "file_id": "file_abc"}
				]
			}
		}`
		var b ContentBlock
		require.NoError(t, json.Unmarshal([]byte(payload), &b))
		require.NotNil(t, b.ToolResult)
		require.Len(t, b.ToolResult.Content, 1)
		assert.Equal(t, "file_abc", b.ToolResult.Content[0].FileID)
	})

	t.Run("decoded blocks round-trip verbatim", func(t *testing.T) {
		payload := `{"type":"server_tool_use","id":"tu_9","input":{"code":"print(1)"}}`
		var b ContentBlock
		require.NoError(t, json.Unmarshal([]byte(payload), &b))

		out, err := json.Marshal(b)
		require.NoError(t, err)
		assert.JSONEq(t, payload, string(out))
	})
}
