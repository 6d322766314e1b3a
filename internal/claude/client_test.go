// ABOUTME: Tests for the Messages and Files API client against a stub server
// ABOUTME: Verifies request shape, headers, and artifact retrieval

package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		APIKey:  "sk-ant-test",
		SkillID: "skill_01",
		BaseURL: baseURL,
	}, testLogger())
}

func TestCreateMessage(t *testing.T) {
	t.Run("sends the expected request shape", func(t *testing.T) {
		var got map[string]any
		var headers http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/messages", r.URL.Path)
			headers = r.Header.Clone()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{
				"content":     []map[string]any{{"type": "text", "text": "Listo"}},
				"stop_reason": "end_turn",
				"container":   map[string]any{"id": "cont_1"},
			})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		resp, err := c.CreateMessage(context.Background(), []Turn{UserText("una cotización")}, "", "")
		require.NoError(t, err)
		assert.Equal(t, "cont_1", resp.ContainerID())
		assert.False(t, resp.Paused())

		assert.Equal(t, "sk-ant-test", headers.Get("X-Api-Key"))
		assert.Equal(t, "2023-06-01", headers.Get("Anthropic-Version"))
		assert.Contains(t, headers.Get("Anthropic-Beta"), "code-execution-2025-08-25")
		assert.Contains(t, headers.Get("Anthropic-Beta"), "skills-2025-10-02")

		container, ok := got["container"].(map[string]any)
		require.True(t, ok)
		skills, ok := container["skills"].([]any)
		require.True(t, ok)
		require.Len(t, skills, 1)
		skill := skills[0].(map[string]any)
		assert.Equal(t, "custom", skill["type"])
		assert.Equal(t, "skill_01", skill["skill_id"])

		tools, ok := got["tools"].([]any)
		require.True(t, ok)
		require.Len(t, tools, 1)
		assert.Equal(t, "code_execution_20250825", tools[0].(map[string]any)["type"])
	})

	t.Run("omits the container id when empty", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{"content": []any{}, "stop_reason": "end_turn"})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		_, err := c.CreateMessage(context.Background(), nil, "", "")
		require.NoError(t, err)

		container := got["container"].(map[string]any)
		_, hasID := container["id"]
		assert.False(t, hasID)
	})

	t.Run("passes the container id on continuation", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{"content": []any{}, "stop_reason": "end_turn"})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		_, err := c.CreateMessage(context.Background(), nil, "cont_9", "")
		require.NoError(t, err)
		assert.Equal(t, "cont_9", got["container"].(map[string]any)["id"])
	})

	t.Run("appends the system extra", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{"content": []any{}, "stop_reason": "end_turn"})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		_, err := c.CreateMessage(context.Background(), nil, "", "\n\nUsa COT-2026-004")
		require.NoError(t, err)
		system := got["system"].(string)
		assert.Contains(t, system, "RK ArtSide")
		assert.Contains(t, system, "COT-2026-004")
	})

	t.Run("non-200 surfaces the body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		_, err := c.CreateMessage(context.Background(), nil, "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
		assert.Contains(t, err.Error(), "overloaded_error")
	})
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "files-api-2025-04-14", r.Header.Get("Anthropic-Beta"))
		switch r.URL.Path {
		case "/v1/files/file_abc":
			json.NewEncoder(w).Encode(map[string]any{"filename": "COT-2026-001.pdf"})
		case "/v1/files/file_abc/content":
			w.Write([]byte("%PDF-1.7"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	name, data, err := c.DownloadFile(context.Background(), "file_abc")
	require.NoError(t, err)
	assert.Equal(t, "COT-2026-001.pdf", name)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}
