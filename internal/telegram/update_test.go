// ABOUTME: Tests for update decoding and conversion to the neutral message shape
// ABOUTME: Covers entity mapping, nested replies, and voice attachments

package telegram

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkartside/docbridge/internal/chat"
)

func TestToChat(t *testing.T) {
	t.Run("maps the basic fields", func(t *testing.T) {
		m := &APIMessage{
			MessageID: 10,
			From:      &User{ID: 42, Username: "maria"},
			Chat:      Chat{ID: -100123, Type: "group"},
			Text:      "hola",
		}

		got := m.ToChat()
		require.NotNil(t, got)
		assert.Equal(t, int64(10), got.ID)
		assert.Equal(t, int64(-100123), got.ChatID)
		assert.Equal(t, int64(42), got.SenderID)
		assert.Equal(t, "hola", got.Text)
		assert.Nil(t, got.ReplyTo)
	})

	t.Run("converts the replied-to message", func(t *testing.T) {
		m := &APIMessage{
			MessageID: 20,
			Chat:      Chat{ID: 1},
			Text:      "agrega ITBIS",
			ReplyToMessage: &APIMessage{
				MessageID: 15,
				From:      &User{ID: 999, IsBot: true},
				Chat:      Chat{ID: 1},
			},
		}

		got := m.ToChat()
		require.NotNil(t, got.ReplyTo)
		assert.Equal(t, int64(15), got.ReplyTo.ID)
		assert.Equal(t, int64(999), got.ReplyTo.SenderID)
	})

	t.Run("keeps only mention entities", func(t *testing.T) {
		m := &APIMessage{
			MessageID: 30,
			Chat:      Chat{ID: 1},
			Text:      "@DocBot mira https://example.com",
			Entities: []Entity{
				{Type: "mention", Offset: 0, Length: 7},
				{Type: "url", Offset: 13, Length: 19},
				{Type: "text_mention", Offset: 8, Length: 4, User: &User{ID: 999}},
			},
		}

		got := m.ToChat()
		require.Len(t, got.Mentions, 2)
		assert.Equal(t, chat.Mention{Offset: 0, Length: 7}, got.Mentions[0])
		assert.Equal(t, chat.Mention{Offset: 8, Length: 4, UserID: 999}, got.Mentions[1])
	})

	t.Run("carries voice attachments", func(t *testing.T) {
		m := &APIMessage{
			MessageID: 40,
			Chat:      Chat{ID: 1},
			Voice:     &Voice{FileID: "voice_abc", Duration: 12},
		}

		got := m.ToChat()
		require.NotNil(t, got.Voice)
		assert.Equal(t, "voice_abc", got.Voice.FileID)
	})

	t.Run("nil message converts to nil", func(t *testing.T) {
		var m *APIMessage
		assert.Nil(t, m.ToChat())
	})
}

func TestUpdateDecoding(t *testing.T) {
	payload := `{
		"update_id": 7,
		"message": {
			"message_id": 10,
			"from": {"id": 42, "is_bot": false, "first_name": "María", "username": "maria"},
			"chat": {"id": -100123, "type": "supergroup"},
			"text": "@DocBot haz una cotización",
			"entities": [{"type": "mention", "offset": 0, "length": 7}]
		}
	}`

	var u Update
	require.NoError(t, json.Unmarshal([]byte(payload), &u))
	require.NotNil(t, u.Message)
	assert.Equal(t, int64(7), u.UpdateID)
	assert.Equal(t, "@DocBot haz una cotización", u.Message.Text)
	require.Len(t, u.Message.Entities, 1)
	assert.Equal(t, "mention", u.Message.Entities[0].Type)
}
