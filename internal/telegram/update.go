// ABOUTME: Telegram webhook update types and conversion to the neutral message shape
// ABOUTME: Maps entities to mention spans and nested replies to the parent chain

package telegram

import "github.com/rkartside/docbridge/internal/chat"

// Update is the envelope Telegram posts to the webhook.
type Update struct {
	UpdateID int64       `json:"update_id"`
	Message  *APIMessage `json:"message"`
}

// APIMessage is a Telegram message as delivered in an update. ReplyToMessage
// is populated at most one level deep by the platform.
type APIMessage struct {
	MessageID      int64       `json:"message_id"`
	From           *User       `json:"from"`
	Chat           Chat        `json:"chat"`
	Text           string      `json:"text"`
	Entities       []Entity    `json:"entities"`
	ReplyToMessage *APIMessage `json:"reply_to_message"`
	Voice          *Voice      `json:"voice"`
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat identifies the chat a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Entity is a span of special text inside a message. Offsets and lengths
// are UTF-16 code units.
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	User   *User  `json:"user"`
}

// Voice is a voice-note attachment.
type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
}

// ToChat converts an API message into the platform-neutral descriptor the
// core operates on. Only mention-style entities survive the conversion; a
// "mention" span identifies its target by text, a "text_mention" by user ID.
func (m *APIMessage) ToChat() *chat.Message {
	if m == nil {
		return nil
	}

	out := &chat.Message{
		ID:      m.MessageID,
		ChatID:  m.Chat.ID,
		Text:    m.Text,
		ReplyTo: m.ReplyToMessage.ToChat(),
	}
	if m.From != nil {
		out.SenderID = m.From.ID
	}
	if m.Voice != nil {
		out.Voice = &chat.Voice{FileID: m.Voice.FileID}
	}
	for _, e := range m.Entities {
		switch e.Type {
		case "mention":
			out.Mentions = append(out.Mentions, chat.Mention{Offset: e.Offset, Length: e.Length})
		case "text_mention":
			if e.User != nil {
				out.Mentions = append(out.Mentions, chat.Mention{Offset: e.Offset, Length: e.Length, UserID: e.User.ID})
			}
		}
	}
	return out
}
