// ABOUTME: Platform-neutral message descriptors and conversation key types
// ABOUTME: Defines Message, Mention, Key and the trigger classification enum

package chat

import "fmt"

// Message is a validated inbound chat message. ReplyTo carries the parent
// message when the platform embeds it, enabling reply-chain walking.
type Message struct {
	ID       int64
	ChatID   int64
	SenderID int64
	Text     string
	Mentions []Mention
	ReplyTo  *Message
	Voice    *Voice
}

// Mention is a mention span inside a message's text. Offset and Length are
// UTF-16 code units, matching what chat platforms report. UserID is zero for
// @username-style mentions, where the span text itself identifies the target.
type Mention struct {
	Offset int
	Length int
	UserID int64
}

// Voice references a voice-note attachment by its platform file ID.
type Voice struct {
	FileID string
}

// Identity is the bot's own identity, used to recognize mentions and
// replies addressed to it.
type Identity struct {
	UserID   int64
	Username string
}

// Trigger classifies how a message relates to the bot's conversations.
type Trigger int

const (
	// TriggerIgnored means the message does not participate in any conversation.
	TriggerIgnored Trigger = iota
	// TriggerNewConversation starts a fresh session rooted at the message itself.
	TriggerNewConversation
	// TriggerContinuation continues the session rooted at the reply chain's origin.
	TriggerContinuation
)

func (t Trigger) String() string {
	switch t {
	case TriggerNewConversation:
		return "new"
	case TriggerContinuation:
		return "continuation"
	default:
		return "ignored"
	}
}

// Key uniquely identifies one conversation: a chat scope plus the root
// message that started the thread. Equal keys always resolve to the same
// session while the session is live.
type Key struct {
	ChatID        int64
	RootMessageID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.ChatID, k.RootMessageID)
}
