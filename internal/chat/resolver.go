// ABOUTME: Reply-chain resolution mapping a message to a conversation key
// ABOUTME: Classifies triggers and strips bot mention spans from message text

package chat

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf16"
)

// DefaultMaxReplyDepth caps reply-chain traversal. Chains are bounded by
// platform history depth in practice; the cap defends against cycles in
// malformed input.
const DefaultMaxReplyDepth = 100

// ErrReplyChainTooDeep is returned when a reply chain exceeds the traversal
// cap. The message is treated as ignored rather than looping forever.
var ErrReplyChainTooDeep = errors.New("reply chain exceeds traversal depth cap")

// Resolve maps a message to its conversation key and trigger classification.
//
// A message that mentions the bot and is not itself a reply starts a new
// conversation rooted at its own ID. A reply whose immediate parent was
// authored by the bot continues the conversation rooted at the chain's
// terminal ancestor. Everything else is ignored.
func Resolve(m *Message, bot Identity, maxDepth int) (Key, Trigger, error) {
	if m == nil {
		return Key{}, TriggerIgnored, nil
	}

	if Mentioned(m, bot) && m.ReplyTo == nil {
		return Key{ChatID: m.ChatID, RootMessageID: m.ID}, TriggerNewConversation, nil
	}

	if m.ReplyTo != nil && m.ReplyTo.SenderID == bot.UserID {
		root, err := RootID(m, maxDepth)
		if err != nil {
			return Key{}, TriggerIgnored, err
		}
		return Key{ChatID: m.ChatID, RootMessageID: root}, TriggerContinuation, nil
	}

	return Key{}, TriggerIgnored, nil
}

// RootID walks the embedded parent chain transitively until a message with
// no parent is found and returns that terminal identifier. The walk is
// capped at maxDepth hops; exceeding the cap returns ErrReplyChainTooDeep.
func RootID(m *Message, maxDepth int) (int64, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxReplyDepth
	}
	cur := m
	for depth := 0; cur.ReplyTo != nil; depth++ {
		if depth >= maxDepth {
			return 0, ErrReplyChainTooDeep
		}
		cur = cur.ReplyTo
	}
	return cur.ID, nil
}

// Mentioned reports whether the message carries a mention of the bot, either
// by user ID or by a case-insensitive @username span.
func Mentioned(m *Message, bot Identity) bool {
	for _, e := range m.Mentions {
		if mentionsBot(m.Text, e, bot) {
			return true
		}
	}
	return false
}

// RepliesToBot reports whether the message is a direct reply to a
// bot-authored message.
func RepliesToBot(m *Message, botID int64) bool {
	return m.ReplyTo != nil && m.ReplyTo.SenderID == botID
}

// StripMentions removes exactly the substrings covered by recognized bot
// mention spans, leaving surrounding text intact, and trims the result.
// An empty result means the message has no actionable content.
func StripMentions(m *Message, bot Identity) string {
	units := utf16.Encode([]rune(m.Text))

	var spans []Mention
	for _, e := range m.Mentions {
		if mentionsBot(m.Text, e, bot) {
			spans = append(spans, e)
		}
	}
	// Splice highest offset first so earlier spans stay valid.
	sort.Slice(spans, func(i, j int) bool { return spans[i].Offset > spans[j].Offset })

	for _, e := range spans {
		start, end := clampSpan(e, len(units))
		units = append(units[:start], units[end:]...)
	}
	return strings.TrimSpace(string(utf16.Decode(units)))
}

func mentionsBot(text string, e Mention, bot Identity) bool {
	if e.UserID != 0 {
		return e.UserID == bot.UserID
	}
	if bot.Username == "" {
		return false
	}
	return strings.EqualFold(spanText(text, e), "@"+bot.Username)
}

// spanText extracts the substring covered by a UTF-16 span. Out-of-range
// spans are clamped rather than rejected.
func spanText(text string, e Mention) string {
	units := utf16.Encode([]rune(text))
	start, end := clampSpan(e, len(units))
	return string(utf16.Decode(units[start:end]))
}

func clampSpan(e Mention, n int) (int, int) {
	start := e.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := start + e.Length
	if end > n {
		end = n
	}
	return start, end
}
