// ABOUTME: Session model owning the ordered turn history of one conversation
// ABOUTME: Tracks the continuation-context token and last-activity timestamp

package conversation

import (
	"time"

	"github.com/rkartside/docbridge/internal/chat"
	"github.com/rkartside/docbridge/internal/claude"
)

// Session is the mutable state of one conversation, uniquely identified by
// its Key. Turns are append-only during an exchange; the only other mutation
// is rollback of the most recent turn. ContainerID is the opaque
// continuation-context token the AI service uses to reuse execution state
// across turns; it is replaced whenever a fresh response returns one.
type Session struct {
	Key          chat.Key
	Turns        []claude.Turn
	ContainerID  string
	LastActivity time.Time
}

// AppendTurn adds a turn at the end of the history. Order is load-bearing:
// the service's comprehension depends on sequence.
func (s *Session) AppendTurn(t claude.Turn) {
	s.Turns = append(s.Turns, t)
}

// RollbackTurn removes the most recently appended turn, undoing a user turn
// after a failed exchange. No-op when the session has no turns.
func (s *Session) RollbackTurn() {
	if len(s.Turns) == 0 {
		return
	}
	s.Turns = s.Turns[:len(s.Turns)-1]
}
