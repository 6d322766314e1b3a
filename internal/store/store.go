// ABOUTME: Store interfaces and data types for docbridge persistence
// ABOUTME: Defines the message registry and document counter contracts

package store

import "context"

// Registry maps every message the bot has seen or sent to the root message
// of its conversation. The chat platform only embeds one level of reply
// nesting, so replies deep in a thread resolve their root through this
// mapping rather than the embedded chain alone.
type Registry interface {
	// RegisterMessage records messageID as belonging to the conversation
	// rooted at rootID. Idempotent: re-registering is a no-op.
	RegisterMessage(ctx context.Context, chatID, messageID, rootID int64) error

	// FindRoot returns the registered root for a message, or ok=false when
	// the message is unknown.
	FindRoot(ctx context.Context, chatID, messageID int64) (rootID int64, ok bool, err error)

	// DeleteRoot removes every registry entry belonging to the conversation
	// rooted at rootID, used when the session expires.
	DeleteRoot(ctx context.Context, chatID, rootID int64) error

	// Size reports the number of registry entries, for diagnostics.
	Size(ctx context.Context) (int, error)
}

// Counters assigns sequential document numbers per type and year, so the
// numbers on generated documents stay consecutive across process restarts.
type Counters interface {
	// NextDocumentNumber increments and returns the formatted number for a
	// document type in a year, e.g. "COT-2026-001".
	NextDocumentNumber(ctx context.Context, docType string, year int) (string, error)

	// LastDocumentNumbers returns the most recent formatted number per
	// document type for a year. Empty map when nothing was generated.
	LastDocumentNumbers(ctx context.Context, year int) (map[string]string, error)
}
