// ABOUTME: SQLite implementation of the registry and counters using modernc.org/sqlite
// ABOUTME: Creates the schema on open and formats sequential document numbers

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Registry and Counters on a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. The schema is
// created if it doesn't exist; parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps registry writes from blocking concurrent lookups.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS message_registry (
			chat_id INTEGER NOT NULL,
			message_id INTEGER NOT NULL,
			root_message_id INTEGER NOT NULL,
			PRIMARY KEY (chat_id, message_id)
		);

		CREATE INDEX IF NOT EXISTS idx_message_registry_root
			ON message_registry (chat_id, root_message_id);

		CREATE TABLE IF NOT EXISTS document_counters (
			doc_type TEXT NOT NULL,
			year INTEGER NOT NULL,
			last_number INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (doc_type, year)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RegisterMessage records a message as belonging to a conversation root.
func (s *SQLiteStore) RegisterMessage(ctx context.Context, chatID, messageID, rootID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_registry (chat_id, message_id, root_message_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`,
		chatID, messageID, rootID,
	)
	if err != nil {
		return fmt.Errorf("registering message: %w", err)
	}
	return nil
}

// FindRoot looks up the conversation root for a message.
func (s *SQLiteStore) FindRoot(ctx context.Context, chatID, messageID int64) (int64, bool, error) {
	var rootID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT root_message_id FROM message_registry
		WHERE chat_id = ? AND message_id = ?`,
		chatID, messageID,
	).Scan(&rootID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("finding root: %w", err)
	}
	return rootID, true, nil
}

// DeleteRoot prunes all registry entries for an expired conversation.
func (s *SQLiteStore) DeleteRoot(ctx context.Context, chatID, rootID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM message_registry
		WHERE chat_id = ? AND root_message_id = ?`,
		chatID, rootID,
	)
	if err != nil {
		return fmt.Errorf("deleting registry entries: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("pruned registry entries", "chat_id", chatID, "root_id", rootID, "count", n)
	}
	return nil
}

// Size reports the number of registry entries.
func (s *SQLiteStore) Size(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_registry`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting registry entries: %w", err)
	}
	return n, nil
}

// NextDocumentNumber atomically increments the counter for (docType, year)
// and returns the formatted number.
func (s *SQLiteStore) NextDocumentNumber(ctx context.Context, docType string, year int) (string, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO document_counters (doc_type, year, last_number)
		VALUES (?, ?, 1)
		ON CONFLICT (doc_type, year) DO UPDATE SET last_number = last_number + 1
		RETURNING last_number`,
		docType, year,
	).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("incrementing document counter: %w", err)
	}
	return FormatNumber(docType, year, n), nil
}

// LastDocumentNumbers returns the latest formatted number per type for a year.
func (s *SQLiteStore) LastDocumentNumbers(ctx context.Context, year int) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_type, last_number FROM document_counters WHERE year = ?`,
		year,
	)
	if err != nil {
		return nil, fmt.Errorf("querying document counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var docType string
		var n int
		if err := rows.Scan(&docType, &n); err != nil {
			return nil, fmt.Errorf("scanning counter row: %w", err)
		}
		out[docType] = FormatNumber(docType, year, n)
	}
	return out, rows.Err()
}

// FormatNumber renders a document number in the TYPE-YEAR-NNN form used on
// the generated documents.
func FormatNumber(docType string, year, n int) string {
	return fmt.Sprintf("%s-%d-%03d", docType, year, n)
}
