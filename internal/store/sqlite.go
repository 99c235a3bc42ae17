package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Aman-CERP/chatsearch/internal/errors"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStore implements Store on an SQLite FTS5 table with the porter
// tokenizer. WAL mode lets searches run on their own connections while a
// rebuild holds the write transaction.
type SQLiteStore struct {
	// mu guards closed; writeMu serialises writers.
	mu      sync.RWMutex
	writeMu sync.Mutex
	db      *sql.DB
	path    string
	config  Config
	closed  bool
}

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS messages USING fts5(
	session_id,
	timestamp,
	role,
	content,
	project,
	file_path,
	tokenize='porter'
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT
);
`

// contentColumn is the index of messages.content for snippet().
const contentColumn = 3

// validateSQLiteIntegrity checks an existing database file before opening.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteStore opens or creates the index at path.
// An empty path creates an in-memory store for tests.
func NewSQLiteStore(path string, config Config) (*SQLiteStore, error) {
	var dsn string
	maxConns := 4
	if path == "" {
		// every connection to :memory: is a separate database
		dsn = ":memory:"
		maxConns = 1
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(errors.ErrCodeFilePermission,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, errors.New(errors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("sqlite_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, reindex required"))
		}

		// _pragma params are applied to every pooled connection
		dsn = "file:" + path +
			"?_pragma=journal_mode(WAL)" +
			"&_pragma=busy_timeout(5000)" +
			"&_pragma=synchronous(NORMAL)" +
			"&_pragma=cache_size(-65536)" +
			"&_pragma=temp_store(MEMORY)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if path == "" {
		if _, err := db.Exec("PRAGMA temp_store = MEMORY"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		config: config.withDefaults(),
	}, nil
}

// Path returns the database file path, or "" for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Reset drops and recreates both tables.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS messages",
		"DROP TABLE IF EXISTS metadata",
		sqliteSchema,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
	}
	return tx.Commit()
}

// Insert adds messages in a single transaction.
func (s *SQLiteStore) Insert(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (session_id, timestamp, role, content, project, file_path)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx,
			m.SessionID, m.Timestamp, m.Role, m.Content, m.Project, m.FilePath); err != nil {
			return fmt.Errorf("failed to insert message from %s: %w", m.FilePath, err)
		}
	}

	return tx.Commit()
}

// Search runs an FTS5 MATCH ordered by bm25 rank.
func (s *SQLiteStore) Search(ctx context.Context, match string, limit int) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	if strings.TrimSpace(match) == "" {
		return []*Hit{}, nil
	}
	match = quoteOperators(match)

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, timestamp, role,
		       snippet(messages, ?, ?, ?, ?, ?) AS snippet,
		       project, file_path, rank
		FROM messages
		WHERE messages MATCH ?
		ORDER BY rank
		LIMIT ?`,
		contentColumn, s.config.HighlightStart, s.config.HighlightEnd,
		s.config.Ellipsis, s.config.SnippetTokens, match, limit)
	if err != nil {
		switch {
		case isFTSQueryError(err):
			return nil, errors.QueryError(match, err)
		case isMissingTable(err):
			return []*Hit{}, nil
		}
		return nil, errors.New(errors.ErrCodeSearchFailed, "search failed", err)
	}
	defer rows.Close()

	hits := []*Hit{}
	for rows.Next() {
		var h Hit
		var rank float64
		if err := rows.Scan(&h.SessionID, &h.Timestamp, &h.Role, &h.Snippet,
			&h.Project, &h.FilePath, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		// bm25() is negative with lower meaning better
		h.Score = -rank
		hits = append(hits, &h)
	}
	if err := rows.Err(); err != nil {
		if isFTSQueryError(err) {
			return nil, errors.QueryError(match, err)
		}
		return nil, err
	}
	return hits, nil
}

// Conversation returns every message of a session in timestamp order.
func (s *SQLiteStore) Conversation(ctx context.Context, sessionID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, timestamp, role, content, project, file_path
		FROM messages
		WHERE session_id = ?
		ORDER BY timestamp, rowid`, sessionID)
	if err != nil {
		if isMissingTable(err) {
			return []*Message{}, nil
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	defer rows.Close()

	msgs := []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.SessionID, &m.Timestamp, &m.Role, &m.Content,
			&m.Project, &m.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// SetMetadata upserts all keys in one transaction.
func (s *SQLiteStore) SetMetadata(ctx context.Context, kv map[string]string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range kv {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to set metadata %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Metadata returns all metadata entries. A store that was never rebuilt
// returns an empty map.
func (s *SQLiteStore) Metadata(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	meta := make(map[string]string)
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		if isMissingTable(err) {
			return meta, nil
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta[k] = v.String
	}
	return meta, rows.Err()
}

// Stats counts messages and distinct sessions.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT session_id) FROM messages`).
		Scan(&st.Messages, &st.Sessions)
	if err != nil && !isMissingTable(err) {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	return &st, nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// ftsOperators are the barewords FTS5 parses as operators.
var ftsOperators = map[string]bool{"AND": true, "OR": true, "NOT": true, "NEAR": true}

// quoteOperators rewrites prefix terms such as AND* to "AND"* so that
// upper-case words from user text are matched rather than parsed.
func quoteOperators(match string) string {
	terms := strings.Fields(match)
	changed := false
	for i, t := range terms {
		if word, ok := strings.CutSuffix(t, "*"); ok && ftsOperators[word] {
			terms[i] = `"` + word + `"*`
			changed = true
		}
	}
	if !changed {
		return match
	}
	return strings.Join(terms, " ")
}

// isFTSQueryError reports whether err came from parsing a MATCH expression.
func isFTSQueryError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5:") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "unterminated string") ||
		strings.Contains(msg, "unknown special query") ||
		strings.Contains(msg, "no such column")
}

func isMissingTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}
