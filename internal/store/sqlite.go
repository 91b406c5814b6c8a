// Package store keeps upload and tool-call bookkeeping in a local SQLite
// database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/docbridge/docbridge/internal/api"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
	document_id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	path TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	uploaded_at_utc TEXT NOT NULL,
	tool TEXT NOT NULL,
	success INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_uploaded ON documents(uploaded_at_utc);

CREATE TABLE IF NOT EXISTS call_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at_utc TEXT NOT NULL,
	server TEXT NOT NULL,
	tool TEXT NOT NULL,
	args_json TEXT,
	success INTEGER NOT NULL,
	error TEXT,
	duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_call_history_at ON call_history(at_utc, id);
CREATE INDEX IF NOT EXISTS idx_call_history_server_tool_at ON call_history(server, tool, at_utc, id);
`)
	if err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (s *Store) InsertDocument(doc api.DocumentRecord) error {
	_, err := s.db.Exec(`
INSERT INTO documents (document_id, filename, path, size_bytes, uploaded_at_utc, tool, success)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		doc.DocumentID,
		doc.Filename,
		doc.Path,
		doc.SizeBytes,
		doc.UploadedAt.UTC().Format(time.RFC3339Nano),
		doc.Tool,
		boolToInt(doc.Success),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Store) ListDocuments(limit int) ([]api.DocumentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
SELECT document_id, filename, path, size_bytes, uploaded_at_utc, tool, success
FROM documents ORDER BY uploaded_at_utc DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]api.DocumentRecord, 0, limit)
	for rows.Next() {
		var doc api.DocumentRecord
		var uploadedUTC string
		var success int
		if err := rows.Scan(&doc.DocumentID, &doc.Filename, &doc.Path, &doc.SizeBytes, &uploadedUTC, &doc.Tool, &success); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedUTC)
		if err != nil {
			doc.UploadedAt = time.Now().UTC()
		}
		doc.Success = success == 1
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (s *Store) InsertHistory(item api.HistoryItem) error {
	var argsJSON string
	if len(item.Args) > 0 {
		data, err := json.Marshal(item.Args)
		if err != nil {
			return fmt.Errorf("marshal history args: %w", err)
		}
		argsJSON = string(data)
	}

	_, err := s.db.Exec(`
INSERT INTO call_history (at_utc, server, tool, args_json, success, error, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		item.At.UTC().Format(time.RFC3339Nano),
		item.Server,
		item.Tool,
		argsJSON,
		boolToInt(item.Success),
		item.Error,
		item.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(serverFilter, toolFilter string, limit int) ([]api.HistoryItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT at_utc, server, tool, args_json, success, error, duration_ms FROM call_history`
	args := make([]any, 0, 3)
	where := ""
	if serverFilter != "" {
		where += " server = ?"
		args = append(args, serverFilter)
	}
	if toolFilter != "" {
		if where != "" {
			where += " AND"
		}
		where += " tool = ?"
		args = append(args, toolFilter)
	}
	if where != "" {
		query += " WHERE" + where
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := make([]api.HistoryItem, 0, limit)
	for rows.Next() {
		var atUTC, argsJSON string
		var errText sql.NullString
		var success int
		var item api.HistoryItem
		if err := rows.Scan(&atUTC, &item.Server, &item.Tool, &argsJSON, &success, &errText, &item.DurationMs); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		item.At, err = time.Parse(time.RFC3339Nano, atUTC)
		if err != nil {
			item.At = time.Now().UTC()
		}
		item.Success = success == 1
		if errText.Valid {
			item.Error = errText.String
		}
		if argsJSON != "" {
			argsMap := map[string]any{}
			if err := json.Unmarshal([]byte(argsJSON), &argsMap); err == nil {
				item.Args = argsMap
			}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	// Oldest first.
	for left, right := 0, len(out)-1; left < right; left, right = left+1, right-1 {
		out[left], out[right] = out[right], out[left]
	}

	return out, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
