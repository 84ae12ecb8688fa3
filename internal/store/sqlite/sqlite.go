package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wiredraw-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to seed data or apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection, and :memory: needs it to keep the schema.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// ApplySchema creates the sessions, strokes and chat_messages tables.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== SessionStore implementation ====

// CreateOrUpdateSession upserts the session record for a room.
func (s *SQLiteStore) CreateOrUpdateSession(ctx context.Context, roomID, hostID string) error {
	query := `
		INSERT INTO sessions (room_id, host_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET host_id = excluded.host_id
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, hostID, s.now().UTC()); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by room id.
func (s *SQLiteStore) GetSession(ctx context.Context, roomID string) (*store.Session, error) {
	query := `
		SELECT room_id, host_id, created_at
		FROM sessions
		WHERE room_id = ?
	`
	var sess store.Session
	err := s.db.QueryRowContext(ctx, query, roomID).Scan(&sess.RoomID, &sess.HostID, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", roomID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &sess, nil
}

// ==== StrokeStore implementation ====

// AppendStroke stores the stroke as a JSON document.
func (s *SQLiteStore) AppendStroke(ctx context.Context, roomID string, stroke store.Stroke) error {
	data, err := json.Marshal(stroke)
	if err != nil {
		return fmt.Errorf("marshal stroke: %w", err)
	}

	query := `
		INSERT INTO strokes (room_id, stroke_data, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, string(data), s.now().UTC()); err != nil {
		return fmt.Errorf("insert stroke: %w", err)
	}
	return nil
}

// ListStrokes returns all strokes of a room in creation order.
func (s *SQLiteStore) ListStrokes(ctx context.Context, roomID string) ([]store.Stroke, error) {
	query := `
		SELECT stroke_data
		FROM strokes
		WHERE room_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query strokes: %w", err)
	}
	defer rows.Close()

	strokes := []store.Stroke{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan stroke: %w", err)
		}
		var stroke store.Stroke
		if err := json.Unmarshal([]byte(data), &stroke); err != nil {
			return nil, fmt.Errorf("decode stroke: %w", err)
		}
		strokes = append(strokes, stroke)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strokes: %w", err)
	}

	return strokes, nil
}

// DeleteStrokes removes every stroke of a room.
func (s *SQLiteStore) DeleteStrokes(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM strokes WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete strokes: %w", err)
	}
	return nil
}

// ==== ChatStore implementation ====

// AppendChatMessage persists a chat line and returns its timestamp.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, roomID string, msg store.ChatMessage) (time.Time, error) {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC()

	query := `
		INSERT INTO chat_messages (room_id, user_name, color, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, msg.Username, msg.Color, msg.Message, createdAt); err != nil {
		return time.Time{}, fmt.Errorf("insert chat message: %w", err)
	}
	return createdAt, nil
}

// ListChatMessages returns the chat history of a room in creation order.
func (s *SQLiteStore) ListChatMessages(ctx context.Context, roomID string) ([]store.ChatMessage, error) {
	query := `
		SELECT user_name, color, message, created_at
		FROM chat_messages
		WHERE room_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	messages := []store.ChatMessage{}
	for rows.Next() {
		var msg store.ChatMessage
		if err := rows.Scan(&msg.Username, &msg.Color, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	return messages, nil
}
