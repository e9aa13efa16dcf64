package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a session or user does not exist.
var ErrNotFound = errors.New("not found")

// Message is one turn of a session's dialogue.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Session is a paper dialogue with its full message history and the
// accumulated context (collected information, generated sections).
type Session struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Stage     string         `json:"stage"`
	Status    string         `json:"status"`
	Messages  []Message      `json:"messages"`
	Context   map[string]any `json:"context"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SessionSummary is the listing view without the heavy blobs.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Messages  int       `json:"message_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateSession inserts a new session for a user and returns it.
func (d *DB) CreateSession(userID, title string) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		SessionID: NewID(),
		UserID:    userID,
		Title:     title,
		Stage:     "initial",
		Status:    "active",
		Messages:  []Message{},
		Context:   map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := d.conn.Exec(`INSERT INTO sessions (session_id, user_id, title, stage, status, messages, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '[]', '{}', ?, ?)`,
		s.SessionID, s.UserID, s.Title, s.Stage, s.Status, now, now)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// GetSession loads a session by id.
func (d *DB) GetSession(sessionID string) (*Session, error) {
	row := d.conn.QueryRow(`SELECT session_id, user_id, title, stage, status, messages, context, created_at, updated_at
		FROM sessions WHERE session_id = ?`, sessionID)

	var s Session
	var messages, context string
	err := row.Scan(&s.SessionID, &s.UserID, &s.Title, &s.Stage, &s.Status, &messages, &context, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &s.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal([]byte(context), &s.Context); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return &s, nil
}

// AppendMessage appends one turn to a session's history. The history
// is append-only; existing turns are never rewritten. metadata may be
// nil.
func (d *DB) AppendMessage(sessionID, role, content string, metadata map[string]any) error {
	s, err := d.GetSession(sessionID)
	if err != nil {
		return err
	}
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: time.Now().UTC(), Metadata: metadata})
	blob, err := json.Marshal(s.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	_, err = d.conn.Exec(`UPDATE sessions SET messages = ?, updated_at = ? WHERE session_id = ?`,
		string(blob), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// UpdateContext shallow-merges patch into the session context. Each
// top-level key in patch replaces the stored value wholesale; the last
// write wins.
func (d *DB) UpdateContext(sessionID string, patch map[string]any) error {
	s, err := d.GetSession(sessionID)
	if err != nil {
		return err
	}
	for k, v := range patch {
		s.Context[k] = v
	}
	blob, err := json.Marshal(s.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	_, err = d.conn.Exec(`UPDATE sessions SET context = ?, updated_at = ? WHERE session_id = ?`,
		string(blob), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("update context: %w", err)
	}
	return nil
}

// SetStage records the session's current dialogue stage.
func (d *DB) SetStage(sessionID, stage string) error {
	return d.setColumn(sessionID, "stage", stage)
}

// SetStatus records the session's lifecycle status.
func (d *DB) SetStatus(sessionID, status string) error {
	return d.setColumn(sessionID, "status", status)
}

// SetTitle renames a session.
func (d *DB) SetTitle(sessionID, title string) error {
	return d.setColumn(sessionID, "title", title)
}

func (d *DB) setColumn(sessionID, column, value string) error {
	res, err := d.conn.Exec(
		fmt.Sprintf(`UPDATE sessions SET %s = ?, updated_at = ? WHERE session_id = ?`, column),
		value, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns a user's sessions, most recently updated first.
func (d *DB) ListSessions(userID string) ([]SessionSummary, error) {
	rows, err := d.conn.Query(`SELECT session_id, title, stage, status, messages, created_at, updated_at
		FROM sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var messages string
		if err := rows.Scan(&s.SessionID, &s.Title, &s.Stage, &s.Status, &messages, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var msgs []Message
		if err := json.Unmarshal([]byte(messages), &msgs); err == nil {
			s.Messages = len(msgs)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes a session owned by userID.
func (d *DB) DeleteSession(sessionID, userID string) error {
	res, err := d.conn.Exec(`DELETE FROM sessions WHERE session_id = ? AND user_id = ?`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SweepSessions deletes inactive sessions untouched for more than the
// given number of days. Active sessions are never swept.
func (d *DB) SweepSessions(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := d.conn.Exec(`DELETE FROM sessions WHERE status != 'active' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return res.RowsAffected()
}
