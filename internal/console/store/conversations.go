package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudcrafter/console/internal/console/convo"
)

// Conversation is a persisted conversation header.
type Conversation struct {
	ID        string
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRecord is one persisted log entry.  Buttons and Plan hold the JSON
// encodings written at save time; empty means absent.
type MessageRecord struct {
	ID             string
	ConversationID string
	Role           string
	Kind           string
	Body           string
	Topic          string
	Buttons        json.RawMessage
	Plan           json.RawMessage
	CreatedAt      time.Time
}

// SaveConversation inserts the conversation header or updates its label.
// Implements convo.Recorder.
func (s *Store) SaveConversation(ctx context.Context, id, label string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, label, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET label = excluded.label, updated_at = excluded.updated_at
	`, id, label, now, now)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// SaveMessage appends one log entry.  Implements convo.Recorder.
func (s *Store) SaveMessage(ctx context.Context, conversationID string, m *convo.Message) error {
	var buttons sql.NullString
	if len(m.Buttons) > 0 {
		encoded, err := json.Marshal(m.Buttons)
		if err != nil {
			return fmt.Errorf("failed to encode buttons: %w", err)
		}
		buttons = sql.NullString{String: string(encoded), Valid: true}
	}
	var plan sql.NullString
	if len(m.Plan) > 0 {
		plan = sql.NullString{String: string(m.Plan), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, kind, body, topic, buttons, plan, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, conversationID, string(m.Role), string(m.Kind), m.Text, m.Topic, buttons, plan, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ListConversations returns all conversation headers, most recent first.
func (s *Store) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		c := &Conversation{}
		if err := rows.Scan(&c.ID, &c.Label, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return convs, nil
}

// GetConversation retrieves one conversation header by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c := &Conversation{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, label, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Label, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return c, nil
}

// ListMessages returns a conversation's log entries in append order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, kind, body, topic, buttons, plan, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*MessageRecord
	for rows.Next() {
		m := &MessageRecord{}
		var buttons, plan sql.NullString
		err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Kind, &m.Body,
			&m.Topic, &buttons, &plan, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if buttons.Valid {
			m.Buttons = json.RawMessage(buttons.String)
		}
		if plan.Valid {
			m.Plan = json.RawMessage(plan.String)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and, via the cascade, its
// messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("conversation not found: %s", id)
	}
	return nil
}
