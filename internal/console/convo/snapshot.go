package convo

import (
	"encoding/json"
	"time"
)

// MessageView is the read-only projection of a log entry served to the
// presentation layer.
type MessageView struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Kind      MessageKind     `json:"kind"`
	Text      string          `json:"text"`
	Topic     string          `json:"topic,omitempty"`
	Buttons   []Button        `json:"buttons,omitempty"`
	Plan      json.RawMessage `json:"plan,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	// Confirmable is true when the entry carries a pending confirm action.
	Confirmable bool `json:"confirmable"`
}

// Button mirrors payload.Button for the presentation boundary.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Snapshot is the complete read-only view of a conversation.
type Snapshot struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Status      string          `json:"status"`
	Busy        bool            `json:"busy"`
	InputLocked bool            `json:"input_locked"`
	Cost        json.RawMessage `json:"cost,omitempty"`
	Messages    []MessageView   `json:"messages"`
}

// Snapshot returns a point-in-time copy of the conversation state.  The
// returned value shares nothing mutable with the conversation.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]MessageView, 0, len(c.messages))
	for _, m := range c.messages {
		v := MessageView{
			ID:          m.ID,
			Role:        m.Role,
			Kind:        m.Kind,
			Text:        m.Text,
			Topic:       m.Topic,
			Plan:        m.Plan,
			CreatedAt:   m.CreatedAt,
			Confirmable: m.confirm != nil,
		}
		for _, b := range m.Buttons {
			v.Buttons = append(v.Buttons, Button{Label: b.Label, Value: b.Value})
		}
		views = append(views, v)
	}

	return Snapshot{
		ID:          c.id,
		Label:       c.label,
		Status:      c.status,
		Busy:        c.busy || c.pollBusy,
		InputLocked: c.inputLocked,
		Cost:        c.cost,
		Messages:    views,
	}
}
