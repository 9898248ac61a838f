package chat

import (
	"encoding/json"
	"time"

	"github.com/lxlibrary/lx-backend/pkg/enums"
)

// Message is one entry of the conversation log.
type Message struct {
	ID        string
	Role      enums.ChatRole
	Text      string
	Timestamp time.Time
}

type messageJSON struct {
	ID   string         `json:"id"`
	Role enums.ChatRole `json:"role"`
	Text string         `json:"text"`
	TS   int64          `json:"ts"`
}

// MarshalJSON encodes the timestamp as epoch milliseconds.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:   m.ID,
		Role: m.Role,
		Text: m.Text,
		TS:   m.Timestamp.UnixMilli(),
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	role, err := enums.ParseChatRole(string(raw.Role))
	if err != nil {
		return err
	}
	*m = Message{
		ID:        raw.ID,
		Role:      role,
		Text:      raw.Text,
		Timestamp: time.UnixMilli(raw.TS).UTC(),
	}
	return nil
}

// State is a point-in-time view of a session.
type State struct {
	IsOpen   bool      `json:"isOpen"`
	Messages []Message `json:"messages"`
	IsTyping bool      `json:"isTyping"`
}

var quickQuestions = []string{
	"¿Cuál es el período de préstamo?",
	"¿Cómo renovar un libro?",
	"¿Cuánto cuesta la multa por día?",
	"¿Cómo buscar un libro específico?",
}

// QuickQuestions lists the canned questions offered next to the chat input.
func QuickQuestions() []string {
	out := make([]string, len(quickQuestions))
	copy(out, quickQuestions)
	return out
}
