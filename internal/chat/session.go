package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lxlibrary/lx-backend/pkg/assistant"
	"github.com/lxlibrary/lx-backend/pkg/enums"
	pkgerrors "github.com/lxlibrary/lx-backend/pkg/errors"
	"github.com/lxlibrary/lx-backend/pkg/logger"
	"github.com/lxlibrary/lx-backend/pkg/metrics"
	"github.com/lxlibrary/lx-backend/pkg/storage"
)

const (
	emptyAnswerText  = "Sin respuesta"
	fallbackTemplate = "No pude contactar al backend en %s. Verifica que esté corriendo."
)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Params wires a Session.
type Params struct {
	Slots     storage.Slots
	Assistant Asker
	// BaseURL is quoted in the fallback reply when the assistant is unreachable.
	BaseURL string
	Logger  *logger.Logger
	Metrics *metrics.StateMetrics
	Clock   func() time.Time
	NewID   func() string
}

// Session holds one browsing session's chat widget state.
type Session struct {
	mu       sync.Mutex
	open     bool
	messages []Message
	pending  int

	slots     storage.Slots
	assistant Asker
	fallback  string
	logg      *logger.Logger
	metrics   *metrics.StateMetrics
	clock     func() time.Time
	newID     func() string
}

// NewSession restores the persisted message log. A malformed log starts the
// session empty.
func NewSession(ctx context.Context, p Params) (*Session, error) {
	if p.Slots == nil {
		return nil, fmt.Errorf("slot store required")
	}
	if p.Assistant == nil {
		return nil, fmt.Errorf("assistant required")
	}
	baseURL := strings.TrimRight(p.BaseURL, "/")
	if baseURL == "" {
		baseURL = assistant.DefaultBaseURL
	}
	s := &Session{
		slots:     p.Slots,
		assistant: p.Assistant,
		fallback:  fmt.Sprintf(fallbackTemplate, baseURL),
		logg:      p.Logger,
		metrics:   p.Metrics,
		clock:     p.Clock,
		newID:     p.NewID,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}

	payload, ok, err := s.slots.Load(ctx, storage.KeyChatMessages)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+storage.KeyChatMessages)
	}
	s.messages = []Message{}
	if ok {
		var restored []Message
		if err := json.Unmarshal(payload, &restored); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "chat.snapshot_corrupt")
		} else if restored != nil {
			s.messages = restored
		}
	}
	return s, nil
}

// ToggleOpen flips widget visibility and returns the new value.
func (s *Session) ToggleOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = !s.open
	return s.open
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// IsTyping reports whether any assistant request is outstanding.
func (s *Session) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Messages returns a copy of the log in display order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		IsOpen:   s.open,
		Messages: slices.Clone(s.messages),
		IsTyping: s.pending > 0,
	}
}

func (s *Session) QuickQuestions() []string {
	return QuickQuestions()
}

// SendMessage appends the user's message, asks the assistant and appends its
// reply. Remote failures become a fallback reply; nothing is returned to the
// caller. Whitespace-only text is ignored.
func (s *Session) SendMessage(ctx context.Context, text string) {
	<-s.SendMessageAsync(ctx, text)
}

// SendMessageAsync records the user's message before returning and resolves
// the assistant call in the background. The returned channel closes once the
// reply has been appended.
func (s *Session) SendMessageAsync(ctx context.Context, text string) <-chan struct{} {
	done := make(chan struct{})
	if strings.TrimSpace(text) == "" {
		close(done)
		return done
	}

	s.mu.Lock()
	s.appendLocked(ctx, enums.ChatRoleUser, text)
	s.pending++
	s.mu.Unlock()

	go func() {
		defer close(done)
		reply := s.ask(ctx, text)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.appendLocked(ctx, enums.ChatRoleAssistant, reply)
		s.pending--
	}()
	return done
}

func (s *Session) ask(ctx context.Context, question string) string {
	s.metrics.AssistantStarted()
	start := time.Now()

	answer, err := s.assistant.Ask(ctx, question)
	if err != nil {
		s.metrics.AssistantFinished(metrics.OutcomeFailure, time.Since(start))
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "chat.assistant_unreachable")
		return s.fallback
	}
	s.metrics.AssistantFinished(metrics.OutcomeSuccess, time.Since(start))
	if answer == "" {
		return emptyAnswerText
	}
	return answer
}

func (s *Session) appendLocked(ctx context.Context, role enums.ChatRole, text string) {
	s.messages = append(s.messages, Message{
		ID:        s.newID(),
		Role:      role,
		Text:      text,
		Timestamp: s.clock().UTC().Truncate(time.Millisecond),
	})
	s.metrics.IncMutation("chat_" + role.String())
	s.persistLocked(ctx)
}

// persistLocked writes the whole log. Failures are logged; the in-memory log
// stays authoritative for the rest of the session.
func (s *Session) persistLocked(ctx context.Context) {
	payload, err := json.Marshal(s.messages)
	if err == nil {
		err = s.slots.Save(ctx, storage.KeyChatMessages, payload)
	}
	if err != nil {
		s.metrics.IncSlotFailure(storage.KeyChatMessages)
		s.logg.Error(ctx, "chat.persist_failed", err)
	}
}
