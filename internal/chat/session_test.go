package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lxlibrary/lx-backend/pkg/assistant"
	"github.com/lxlibrary/lx-backend/pkg/enums"
	"github.com/lxlibrary/lx-backend/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type askerFunc func(ctx context.Context, question string) (string, error)

func (f askerFunc) Ask(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

func echoAsker() askerFunc {
	return func(_ context.Context, q string) (string, error) {
		return "re: " + q, nil
	}
}

func newTestSession(t *testing.T, slots storage.Slots, asker Asker) *Session {
	t.Helper()
	var seq atomic.Int64
	session, err := NewSession(context.Background(), Params{
		Slots:     slots,
		Assistant: asker,
		BaseURL:   "http://assistant.test",
		Clock:     func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC) },
		NewID:     func() string { return fmt.Sprintf("m-%d", seq.Add(1)) },
	})
	require.NoError(t, err)
	return session
}

func TestSendMessageAppendsUserAndAssistant(t *testing.T) {
	session := newTestSession(t, storage.NewMemory(), echoAsker())

	session.SendMessage(context.Background(), "hola")

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, enums.ChatRoleUser, msgs[0].Role)
	assert.Equal(t, "hola", msgs[0].Text)
	assert.Equal(t, enums.ChatRoleAssistant, msgs[1].Role)
	assert.Equal(t, "re: hola", msgs[1].Text)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.False(t, session.IsTyping())
}

func TestSendMessageIgnoresBlankText(t *testing.T) {
	var calls atomic.Int32
	session := newTestSession(t, storage.NewMemory(), askerFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "x", nil
	}))

	session.SendMessage(context.Background(), "   \t\n")
	session.SendMessage(context.Background(), "")

	assert.Empty(t, session.Messages())
	assert.False(t, session.IsTyping())
	assert.Zero(t, calls.Load())
}

func TestEmptyAnswerBecomesPlaceholder(t *testing.T) {
	session := newTestSession(t, storage.NewMemory(), askerFunc(func(context.Context, string) (string, error) {
		return "", nil
	}))

	session.SendMessage(context.Background(), "¿hay alguien?")

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Sin respuesta", msgs[1].Text)
}

func TestAssistantFailureAppendsFallback(t *testing.T) {
	session := newTestSession(t, storage.NewMemory(), askerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("connection refused")
	}))

	session.SendMessage(context.Background(), "hola")

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, enums.ChatRoleAssistant, msgs[1].Role)
	assert.Equal(t, "No pude contactar al backend en http://assistant.test. Verifica que esté corriendo.", msgs[1].Text)
	assert.False(t, session.IsTyping())
}

func TestFallbackUsesDefaultBaseURL(t *testing.T) {
	session, err := NewSession(context.Background(), Params{
		Slots: storage.NewMemory(),
		Assistant: askerFunc(func(context.Context, string) (string, error) {
			return "", errors.New("down")
		}),
	})
	require.NoError(t, err)

	session.SendMessage(context.Background(), "hola")
	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "No pude contactar al backend en http://localhost:8000. Verifica que esté corriendo.", msgs[1].Text)
}

func TestNonSuccessStatusFromAssistantServiceFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := assistant.NewClient(srv.URL)
	session, err := NewSession(context.Background(), Params{
		Slots:     storage.NewMemory(),
		Assistant: client,
		BaseURL:   client.BaseURL(),
	})
	require.NoError(t, err)

	session.SendMessage(context.Background(), "hola")
	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, fmt.Sprintf("No pude contactar al backend en %s. Verifica que esté corriendo.", srv.URL), msgs[1].Text)
}

func TestTypingWhileRequestOutstanding(t *testing.T) {
	release := make(chan struct{})
	session := newTestSession(t, storage.NewMemory(), askerFunc(func(context.Context, string) (string, error) {
		<-release
		return "listo", nil
	}))

	done := session.SendMessageAsync(context.Background(), "hola")

	assert.True(t, session.IsTyping())
	msgs := session.Messages()
	require.Len(t, msgs, 1, "user message is visible before the reply")
	assert.Equal(t, enums.ChatRoleUser, msgs[0].Role)

	close(release)
	<-done

	assert.False(t, session.IsTyping())
	assert.Len(t, session.Messages(), 2)
}

func TestOverlappingSendsKeepUserOrderAndReplyCompletionOrder(t *testing.T) {
	gates := map[string]chan struct{}{
		"primera": make(chan struct{}),
		"segunda": make(chan struct{}),
	}
	session := newTestSession(t, storage.NewMemory(), askerFunc(func(_ context.Context, q string) (string, error) {
		<-gates[q]
		return "re: " + q, nil
	}))

	first := session.SendMessageAsync(context.Background(), "primera")
	second := session.SendMessageAsync(context.Background(), "segunda")

	close(gates["segunda"])
	<-second
	assert.True(t, session.IsTyping(), "one request is still outstanding")

	close(gates["primera"])
	<-first
	assert.False(t, session.IsTyping())

	var texts []string
	for _, m := range session.Messages() {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"primera", "segunda", "re: segunda", "re: primera"}, texts)
}

func TestMessagesSurviveReload(t *testing.T) {
	slots := storage.NewMemory()
	first := newTestSession(t, slots, echoAsker())
	first.SendMessage(context.Background(), "hola")
	first.SendMessage(context.Background(), "chao")

	second := newTestSession(t, slots, echoAsker())
	assert.Equal(t, first.Messages(), second.Messages())
	assert.False(t, second.IsOpen(), "visibility is not persisted")
}

func TestPersistedLogShape(t *testing.T) {
	slots := storage.NewMemory()
	session := newTestSession(t, slots, echoAsker())
	session.SendMessage(context.Background(), "hola")

	payload, ok, err := slots.Load(context.Background(), storage.KeyChatMessages)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[
		{"id":"m-1","role":"user","text":"hola","ts":1709294400123},
		{"id":"m-2","role":"assistant","text":"re: hola","ts":1709294400123}
	]`, string(payload))
}

func TestCorruptLogStartsEmpty(t *testing.T) {
	slots := storage.NewMemory()
	require.NoError(t, slots.Save(context.Background(), storage.KeyChatMessages, []byte(`[{"id":"x","role":"robot"}]`)))

	session := newTestSession(t, slots, echoAsker())
	assert.Empty(t, session.Messages())
}

func TestPersistFailureIsAbsorbed(t *testing.T) {
	session := newTestSession(t, failingSlots{}, echoAsker())

	session.SendMessage(context.Background(), "hola")
	assert.Len(t, session.Messages(), 2)
}

func TestLoadFailureIsReturned(t *testing.T) {
	_, err := NewSession(context.Background(), Params{
		Slots:     failingSlots{loadErr: errors.New("redis down")},
		Assistant: echoAsker(),
	})
	require.Error(t, err)
}

func TestToggleOpen(t *testing.T) {
	session := newTestSession(t, storage.NewMemory(), echoAsker())

	assert.True(t, session.ToggleOpen())
	assert.True(t, session.Snapshot().IsOpen)
	assert.False(t, session.ToggleOpen())
	assert.False(t, session.IsOpen())
}

func TestQuickQuestionsReturnsCopy(t *testing.T) {
	qs := QuickQuestions()
	require.Len(t, qs, 4)
	assert.Equal(t, "¿Cuál es el período de préstamo?", qs[0])

	qs[0] = "mutated"
	assert.Equal(t, "¿Cuál es el período de préstamo?", QuickQuestions()[0])
}

type failingSlots struct {
	loadErr error
}

func (f failingSlots) Load(context.Context, string) ([]byte, bool, error) {
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	return nil, false, nil
}

func (failingSlots) Save(context.Context, string, []byte) error {
	return errors.New("write refused")
}
