package chat

import (
	"context"
	"net/http"

	"github.com/lxlibrary/lx-backend/api/middleware"
	"github.com/lxlibrary/lx-backend/api/responses"
	"github.com/lxlibrary/lx-backend/api/validators"
	chatsvc "github.com/lxlibrary/lx-backend/internal/chat"
	pkgerrors "github.com/lxlibrary/lx-backend/pkg/errors"
	"github.com/lxlibrary/lx-backend/pkg/logger"
)

// SessionResolver yields the chat session for a browsing session id.
type SessionResolver interface {
	Session(ctx context.Context, sessionID string) (*chatsvc.Session, error)
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type toggleResponse struct {
	IsOpen bool `json:"isOpen"`
}

type quickQuestionsResponse struct {
	Questions []string `json:"questions"`
}

// ChatFetch returns the widget state: visibility, log and typing indicator.
func ChatFetch(sessions SessionResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := resolveSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.Snapshot())
	}
}

func ChatToggle(sessions SessionResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := resolveSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toggleResponse{IsOpen: session.ToggleOpen()})
	}
}

// ChatSendMessage posts a user message. By default the handler waits for the
// assistant's reply; with ?wait=false it answers 202 as soon as the user
// message is recorded and the reply lands in the log later.
func ChatSendMessage(sessions SessionResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := resolveSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wait, err := validators.ParseQueryBool(r, "wait", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sendMessageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !wait {
			session.SendMessageAsync(context.WithoutCancel(r.Context()), payload.Text)
			responses.WriteSuccessStatus(w, http.StatusAccepted, session.Snapshot())
			return
		}

		// A client hang-up must not turn a healthy reply into the fallback.
		session.SendMessage(context.WithoutCancel(r.Context()), payload.Text)
		responses.WriteSuccess(w, session.Snapshot())
	}
}

func ChatQuickQuestions(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, quickQuestionsResponse{Questions: chatsvc.QuickQuestions()})
	}
}

func resolveSession(r *http.Request, sessions SessionResolver) (*chatsvc.Session, error) {
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "chat sessions unavailable")
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing "+middleware.SessionIDHeader+" header")
	}
	return sessions.Session(r.Context(), sessionID)
}
