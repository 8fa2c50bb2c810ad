package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-forms-service/internal/app"
	"quiz-forms-service/internal/domain"
)

// WSHandler streams live response counts to a quiz's owner.
type WSHandler struct {
	quizzes  *app.QuizService
	feed     *app.ResponseFeed
	auth     *Authenticator
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(quizzes *app.QuizService, feed *app.ResponseFeed, auth *Authenticator, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		quizzes: quizzes,
		feed:    feed,
		auth:    auth,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/quizzes/{id}/responses", h.auth.Require(h.ServeWS))
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the owner's request and pushes a "count" message for the
// current total and after every committed submission.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	quizID := r.PathValue("id")
	quiz, ok := h.quizzes.OwnedQuiz(r.Context(), quizID, id.user.ID)
	if !ok {
		writeError(w, domain.ErrNotFound)
		return
	}

	updates, cancel := h.feed.Subscribe(quizID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "quiz_id", quizID, "err", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[domain.ResponseCountUpdate], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer; gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "quiz_id", quizID, "err", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[domain.ResponseCountUpdate]{Type: "count", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[domain.ResponseCountUpdate]{Type: "count", Payload: domain.ResponseCountUpdate{
		QuizID:        quiz.ID,
		ResponseCount: quiz.ResponseCount,
	}}

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
