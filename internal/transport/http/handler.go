package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quiz-forms-service/internal/app"
	"quiz-forms-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// Handler exposes the quiz and response operations as a JSON API.
type Handler struct {
	quizzes   *app.QuizService
	responses *app.ResponseService
	auth      *Authenticator
	logger    *slog.Logger
}

func NewHandler(quizzes *app.QuizService, responses *app.ResponseService, auth *Authenticator, logger *slog.Logger) *Handler {
	return &Handler{quizzes: quizzes, responses: responses, auth: auth, logger: logger}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/sync", h.auth.Require(h.syncUser))
	mux.HandleFunc("POST /api/quizzes", h.auth.Require(h.createQuiz))
	mux.HandleFunc("PUT /api/quizzes/{id}", h.auth.Require(h.updateQuiz))
	mux.HandleFunc("GET /api/quizzes/{id}", h.auth.Require(h.getQuiz))
	mux.HandleFunc("GET /api/quizzes/{id}/responses", h.auth.Require(h.getQuizResponses))
	mux.HandleFunc("GET /api/me/quizzes", h.auth.Require(h.listMyQuizzes))
	mux.HandleFunc("GET /api/public/quizzes", h.listPublicQuizzes)
	mux.HandleFunc("GET /api/public/quizzes/{publicId}", h.getPublicQuiz)
	mux.HandleFunc("POST /api/quizzes/{id}/submissions", h.submitResponse)
}

type userPayload struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	ExternalID string `json:"externalId"`
}

func (h *Handler) syncUser(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user": userPayload{
			ID:         id.user.ID,
			Email:      id.user.Email,
			Name:       id.user.Name,
			ExternalID: id.user.ExternalID,
		},
	})
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var in domain.QuizInput
	if !h.decode(w, r, &in) {
		return
	}
	quiz, err := h.quizzes.Create(r.Context(), id.principal, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"quizId":   quiz.ID,
		"publicId": quiz.PublicID,
		"quiz":     quiz,
	})
}

func (h *Handler) updateQuiz(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var in domain.QuizInput
	if !h.decode(w, r, &in) {
		return
	}
	quiz, err := h.quizzes.Update(r.Context(), id.user.ID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quiz": quiz})
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz := h.quizzes.GetQuizByID(r.Context(), r.PathValue("id"))
	if quiz == nil {
		writeError(w, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) getQuizResponses(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	result := h.quizzes.GetQuizWithResponses(r.Context(), r.PathValue("id"), id.user.ID)
	if result == nil {
		writeError(w, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listMyQuizzes(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, h.quizzes.ListQuizzesByOwner(r.Context(), id.principal.ID))
}

func (h *Handler) listPublicQuizzes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.quizzes.ListPublicQuizzes(r.Context()))
}

func (h *Handler) getPublicQuiz(w http.ResponseWriter, r *http.Request) {
	quiz := h.quizzes.GetQuizByPublicID(r.Context(), r.PathValue("publicId"))
	if quiz == nil {
		writeError(w, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) submitResponse(w http.ResponseWriter, r *http.Request) {
	var in domain.SubmissionInput
	if !h.decode(w, r, &in) {
		return
	}
	in.QuizID = r.PathValue("id")
	result, err := h.responses.Submit(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.logger.Debug("bad request body", "path", r.URL.Path, "err", err)
		writeError(w, domain.ErrInvalidInput)
		return false
	}
	return true
}

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// writeError maps domain errors to a status and a user-safe message.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "Validation failed", Details: verr.Fields})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid input"})
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Not authenticated"})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "Unauthorized"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Request failed, please try again"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
