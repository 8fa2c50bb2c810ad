package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-forms-service/internal/domain"
)

// ResponseService records submissions: a response, its answers and the
// quiz counter increment commit together.
type ResponseService struct {
	store    Store
	cache    PublicQuizCache
	notifier CountNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewResponseService wires the recorder. cache and notifier may be nil.
func NewResponseService(store Store, cache PublicQuizCache, notifier CountNotifier, logger *slog.Logger) *ResponseService {
	if cache == nil {
		cache = passthroughCache{}
	}
	return &ResponseService{store: store, cache: cache, notifier: notifier, logger: logger, now: time.Now}
}

// NewResponseServiceWithClock is test-only for deterministic timestamps.
func NewResponseServiceWithClock(store Store, cache PublicQuizCache, notifier CountNotifier, logger *slog.Logger, now func() time.Time) *ResponseService {
	s := NewResponseService(store, cache, notifier, logger)
	s.now = now
	return s
}

// Submit records one response. Answers are persisted in the given order.
// Every answer must reference a question currently on the quiz.
func (s *ResponseService) Submit(ctx context.Context, in domain.SubmissionInput) (domain.SubmissionResult, error) {
	in.QuizID = strings.TrimSpace(in.QuizID)
	if in.QuizID == "" || len(in.Answers) == 0 {
		s.logger.Warn("invalid submission", "op", "submit_response", "quiz_id", in.QuizID, "answers", len(in.Answers))
		return domain.SubmissionResult{}, domain.ErrInvalidInput
	}
	for _, a := range in.Answers {
		if strings.TrimSpace(a.QuestionID) == "" {
			return domain.SubmissionResult{}, fmt.Errorf("%w: answer without question id", domain.ErrInvalidInput)
		}
	}

	now := s.now().UTC()
	response := domain.Response{
		ID:        uuid.NewString(),
		QuizID:    in.QuizID,
		AnswerIDs: []string{},
		CreatedAt: now,
	}
	var count int
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		// Holding the quiz row keeps a concurrent edit from swapping the
		// question set between validation and insert.
		if _, err := tx.QuizForUpdate(ctx, in.QuizID); err != nil {
			return err
		}
		questions, err := tx.QuestionsByQuiz(ctx, in.QuizID)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		texts := make(map[string]string, len(questions))
		for _, q := range questions {
			texts[q.ID] = q.Text
		}

		if err := tx.InsertResponse(ctx, &response); err != nil {
			return fmt.Errorf("insert response: %w", err)
		}

		answers := make([]domain.Answer, 0, len(in.Answers))
		for i, a := range in.Answers {
			text, ok := texts[a.QuestionID]
			if !ok {
				return fmt.Errorf("%w: answer %d references unknown question", domain.ErrInvalidInput, i)
			}
			answers = append(answers, domain.Answer{
				ID:           uuid.NewString(),
				ResponseID:   response.ID,
				QuestionID:   a.QuestionID,
				QuestionText: text,
				Text:         strings.TrimSpace(a.Text),
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if err := tx.InsertAnswers(ctx, answers); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}

		ids := make([]string, 0, len(answers))
		for _, a := range answers {
			ids = append(ids, a.ID)
		}
		if err := tx.SetResponseAnswers(ctx, response.ID, ids); err != nil {
			return fmt.Errorf("link answers: %w", err)
		}
		response.AnswerIDs = ids

		count, err = tx.IncrementResponseCount(ctx, in.QuizID)
		if err != nil {
			return fmt.Errorf("increment response count: %w", err)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput):
		s.logger.Warn("submission rejected", "op", "submit_response", "quiz_id", in.QuizID, "err", err)
		return domain.SubmissionResult{}, domain.ErrInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return domain.SubmissionResult{}, domain.ErrNotFound
	default:
		s.logger.Error("submission failed", "op", "submit_response", "quiz_id", in.QuizID, "response_id", response.ID, "err", err)
		return domain.SubmissionResult{}, fmt.Errorf("submit response: %w", domain.ErrPersistenceFailed)
	}

	s.afterCommit(ctx, response, count)
	return domain.SubmissionResult{Success: true, ResponseID: response.ID}, nil
}

func (s *ResponseService) afterCommit(ctx context.Context, response domain.Response, count int) {
	s.logger.Info("response recorded", "quiz_id", response.QuizID, "response_id", response.ID, "answers", len(response.AnswerIDs))

	quiz, err := s.store.QuizByID(ctx, response.QuizID)
	if err == nil {
		s.cache.Invalidate(ctx, quiz.PublicID)
	}
	if s.notifier != nil {
		s.notifier.NotifyResponseCount(ctx, domain.ResponseCountUpdate{
			QuizID:        response.QuizID,
			ResponseID:    response.ID,
			ResponseCount: count,
		})
	}
}
