package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quiz-forms-service/internal/domain"
)

const (
	// PublicListingLimit caps the public listing page.
	PublicListingLimit = 100

	maxPublicIDAttempts = 5
)

// QuizService owns the quiz aggregate (quiz + ordered questions) and the
// read projections built from it.
type QuizService struct {
	store  Store
	cache  PublicQuizCache
	logger *slog.Logger
	now    func() time.Time
}

// NewQuizService wires the service. A nil cache disables caching.
func NewQuizService(store Store, cache PublicQuizCache, logger *slog.Logger) *QuizService {
	if cache == nil {
		cache = passthroughCache{}
	}
	return &QuizService{store: store, cache: cache, logger: logger, now: time.Now}
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(store Store, cache PublicQuizCache, logger *slog.Logger, now func() time.Time) *QuizService {
	s := NewQuizService(store, cache, logger)
	s.now = now
	return s
}

// Create persists a published quiz and its questions as one unit for the
// verified principal. in.OwnerID defaults to the principal.
func (s *QuizService) Create(ctx context.Context, principal domain.Principal, in domain.QuizInput) (domain.QuizDetail, error) {
	in = NormalizeQuiz(in)
	if err := ValidateQuiz(in); err != nil {
		return domain.QuizDetail{}, err
	}
	if in.OwnerID == "" {
		in.OwnerID = principal.ID
	}
	if principal.ID == "" || principal.ID != in.OwnerID {
		return domain.QuizDetail{}, domain.ErrUnauthorized
	}

	owner, err := s.store.UserByExternalID(ctx, in.OwnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.QuizDetail{}, fmt.Errorf("owner: %w", domain.ErrNotFound)
		}
		s.logger.Error("create quiz failed", "op", "create_quiz", "owner", in.OwnerID, "err", err)
		return domain.QuizDetail{}, fmt.Errorf("create quiz: %w", domain.ErrPersistenceFailed)
	}

	var (
		quiz      domain.Quiz
		questions []domain.Question
	)
	for attempt := 1; ; attempt++ {
		publicID, err := NewPublicID()
		if err != nil {
			s.logger.Error("create quiz failed", "op", "create_quiz", "err", err)
			return domain.QuizDetail{}, fmt.Errorf("create quiz: %w", domain.ErrPersistenceFailed)
		}
		quiz, questions, err = s.createOnce(ctx, owner, in, publicID)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrPublicIDTaken) && attempt < maxPublicIDAttempts {
			s.logger.Warn("public id collision, retrying", "op", "create_quiz", "public_id", publicID, "attempt", attempt)
			continue
		}
		s.logger.Error("create quiz failed", "op", "create_quiz", "quiz_id", quiz.ID, "err", err)
		return domain.QuizDetail{}, fmt.Errorf("create quiz: %w", domain.ErrPersistenceFailed)
	}

	s.cache.Invalidate(ctx, quiz.PublicID)
	s.logger.Info("quiz created", "quiz_id", quiz.ID, "public_id", quiz.PublicID, "questions", len(questions))
	return ProjectQuizDetail(quiz, questions, &owner), nil
}

func (s *QuizService) createOnce(ctx context.Context, owner domain.User, in domain.QuizInput, publicID string) (domain.Quiz, []domain.Question, error) {
	now := s.now().UTC()
	quiz := domain.Quiz{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		PublicID:        publicID,
		OwnerID:         owner.ID,
		OwnerExternalID: owner.ExternalID,
		QuestionIDs:     []string{},
		Published:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	questions := buildQuestions(quiz.ID, in.Questions, now)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertQuiz(ctx, &quiz); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		if err := tx.InsertQuestions(ctx, questions); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		quiz.QuestionIDs = questionIDs(questions)
		if err := tx.UpdateQuiz(ctx, &quiz); err != nil {
			return fmt.Errorf("link questions: %w", err)
		}
		return nil
	})
	return quiz, questions, err
}

// Update replaces the quiz's title, description and entire question set.
// Prior question ids are discarded.
func (s *QuizService) Update(ctx context.Context, requesterID, quizID string, in domain.QuizInput) (domain.QuizDetail, error) {
	in = NormalizeQuiz(in)
	if err := ValidateQuiz(in); err != nil {
		return domain.QuizDetail{}, err
	}

	quiz, err := s.store.QuizByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.QuizDetail{}, domain.ErrNotFound
		}
		s.logger.Error("update quiz failed", "op", "update_quiz", "quiz_id", quizID, "err", err)
		return domain.QuizDetail{}, fmt.Errorf("update quiz: %w", domain.ErrPersistenceFailed)
	}
	if !IsOwner(quiz, requesterID) {
		s.logger.Warn("update quiz denied", "op", "update_quiz", "quiz_id", quizID, "requester", requesterID)
		return domain.QuizDetail{}, domain.ErrUnauthorized
	}

	now := s.now().UTC()
	var questions []domain.Question
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.QuizForUpdate(ctx, quizID)
		if err != nil {
			return err
		}
		if !IsOwner(current, requesterID) {
			return domain.ErrUnauthorized
		}
		if err := tx.DeleteQuestions(ctx, quizID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		questions = buildQuestions(quizID, in.Questions, now)
		if err := tx.InsertQuestions(ctx, questions); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		current.Title = in.Title
		current.Description = in.Description
		current.QuestionIDs = questionIDs(questions)
		current.UpdatedAt = now
		if err := tx.UpdateQuiz(ctx, &current); err != nil {
			return fmt.Errorf("update quiz: %w", err)
		}
		quiz = current
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return domain.QuizDetail{}, domain.ErrNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return domain.QuizDetail{}, domain.ErrUnauthorized
	default:
		s.logger.Error("update quiz failed", "op", "update_quiz", "quiz_id", quizID, "err", err)
		return domain.QuizDetail{}, fmt.Errorf("update quiz: %w", domain.ErrPersistenceFailed)
	}

	s.cache.Invalidate(ctx, quiz.PublicID)
	s.logger.Info("quiz updated", "quiz_id", quiz.ID, "questions", len(questions))
	return ProjectQuizDetail(quiz, questions, s.owner(ctx, quiz.OwnerID)), nil
}

// GetQuizByID returns the quiz with ordered questions and its owner, or nil.
func (s *QuizService) GetQuizByID(ctx context.Context, id string) *domain.QuizDetail {
	quiz, err := s.store.QuizByID(ctx, id)
	if err != nil {
		s.readFailed("get_quiz", err, "quiz_id", id)
		return nil
	}
	questions, err := s.store.QuestionsByQuizIDs(ctx, []string{quiz.ID})
	if err != nil {
		s.readFailed("get_quiz", err, "quiz_id", id)
		return nil
	}
	detail := ProjectQuizDetail(quiz, questions, s.owner(ctx, quiz.OwnerID))
	return &detail
}

// GetQuizByPublicID returns a published quiz by token. Absent and
// unpublished quizzes both yield nil.
func (s *QuizService) GetQuizByPublicID(ctx context.Context, publicID string) *domain.PublicQuiz {
	if publicID == "" {
		return nil
	}
	view, err := s.cache.PublicQuiz(ctx, publicID, func(ctx context.Context) (*domain.PublicQuiz, error) {
		quiz, err := s.store.QuizByPublicID(ctx, publicID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if !quiz.Published {
			return nil, nil
		}
		questions, err := s.store.QuestionsByQuizIDs(ctx, []string{quiz.ID})
		if err != nil {
			return nil, err
		}
		view := ProjectPublicQuiz(quiz, questions, s.owner(ctx, quiz.OwnerID))
		return &view, nil
	})
	if err != nil {
		s.readFailed("get_public_quiz", err, "public_id", publicID)
		return nil
	}
	return view
}

// ListPublicQuizzes returns up to PublicListingLimit published quizzes,
// newest first. Owners and questions are resolved in one batch each.
func (s *QuizService) ListPublicQuizzes(ctx context.Context) []domain.PublicQuiz {
	views, err := s.cache.PublicListing(ctx, func(ctx context.Context) ([]domain.PublicQuiz, error) {
		quizzes, err := s.store.PublishedQuizzes(ctx, PublicListingLimit)
		if err != nil {
			return nil, err
		}
		questions, err := s.store.QuestionsByQuizIDs(ctx, quizIDs(quizzes))
		if err != nil {
			return nil, err
		}
		users, err := s.store.UsersByIDs(ctx, ownerIDs(quizzes))
		if err != nil {
			return nil, err
		}
		byQuiz := groupQuestions(questions)
		owners := indexUsers(users)
		views := make([]domain.PublicQuiz, 0, len(quizzes))
		for _, q := range quizzes {
			views = append(views, ProjectPublicQuiz(q, byQuiz[q.ID], owners[q.OwnerID]))
		}
		return views, nil
	})
	if err != nil {
		s.readFailed("list_public_quizzes", err)
		return []domain.PublicQuiz{}
	}
	if views == nil {
		return []domain.PublicQuiz{}
	}
	return views
}

// ListQuizzesByOwner returns the quizzes linked to the external identity
// through either the internal user id or the legacy external id.
func (s *QuizService) ListQuizzesByOwner(ctx context.Context, ownerExternalID string) []domain.QuizDetail {
	if ownerExternalID == "" {
		return []domain.QuizDetail{}
	}
	var owner *domain.User
	user, err := s.store.UserByExternalID(ctx, ownerExternalID)
	switch {
	case err == nil:
		owner = &user
	case !errors.Is(err, domain.ErrNotFound):
		s.readFailed("list_owner_quizzes", err, "owner", ownerExternalID)
		return []domain.QuizDetail{}
	}

	ownerID := ""
	if owner != nil {
		ownerID = owner.ID
	}
	quizzes, err := s.store.QuizzesByOwner(ctx, ownerID, ownerExternalID)
	if err != nil {
		s.readFailed("list_owner_quizzes", err, "owner", ownerExternalID)
		return []domain.QuizDetail{}
	}
	questions, err := s.store.QuestionsByQuizIDs(ctx, quizIDs(quizzes))
	if err != nil {
		s.readFailed("list_owner_quizzes", err, "owner", ownerExternalID)
		return []domain.QuizDetail{}
	}
	byQuiz := groupQuestions(questions)
	details := make([]domain.QuizDetail, 0, len(quizzes))
	for _, q := range quizzes {
		details = append(details, ProjectQuizDetail(q, byQuiz[q.ID], owner))
	}
	return details
}

// GetQuizWithResponses returns the quiz with every response, newest first,
// or nil when the quiz is absent or requesterID does not own it.
func (s *QuizService) GetQuizWithResponses(ctx context.Context, quizID, requesterID string) *domain.QuizWithResponses {
	quiz, err := s.store.QuizByID(ctx, quizID)
	if err != nil {
		s.readFailed("get_quiz_responses", err, "quiz_id", quizID)
		return nil
	}
	if !IsOwner(quiz, requesterID) {
		s.logger.Warn("results denied", "op", "get_quiz_responses", "quiz_id", quizID, "requester", requesterID)
		return nil
	}

	questions, err := s.store.QuestionsByQuizIDs(ctx, []string{quiz.ID})
	if err != nil {
		s.readFailed("get_quiz_responses", err, "quiz_id", quizID)
		return nil
	}
	result := &domain.QuizWithResponses{
		QuizDetail: ProjectQuizDetail(quiz, questions, s.owner(ctx, quiz.OwnerID)),
		Responses:  []domain.ResponseView{},
	}

	responses, err := s.store.ResponsesByQuiz(ctx, quiz.ID)
	if err != nil {
		s.readFailed("get_quiz_responses", err, "quiz_id", quizID)
		return result
	}
	if len(responses) == 0 {
		return result
	}
	responseIDs := make([]string, 0, len(responses))
	for _, r := range responses {
		responseIDs = append(responseIDs, r.ID)
	}
	answers, err := s.store.AnswersByResponseIDs(ctx, responseIDs)
	if err != nil {
		s.readFailed("get_quiz_responses", err, "quiz_id", quizID)
		return result
	}
	result.Responses = ProjectResponses(responses, answers, questions)
	return result
}

// OwnedQuiz returns the stored quiz when requesterID owns it.
func (s *QuizService) OwnedQuiz(ctx context.Context, quizID, requesterID string) (domain.Quiz, bool) {
	quiz, err := s.store.QuizByID(ctx, quizID)
	if err != nil {
		s.readFailed("owned_quiz", err, "quiz_id", quizID)
		return domain.Quiz{}, false
	}
	return quiz, IsOwner(quiz, requesterID)
}

func (s *QuizService) owner(ctx context.Context, ownerID string) *domain.User {
	if ownerID == "" {
		return nil
	}
	users, err := s.store.UsersByIDs(ctx, []string{ownerID})
	if err != nil {
		s.readFailed("resolve_owner", err, "user_id", ownerID)
		return nil
	}
	if len(users) == 0 {
		return nil
	}
	return &users[0]
}

func (s *QuizService) readFailed(op string, err error, attrs ...any) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	s.logger.Error("read failed", append([]any{"op", op, "err", err}, attrs...)...)
}

func buildQuestions(quizID string, inputs []domain.QuestionInput, now time.Time) []domain.Question {
	questions := make([]domain.Question, 0, len(inputs))
	for i, in := range inputs {
		options := []string{}
		if in.Type == domain.QuestionSingleChoice {
			options = append(options, in.Options...)
		}
		questions = append(questions, domain.Question{
			ID:        uuid.NewString(),
			QuizID:    quizID,
			Text:      in.Text,
			Type:      in.Type,
			Options:   options,
			Order:     i,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return questions
}

func questionIDs(questions []domain.Question) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func quizIDs(quizzes []domain.Quiz) []string {
	ids := make([]string, 0, len(quizzes))
	for _, q := range quizzes {
		ids = append(ids, q.ID)
	}
	return ids
}

func ownerIDs(quizzes []domain.Quiz) []string {
	seen := make(map[string]struct{}, len(quizzes))
	ids := make([]string, 0, len(quizzes))
	for _, q := range quizzes {
		if q.OwnerID == "" {
			continue
		}
		if _, ok := seen[q.OwnerID]; ok {
			continue
		}
		seen[q.OwnerID] = struct{}{}
		ids = append(ids, q.OwnerID)
	}
	return ids
}

type passthroughCache struct{}

func (passthroughCache) PublicQuiz(ctx context.Context, _ string, load func(context.Context) (*domain.PublicQuiz, error)) (*domain.PublicQuiz, error) {
	return load(ctx)
}

func (passthroughCache) PublicListing(ctx context.Context, load func(context.Context) ([]domain.PublicQuiz, error)) ([]domain.PublicQuiz, error) {
	return load(ctx)
}

func (passthroughCache) Invalidate(context.Context, string) {}
