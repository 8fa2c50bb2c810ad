package app

import (
	"context"

	"quiz-forms-service/internal/domain"
)

// UserStore persists local user records. Lookups return domain.ErrNotFound
// when nothing matches.
type UserStore interface {
	UserByExternalID(ctx context.Context, externalID string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	// CreateUser returns domain.ErrDuplicateUser when email or external id is taken.
	CreateUser(ctx context.Context, user *domain.User) error
	LinkExternalID(ctx context.Context, userID, externalID string) error
}

// QuizReader serves the read projections outside of any transaction.
type QuizReader interface {
	QuizByID(ctx context.Context, id string) (domain.Quiz, error)
	QuizByPublicID(ctx context.Context, publicID string) (domain.Quiz, error)
	// PublishedQuizzes returns published quizzes, newest first.
	PublishedQuizzes(ctx context.Context, limit int) ([]domain.Quiz, error)
	// QuizzesByOwner matches either linkage, newest first.
	QuizzesByOwner(ctx context.Context, ownerID, ownerExternalID string) ([]domain.Quiz, error)
	// QuestionsByQuizIDs returns questions grouped by quiz and sorted by order.
	QuestionsByQuizIDs(ctx context.Context, quizIDs []string) ([]domain.Question, error)
	// ResponsesByQuiz returns responses newest first.
	ResponsesByQuiz(ctx context.Context, quizID string) ([]domain.Response, error)
	AnswersByResponseIDs(ctx context.Context, responseIDs []string) ([]domain.Answer, error)
	CountResponses(ctx context.Context, quizID string) (int, error)
}

// Tx stages the writes of one aggregate operation. Nothing is visible to
// readers until the enclosing RunInTx returns nil.
type Tx interface {
	// QuizForUpdate loads and locks the quiz row for the rest of the transaction.
	QuizForUpdate(ctx context.Context, id string) (domain.Quiz, error)
	// InsertQuiz returns domain.ErrPublicIDTaken on token collision.
	InsertQuiz(ctx context.Context, quiz *domain.Quiz) error
	// UpdateQuiz writes title, description, question ids and updated_at.
	UpdateQuiz(ctx context.Context, quiz *domain.Quiz) error
	DeleteQuestions(ctx context.Context, quizID string) error
	InsertQuestions(ctx context.Context, questions []domain.Question) error
	QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error)
	InsertResponse(ctx context.Context, response *domain.Response) error
	// InsertAnswers inserts in slice order and fails as a whole.
	InsertAnswers(ctx context.Context, answers []domain.Answer) error
	SetResponseAnswers(ctx context.Context, responseID string, answerIDs []string) error
	// IncrementResponseCount applies a relative +1 and returns the new count.
	IncrementResponseCount(ctx context.Context, quizID string) (int, error)
}

// TxFunc is the body of a transaction. Returning an error rolls back.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the full persistence contract used by the services.
type Store interface {
	UserStore
	QuizReader
	RunInTx(ctx context.Context, fn TxFunc) error
}

// PublicQuizCache fronts the anonymous read paths. Absent results are not cached.
type PublicQuizCache interface {
	PublicQuiz(ctx context.Context, publicID string, load func(context.Context) (*domain.PublicQuiz, error)) (*domain.PublicQuiz, error)
	PublicListing(ctx context.Context, load func(context.Context) ([]domain.PublicQuiz, error)) ([]domain.PublicQuiz, error)
	// Invalidate drops the cached quiz for publicID and the listing.
	Invalidate(ctx context.Context, publicID string)
}

// CountNotifier receives committed response-count changes.
type CountNotifier interface {
	NotifyResponseCount(ctx context.Context, update domain.ResponseCountUpdate)
}
