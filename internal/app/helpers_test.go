package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"quiz-forms-service/internal/app"
	"quiz-forms-service/internal/domain"
	"quiz-forms-service/internal/infra/memory"
)

var errInjected = errors.New("injected failure")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepClock hands out strictly increasing timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// faultyStore wraps the memory store and fails selected transaction steps.
type faultyStore struct {
	*memory.Store

	mu    sync.Mutex
	fails map[string][]error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.NewStore(), fails: make(map[string][]error)}
}

// failNext queues err for the next call to the named Tx method.
func (s *faultyStore) failNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[op] = append(s.fails[op], err)
}

func (s *faultyStore) take(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.fails[op]
	if len(queue) == 0 {
		return nil
	}
	s.fails[op] = queue[1:]
	return queue[0]
}

func (s *faultyStore) RunInTx(ctx context.Context, fn app.TxFunc) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		return fn(ctx, &faultyTx{Tx: tx, store: s})
	})
}

type faultyTx struct {
	app.Tx
	store *faultyStore
}

func (t *faultyTx) InsertQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if err := t.store.take("InsertQuiz"); err != nil {
		return err
	}
	return t.Tx.InsertQuiz(ctx, quiz)
}

func (t *faultyTx) UpdateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if err := t.store.take("UpdateQuiz"); err != nil {
		return err
	}
	return t.Tx.UpdateQuiz(ctx, quiz)
}

func (t *faultyTx) InsertAnswers(ctx context.Context, answers []domain.Answer) error {
	if err := t.store.take("InsertAnswers"); err != nil {
		return err
	}
	return t.Tx.InsertAnswers(ctx, answers)
}

func (t *faultyTx) IncrementResponseCount(ctx context.Context, quizID string) (int, error) {
	if err := t.store.take("IncrementResponseCount"); err != nil {
		return 0, err
	}
	return t.Tx.IncrementResponseCount(ctx, quizID)
}

type fixture struct {
	store     *faultyStore
	identity  *app.IdentityService
	quizzes   *app.QuizService
	responses *app.ResponseService
	feed      *app.ResponseFeed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFaultyStore()
	clock := newStepClock()
	feed := app.NewResponseFeed()
	logger := discardLogger()
	cache := memory.NewPublicQuizCache(time.Minute)
	return &fixture{
		store:     store,
		identity:  app.NewIdentityService(store, logger),
		quizzes:   app.NewQuizServiceWithClock(store, cache, logger, clock.Now),
		responses: app.NewResponseServiceWithClock(store, cache, feed, logger, clock.Now),
		feed:      feed,
	}
}

// signIn resolves a principal into a local user, as the auth middleware does.
func (f *fixture) signIn(t *testing.T, externalID, email, name string) (domain.Principal, domain.User) {
	t.Helper()
	p := domain.Principal{ID: externalID, Email: email, Name: name}
	user, err := f.identity.Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("resolve %s: %v", externalID, err)
	}
	return p, user
}

func languageQuiz() domain.QuizInput {
	return domain.QuizInput{
		Title:       "Favorite Language",
		Description: "Tell us what you write",
		Questions: []domain.QuestionInput{
			{Text: "Pick one", Type: domain.QuestionSingleChoice, Options: []string{"Go", "Rust"}},
			{Text: "Why?", Type: domain.QuestionShortText},
		},
	}
}
