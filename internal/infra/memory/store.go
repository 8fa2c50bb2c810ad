package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quiz-forms-service/internal/app"
	"quiz-forms-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Transactions run on a
// copy of the state and swap it in on commit; writers are serialised.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      state
}

type state struct {
	seq       int64
	users     map[string]domain.User
	quizzes   map[string]quizRecord
	questions map[string]domain.Question
	responses map[string]responseRecord
	answers   map[string]domain.Answer
}

type quizRecord struct {
	quiz domain.Quiz
	seq  int64
}

type responseRecord struct {
	response domain.Response
	seq      int64
}

var _ app.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: state{
		users:     make(map[string]domain.User),
		quizzes:   make(map[string]quizRecord),
		questions: make(map[string]domain.Question),
		responses: make(map[string]responseRecord),
		answers:   make(map[string]domain.Answer),
	}}
}

func (s state) clone() state {
	out := state{
		seq:       s.seq,
		users:     make(map[string]domain.User, len(s.users)),
		quizzes:   make(map[string]quizRecord, len(s.quizzes)),
		questions: make(map[string]domain.Question, len(s.questions)),
		responses: make(map[string]responseRecord, len(s.responses)),
		answers:   make(map[string]domain.Answer, len(s.answers)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.quizzes {
		out.quizzes[k] = v
	}
	for k, v := range s.questions {
		out.questions[k] = v
	}
	for k, v := range s.responses {
		out.responses[k] = v
	}
	for k, v := range s.answers {
		out.answers[k] = v
	}
	return out
}

// RunInTx implements app.Store.
func (s *Store) RunInTx(ctx context.Context, fn app.TxFunc) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	tx := &storeTx{st: s.st.clone()}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	s.st = tx.st
	s.mu.Unlock()
	return nil
}

func (s *Store) UserByExternalID(_ context.Context, externalID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.st.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *Store) UserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *Store) UsersByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.st.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.Email == user.Email || u.ExternalID == user.ExternalID {
			return domain.ErrDuplicateUser
		}
	}
	s.st.users[user.ID] = *user
	return nil
}

func (s *Store) LinkExternalID(_ context.Context, userID, externalID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, other := range s.st.users {
		if other.ID != userID && other.ExternalID == externalID {
			return domain.ErrDuplicateUser
		}
	}
	u.ExternalID = externalID
	s.st.users[userID] = u
	return nil
}

func (s *Store) QuizByID(_ context.Context, id string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.st.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrNotFound
	}
	return copyQuiz(rec.quiz), nil
}

func (s *Store) QuizByPublicID(_ context.Context, publicID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.st.quizzes {
		if rec.quiz.PublicID == publicID {
			return copyQuiz(rec.quiz), nil
		}
	}
	return domain.Quiz{}, domain.ErrNotFound
}

func (s *Store) PublishedQuizzes(_ context.Context, limit int) ([]domain.Quiz, error) {
	return s.selectQuizzes(limit, func(q domain.Quiz) bool { return q.Published }), nil
}

func (s *Store) QuizzesByOwner(_ context.Context, ownerID, ownerExternalID string) ([]domain.Quiz, error) {
	return s.selectQuizzes(0, func(q domain.Quiz) bool {
		return (ownerID != "" && q.OwnerID == ownerID) || (ownerExternalID != "" && q.OwnerExternalID == ownerExternalID)
	}), nil
}

func (s *Store) selectQuizzes(limit int, match func(domain.Quiz) bool) []domain.Quiz {
	s.mu.RLock()
	recs := make([]quizRecord, 0)
	for _, rec := range s.st.quizzes {
		if match(rec.quiz) {
			recs = append(recs, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].quiz.CreatedAt.Equal(recs[j].quiz.CreatedAt) {
			return recs[i].quiz.CreatedAt.After(recs[j].quiz.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]domain.Quiz, 0, len(recs))
	for _, rec := range recs {
		out = append(out, copyQuiz(rec.quiz))
	}
	return out
}

func (s *Store) QuestionsByQuizIDs(_ context.Context, quizIDs []string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0)
	for _, id := range quizIDs {
		out = append(out, s.st.questionsOf(id)...)
	}
	return out, nil
}

func (s *Store) ResponsesByQuiz(_ context.Context, quizID string) ([]domain.Response, error) {
	s.mu.RLock()
	recs := make([]responseRecord, 0)
	for _, rec := range s.st.responses {
		if rec.response.QuizID == quizID {
			recs = append(recs, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].response.CreatedAt.Equal(recs[j].response.CreatedAt) {
			return recs[i].response.CreatedAt.After(recs[j].response.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})
	out := make([]domain.Response, 0, len(recs))
	for _, rec := range recs {
		r := rec.response
		r.AnswerIDs = append([]string{}, r.AnswerIDs...)
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) AnswersByResponseIDs(_ context.Context, responseIDs []string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(responseIDs))
	for _, id := range responseIDs {
		wanted[id] = struct{}{}
	}
	out := make([]domain.Answer, 0)
	for _, a := range s.st.answers {
		if _, ok := wanted[a.ResponseID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CountResponses(_ context.Context, quizID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.st.responses {
		if rec.response.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

// CountQuestions reports every stored question referencing quizID,
// including ones no longer listed on the quiz.
func (s *Store) CountQuestions(quizID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.questionsOf(quizID))
}

// CountAnswers reports the total number of stored answers.
func (s *Store) CountAnswers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.answers)
}

func (st state) questionsOf(quizID string) []domain.Question {
	out := make([]domain.Question, 0)
	for _, q := range st.questions {
		if q.QuizID == quizID {
			out = append(out, copyQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func copyQuiz(q domain.Quiz) domain.Quiz {
	q.QuestionIDs = append([]string{}, q.QuestionIDs...)
	return q
}

func copyQuestion(q domain.Question) domain.Question {
	q.Options = append([]string{}, q.Options...)
	return q
}
