package memory

import (
	"context"
	"fmt"

	"quiz-forms-service/internal/domain"
)

// storeTx mutates a private copy of the store state.
type storeTx struct {
	st state
}

func (tx *storeTx) QuizForUpdate(_ context.Context, id string) (domain.Quiz, error) {
	rec, ok := tx.st.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrNotFound
	}
	return copyQuiz(rec.quiz), nil
}

func (tx *storeTx) InsertQuiz(_ context.Context, quiz *domain.Quiz) error {
	if _, ok := tx.st.quizzes[quiz.ID]; ok {
		return fmt.Errorf("quiz %s already exists", quiz.ID)
	}
	for _, rec := range tx.st.quizzes {
		if rec.quiz.PublicID == quiz.PublicID {
			return domain.ErrPublicIDTaken
		}
	}
	tx.st.seq++
	tx.st.quizzes[quiz.ID] = quizRecord{quiz: copyQuiz(*quiz), seq: tx.st.seq}
	return nil
}

func (tx *storeTx) UpdateQuiz(_ context.Context, quiz *domain.Quiz) error {
	rec, ok := tx.st.quizzes[quiz.ID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.quiz.Title = quiz.Title
	rec.quiz.Description = quiz.Description
	rec.quiz.QuestionIDs = append([]string{}, quiz.QuestionIDs...)
	rec.quiz.UpdatedAt = quiz.UpdatedAt
	tx.st.quizzes[quiz.ID] = rec
	return nil
}

func (tx *storeTx) DeleteQuestions(_ context.Context, quizID string) error {
	for id, q := range tx.st.questions {
		if q.QuizID == quizID {
			delete(tx.st.questions, id)
		}
	}
	return nil
}

func (tx *storeTx) InsertQuestions(_ context.Context, questions []domain.Question) error {
	taken := make(map[string]map[int]struct{})
	for _, q := range tx.st.questions {
		if taken[q.QuizID] == nil {
			taken[q.QuizID] = make(map[int]struct{})
		}
		taken[q.QuizID][q.Order] = struct{}{}
	}
	for _, q := range questions {
		if _, ok := tx.st.questions[q.ID]; ok {
			return fmt.Errorf("question %s already exists", q.ID)
		}
		if taken[q.QuizID] == nil {
			taken[q.QuizID] = make(map[int]struct{})
		}
		if _, ok := taken[q.QuizID][q.Order]; ok {
			return fmt.Errorf("question order %d already used on quiz %s", q.Order, q.QuizID)
		}
		taken[q.QuizID][q.Order] = struct{}{}
	}
	for _, q := range questions {
		tx.st.questions[q.ID] = copyQuestion(q)
	}
	return nil
}

func (tx *storeTx) QuestionsByQuiz(_ context.Context, quizID string) ([]domain.Question, error) {
	return tx.st.questionsOf(quizID), nil
}

func (tx *storeTx) InsertResponse(_ context.Context, response *domain.Response) error {
	if _, ok := tx.st.responses[response.ID]; ok {
		return fmt.Errorf("response %s already exists", response.ID)
	}
	r := *response
	r.AnswerIDs = append([]string{}, r.AnswerIDs...)
	tx.st.seq++
	tx.st.responses[r.ID] = responseRecord{response: r, seq: tx.st.seq}
	return nil
}

func (tx *storeTx) InsertAnswers(_ context.Context, answers []domain.Answer) error {
	for _, a := range answers {
		if _, ok := tx.st.answers[a.ID]; ok {
			return fmt.Errorf("answer %s already exists", a.ID)
		}
	}
	for _, a := range answers {
		tx.st.answers[a.ID] = a
	}
	return nil
}

func (tx *storeTx) SetResponseAnswers(_ context.Context, responseID string, answerIDs []string) error {
	rec, ok := tx.st.responses[responseID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.response.AnswerIDs = append([]string{}, answerIDs...)
	tx.st.responses[responseID] = rec
	return nil
}

func (tx *storeTx) IncrementResponseCount(_ context.Context, quizID string) (int, error) {
	rec, ok := tx.st.quizzes[quizID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	rec.quiz.ResponseCount++
	tx.st.quizzes[quizID] = rec
	return rec.quiz.ResponseCount, nil
}
