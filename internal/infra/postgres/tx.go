package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"quiz-forms-service/internal/domain"
)

type storeTx struct {
	tx bun.Tx
}

func (t *storeTx) QuizForUpdate(ctx context.Context, id string) (domain.Quiz, error) {
	var row quizRow
	if err := t.tx.NewSelect().Model(&row).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
		return domain.Quiz{}, notFound(err)
	}
	return quizFromRow(row), nil
}

func (t *storeTx) InsertQuiz(ctx context.Context, quiz *domain.Quiz) error {
	row := quizToRow(*quiz)
	if _, err := t.tx.NewInsert().Model(&row).Exec(ctx); err != nil {
		if uniqueViolationOn(err, "quizzes_public_id_key") {
			return domain.ErrPublicIDTaken
		}
		return err
	}
	return nil
}

func (t *storeTx) UpdateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	row := quizToRow(*quiz)
	res, err := t.tx.NewUpdate().
		Model(&row).
		Column("title", "description", "question_ids", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *storeTx) DeleteQuestions(ctx context.Context, quizID string) error {
	_, err := t.tx.NewDelete().Model((*questionRow)(nil)).Where("quiz_id = ?", quizID).Exec(ctx)
	return err
}

// InsertQuestions issues one multi-row INSERT, so the batch lands whole or not at all.
func (t *storeTx) InsertQuestions(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, questionToRow(q))
	}
	_, err := t.tx.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func (t *storeTx) QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error) {
	return selectQuestions(ctx, t.tx, "quiz_id = ?", quizID)
}

func (t *storeTx) InsertResponse(ctx context.Context, response *domain.Response) error {
	row := responseRow{
		ID:        response.ID,
		QuizID:    response.QuizID,
		AnswerIDs: nonNil(response.AnswerIDs),
		CreatedAt: response.CreatedAt,
		UpdatedAt: response.CreatedAt,
	}
	_, err := t.tx.NewInsert().Model(&row).Exec(ctx)
	return err
}

// InsertAnswers keeps the caller's order in a single multi-row INSERT.
func (t *storeTx) InsertAnswers(ctx context.Context, answers []domain.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	rows := make([]answerRow, 0, len(answers))
	for _, a := range answers {
		rows = append(rows, answerToRow(a))
	}
	_, err := t.tx.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func (t *storeTx) SetResponseAnswers(ctx context.Context, responseID string, answerIDs []string) error {
	res, err := t.tx.NewUpdate().
		Model((*responseRow)(nil)).
		Set("answer_ids = ?", pgdialect.Array(nonNil(answerIDs))).
		Set("updated_at = now()").
		Where("id = ?", responseID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *storeTx) IncrementResponseCount(ctx context.Context, quizID string) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx,
		`UPDATE quizzes SET response_count = response_count + 1 WHERE id = ? RETURNING response_count`,
		quizID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment: %w", notFound(err))
	}
	return count, nil
}
