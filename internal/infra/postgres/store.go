package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"quiz-forms-service/internal/app"
	"quiz-forms-service/internal/domain"
)

// Store implements app.Store on Postgres through bun.
type Store struct {
	conn *Connector
}

var _ app.Store = (*Store)(nil)

func NewStore(conn *Connector) *Store {
	return &Store{conn: conn}
}

// RunInTx runs fn in a database transaction; bun rolls back on error or panic.
func (s *Store) RunInTx(ctx context.Context, fn app.TxFunc) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &storeTx{tx: tx})
	})
}

func (s *Store) UserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	return s.userWhere(ctx, "external_id = ?", externalID)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.userWhere(ctx, "email = ?", email)
}

func (s *Store) userWhere(ctx context.Context, where string, arg any) (domain.User, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return domain.User{}, err
	}
	var row userRow
	if err := db.NewSelect().Model(&row).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		return domain.User{}, notFound(err)
	}
	return userFromRow(row), nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err := db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, userFromRow(r))
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	row := userToRow(*user)
	if _, err := db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if uniqueViolationOn(err, "") {
			return domain.ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) LinkExternalID(ctx context.Context, userID, externalID string) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	res, err := db.NewUpdate().
		Model((*userRow)(nil)).
		Set("external_id = ?", externalID).
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		if uniqueViolationOn(err, "users_external_id_key") {
			return domain.ErrDuplicateUser
		}
		return fmt.Errorf("link external id: %w", err)
	}
	return requireRow(res)
}

func (s *Store) QuizByID(ctx context.Context, id string) (domain.Quiz, error) {
	return s.quizWhere(ctx, "id = ?", id)
}

func (s *Store) QuizByPublicID(ctx context.Context, publicID string) (domain.Quiz, error) {
	return s.quizWhere(ctx, "public_id = ?", publicID)
}

func (s *Store) quizWhere(ctx context.Context, where string, arg any) (domain.Quiz, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	var row quizRow
	if err := db.NewSelect().Model(&row).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		return domain.Quiz{}, notFound(err)
	}
	return quizFromRow(row), nil
}

func (s *Store) PublishedQuizzes(ctx context.Context, limit int) ([]domain.Quiz, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []quizRow
	q := db.NewSelect().Model(&rows).Where("is_published").Order("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select published quizzes: %w", err)
	}
	return quizzesFromRows(rows), nil
}

func (s *Store) QuizzesByOwner(ctx context.Context, ownerID, ownerExternalID string) ([]domain.Quiz, error) {
	if ownerID == "" && ownerExternalID == "" {
		return []domain.Quiz{}, nil
	}
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []quizRow
	err = db.NewSelect().
		Model(&rows).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if ownerID != "" {
				q = q.WhereOr("owner_id = ?", ownerID)
			}
			if ownerExternalID != "" {
				q = q.WhereOr("owner_external_id = ?", ownerExternalID)
			}
			return q
		}).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select owner quizzes: %w", err)
	}
	return quizzesFromRows(rows), nil
}

func (s *Store) QuestionsByQuizIDs(ctx context.Context, quizIDs []string) ([]domain.Question, error) {
	if len(quizIDs) == 0 {
		return []domain.Question{}, nil
	}
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	return selectQuestions(ctx, db, "quiz_id IN (?)", bun.In(quizIDs))
}

func (s *Store) ResponsesByQuiz(ctx context.Context, quizID string) ([]domain.Response, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []responseRow
	err = db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select responses: %w", err)
	}
	out := make([]domain.Response, 0, len(rows))
	for _, r := range rows {
		out = append(out, responseFromRow(r))
	}
	return out, nil
}

func (s *Store) AnswersByResponseIDs(ctx context.Context, responseIDs []string) ([]domain.Answer, error) {
	if len(responseIDs) == 0 {
		return []domain.Answer{}, nil
	}
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []answerRow
	if err := db.NewSelect().Model(&rows).Where("response_id IN (?)", bun.In(responseIDs)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, answerFromRow(r))
	}
	return out, nil
}

func (s *Store) CountResponses(ctx context.Context, quizID string) (int, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return 0, err
	}
	n, err := db.NewSelect().Model((*responseRow)(nil)).Where("quiz_id = ?", quizID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return n, nil
}

func selectQuestions(ctx context.Context, db bun.IDB, where string, arg any) ([]domain.Question, error) {
	var rows []questionRow
	err := db.NewSelect().
		Model(&rows).
		Where(where, arg).
		Order("quiz_id", "position").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, questionFromRow(r))
	}
	return out, nil
}

func quizzesFromRows(rows []quizRow) []domain.Quiz {
	out := make([]domain.Quiz, 0, len(rows))
	for _, r := range rows {
		out = append(out, quizFromRow(r))
	}
	return out
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
