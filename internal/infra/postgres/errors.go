package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-forms-service/internal/domain"
)

const uniqueViolation = "23505"

// uniqueViolationOn reports whether err is a unique violation of constraint,
// for either driver.
func uniqueViolationOn(err error, constraint string) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == uniqueViolation && (constraint == "" || pgErr.Field('n') == constraint)
	}
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == uniqueViolation && (constraint == "" || pgxErr.ConstraintName == constraint)
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
