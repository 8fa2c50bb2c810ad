package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-forms-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         string    `bun:"id,pk"`
	Email      string    `bun:"email,notnull"`
	Name       string    `bun:"name,notnull"`
	ExternalID string    `bun:"external_id,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID              string    `bun:"id,pk"`
	Title           string    `bun:"title,notnull"`
	Description     string    `bun:"description,notnull"`
	PublicID        string    `bun:"public_id,notnull"`
	OwnerID         string    `bun:"owner_id,notnull"`
	OwnerExternalID string    `bun:"owner_external_id,notnull"`
	QuestionIDs     []string  `bun:"question_ids,array"`
	Published       bool      `bun:"is_published,notnull"`
	ResponseCount   int       `bun:"response_count,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qs"`

	ID        string    `bun:"id,pk"`
	QuizID    string    `bun:"quiz_id,notnull"`
	Text      string    `bun:"text,notnull"`
	Type      string    `bun:"type,notnull"`
	Options   []string  `bun:"options,array"`
	Position  int       `bun:"position,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type responseRow struct {
	bun.BaseModel `bun:"table:responses,alias:r"`

	ID        string    `bun:"id,pk"`
	QuizID    string    `bun:"quiz_id,notnull"`
	AnswerIDs []string  `bun:"answer_ids,array"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID           string    `bun:"id,pk"`
	ResponseID   string    `bun:"response_id,notnull"`
	QuestionID   string    `bun:"question_id,notnull"`
	QuestionText string    `bun:"question_text,notnull"`
	Text         string    `bun:"text,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// nonNil keeps array columns off NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func userFromRow(r userRow) domain.User {
	return domain.User{
		ID:         r.ID,
		Email:      r.Email,
		Name:       r.Name,
		ExternalID: r.ExternalID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func userToRow(u domain.User) userRow {
	return userRow{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		ExternalID: u.ExternalID,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func quizFromRow(r quizRow) domain.Quiz {
	return domain.Quiz{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		PublicID:        r.PublicID,
		OwnerID:         r.OwnerID,
		OwnerExternalID: r.OwnerExternalID,
		QuestionIDs:     nonNil(r.QuestionIDs),
		Published:       r.Published,
		ResponseCount:   r.ResponseCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func quizToRow(q domain.Quiz) quizRow {
	return quizRow{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		PublicID:        q.PublicID,
		OwnerID:         q.OwnerID,
		OwnerExternalID: q.OwnerExternalID,
		QuestionIDs:     nonNil(q.QuestionIDs),
		Published:       q.Published,
		ResponseCount:   q.ResponseCount,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

func questionFromRow(r questionRow) domain.Question {
	return domain.Question{
		ID:        r.ID,
		QuizID:    r.QuizID,
		Text:      r.Text,
		Type:      domain.QuestionType(r.Type),
		Options:   nonNil(r.Options),
		Order:     r.Position,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func questionToRow(q domain.Question) questionRow {
	return questionRow{
		ID:        q.ID,
		QuizID:    q.QuizID,
		Text:      q.Text,
		Type:      string(q.Type),
		Options:   nonNil(q.Options),
		Position:  q.Order,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
}

func responseFromRow(r responseRow) domain.Response {
	return domain.Response{
		ID:        r.ID,
		QuizID:    r.QuizID,
		AnswerIDs: nonNil(r.AnswerIDs),
		CreatedAt: r.CreatedAt,
	}
}

func answerFromRow(r answerRow) domain.Answer {
	return domain.Answer{
		ID:           r.ID,
		ResponseID:   r.ResponseID,
		QuestionID:   r.QuestionID,
		QuestionText: r.QuestionText,
		Text:         r.Text,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func answerToRow(a domain.Answer) answerRow {
	return answerRow{
		ID:           a.ID,
		ResponseID:   a.ResponseID,
		QuestionID:   a.QuestionID,
		QuestionText: a.QuestionText,
		Text:         a.Text,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
