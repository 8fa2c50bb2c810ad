package domain

import "time"

// QuestionType is either single-choice or short-text.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "SINGLE_CHOICE"
	QuestionShortText    QuestionType = "SHORT_TEXT"
)

// Principal is an identity already verified by the external provider.
type Principal struct {
	ID    string
	Email string
	Name  string
}

// User is the local record linked to an external identity.
type User struct {
	ID         string
	Email      string
	Name       string
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Quiz is the aggregate root of a quiz and its ordered questions.
// OwnerExternalID is the legacy linkage kept alongside OwnerID.
type Quiz struct {
	ID              string
	Title           string
	Description     string
	PublicID        string
	OwnerID         string
	OwnerExternalID string
	QuestionIDs     []string
	Published       bool
	ResponseCount   int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Question belongs to exactly one quiz; Order is zero-based and dense.
type Question struct {
	ID        string
	QuizID    string
	Text      string
	Type      QuestionType
	Options   []string
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Response is one submission against a quiz.
type Response struct {
	ID        string
	QuizID    string
	AnswerIDs []string
	CreatedAt time.Time
}

// Answer references its question by id only. QuestionText is the
// question's text at submission time.
type Answer struct {
	ID           string
	ResponseID   string
	QuestionID   string
	QuestionText string
	Text         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// QuestionInput is one authored question in a create/update payload.
type QuestionInput struct {
	Text    string       `json:"text" validate:"required,min=3"`
	Type    QuestionType `json:"type" validate:"required,oneof=SINGLE_CHOICE SHORT_TEXT"`
	Options []string     `json:"options"`
}

// QuizInput is the create/update payload. OwnerID is the external identity
// the quiz is created for; it is ignored on update.
type QuizInput struct {
	Title       string          `json:"title" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"max=500"`
	OwnerID     string          `json:"userId"`
	Questions   []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// AnswerInput is one submitted answer, in display order.
type AnswerInput struct {
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
}

// SubmissionInput is the payload of a response submission.
type SubmissionInput struct {
	QuizID  string        `json:"quizId"`
	Answers []AnswerInput `json:"answers"`
}

// SubmissionResult is returned after a response is recorded.
type SubmissionResult struct {
	Success    bool   `json:"success"`
	ResponseID string `json:"responseId"`
}

// ResponseCountUpdate is pushed to live subscribers after each submission.
type ResponseCountUpdate struct {
	QuizID        string `json:"quizId"`
	ResponseID    string `json:"responseId"`
	ResponseCount int    `json:"responseCount"`
}
