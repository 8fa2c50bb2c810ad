package domain

import "time"

// OwnerView is the minimal owner identity exposed on read views.
type OwnerView struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// QuestionView is the external shape of a question.
type QuestionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options"`
	Order   int          `json:"order"`
}

// QuizDetail is a quiz with resolved questions and owner, used by the
// authoring flows.
type QuizDetail struct {
	ID              string         `json:"id"`
	PublicID        string         `json:"publicId"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	OwnerExternalID string         `json:"userId"`
	Owner           OwnerView      `json:"user"`
	Questions       []QuestionView `json:"questions"`
	Published       bool           `json:"isPublished"`
	ResponseCount   int            `json:"responseCount"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// PublicQuiz is the anonymous-facing view of a published quiz.
type PublicQuiz struct {
	ID            string         `json:"id"`
	PublicID      string         `json:"publicId"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	CreatedAt     time.Time      `json:"createdAt"`
	Owner         OwnerView      `json:"user"`
	Questions     []QuestionView `json:"questions"`
	ResponseCount int            `json:"responseCount"`
	Published     bool           `json:"isPublished"`
}

// AnswerView joins an answer to the text of the question it answers.
type AnswerView struct {
	QuestionID string `json:"questionId"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// ResponseView is a response with its answers in submission order.
type ResponseView struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Answers   []AnswerView `json:"answers"`
}

// QuizWithResponses is the owner's results view.
type QuizWithResponses struct {
	QuizDetail
	Responses []ResponseView `json:"responses"`
}
