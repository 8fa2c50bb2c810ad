package app

import (
	"sort"

	"quiz-forms-service/internal/domain"
)

const unknownOwner = "Unknown"

func questionViews(questions []domain.Question) []domain.QuestionView {
	sorted := make([]domain.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	views := make([]domain.QuestionView, 0, len(sorted))
	for _, q := range sorted {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		views = append(views, domain.QuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Options: options,
			Order:   q.Order,
		})
	}
	return views
}

// ProjectQuizDetail builds the authoring view. owner may be nil when the
// linked user no longer resolves.
func ProjectQuizDetail(quiz domain.Quiz, questions []domain.Question, owner *domain.User) domain.QuizDetail {
	detail := domain.QuizDetail{
		ID:              quiz.ID,
		PublicID:        quiz.PublicID,
		Title:           quiz.Title,
		Description:     quiz.Description,
		OwnerExternalID: quiz.OwnerExternalID,
		Owner:           domain.OwnerView{ID: quiz.OwnerID},
		Questions:       questionViews(questions),
		Published:       quiz.Published,
		ResponseCount:   quiz.ResponseCount,
		CreatedAt:       quiz.CreatedAt,
		UpdatedAt:       quiz.UpdatedAt,
	}
	if owner != nil {
		detail.Owner = domain.OwnerView{ID: owner.ID, Email: owner.Email}
	}
	return detail
}

// ProjectPublicQuiz builds the anonymous view. The owner id exposed is the
// external identity, never the internal one.
func ProjectPublicQuiz(quiz domain.Quiz, questions []domain.Question, owner *domain.User) domain.PublicQuiz {
	view := domain.PublicQuiz{
		ID:            quiz.ID,
		PublicID:      quiz.PublicID,
		Title:         quiz.Title,
		Description:   quiz.Description,
		CreatedAt:     quiz.CreatedAt,
		Owner:         domain.OwnerView{Name: unknownOwner},
		Questions:     questionViews(questions),
		ResponseCount: quiz.ResponseCount,
		Published:     quiz.Published,
	}
	if owner != nil {
		if owner.Name != "" {
			view.Owner.Name = owner.Name
		}
		view.Owner.ID = owner.ExternalID
	}
	return view
}

// ProjectResponses joins answers to question text. A question that no
// longer exists falls back to the text captured at submission.
func ProjectResponses(responses []domain.Response, answers []domain.Answer, questions []domain.Question) []domain.ResponseView {
	byID := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		byID[a.ID] = a
	}
	questionText := make(map[string]string, len(questions))
	for _, q := range questions {
		questionText[q.ID] = q.Text
	}

	views := make([]domain.ResponseView, 0, len(responses))
	for _, r := range responses {
		view := domain.ResponseView{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			Answers:   make([]domain.AnswerView, 0, len(r.AnswerIDs)),
		}
		for _, id := range r.AnswerIDs {
			a, ok := byID[id]
			if !ok {
				continue
			}
			text, ok := questionText[a.QuestionID]
			if !ok {
				text = a.QuestionText
			}
			view.Answers = append(view.Answers, domain.AnswerView{
				QuestionID: a.QuestionID,
				Question:   text,
				Answer:     a.Text,
			})
		}
		views = append(views, view)
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views
}

func groupQuestions(questions []domain.Question) map[string][]domain.Question {
	grouped := make(map[string][]domain.Question)
	for _, q := range questions {
		grouped[q.QuizID] = append(grouped[q.QuizID], q)
	}
	return grouped
}

func indexUsers(users []domain.User) map[string]*domain.User {
	out := make(map[string]*domain.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out
}
