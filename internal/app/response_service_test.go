package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"quiz-forms-service/internal/domain"
)

func TestFavoriteLanguageEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	principal, owner := f.signIn(t, "ext-ana", "ana@example.com", "Ana")
	quiz, err := f.quizzes.Create(ctx, principal, languageQuiz())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	choice, why := quiz.Questions[0], quiz.Questions[1]

	public := f.quizzes.GetQuizByPublicID(ctx, quiz.PublicID)
	if public == nil || public.Title != "Favorite Language" || public.Owner.Name != "Ana" {
		t.Fatalf("unexpected public view: %+v", public)
	}

	first, err := f.responses.Submit(ctx, domain.SubmissionInput{
		QuizID: quiz.ID,
		Answers: []domain.AnswerInput{
			{QuestionID: choice.ID, Text: "Go"},
			{QuestionID: why.ID, Text: "  simple  "},
		},
	})
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	if !first.Success || first.ResponseID == "" {
		t.Fatalf("unexpected result: %+v", first)
	}
	second, err := f.responses.Submit(ctx, domain.SubmissionInput{
		QuizID:  quiz.ID,
		Answers: []domain.AnswerInput{{QuestionID: choice.ID, Text: "Rust"}},
	})
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}

	results := f.quizzes.GetQuizWithResponses(ctx, quiz.ID, owner.ID)
	if results == nil {
		t.Fatalf("expected results for owner")
	}
	if results.ResponseCount != 2 || len(results.Responses) != 2 {
		t.Fatalf("expected 2 responses, got count=%d len=%d", results.ResponseCount, len(results.Responses))
	}
	if results.Responses[0].ID != second.ResponseID || results.Responses[1].ID != first.ResponseID {
		t.Fatalf("expected newest response first")
	}
	answers := results.Responses[1].Answers
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers[0].Question != "Pick one" || answers[0].Answer != "Go" {
		t.Fatalf("unexpected first answer: %+v", answers[0])
	}
	if answers[1].Question != "Why?" || answers[1].Answer != "simple" {
		t.Fatalf("unexpected second answer: %+v", answers[1])
	}

	// The submission invalidated the cached public view.
	if public := f.quizzes.GetQuizByPublicID(ctx, quiz.PublicID); public == nil || public.ResponseCount != 2 {
		t.Fatalf("expected refreshed public count, got %+v", public)
	}
}

func TestSubmitRejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	principal, _ := f.signIn(t, "ext-ana", "ana@example.com", "Ana")
	quiz, err := f.quizzes.Create(ctx, principal, languageQuiz())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := map[string]domain.SubmissionInput{
		"no quiz":          {Answers: []domain.AnswerInput{{QuestionID: quiz.Questions[0].ID, Text: "Go"}}},
		"no answers":       {QuizID: quiz.ID},
		"blank question":   {QuizID: quiz.ID, Answers: []domain.AnswerInput{{Text: "Go"}}},
		"foreign question": {QuizID: quiz.ID, Answers: []domain.AnswerInput{{QuestionID: "not-on-this-quiz", Text: "Go"}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := f.responses.Submit(ctx, in); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	if n, _ := f.store.CountResponses(ctx, quiz.ID); n != 0 {
		t.Fatalf("expected no responses stored, got %d", n)
	}
	if n := f.store.CountAnswers(); n != 0 {
		t.Fatalf("expected no answers stored, got %d", n)
	}
}

func TestSubmitToMissingQuiz(t *testing.T) {
	f := newFixture(t)
	_, err := f.responses.Submit(context.Background(), domain.SubmissionInput{
		QuizID:  "missing",
		Answers: []domain.AnswerInput{{QuestionID: "q", Text: "x"}},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	principal, _ := f.signIn(t, "ext-ana", "ana@example.com", "Ana")
	quiz, err := f.quizzes.Create(ctx, principal, languageQuiz())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	in := domain.SubmissionInput{
		QuizID:  quiz.ID,
		Answers: []domain.AnswerInput{{QuestionID: quiz.Questions[0].ID, Text: "Go"}},
	}

	for _, op := range []string{"InsertAnswers", "IncrementResponseCount"} {
		f.store.failNext(op, errInjected)
		if _, err := f.responses.Submit(ctx, in); !errors.Is(err, domain.ErrPersistenceFailed) {
			t.Fatalf("%s: expected persistence failure, got %v", op, err)
		}
	}

	stored, err := f.store.QuizByID(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if stored.ResponseCount != 0 {
		t.Fatalf("expected counter untouched, got %d", stored.ResponseCount)
	}
	if n, _ := f.store.CountResponses(ctx, quiz.ID); n != 0 {
		t.Fatalf("expected no responses, got %d", n)
	}
	if n := f.store.CountAnswers(); n != 0 {
		t.Fatalf("expected no answers, got %d", n)
	}
}

func TestConcurrentSubmitsKeepCounterExact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	principal, _ := f.signIn(t, "ext-ana", "ana@example.com", "Ana")
	quiz, err := f.quizzes.Create(ctx, principal, languageQuiz())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const submitters = 25
	var wg sync.WaitGroup
	errs := make(chan error, submitters)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.responses.Submit(ctx, domain.SubmissionInput{
				QuizID:  quiz.ID,
				Answers: []domain.AnswerInput{{QuestionID: quiz.Questions[1].ID, Text: "because"}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	stored, err := f.store.QuizByID(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	n, err := f.store.CountResponses(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if stored.ResponseCount != submitters || n != submitters {
		t.Fatalf("expected %d, got counter=%d stored=%d", submitters, stored.ResponseCount, n)
	}
}

func TestAnswersKeepQuestionTextAfterEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	principal, owner := f.signIn(t, "ext-ana", "ana@example.com", "Ana")
	quiz, err := f.quizzes.Create(ctx, principal, languageQuiz())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.responses.Submit(ctx, domain.SubmissionInput{
		QuizID:  quiz.ID,
		Answers: []domain.AnswerInput{{QuestionID: quiz.Questions[1].ID, Text: "fast builds"}},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	edit := domain.QuizInput{
		Title:     "Favorite Language v2",
		Questions: []domain.QuestionInput{{Text: "Anything else?", Type: domain.QuestionShortText}},
	}
	if _, err := f.quizzes.Update(ctx, owner.ID, quiz.ID, edit); err != nil {
		t.Fatalf("update: %v", err)
	}

	results := f.quizzes.GetQuizWithResponses(ctx, quiz.ID, owner.ID)
	if results == nil || len(results.Responses) != 1 {
		t.Fatalf("expected one response, got %+v", results)
	}
	answers := results.Responses[0].Answers
	if len(answers) != 1 || answers[0].Question != "Why?" || answers[0].Answer != "fast builds" {
		t.Fatalf("expected snapshot text, got %+v", answers)
	}
}

func TestSubmitNotifiesSubscribers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	principal, _ := f.signIn(t, "ext-ana", "ana@example.com", "Ana")
	quiz, err := f.quizzes.Create(ctx, principal, languageQuiz())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updates, cancel := f.feed.Subscribe(quiz.ID)
	defer cancel()

	result, err := f.responses.Submit(ctx, domain.SubmissionInput{
		QuizID:  quiz.ID,
		Answers: []domain.AnswerInput{{QuestionID: quiz.Questions[0].ID, Text: "Go"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	update := <-updates
	if update.QuizID != quiz.ID || update.ResponseID != result.ResponseID || update.ResponseCount != 1 {
		t.Fatalf("unexpected update: %+v", update)
	}

	f.store.failNext("IncrementResponseCount", errInjected)
	if _, err := f.responses.Submit(ctx, domain.SubmissionInput{
		QuizID:  quiz.ID,
		Answers: []domain.AnswerInput{{QuestionID: quiz.Questions[0].ID, Text: "Go"}},
	}); err == nil {
		t.Fatalf("expected failure")
	}
	select {
	case update := <-updates:
		t.Fatalf("unexpected update after rollback: %+v", update)
	default:
	}
}
