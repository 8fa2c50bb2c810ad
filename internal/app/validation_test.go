package app

import (
	"errors"
	"testing"

	"quiz-forms-service/internal/domain"
)

func TestNormalizeQuizTrimsAndDropsOptions(t *testing.T) {
	in := NormalizeQuiz(domain.QuizInput{
		Title:       "  Languages  ",
		Description: " about ",
		Questions: []domain.QuestionInput{
			{Text: " Pick ", Type: domain.QuestionSingleChoice, Options: []string{" Go ", "", "Rust"}},
			{Text: "Why", Type: domain.QuestionShortText, Options: []string{"ignored"}},
		},
	})
	if in.Title != "Languages" || in.Description != "about" {
		t.Fatalf("expected trimmed header, got %+v", in)
	}
	if got := in.Questions[0].Options; len(got) != 2 || got[0] != "Go" || got[1] != "Rust" {
		t.Fatalf("unexpected choice options: %q", got)
	}
	if got := in.Questions[1].Options; got == nil || len(got) != 0 {
		t.Fatalf("expected empty options for short text, got %q", got)
	}
}

func TestValidateQuiz(t *testing.T) {
	valid := domain.QuizInput{
		Title:     "Languages",
		Questions: []domain.QuestionInput{{Text: "Why?", Type: domain.QuestionShortText, Options: []string{}}},
	}
	if err := ValidateQuiz(valid); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	cases := []struct {
		name  string
		in    domain.QuizInput
		field string
	}{
		{"missing title", domain.QuizInput{Questions: valid.Questions}, "title"},
		{"long description", domain.QuizInput{Title: "Languages", Description: string(make([]byte, 501)), Questions: valid.Questions}, "description"},
		{"no questions", domain.QuizInput{Title: "Languages", Questions: []domain.QuestionInput{}}, "questions"},
		{"short question", domain.QuizInput{Title: "Languages", Questions: []domain.QuestionInput{{Text: "Hi", Type: domain.QuestionShortText}}}, "questions[0].text"},
		{"bad type", domain.QuizInput{Title: "Languages", Questions: []domain.QuestionInput{{Text: "Which?", Type: "MULTI"}}}, "questions[0].type"},
		{"one option", domain.QuizInput{Title: "Languages", Questions: []domain.QuestionInput{{Text: "Which?", Type: domain.QuestionSingleChoice, Options: []string{"Go"}}}}, "questions[0].options"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuiz(tc.in)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected %q in %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestNewPublicID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := NewPublicID()
		if err != nil {
			t.Fatalf("new public id: %v", err)
		}
		if len(id) != 8 {
			t.Fatalf("expected 8 chars, got %q", id)
		}
		for _, r := range id {
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				t.Fatalf("unexpected rune %q in %q", r, id)
			}
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 199 {
		t.Fatalf("too many collisions: %d unique", len(seen))
	}
}

func TestIsOwner(t *testing.T) {
	quiz := domain.Quiz{OwnerID: "user-1", OwnerExternalID: "ext-1"}
	if !IsOwner(quiz, "user-1") || !IsOwner(quiz, "ext-1") {
		t.Fatalf("expected either linkage to match")
	}
	if IsOwner(quiz, "") || IsOwner(quiz, "user-2") {
		t.Fatalf("expected mismatch to fail")
	}
	if IsOwner(domain.Quiz{}, "") {
		t.Fatalf("empty requester must never match")
	}
}
