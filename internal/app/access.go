package app

import "quiz-forms-service/internal/domain"

// IsOwner reports whether requesterID is the quiz's internal owner id or
// its legacy external owner id.
func IsOwner(quiz domain.Quiz, requesterID string) bool {
	if requesterID == "" {
		return false
	}
	return quiz.OwnerID == requesterID || quiz.OwnerExternalID == requesterID
}
