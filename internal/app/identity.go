package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-forms-service/internal/domain"
)

// IdentityService maps verified external principals to local users.
type IdentityService struct {
	users  UserStore
	logger *slog.Logger
	now    func() time.Time
}

func NewIdentityService(users UserStore, logger *slog.Logger) *IdentityService {
	return &IdentityService{users: users, logger: logger, now: time.Now}
}

// Resolve returns the user linked to the principal, linking by email or
// creating a record on first sight. It returns domain.ErrNotAuthenticated
// when the principal has no id or email; callers treat that as a no-op.
func (s *IdentityService) Resolve(ctx context.Context, p domain.Principal) (domain.User, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Email = strings.TrimSpace(p.Email)
	if p.ID == "" || p.Email == "" {
		return domain.User{}, domain.ErrNotAuthenticated
	}

	user, err := s.lookup(ctx, p)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = p.Email
	}
	now := s.now().UTC()
	user = domain.User{
		ID:         uuid.NewString(),
		Email:      p.Email,
		Name:       name,
		ExternalID: p.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			// A concurrent resolve won the insert; converge on its record.
			return s.lookup(ctx, p)
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created", "user_id", user.ID, "external_id", p.ID)
	return user, nil
}

func (s *IdentityService) lookup(ctx context.Context, p domain.Principal) (domain.User, error) {
	user, err := s.users.UserByExternalID(ctx, p.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("find user by external id: %w", err)
	}

	user, err = s.users.UserByEmail(ctx, p.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("find user by email: %w", err)
	}
	// Only unlinked accounts are claimed by email; an existing link is never moved.
	if user.ExternalID != "" {
		s.logger.Warn("email linked to another identity", "user_id", user.ID, "external_id", p.ID)
		return domain.User{}, fmt.Errorf("%w: email linked to another identity", domain.ErrNotAuthenticated)
	}
	if err := s.users.LinkExternalID(ctx, user.ID, p.ID); err != nil {
		return domain.User{}, fmt.Errorf("link external id: %w", err)
	}
	s.logger.Info("user linked", "user_id", user.ID, "external_id", p.ID)
	user.ExternalID = p.ID
	return user, nil
}
