package app

import (
	"context"
	"regexp"

	"matcha/internal/domain"
)

var birthdateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var (
	validGenders = map[string]bool{"male": true, "female": true, "other": true}
	validPrefs   = map[string]bool{"straight": true, "gay": true, "bisexual": true, "other": true}
)

// ProfileService reads and updates user profiles.
type ProfileService struct {
	profiles domain.ProfileRepository
	users    domain.UserRepository
}

// NewProfileService creates a ProfileService.
func NewProfileService(profiles domain.ProfileRepository, users domain.UserRepository) *ProfileService {
	return &ProfileService{profiles: profiles, users: users}
}

// Get returns the caller's profile. A user who never saved one gets an
// empty profile rather than a 404.
func (s *ProfileService) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &domain.Profile{UserID: userID}
	}
	return p, nil
}

// Patch validates and applies a partial profile update, returning the
// resulting profile.
func (s *ProfileService) Patch(ctx context.Context, userID int64, patch domain.ProfilePatch) (*domain.Profile, error) {
	details := map[string]string{}
	if patch.DisplayName != nil && len(*patch.DisplayName) > 100 {
		details["displayName"] = "must be at most 100 characters"
	}
	if patch.Bio != nil && len(*patch.Bio) > 500 {
		details["bio"] = "must be at most 500 characters"
	}
	if patch.Gender != nil && !validGenders[*patch.Gender] {
		details["gender"] = "must be one of male, female, other"
	}
	if patch.SexualPref != nil && !validPrefs[*patch.SexualPref] {
		details["sexualPref"] = "must be one of straight, gay, bisexual, other"
	}
	if patch.Birthdate != nil && !birthdateRe.MatchString(*patch.Birthdate) {
		details["birthdate"] = "must be YYYY-MM-DD"
	}
	if patch.FameRating != nil && (*patch.FameRating < 0 || *patch.FameRating > 100) {
		details["fameRating"] = "must be between 0 and 100"
	}
	if len(details) > 0 {
		return nil, domain.BadRequest("VALIDATION_ERROR", "Invalid request").WithDetails(details)
	}

	if patch.IsEmpty() {
		return s.Get(ctx, userID)
	}
	return s.profiles.Upsert(ctx, userID, patch)
}

// PublicProfile returns another user's profile looked up by username.
func (s *ProfileService) PublicProfile(ctx context.Context, username string) (*domain.User, *domain.Profile, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, domain.ErrUserNotFound
	}
	p, err := s.Get(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, p, nil
}
