package service

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"devshelf/internal/cache"
	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/validation"
)

const (
	maxNameRunes     = 100
	maxLocationRunes = 100
	maxSkills        = 20
	maxSkillRunes    = 40
)

type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
}

// UpdateProfileInput is a partial update; nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID    uint
	Name      *string
	Bio       *string
	Avatar    *string
	Website   *string
	GithubURL *string
	Location  *string
	Skills    *[]string
}

func NewUserService(userRepo repository.UserRepository, followRepo repository.FollowRepository) *UserService {
	return &UserService{userRepo: userRepo, followRepo: followRepo}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetProfile returns the public profile of username. The user and stats are cached
// together; the viewer's follow flag is resolved on every call.
func (s *UserService) GetProfile(ctx context.Context, username string, viewerID uint) (*models.Profile, error) {
	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(username), &profile, cache.ProfileTTL, func() error {
		user, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if user.IsBanned {
			return models.NewNotFoundError("User", username)
		}
		stats, err := s.userRepo.Stats(ctx, user.ID)
		if err != nil {
			return err
		}
		profile = models.Profile{User: user.Public(), Stats: stats}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if viewerID != 0 && viewerID != profile.User.ID && s.followRepo != nil {
		following, err := s.followRepo.IsFollowing(ctx, viewerID, profile.User.ID)
		if err != nil {
			return nil, err
		}
		profile.IsFollowing = following
	}
	return &profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if utf8.RuneCountInString(name) > maxNameRunes {
			return nil, models.NewValidationError("Name too long (max 100 characters)")
		}
		user.Name = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > validation.MaxBioLength {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = bio
	}
	if in.Location != nil {
		loc := strings.TrimSpace(*in.Location)
		if utf8.RuneCountInString(loc) > maxLocationRunes {
			return nil, models.NewValidationError("Location too long (max 100 characters)")
		}
		user.Location = loc
	}
	for _, f := range []struct {
		value *string
		dest  *string
		field string
	}{
		{in.Avatar, &user.Avatar, "Avatar"},
		{in.Website, &user.Website, "Website"},
		{in.GithubURL, &user.GithubURL, "GitHub URL"},
	} {
		if f.value == nil {
			continue
		}
		link, err := optionalLink(*f.value, f.field)
		if err != nil {
			return nil, err
		}
		*f.dest = link
	}
	if in.Skills != nil {
		skills, err := normalizeSkills(*in.Skills)
		if err != nil {
			return nil, err
		}
		user.Skills = skills
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetAdmin grants or revokes admin rights. Used by the admin CLI.
func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	if err := s.userRepo.SetAdmin(ctx, targetID, isAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

// SetBanned bans or unbans a user. Admins cannot be banned.
func (s *UserService) SetBanned(ctx context.Context, targetID uint, banned bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if banned && user.IsAdmin {
		return nil, models.NewValidationError("Admins cannot be banned")
	}
	if err := s.userRepo.SetBanned(ctx, targetID, banned); err != nil {
		return nil, err
	}
	user.IsBanned = banned
	return user, nil
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListAdmins(ctx)
}

// IsAdmin is an AdminChecker backed by the user repository.
func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}

func optionalLink(raw, field string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if len(raw) > maxURLLength {
		return "", models.NewValidationError(field + " is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", models.NewValidationError(field + " must be an http(s) URL")
	}
	return raw, nil
}

// normalizeSkills trims entries and drops case-insensitive duplicates, keeping the
// first spelling.
func normalizeSkills(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, skill := range in {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		if utf8.RuneCountInString(skill) > maxSkillRunes {
			return nil, models.NewValidationError("Skill too long (max 40 characters)")
		}
		key := strings.ToLower(skill)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}
	if len(out) > maxSkills {
		return nil, models.NewValidationError("Too many skills (max 20)")
	}
	return out, nil
}
