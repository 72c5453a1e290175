package service

import (
	"context"

	"devshelf/internal/cache"
	"devshelf/internal/models"
	"devshelf/internal/repository"
)

// FollowResult is returned by Follow and Unfollow.
type FollowResult struct {
	Following bool `json:"following"`
	Followers int64 `json:"followers_count"`
}

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifier   NotificationSender
}

func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository, notifier NotificationSender) *FollowService {
	return &FollowService{followRepo: followRepo, userRepo: userRepo, notifier: notifier}
}

// Follow adds the edge follower -> target. Following twice is a no-op; only a new
// edge notifies the target.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID uint) (*FollowResult, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	created, err := s.followRepo.Follow(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	if created {
		s.invalidate(ctx, followerID, target)
		notifyQuietly(ctx, s.notifier, targetID, NotifyInput{
			Type:       models.NotificationFollow,
			ActorID:    followerID,
			TargetType: models.TargetUser,
			TargetID:   followerID,
		})
	}
	return s.result(ctx, true, targetID)
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) (*FollowResult, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot unfollow yourself")
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.followRepo.Unfollow(ctx, followerID, targetID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, followerID, target)
	return s.result(ctx, false, targetID)
}

func (s *FollowService) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Followers(ctx, userID, limit, offset)
}

func (s *FollowService) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Following(ctx, userID, limit, offset)
}

func (s *FollowService) result(ctx context.Context, following bool, targetID uint) (*FollowResult, error) {
	stats, err := s.userRepo.Stats(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &FollowResult{Following: following, Followers: stats.Followers}, nil
}

// invalidate drops both cached profiles, whose follow counts just changed.
func (s *FollowService) invalidate(ctx context.Context, followerID uint, target *models.User) {
	cache.InvalidateUser(ctx, target.ID, target.Username)
	if follower, err := s.userRepo.GetByID(ctx, followerID); err == nil {
		cache.InvalidateUser(ctx, follower.ID, follower.Username)
	}
}
