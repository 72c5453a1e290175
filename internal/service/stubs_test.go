package service

import (
	"context"
	"sync"
	"testing"

	"devshelf/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, models.StatusFor(err), appErr.Message)
}

func assertValidationError(t *testing.T, err error)   { t.Helper(); assertStatus(t, err, 400) }
func assertUnauthorizedError(t *testing.T, err error) { t.Helper(); assertStatus(t, err, 401) }
func assertNotFoundError(t *testing.T, err error)     { t.Helper(); assertStatus(t, err, 404) }

func ptr[T any](v T) *T { return &v }

// userRepoStub is a stub for repository.UserRepository. Unset functions return zero values.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	updateFn        func(context.Context, *models.User) error
	setAdminFn      func(context.Context, uint, bool) error
	setBannedFn     func(context.Context, uint, bool) error
	statsFn         func(context.Context, uint) (models.ProfileStats, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("User", id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.getByUsernameFn == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(context.Context, *models.User) error { return nil }
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, id uint, admin bool) error {
	if s.setAdminFn == nil {
		return nil
	}
	return s.setAdminFn(ctx, id, admin)
}
func (s *userRepoStub) SetBanned(ctx context.Context, id uint, banned bool) error {
	if s.setBannedFn == nil {
		return nil
	}
	return s.setBannedFn(ctx, id, banned)
}
func (s *userRepoStub) ListAdmins(context.Context) ([]models.User, error) { return nil, nil }
func (s *userRepoStub) Stats(ctx context.Context, userID uint) (models.ProfileStats, error) {
	if s.statsFn == nil {
		return models.ProfileStats{}, nil
	}
	return s.statsFn(ctx, userID)
}

// notifierSpy records every notification it is asked to send.
type notifierSpy struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

type sentNotification struct {
	Recipient uint
	Input     NotifyInput
}

func (s *notifierSpy) Notify(_ context.Context, recipientID uint, in NotifyInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if recipientID == in.ActorID {
		return nil
	}
	s.sent = append(s.sent, sentNotification{Recipient: recipientID, Input: in})
	return nil
}

func (s *notifierSpy) NotifyMany(ctx context.Context, recipientIDs []uint, in NotifyInput) (int, error) {
	n := 0
	for _, id := range recipientIDs {
		before := len(s.calls())
		if err := s.Notify(ctx, id, in); err != nil {
			return n, err
		}
		if len(s.calls()) > before {
			n++
		}
	}
	return n, nil
}

func (s *notifierSpy) calls() []sentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentNotification, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *notifierSpy) types() []models.NotificationType {
	var out []models.NotificationType
	for _, c := range s.calls() {
		out = append(out, c.Input.Type)
	}
	return out
}

func adminIDs(ids ...uint) AdminChecker {
	return func(_ context.Context, userID uint) (bool, error) {
		for _, id := range ids {
			if id == userID {
				return true, nil
			}
		}
		return false, nil
	}
}
