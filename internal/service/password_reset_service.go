package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"devshelf/internal/cache"
	"devshelf/internal/mailer"
	"devshelf/internal/middleware"
	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	ResetTokenTTL   = time.Hour
	resetTokenBytes = 32
)

type PasswordResetService struct {
	userRepo  repository.UserRepository
	resetRepo repository.PasswordResetRepository
	mail      mailer.Mailer
	appURL    string
	now       func() time.Time
}

func NewPasswordResetService(
	userRepo repository.UserRepository,
	resetRepo repository.PasswordResetRepository,
	mail mailer.Mailer,
	appURL string,
) *PasswordResetService {
	return &PasswordResetService{
		userRepo:  userRepo,
		resetRepo: resetRepo,
		mail:      mail,
		appURL:    strings.TrimRight(appURL, "/"),
		now:       time.Now,
	}
}

// HashResetToken is the form a reset token is stored in.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestReset emails a reset link when email belongs to an active account. Unknown
// addresses succeed silently so the endpoint cannot be used to probe for accounts.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.IsBanned {
		middleware.Logger.InfoContext(ctx, "password reset requested for unknown or banned account")
		return nil
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return models.NewInternalError(fmt.Errorf("generate reset token: %w", err))
	}
	token := hex.EncodeToString(raw)

	now := s.now().UTC()
	if err := s.resetRepo.Create(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: HashResetToken(token),
		ExpiresAt: now.Add(ResetTokenTTL),
	}); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to store password reset token",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", err.Error()),
		)
		return nil
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.appURL, url.QueryEscape(token))
	err = s.mail.Send(ctx, mailer.Message{
		Kind:    mailer.KindPasswordReset,
		To:      []string{user.Email},
		Subject: "Reset your DevShelf password",
		Text: fmt.Sprintf("Hi %s,\n\nSomeone asked to reset the password for your DevShelf account.\n"+
			"Open this link within the next hour to choose a new one:\n\n%s\n\n"+
			"If it wasn't you, you can ignore this email.\n", user.Username, link),
	})
	if err != nil {
		// The caller sees the same answer as for an unknown address.
		middleware.Logger.ErrorContext(ctx, "failed to send password reset email",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ResetPassword redeems token and sets a new password.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.NewValidationError("Reset token is required")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	userID, err := s.resetRepo.Redeem(ctx, HashResetToken(token), string(hash), s.now().UTC())
	if err != nil {
		return err
	}

	if user, err := s.userRepo.GetByID(ctx, userID); err == nil {
		cache.InvalidateUser(ctx, user.ID, user.Username)
	}
	middleware.Logger.InfoContext(ctx, "password reset completed", slog.Uint64("user_id", uint64(userID)))
	return nil
}
