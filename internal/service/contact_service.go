package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"devshelf/internal/mailer"
	"devshelf/internal/middleware"
	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/validation"
)

const (
	maxContactSubjectRunes = 200
	maxContactMessageRunes = 5000
)

// ContactInput is a contact form submission. UserID is set for signed-in senders.
type ContactInput struct {
	UserID  uint
	Name    string
	Email   string
	Subject string
	Message string
}

type ContactService struct {
	repo      repository.ContactRepository
	mail      mailer.Mailer
	recipient string
}

func NewContactService(repo repository.ContactRepository, mail mailer.Mailer, recipient string) *ContactService {
	return &ContactService{repo: repo, mail: mail, recipient: recipient}
}

// Submit archives the message and forwards it to the team inbox. A failed
// delivery is reported to the caller; the archived row stays undelivered.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*models.ContactMessage, error) {
	name, err := requireText(in.Name, "Name", maxNameRunes)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	subject, err := requireText(in.Subject, "Subject", maxContactSubjectRunes)
	if err != nil {
		return nil, err
	}
	body, err := requireText(in.Message, "Message", maxContactMessageRunes)
	if err != nil {
		return nil, err
	}

	msg := &models.ContactMessage{Name: name, Email: email, Subject: subject, Message: body}
	if in.UserID != 0 {
		uid := in.UserID
		msg.UserID = &uid
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.recipient == "" {
		middleware.Logger.WarnContext(ctx, "contact message stored but no recipient is configured",
			slog.Uint64("contact_id", uint64(msg.ID)))
		return msg, nil
	}

	err = s.mail.Send(ctx, mailer.Message{
		Kind:    mailer.KindContact,
		To:      []string{s.recipient},
		ReplyTo: email,
		Subject: "[Contact] " + subject,
		Text:    fmt.Sprintf("From: %s <%s>\n\n%s\n", name, email, body),
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to deliver contact message",
			slog.Uint64("contact_id", uint64(msg.ID)),
			slog.String("error", err.Error()),
		)
		return nil, models.NewInternalError(err)
	}

	if err := s.repo.MarkDelivered(ctx, msg.ID); err != nil {
		return nil, err
	}
	msg.Delivered = true
	return msg, nil
}

func (s *ContactService) List(ctx context.Context, limit, offset int) ([]*models.ContactMessage, error) {
	return s.repo.List(ctx, limit, offset)
}
