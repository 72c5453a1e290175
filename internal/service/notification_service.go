package service

import (
	"context"
	"fmt"
	"log/slog"

	"devshelf/internal/middleware"
	"devshelf/internal/models"
	"devshelf/internal/notifications"
	"devshelf/internal/observability"
	"devshelf/internal/repository"

	"github.com/sourcegraph/conc/pool"
)

// publishWorkers bounds concurrent Redis publishes during follower fan-out.
const publishWorkers = 8

// EventPublisher pushes realtime events to a user's open connections.
type EventPublisher interface {
	PublishEvent(ctx context.Context, userID uint, ev notifications.Event) error
}

// NotifyInput describes one interaction that should notify someone.
type NotifyInput struct {
	Type       models.NotificationType
	ActorID    uint
	TargetType string
	TargetID   uint
	// Subject is the title of the target, quoted in the message.
	Subject string
}

// NotificationSender is what other services use to emit notifications.
type NotificationSender interface {
	Notify(ctx context.Context, recipientID uint, in NotifyInput) error
	NotifyMany(ctx context.Context, recipientIDs []uint, in NotifyInput) (int, error)
}

// NotificationService writes notification rows and publishes them in realtime.
type NotificationService struct {
	repo      repository.NotificationRepository
	userRepo  repository.UserRepository
	publisher EventPublisher
}

// NewNotificationService returns a NotificationService. publisher may be nil.
func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	publisher EventPublisher,
) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, publisher: publisher}
}

// Notify creates one notification. Self-notifications are skipped silently.
func (s *NotificationService) Notify(ctx context.Context, recipientID uint, in NotifyInput) error {
	if recipientID == 0 || recipientID == in.ActorID {
		return nil
	}
	actor, err := s.userRepo.GetByID(ctx, in.ActorID)
	if err != nil {
		return err
	}

	n := s.build(recipientID, actor, in)
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	observability.NotificationsCreated.WithLabelValues(string(in.Type)).Inc()
	s.publish(ctx, n)
	return nil
}

// NotifyMany creates one notification per recipient in batches, then publishes
// them through a bounded worker pool. It returns the number of rows written.
func (s *NotificationService) NotifyMany(ctx context.Context, recipientIDs []uint, in NotifyInput) (int, error) {
	seen := make(map[uint]struct{}, len(recipientIDs))
	targets := make([]uint, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		if id == 0 || id == in.ActorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return 0, nil
	}

	actor, err := s.userRepo.GetByID(ctx, in.ActorID)
	if err != nil {
		return 0, err
	}
	batch := make([]*models.Notification, 0, len(targets))
	for _, id := range targets {
		batch = append(batch, s.build(id, actor, in))
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return 0, err
	}
	observability.NotificationsCreated.WithLabelValues(string(in.Type)).Add(float64(len(batch)))

	if s.publisher != nil {
		p := pool.New().WithMaxGoroutines(publishWorkers)
		for _, n := range batch {
			p.Go(func() { s.publish(ctx, n) })
		}
		p.Wait()
	}
	return len(batch), nil
}

func (s *NotificationService) build(recipientID uint, actor *models.User, in NotifyInput) *models.Notification {
	return &models.Notification{
		RecipientID: recipientID,
		ActorID:     actor.ID,
		Actor:       actor.Public(),
		Type:        in.Type,
		TargetType:  in.TargetType,
		TargetID:    in.TargetID,
		Message:     notificationMessage(actor.Username, in),
	}
}

func (s *NotificationService) publish(ctx context.Context, n *models.Notification) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEvent(ctx, n.RecipientID, notifications.Event{
		Type:    notifications.EventNotification,
		Payload: n,
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish notification",
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
			slog.String("type", string(n.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func notificationMessage(actor string, in NotifyInput) string {
	var msg string
	switch in.Type {
	case models.NotificationFollow:
		msg = fmt.Sprintf("%s started following you", actor)
	case models.NotificationNewBlog:
		msg = fmt.Sprintf("%s published %q", actor, in.Subject)
	case models.NotificationBlogUpvote:
		msg = fmt.Sprintf("%s upvoted %q", actor, in.Subject)
	case models.NotificationBlogSave:
		msg = fmt.Sprintf("%s saved %q", actor, in.Subject)
	case models.NotificationBlogComment:
		msg = fmt.Sprintf("%s commented on %q", actor, in.Subject)
	case models.NotificationCommentReply:
		msg = fmt.Sprintf("%s replied to your comment", actor)
	case models.NotificationCommentLike:
		msg = fmt.Sprintf("%s liked your comment", actor)
	case models.NotificationResourceLike:
		msg = fmt.Sprintf("%s liked %q", actor, in.Subject)
	case models.NotificationResourceBookmark:
		msg = fmt.Sprintf("%s bookmarked %q", actor, in.Subject)
	default:
		msg = fmt.Sprintf("%s interacted with your content", actor)
	}
	return truncateRunes(msg, 300)
}

// List returns a page of the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	return s.repo.List(ctx, recipientID, unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, recipientID)
}

// MarkRead marks one notification read. Notifications of other users are NOT_FOUND.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id uint) error {
	return s.repo.MarkRead(ctx, recipientID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, recipientID)
}

func (s *NotificationService) Delete(ctx context.Context, recipientID, id uint) error {
	return s.repo.Delete(ctx, recipientID, id)
}

// notifyQuietly emits a notification and only logs failures; the interaction
// that triggered it has already been committed.
func notifyQuietly(ctx context.Context, sender NotificationSender, recipientID uint, in NotifyInput) {
	if sender == nil {
		return
	}
	if err := sender.Notify(ctx, recipientID, in); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to create notification",
			slog.String("type", string(in.Type)),
			slog.Uint64("recipient_id", uint64(recipientID)),
			slog.String("error", err.Error()),
		)
	}
}
