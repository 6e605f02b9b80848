package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tees-eng/purchasing-service/internal/repository"
)

// NotificationService exposes each user's in-app notification feed.
// Rows are produced by the workflow transactions; this service only
// reads and marks them.
type NotificationService struct {
	notifications NotificationStore
	log           zerolog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(notifications NotificationStore, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		log:           log.With().Str("component", "notification_service").Logger(),
	}
}

// List returns the principal's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, principal Principal) ([]*repository.Notification, error) {
	return s.notifications.ListForUser(ctx, principal.UserID)
}

// UnreadCount returns how many unread notifications the principal has.
func (s *NotificationService) UnreadCount(ctx context.Context, principal Principal) (int, error) {
	return s.notifications.UnreadCount(ctx, principal.UserID)
}

// MarkRead marks one of the principal's notifications as read. Only the
// recipient can mark a notification.
func (s *NotificationService) MarkRead(ctx context.Context, principal Principal, notificationID string) error {
	return s.notifications.MarkRead(ctx, principal.UserID, notificationID)
}

// MarkAllRead marks every unread notification of the principal as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, principal Principal) error {
	return s.notifications.MarkAllRead(ctx, principal.UserID)
}
