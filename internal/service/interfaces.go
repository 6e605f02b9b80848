package service

import (
	"context"

	"github.com/tees-eng/purchasing-service/internal/repository"
)

// OrderStore is the persistence boundary for orders, their approval
// cohort and the vote ledger. Implementations must make CreateOrder and
// CastVote atomic: the in-app notifications they queue commit with the
// state change or not at all.
type OrderStore interface {
	// CreateOrder persists the order, its items, the approval cohort
	// snapshot and one submission notification per cohort member in a
	// single transaction. Assigns ID, PONumber and timestamps.
	CreateOrder(ctx context.Context, order *repository.PurchaseOrder, cohort []string) error
	GetOrder(ctx context.Context, id string) (*repository.PurchaseOrder, error)
	ListOrders(ctx context.Context) ([]*repository.PurchaseOrder, error)
	ListOrdersByRequester(ctx context.Context, requesterID string) ([]*repository.PurchaseOrder, error)

	// CastVote records one approver's decision and applies the quorum /
	// veto rules under a single serializable unit: vote insertion,
	// duplicate detection, status transition and the requester
	// notification all commit together.
	CastVote(ctx context.Context, orderID, approverID, decision string, comment *string) (*repository.VoteOutcome, error)
	GetVotes(ctx context.Context, orderID string) ([]*repository.ApprovalVote, error)
	GetCohort(ctx context.Context, orderID string) ([]string, error)
}

// DirectoryStore exposes the user directory. The approval engine only
// reads it; mutation belongs to the admin surface.
type DirectoryStore interface {
	GetUser(ctx context.Context, id string) (*repository.User, error)
	GetUserByUsername(ctx context.Context, username string) (*repository.User, error)
	// ListEligibleApprovers returns active users with the approver role.
	ListEligibleApprovers(ctx context.Context) ([]*repository.User, error)
	// ListAlertEmails returns the email addresses of active approvers
	// and admins, for the submission mail fan-out.
	ListAlertEmails(ctx context.Context) ([]string, error)
	ListUsers(ctx context.Context) ([]*repository.User, error)
	CreateUser(ctx context.Context, user *repository.User) error
	UpdateUser(ctx context.Context, id string, patch repository.UserPatch) (*repository.User, error)
}

// NotificationStore reads and marks in-app notifications. Rows are
// written by OrderStore inside the workflow transactions.
type NotificationStore interface {
	ListForUser(ctx context.Context, userID string) ([]*repository.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Mailer sends best-effort email alerts. Errors carry the unavailable
// code and are logged by callers, never propagated into the workflow.
type Mailer interface {
	SendEmail(ctx context.Context, recipients []string, subject, body string) error
}

// EventPublisher fans workflow events out to the message bus.
// Implementations never return errors; failures are logged internally.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType, orderID, actorID string, recipients []string, payload map[string]interface{})
}
