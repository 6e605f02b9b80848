// Package memory is an in-memory implementation of the service store
// interfaces, used by the dev profile and the test suite. A single
// store-wide mutex gives every write the serializability the Postgres
// implementation gets from row locks, so the vote race semantics are
// identical.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
	"github.com/tees-eng/purchasing-service/internal/repository"
)

// Store holds all workflow state in memory.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*repository.User
	orders        map[string]*repository.PurchaseOrder
	cohorts       map[string][]string                  // orderID → approver IDs
	votes         map[string]*repository.ApprovalVote  // orderID+approverID → vote
	votesByOrder  map[string][]*repository.ApprovalVote
	notifications map[string][]*repository.Notification // userID → notifications
	nextPONumber  int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*repository.User),
		orders:        make(map[string]*repository.PurchaseOrder),
		cohorts:       make(map[string][]string),
		votes:         make(map[string]*repository.ApprovalVote),
		votesByOrder:  make(map[string][]*repository.ApprovalVote),
		notifications: make(map[string][]*repository.Notification),
	}
}

func voteKey(orderID, approverID string) string {
	return orderID + "/" + approverID
}

func (s *Store) appendNotification(userID, message string) {
	s.notifications[userID] = append(s.notifications[userID], &repository.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

func cloneOrder(order *repository.PurchaseOrder) *repository.PurchaseOrder {
	c := *order
	c.Items = make([]*repository.OrderItem, len(order.Items))
	for i, item := range order.Items {
		itemCopy := *item
		c.Items[i] = &itemCopy
	}
	return &c
}

func cloneUser(user *repository.User) *repository.User {
	c := *user
	if user.Email != nil {
		email := *user.Email
		c.Email = &email
	}
	return &c
}

// ── OrderStore ───────────────────────────────────────────────────────────────

// CreateOrder persists the order, items, cohort snapshot and the
// submission notifications under one lock acquisition.
func (s *Store) CreateOrder(ctx context.Context, order *repository.PurchaseOrder, cohort []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.nextPONumber++
	order.ID = uuid.NewString()
	order.PONumber = s.nextPONumber
	order.CreatedAt = now
	order.UpdatedAt = now
	for _, item := range order.Items {
		item.ID = uuid.NewString()
		item.OrderID = order.ID
	}

	s.orders[order.ID] = cloneOrder(order)
	s.cohorts[order.ID] = append([]string(nil), cohort...)

	message := repository.SubmittedMessage(order.PONumber, order.TotalValue)
	for _, approverID := range cohort {
		s.appendNotification(approverID, message)
	}
	return ctx.Err()
}

// GetOrder retrieves an order with its items.
func (s *Store) GetOrder(_ context.Context, id string) (*repository.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("purchase_order", id)
	}
	return cloneOrder(order), nil
}

func (s *Store) listOrders(filter func(*repository.PurchaseOrder) bool) []*repository.PurchaseOrder {
	orders := make([]*repository.PurchaseOrder, 0)
	for _, order := range s.orders {
		if filter(order) {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].PONumber > orders[j].PONumber })
	return orders
}

// ListOrders returns all orders, newest first.
func (s *Store) ListOrders(_ context.Context) ([]*repository.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOrders(func(*repository.PurchaseOrder) bool { return true }), nil
}

// ListOrdersByRequester returns one requester's orders, newest first.
func (s *Store) ListOrdersByRequester(_ context.Context, requesterID string) ([]*repository.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOrders(func(o *repository.PurchaseOrder) bool { return o.RequesterID == requesterID }), nil
}

// CastVote applies the vote and quorum rules under the store lock, so
// racing votes serialize exactly as they would under the row lock of
// the Postgres implementation.
func (s *Store) CastVote(_ context.Context, orderID, approverID, decision string, comment *string) (*repository.VoteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, apperrors.NotFound("purchase_order", orderID)
	}
	if order.Status != repository.StatusPending {
		return nil, apperrors.Newf(apperrors.ErrCodeConflict,
			"order #%d is already %s", order.PONumber, order.Status)
	}

	inCohort := false
	for _, id := range s.cohorts[orderID] {
		if id == approverID {
			inCohort = true
			break
		}
	}
	if !inCohort {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized,
			"approver is not part of this order's approval cohort")
	}

	key := voteKey(orderID, approverID)
	if _, exists := s.votes[key]; exists {
		return nil, apperrors.Newf(apperrors.ErrCodeAlreadyExists,
			"approver already voted on order #%d", order.PONumber)
	}

	vote := &repository.ApprovalVote{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		ApproverID: approverID,
		Decision:   decision,
		Comment:    comment,
		CreatedAt:  time.Now(),
	}
	s.votes[key] = vote
	s.votesByOrder[orderID] = append(s.votesByOrder[orderID], vote)

	outcome := &repository.VoteOutcome{Vote: vote}

	newStatus := ""
	if decision == repository.DecisionRejected {
		newStatus = repository.StatusRejected
	} else {
		approvedCount := 0
		for _, v := range s.votesByOrder[orderID] {
			if v.Decision == repository.DecisionApproved {
				approvedCount++
			}
		}
		if approvedCount == len(s.cohorts[orderID]) {
			newStatus = repository.StatusApproved
		}
	}

	if newStatus != "" {
		order.Status = newStatus
		order.UpdatedAt = time.Now()
		message := repository.ApprovedMessage(order.PONumber)
		if newStatus == repository.StatusRejected {
			message = repository.RejectedMessage(order.PONumber)
		}
		s.appendNotification(order.RequesterID, message)
		outcome.Resolved = true
	}

	outcome.Order = cloneOrder(order)
	return outcome, nil
}

// GetVotes returns all recorded votes for an order, oldest first.
func (s *Store) GetVotes(_ context.Context, orderID string) ([]*repository.ApprovalVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	votes := make([]*repository.ApprovalVote, 0, len(s.votesByOrder[orderID]))
	for _, vote := range s.votesByOrder[orderID] {
		voteCopy := *vote
		votes = append(votes, &voteCopy)
	}
	return votes, nil
}

// GetCohort returns the approver IDs snapshotted at submission.
func (s *Store) GetCohort(_ context.Context, orderID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.cohorts[orderID]...), nil
}

// ── DirectoryStore ───────────────────────────────────────────────────────────

// GetUser retrieves a user by ID.
func (s *Store) GetUser(_ context.Context, id string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	return cloneUser(user), nil
}

// GetUserByUsername retrieves a user by its unique username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return nil, apperrors.NotFound("user", username)
}

func (s *Store) listUsers(filter func(*repository.User) bool) []*repository.User {
	users := make([]*repository.User, 0)
	for _, user := range s.users {
		if filter(user) {
			users = append(users, cloneUser(user))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// ListUsers returns the full directory.
func (s *Store) ListUsers(_ context.Context) ([]*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listUsers(func(*repository.User) bool { return true }), nil
}

// ListEligibleApprovers returns active users holding the approver role.
func (s *Store) ListEligibleApprovers(_ context.Context) ([]*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listUsers(func(u *repository.User) bool {
		return u.Role == repository.RoleApprover && u.Active
	}), nil
}

// ListAlertEmails returns the emails of active approvers and admins.
func (s *Store) ListAlertEmails(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emails := make([]string, 0)
	for _, user := range s.users {
		if !user.Active || user.Email == nil || *user.Email == "" {
			continue
		}
		if user.Role == repository.RoleApprover || user.Role == repository.RoleAdmin {
			emails = append(emails, *user.Email)
		}
	}
	sort.Strings(emails)
	return emails, nil
}

// CreateUser inserts a directory entry. Usernames are unique.
func (s *Store) CreateUser(_ context.Context, user *repository.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return apperrors.Newf(apperrors.ErrCodeAlreadyExists, "username %q is already taken", user.Username)
		}
	}

	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	return nil
}

// UpdateUser applies a partial update: only non-nil patch fields change.
func (s *Store) UpdateUser(_ context.Context, id string, patch repository.UserPatch) (*repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	if patch.Email != nil {
		email := *patch.Email
		user.Email = &email
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	if patch.Active != nil {
		user.Active = *patch.Active
	}
	user.UpdatedAt = time.Now()
	return cloneUser(user), nil
}

// ── NotificationStore ────────────────────────────────────────────────────────

// ListForUser returns a user's notifications, newest first.
func (s *Store) ListForUser(_ context.Context, userID string) ([]*repository.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.notifications[userID]
	notifications := make([]*repository.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		noteCopy := *list[i]
		notifications = append(notifications, &noteCopy)
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *Store) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

// MarkRead marks one notification as read, scoped to the recipient.
func (s *Store) MarkRead(_ context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[userID] {
		if n.ID == notificationID {
			n.IsRead = true
			return nil
		}
	}
	return apperrors.NotFound("notification", notificationID)
}

// MarkAllRead marks every unread notification of a user as read.
func (s *Store) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[userID] {
		n.IsRead = true
	}
	return nil
}
