package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
	"github.com/tees-eng/purchasing-service/internal/repository"
)

// ApprovalService is the approval workflow engine: it records votes,
// applies the unanimity / veto rules through the store's atomic vote
// operation and fans out resolution alerts.
type ApprovalService struct {
	orders    OrderStore
	directory DirectoryStore
	mailer    Mailer
	events    EventPublisher
	log       zerolog.Logger
}

// NewApprovalService creates a new approval service. mailer and events
// may be nil when the corresponding channel is disabled.
func NewApprovalService(orders OrderStore, directory DirectoryStore, mailer Mailer, events EventPublisher, log zerolog.Logger) *ApprovalService {
	return &ApprovalService{
		orders:    orders,
		directory: directory,
		mailer:    mailer,
		events:    events,
		log:       log.With().Str("component", "approval_service").Logger(),
	}
}

// CastVote records the principal's decision on an order. A rejection
// vetoes the order immediately; an approval resolves it once every
// cohort member has approved. The vote, the duplicate check, the status
// transition and the requester's in-app notification commit as one
// transaction; email and bus events follow after commit and never roll
// the vote back.
func (s *ApprovalService) CastVote(ctx context.Context, principal Principal, orderID, decision string, comment *string) (*repository.VoteOutcome, error) {
	if decision != repository.DecisionApproved && decision != repository.DecisionRejected {
		return nil, apperrors.InvalidInput("decision", "must be approved or rejected")
	}
	if !principal.CanApprove() {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "only approvers can vote on purchase orders")
	}

	outcome, err := s.orders.CastVote(ctx, orderID, principal.UserID, decision, comment)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", orderID).
		Int64("po_number", outcome.Order.PONumber).
		Str("approver_id", principal.UserID).
		Str("decision", decision).
		Bool("resolved", outcome.Resolved).
		Str("status", outcome.Order.Status).
		Msg("Vote recorded")

	if outcome.Resolved {
		s.notifyResolution(ctx, principal, outcome.Order)
	}

	return outcome, nil
}

// notifyResolution handles the post-commit side channels for a resolved
// order: a bus event plus a best-effort email to the requester.
func (s *ApprovalService) notifyResolution(ctx context.Context, principal Principal, order *repository.PurchaseOrder) {
	eventType := "order_approved"
	if order.Status == repository.StatusRejected {
		eventType = "order_rejected"
	}

	if s.events != nil {
		s.events.PublishOrderEvent(ctx, eventType, order.ID, principal.UserID, []string{order.RequesterID}, map[string]interface{}{
			"po_number": order.PONumber,
			"status":    order.Status,
		})
	}

	if s.mailer == nil {
		return
	}
	requester, err := s.directory.GetUser(ctx, order.RequesterID)
	if err != nil || requester.Email == nil || *requester.Email == "" {
		s.log.Warn().Str("order_id", order.ID).Str("requester_id", order.RequesterID).
			Msg("Requester has no email registered; resolution email skipped")
		return
	}

	subject := fmt.Sprintf("Purchase order #%d %s", order.PONumber, order.Status)
	body := fmt.Sprintf(`<html><body>
<p>Your purchase order <strong>#%d</strong> (total %s) was <strong>%s</strong>.</p>
</body></html>`, order.PONumber, repository.FormatCents(order.TotalValue), order.Status)

	if err := s.mailer.SendEmail(ctx, []string{*requester.Email}, subject, body); err != nil {
		s.log.Warn().Err(err).Str("order_id", order.ID).Msg("Resolution email failed (non-fatal)")
		return
	}
	s.log.Debug().Str("order_id", order.ID).Msg("Resolution email sent")
}

// GetVotes returns the voting projection for an order: who approved and
// who is still outstanding. Once an order is resolved, nothing is
// outstanding (resolution is full approval or an immediate veto).
func (s *ApprovalService) GetVotes(ctx context.Context, orderID string) (*repository.VoteTally, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	votes, err := s.orders.GetVotes(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tally := &repository.VoteTally{
		Status:      order.Status,
		ApprovedBy:  make([]string, 0, len(votes)),
		PendingFrom: []string{},
	}
	voted := make(map[string]bool, len(votes))
	for _, vote := range votes {
		voted[vote.ApproverID] = true
		if vote.Decision == repository.DecisionApproved {
			tally.ApprovedBy = append(tally.ApprovedBy, vote.ApproverID)
		}
	}

	if order.Status == repository.StatusPending {
		cohort, err := s.orders.GetCohort(ctx, orderID)
		if err != nil {
			return nil, err
		}
		for _, approverID := range cohort {
			if !voted[approverID] {
				tally.PendingFrom = append(tally.PendingFrom, approverID)
			}
		}
	}

	return tally, nil
}

// ListVotes returns the raw vote records for an order, for the detail view.
func (s *ApprovalService) ListVotes(ctx context.Context, orderID string) ([]*repository.ApprovalVote, error) {
	if _, err := s.orders.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orders.GetVotes(ctx, orderID)
}
