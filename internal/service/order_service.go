package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
	"github.com/tees-eng/purchasing-service/internal/repository"
)

// OrderService handles purchase order submission and read projections.
type OrderService struct {
	orders    OrderStore
	directory DirectoryStore
	mailer    Mailer
	events    EventPublisher
	log       zerolog.Logger
}

// NewOrderService creates a new order service. mailer and events may be
// nil when the corresponding channel is disabled.
func NewOrderService(orders OrderStore, directory DirectoryStore, mailer Mailer, events EventPublisher, log zerolog.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		directory: directory,
		mailer:    mailer,
		events:    events,
		log:       log.With().Str("component", "order_service").Logger(),
	}
}

// SubmitOrderRequest is a purchase order submission.
type SubmitOrderRequest struct {
	Items    []*OrderItemRequest
	Metadata repository.OrderMetadata
}

// OrderItemRequest is one requested order line. UnitValue is in cents.
type OrderItemRequest struct {
	Quantity    int64
	Unit        string
	Description string
	UnitValue   int64
}

// Submit validates the request, snapshots the approval cohort and
// persists the pending order atomically. Approver and admin email
// alerts go out after the transaction commits and never fail the
// submission.
func (s *OrderService) Submit(ctx context.Context, principal Principal, req *SubmitOrderRequest) (*repository.PurchaseOrder, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.InvalidInput("items", "order must have at least 1 item")
	}

	items := make([]*repository.OrderItem, 0, len(req.Items))
	var totalValue int64
	for i, itemReq := range req.Items {
		if itemReq.Quantity <= 0 {
			return nil, apperrors.InvalidInput("quantity", fmt.Sprintf("item %d: quantity must be positive", i+1))
		}
		if itemReq.UnitValue < 0 {
			return nil, apperrors.InvalidInput("unit_value", fmt.Sprintf("item %d: unit value cannot be negative", i+1))
		}
		if strings.TrimSpace(itemReq.Description) == "" {
			return nil, apperrors.InvalidInput("description", fmt.Sprintf("item %d: description is required", i+1))
		}
		if strings.TrimSpace(itemReq.Unit) == "" {
			return nil, apperrors.InvalidInput("unit", fmt.Sprintf("item %d: unit is required", i+1))
		}

		lineTotal := itemReq.Quantity * itemReq.UnitValue
		totalValue += lineTotal
		items = append(items, &repository.OrderItem{
			Quantity:    itemReq.Quantity,
			Unit:        itemReq.Unit,
			Description: itemReq.Description,
			UnitValue:   itemReq.UnitValue,
			LineTotal:   lineTotal,
		})
	}

	// Snapshot the cohort once, at submission. Later directory changes
	// must not move the quorum for this order.
	approvers, err := s.directory.ListEligibleApprovers(ctx)
	if err != nil {
		return nil, err
	}
	if len(approvers) == 0 {
		return nil, apperrors.InvalidInput("approvers", "no active approvers available to review the order")
	}
	cohort := make([]string, 0, len(approvers))
	for _, approver := range approvers {
		cohort = append(cohort, approver.ID)
	}

	order := &repository.PurchaseOrder{
		RequesterID: principal.UserID,
		Status:      repository.StatusPending,
		TotalValue:  totalValue,
		Metadata:    req.Metadata,
		Items:       items,
	}

	if err := s.orders.CreateOrder(ctx, order, cohort); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", order.ID).
		Int64("po_number", order.PONumber).
		Str("requester_id", principal.UserID).
		Int64("total_value", order.TotalValue).
		Int("item_count", len(order.Items)).
		Int("cohort_size", len(cohort)).
		Msg("Purchase order submitted")

	if s.events != nil {
		s.events.PublishOrderEvent(ctx, "order_submitted", order.ID, principal.UserID, cohort, map[string]interface{}{
			"po_number":   order.PONumber,
			"total_value": order.TotalValue,
		})
	}
	s.sendSubmissionMail(ctx, order)

	return order, nil
}

// sendSubmissionMail emails active approvers and admins about the new
// order. Best effort: failures are logged and the committed order stands.
func (s *OrderService) sendSubmissionMail(ctx context.Context, order *repository.PurchaseOrder) {
	if s.mailer == nil {
		return
	}

	recipients, err := s.directory.ListAlertEmails(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", order.ID).Msg("Could not resolve alert recipients; email skipped")
		return
	}
	if len(recipients) == 0 {
		s.log.Warn().Str("order_id", order.ID).Msg("No approver or admin emails registered; email skipped")
		return
	}

	subject := fmt.Sprintf("Purchase order #%d awaiting approval", order.PONumber)
	body := submissionMailBody(order)
	if err := s.mailer.SendEmail(ctx, recipients, subject, body); err != nil {
		s.log.Warn().Err(err).
			Str("order_id", order.ID).
			Int("recipients", len(recipients)).
			Msg("Submission email failed (non-fatal)")
		return
	}

	s.log.Debug().Str("order_id", order.ID).Int("recipients", len(recipients)).Msg("Submission email sent")
}

func submissionMailBody(order *repository.PurchaseOrder) string {
	return fmt.Sprintf(`<html><body>
<h2>New purchase order awaiting approval</h2>
<ul>
<li><strong>Order #:</strong> %d</li>
<li><strong>Total:</strong> %s</li>
<li><strong>Items:</strong> %d</li>
</ul>
<p>Please sign in to review and approve the order.</p>
</body></html>`, order.PONumber, repository.FormatCents(order.TotalValue), len(order.Items))
}

// Get retrieves a purchase order with its items.
func (s *OrderService) Get(ctx context.Context, id string) (*repository.PurchaseOrder, error) {
	return s.orders.GetOrder(ctx, id)
}

// List returns orders visible to the principal: all of them for admins
// and approvers, otherwise the principal's own submissions.
func (s *OrderService) List(ctx context.Context, principal Principal) ([]*repository.PurchaseOrder, error) {
	if principal.CanApprove() {
		return s.orders.ListOrders(ctx)
	}
	return s.orders.ListOrdersByRequester(ctx, principal.UserID)
}

// ListByRequester returns one requester's orders.
func (s *OrderService) ListByRequester(ctx context.Context, requesterID string) ([]*repository.PurchaseOrder, error) {
	return s.orders.ListOrdersByRequester(ctx, requesterID)
}
