package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
)

// OrderRepository handles purchase order, cohort, vote and workflow
// notification persistence. The multi-table writes (submission, vote)
// each run inside a single transaction so partial state is never
// observable.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `
	id, po_number, requester_id, status, total_value,
	justification, spreadsheet_link,
	supplier_name, supplier_tax_id, supplier_contact,
	payment_method, bank_details,
	delivery_date, due_date, delivery_address,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*PurchaseOrder, error) {
	order := &PurchaseOrder{}
	err := row.Scan(
		&order.ID,
		&order.PONumber,
		&order.RequesterID,
		&order.Status,
		&order.TotalValue,
		&order.Metadata.Justification,
		&order.Metadata.SpreadsheetLink,
		&order.Metadata.SupplierName,
		&order.Metadata.SupplierTaxID,
		&order.Metadata.SupplierContact,
		&order.Metadata.PaymentMethod,
		&order.Metadata.BankDetails,
		&order.Metadata.DeliveryDate,
		&order.Metadata.DueDate,
		&order.Metadata.DeliveryAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

// CreateOrder inserts the order, its items, the approval cohort
// snapshot and one submission notification per cohort member in one
// transaction. Assigns ID, PONumber and timestamps on the way out.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *PurchaseOrder, cohort []string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO purchase_orders
			    (po_number, requester_id, status, total_value,
			     justification, spreadsheet_link,
			     supplier_name, supplier_tax_id, supplier_contact,
			     payment_method, bank_details,
			     delivery_date, due_date, delivery_address)
			VALUES (nextval('po_number_seq'), $1, $2, $3,
			        $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, po_number, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			order.RequesterID,
			order.Status,
			order.TotalValue,
			order.Metadata.Justification,
			order.Metadata.SpreadsheetLink,
			order.Metadata.SupplierName,
			order.Metadata.SupplierTaxID,
			order.Metadata.SupplierContact,
			order.Metadata.PaymentMethod,
			order.Metadata.BankDetails,
			order.Metadata.DeliveryDate,
			order.Metadata.DueDate,
			order.Metadata.DeliveryAddress,
		).Scan(&order.ID, &order.PONumber, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create purchase order")
		}

		itemQuery := `
			INSERT INTO order_items (order_id, quantity, unit, description, unit_value, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		for _, item := range order.Items {
			item.OrderID = order.ID
			err := tx.QueryRow(ctx, itemQuery,
				item.OrderID,
				item.Quantity,
				item.Unit,
				item.Description,
				item.UnitValue,
				item.LineTotal,
			).Scan(&item.ID)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create order item")
			}
		}

		cohortQuery := `INSERT INTO order_approvers (order_id, approver_id) VALUES ($1, $2)`
		noteQuery := `INSERT INTO notifications (user_id, message) VALUES ($1, $2)`
		message := SubmittedMessage(order.PONumber, order.TotalValue)
		for _, approverID := range cohort {
			if _, err := tx.Exec(ctx, cohortQuery, order.ID, approverID); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to persist approval cohort")
			}
			if _, err := tx.Exec(ctx, noteQuery, approverID, message); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to queue submission notification")
			}
		}

		return nil
	})
}

// GetOrder retrieves an order with its items.
func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE id = $1`, orderColumns)

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("purchase_order", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get purchase order")
	}

	items, err := r.getItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *OrderRepository) getItems(ctx context.Context, orderID string) ([]*OrderItem, error) {
	query := `
		SELECT id, order_id, quantity, unit, description, unit_value, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get order items")
	}
	defer rows.Close()

	items := make([]*OrderItem, 0)
	for rows.Next() {
		item := &OrderItem{}
		err := rows.Scan(&item.ID, &item.OrderID, &item.Quantity, &item.Unit, &item.Description, &item.UnitValue, &item.LineTotal)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan order item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *OrderRepository) listOrders(ctx context.Context, query string, args ...interface{}) ([]*PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list purchase orders")
	}
	defer rows.Close()

	orders := make([]*PurchaseOrder, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan purchase order")
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ListOrders returns all orders, newest first; items are not loaded.
func (r *OrderRepository) ListOrders(ctx context.Context) ([]*PurchaseOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders ORDER BY po_number DESC`, orderColumns)
	return r.listOrders(ctx, query)
}

// ListOrdersByRequester returns one requester's orders, newest first.
func (r *OrderRepository) ListOrdersByRequester(ctx context.Context, requesterID string) ([]*PurchaseOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE requester_id = $1 ORDER BY po_number DESC`, orderColumns)
	return r.listOrders(ctx, query, requesterID)
}

// CastVote records one vote and applies the quorum rules in a single
// transaction. The order row is locked FOR UPDATE for the duration, so
// two racing final votes serialize and exactly one performs the
// transition; the (order_id, approver_id) unique constraint turns
// concurrent duplicates into already_exists at commit time.
func (r *OrderRepository) CastVote(ctx context.Context, orderID, approverID, decision string, comment *string) (*VoteOutcome, error) {
	outcome := &VoteOutcome{}

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		lockQuery := fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE id = $1 FOR UPDATE`, orderColumns)
		order, err := scanOrder(tx.QueryRow(ctx, lockQuery, orderID))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("purchase_order", orderID)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to lock purchase order")
		}

		if order.Status != StatusPending {
			return apperrors.Newf(apperrors.ErrCodeConflict,
				"order #%d is already %s", order.PONumber, order.Status)
		}

		var inCohort bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM order_approvers WHERE order_id = $1 AND approver_id = $2)`,
			orderID, approverID,
		).Scan(&inCohort)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to check approval cohort")
		}
		if !inCohort {
			return apperrors.New(apperrors.ErrCodeUnauthorized,
				"approver is not part of this order's approval cohort")
		}

		vote := &ApprovalVote{OrderID: orderID, ApproverID: approverID, Decision: decision, Comment: comment}
		err = tx.QueryRow(ctx,
			`INSERT INTO approval_votes (order_id, approver_id, decision, comment)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at`,
			orderID, approverID, decision, comment,
		).Scan(&vote.ID, &vote.CreatedAt)
		if isUniqueViolation(err, "approval_votes_order_id_approver_id_key") {
			return apperrors.Newf(apperrors.ErrCodeAlreadyExists,
				"approver already voted on order #%d", order.PONumber)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to record vote")
		}
		outcome.Vote = vote

		newStatus := ""
		if decision == DecisionRejected {
			// Immediate veto.
			newStatus = StatusRejected
		} else {
			var approvedCount, cohortSize int
			err = tx.QueryRow(ctx,
				`SELECT
				    (SELECT COUNT(*) FROM approval_votes WHERE order_id = $1 AND decision = $2),
				    (SELECT COUNT(*) FROM order_approvers WHERE order_id = $1)`,
				orderID, DecisionApproved,
			).Scan(&approvedCount, &cohortSize)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to tally votes")
			}
			if approvedCount == cohortSize {
				newStatus = StatusApproved
			}
		}

		if newStatus != "" {
			err = tx.QueryRow(ctx,
				`UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
				orderID, newStatus,
			).Scan(&order.UpdatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update order status")
			}
			order.Status = newStatus

			message := ApprovedMessage(order.PONumber)
			if newStatus == StatusRejected {
				message = RejectedMessage(order.PONumber)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO notifications (user_id, message) VALUES ($1, $2)`,
				order.RequesterID, message,
			); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to queue resolution notification")
			}
			outcome.Resolved = true
		}

		outcome.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// GetVotes returns all recorded votes for an order, oldest first.
func (r *OrderRepository) GetVotes(ctx context.Context, orderID string) ([]*ApprovalVote, error) {
	query := `
		SELECT id, order_id, approver_id, decision, comment, created_at
		FROM approval_votes
		WHERE order_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get votes")
	}
	defer rows.Close()

	votes := make([]*ApprovalVote, 0)
	for rows.Next() {
		vote := &ApprovalVote{}
		err := rows.Scan(&vote.ID, &vote.OrderID, &vote.ApproverID, &vote.Decision, &vote.Comment, &vote.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan vote")
		}
		votes = append(votes, vote)
	}
	return votes, rows.Err()
}

// GetCohort returns the approver IDs snapshotted at submission.
func (r *OrderRepository) GetCohort(ctx context.Context, orderID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT approver_id FROM order_approvers WHERE order_id = $1 ORDER BY approver_id`, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get approval cohort")
	}
	defer rows.Close()

	cohort := make([]string, 0)
	for rows.Next() {
		var approverID string
		if err := rows.Scan(&approverID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan cohort member")
		}
		cohort = append(cohort, approverID)
	}
	return cohort, rows.Err()
}
