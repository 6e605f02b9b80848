package repository

import (
	"fmt"
	"time"
)

// ── Domain types for the purchasing workflow ─────────────────────────────────

// User roles.
const (
	RoleRequester = "requester"
	RoleApprover  = "approver"
	RoleAdmin     = "admin"
)

// Purchase order statuses. Pending is the only non-terminal state.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Vote decisions.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// User is a directory entry. The approval engine only reads users; all
// mutation goes through the directory admin surface.
type User struct {
	ID        string
	Username  string
	Role      string
	Email     *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPatch is an explicit partial update: only non-nil fields are
// applied. Interpreted by fixed SQL, never by statement construction.
type UserPatch struct {
	Email  *string
	Role   *string
	Active *bool
}

// PurchaseOrder is an order header. TotalValue is int64 cents, computed
// once at submission from the items and immutable afterward. Status is
// mutated only by the vote transaction.
type PurchaseOrder struct {
	ID          string
	PONumber    int64
	RequesterID string
	Status      string
	TotalValue  int64
	Metadata    OrderMetadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []*OrderItem
}

// OrderMetadata is pass-through context captured at submission. The
// engine never interprets these fields.
type OrderMetadata struct {
	Justification   string  `json:"justification"`
	SpreadsheetLink *string `json:"spreadsheet_link,omitempty"`
	SupplierName    *string `json:"supplier_name,omitempty"`
	SupplierTaxID   *string `json:"supplier_tax_id,omitempty"`
	SupplierContact *string `json:"supplier_contact,omitempty"`
	PaymentMethod   *string `json:"payment_method,omitempty"`
	BankDetails     *string `json:"bank_details,omitempty"`
	DeliveryDate    *string `json:"delivery_date,omitempty"`
	DueDate         *string `json:"due_date,omitempty"`
	DeliveryAddress *string `json:"delivery_address,omitempty"`
}

// OrderItem is one order line. LineTotal = Quantity × UnitValue (cents),
// fixed at submission.
type OrderItem struct {
	ID          string
	OrderID     string
	Quantity    int64
	Unit        string
	Description string
	UnitValue   int64
	LineTotal   int64
}

// ApprovalVote is one approver's decision on one order. At most one
// vote per (order, approver) pair, enforced by a unique constraint.
type ApprovalVote struct {
	ID         string
	OrderID    string
	ApproverID string
	Decision   string
	Comment    *string
	CreatedAt  time.Time
}

// VoteOutcome reports what a committed vote did to the order.
type VoteOutcome struct {
	Order    *PurchaseOrder
	Vote     *ApprovalVote
	Resolved bool // order left Pending in this transaction
}

// VoteTally is the read-only voting projection for one order.
type VoteTally struct {
	Status      string
	ApprovedBy  []string
	PendingFrom []string
}

// Notification is an in-app message for one user.
type Notification struct {
	ID        string
	UserID    string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// ── Notification message texts ───────────────────────────────────────────────
//
// Built here because the in-app rows are written inside the same
// transaction as the state change they describe.

// SubmittedMessage is queued for each cohort member at submission.
func SubmittedMessage(poNumber, totalValue int64) string {
	return fmt.Sprintf("Purchase order #%d (total %s) is awaiting your approval.", poNumber, FormatCents(totalValue))
}

// ApprovedMessage is queued for the requester when the order resolves.
func ApprovedMessage(poNumber int64) string {
	return fmt.Sprintf("Your purchase order #%d was approved and released for purchase.", poNumber)
}

// RejectedMessage is queued for the requester when the order is vetoed.
func RejectedMessage(poNumber int64) string {
	return fmt.Sprintf("Your purchase order #%d was rejected.", poNumber)
}

// FormatCents renders an int64 cent amount as a decimal string.
func FormatCents(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
