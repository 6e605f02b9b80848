package handler

import (
	"time"

	"github.com/tees-eng/purchasing-service/internal/repository"
)

// JSON shapes for the HTTP surface. Domain structs stay tag-free; the
// wire format is pinned here.

type orderItemResponse struct {
	ID          string `json:"id"`
	Quantity    int64  `json:"quantity"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
	UnitValue   int64  `json:"unit_value"`
	LineTotal   int64  `json:"line_total"`
}

type orderResponse struct {
	ID          string                   `json:"id"`
	PONumber    int64                    `json:"po_number"`
	RequesterID string                   `json:"requester_id"`
	Status      string                   `json:"status"`
	TotalValue  int64                    `json:"total_value"`
	Metadata    repository.OrderMetadata `json:"metadata"`
	CreatedAt   time.Time                `json:"created_at"`
	Items       []orderItemResponse      `json:"items,omitempty"`
}

type voteResponse struct {
	ApproverID string    `json:"approver_id"`
	Decision   string    `json:"decision"`
	Comment    *string   `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type tallyResponse struct {
	Status      string   `json:"status"`
	ApprovedBy  []string `json:"approved_by"`
	PendingFrom []string `json:"pending_from"`
}

type orderDetailResponse struct {
	orderResponse
	Votes       []voteResponse `json:"votes"`
	PendingFrom []string       `json:"pending_from"`
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type userResponse struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	Email    *string `json:"email,omitempty"`
	Active   bool    `json:"active"`
}

func toOrderResponse(order *repository.PurchaseOrder) orderResponse {
	resp := orderResponse{
		ID:          order.ID,
		PONumber:    order.PONumber,
		RequesterID: order.RequesterID,
		Status:      order.Status,
		TotalValue:  order.TotalValue,
		Metadata:    order.Metadata,
		CreatedAt:   order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:          item.ID,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Description: item.Description,
			UnitValue:   item.UnitValue,
			LineTotal:   item.LineTotal,
		})
	}
	return resp
}

func toVoteResponses(votes []*repository.ApprovalVote) []voteResponse {
	resp := make([]voteResponse, 0, len(votes))
	for _, vote := range votes {
		resp = append(resp, voteResponse{
			ApproverID: vote.ApproverID,
			Decision:   vote.Decision,
			Comment:    vote.Comment,
			CreatedAt:  vote.CreatedAt,
		})
	}
	return resp
}

func toUserResponse(user *repository.User) userResponse {
	return userResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		Email:    user.Email,
		Active:   user.Active,
	}
}
