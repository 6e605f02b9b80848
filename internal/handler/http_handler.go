package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
	"github.com/tees-eng/purchasing-service/internal/repository"
	"github.com/tees-eng/purchasing-service/internal/service"
)

// HTTPHandler serves the JSON API.
type HTTPHandler struct {
	orders        *service.OrderService
	approvals     *service.ApprovalService
	directory     *service.DirectoryService
	notifications *service.NotificationService
	log           zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	orders *service.OrderService,
	approvals *service.ApprovalService,
	directory *service.DirectoryService,
	notifications *service.NotificationService,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		orders:        orders,
		approvals:     approvals,
		directory:     directory,
		notifications: notifications,
		log:           log.With().Str("handler", "http").Logger(),
	}
}

// Routes mounts the API route table on r. Everything under /api/v1
// requires a resolved principal.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.WithPrincipal)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.SubmitOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/votes", h.CastVote)
			r.Get("/{orderID}/votes", h.GetVotes)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/read", h.MarkNotificationsRead)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Patch("/{userID}", h.UpdateUser)
		})
	})
}

// statusForCode maps error classifications to HTTP statuses.
func statusForCode(code apperrors.ErrCode) int {
	switch code {
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict, apperrors.ErrCodeAlreadyExists:
		return http.StatusConflict
	case apperrors.ErrCodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.Code(err)
	status := statusForCode(code)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    string(code),
			"message": err.Error(),
		},
	})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("body", "invalid JSON request body"))
		return false
	}
	return true
}

// Health reports liveness.
func (h *HTTPHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ── Orders ───────────────────────────────────────────────────────────────────

type submitOrderRequest struct {
	Items []struct {
		Quantity    int64  `json:"quantity"`
		Unit        string `json:"unit"`
		Description string `json:"description"`
		UnitValue   int64  `json:"unit_value"`
	} `json:"items"`
	Metadata repository.OrderMetadata `json:"metadata"`
}

// SubmitOrder handles POST /api/v1/orders.
func (h *HTTPHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req submitOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	serviceReq := &service.SubmitOrderRequest{Metadata: req.Metadata}
	for _, item := range req.Items {
		serviceReq.Items = append(serviceReq.Items, &service.OrderItemRequest{
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Description: item.Description,
			UnitValue:   item.UnitValue,
		})
	}

	order, err := h.orders.Submit(r.Context(), principal, serviceReq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// ListOrders handles GET /api/v1/orders.
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	orders, err := h.orders.List(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp, "total": len(resp)})
}

// GetOrder handles GET /api/v1/orders/{orderID}: the full detail view
// with items, votes and outstanding approvers.
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	votes, err := h.approvals.ListVotes(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tally, err := h.approvals.GetVotes(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: toOrderResponse(order),
		Votes:         toVoteResponses(votes),
		PendingFrom:   tally.PendingFrom,
	})
}

type castVoteRequest struct {
	Decision string  `json:"decision"`
	Comment  *string `json:"comment,omitempty"`
}

// CastVote handles POST /api/v1/orders/{orderID}/votes.
func (h *HTTPHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	orderID := chi.URLParam(r, "orderID")

	var req castVoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.approvals.CastVote(r.Context(), principal, orderID, req.Decision, req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"status":   outcome.Order.Status,
		"resolved": outcome.Resolved,
	})
}

// GetVotes handles GET /api/v1/orders/{orderID}/votes.
func (h *HTTPHandler) GetVotes(w http.ResponseWriter, r *http.Request) {
	tally, err := h.approvals.GetVotes(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tallyResponse{
		Status:      tally.Status,
		ApprovedBy:  tally.ApprovedBy,
		PendingFrom: tally.PendingFrom,
	})
}

// ── Notifications ────────────────────────────────────────────────────────────

// ListNotifications handles GET /api/v1/notifications.
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	notifications, err := h.notifications.List(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unread, err := h.notifications.UnreadCount(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, notificationResponse{ID: n.ID, Message: n.Message, IsRead: n.IsRead, CreatedAt: n.CreatedAt})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": resp, "unread": unread})
}

type markReadRequest struct {
	ID  string `json:"id,omitempty"`
	All bool   `json:"all,omitempty"`
}

// MarkNotificationsRead handles POST /api/v1/notifications/read.
func (h *HTTPHandler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req markReadRequest
	if !h.decode(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.All:
		err = h.notifications.MarkAllRead(r.Context(), principal)
	case req.ID != "":
		err = h.notifications.MarkRead(r.Context(), principal, req.ID)
	default:
		err = apperrors.InvalidInput("id", "provide a notification id or all=true")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Users ────────────────────────────────────────────────────────────────────

// ListUsers handles GET /api/v1/users.
func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	users, err := h.directory.ListUsers(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, toUserResponse(user))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"users": resp, "total": len(resp)})
}

type createUserRequest struct {
	Username string  `json:"username"`
	Role     string  `json:"role"`
	Email    *string `json:"email,omitempty"`
}

// CreateUser handles POST /api/v1/users.
func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.directory.CreateUser(r.Context(), principal, &service.CreateUserRequest{
		Username: req.Username,
		Role:     req.Role,
		Email:    req.Email,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type updateUserRequest struct {
	Email  *string `json:"email,omitempty"`
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// UpdateUser handles PATCH /api/v1/users/{userID}.
func (h *HTTPHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.directory.UpdateUser(r.Context(), principal, chi.URLParam(r, "userID"), repository.UserPatch{
		Email:  req.Email,
		Role:   req.Role,
		Active: req.Active,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}
