package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tees-eng/purchasing-service/internal/repository"
	"github.com/tees-eng/purchasing-service/internal/repository/memory"
	"github.com/tees-eng/purchasing-service/internal/service"
)

type testAPI struct {
	router    *chi.Mux
	store     *memory.Store
	requester *repository.User
	admin     *repository.User
	approvers []*repository.User
}

func newTestAPI(t *testing.T, approverCount int) *testAPI {
	t.Helper()

	store := memory.NewStore()
	log := zerolog.Nop()

	orders := service.NewOrderService(store, store, nil, nil, log)
	approvals := service.NewApprovalService(store, store, nil, nil, log)
	directory := service.NewDirectoryService(store, log)
	notifications := service.NewNotificationService(store, log)

	h := NewHTTPHandler(orders, approvals, directory, notifications, log)
	router := chi.NewRouter()
	h.Routes(router)

	api := &testAPI{router: router, store: store}
	ctx := context.Background()

	api.requester = &repository.User{Username: "dana", Role: repository.RoleRequester, Active: true}
	require.NoError(t, store.CreateUser(ctx, api.requester))
	api.admin = &repository.User{Username: "milo", Role: repository.RoleAdmin, Active: true}
	require.NoError(t, store.CreateUser(ctx, api.admin))
	for i := 0; i < approverCount; i++ {
		approver := &repository.User{Username: fmt.Sprintf("approver-%d", i+1), Role: repository.RoleApprover, Active: true}
		require.NoError(t, store.CreateUser(ctx, approver))
		api.approvers = append(api.approvers, approver)
	}

	return api
}

func (api *testAPI) do(t *testing.T, method, path string, asUser *repository.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if asUser != nil {
		req.Header.Set("X-User-ID", asUser.ID)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func (api *testAPI) submitOrder(t *testing.T) string {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/api/v1/orders", api.requester, map[string]interface{}{
		"items": []map[string]interface{}{
			{"quantity": 2, "unit": "UN", "description": "cement", "unit_value": 1000},
		},
		"metadata": map[string]interface{}{"justification": "restock"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, 0)
	rec := api.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitOrder(t *testing.T) {
	api := newTestAPI(t, 2)

	rec := api.do(t, http.MethodPost, "/api/v1/orders", api.requester, map[string]interface{}{
		"items": []map[string]interface{}{
			{"quantity": 2, "unit": "UN", "description": "cement", "unit_value": 1000},
			{"quantity": 1, "unit": "UN", "description": "sand", "unit_value": 500},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		PONumber   int64 `json:"po_number"`
		TotalValue int64 `json:"total_value"`
		Items      []struct {
			LineTotal int64 `json:"line_total"`
		} `json:"items"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2500), resp.TotalValue)
	assert.Equal(t, "pending", resp.Status)
	assert.Positive(t, resp.PONumber)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, int64(2000), resp.Items[0].LineTotal)
}

func TestSubmitOrder_Invalid(t *testing.T) {
	api := newTestAPI(t, 1)

	rec := api.do(t, http.MethodPost, "/api/v1/orders", api.requester, map[string]interface{}{
		"items": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", errorCode(t, rec))
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI(t, 1)

	// No header.
	rec := api.do(t, http.MethodGet, "/api/v1/orders", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Unknown user.
	ghost := &repository.User{ID: "no-such-user"}
	rec = api.do(t, http.MethodGet, "/api/v1/orders", ghost, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Deactivated user.
	inactive := false
	_, err := api.store.UpdateUser(context.Background(), api.requester.ID, repository.UserPatch{Active: &inactive})
	require.NoError(t, err)
	rec = api.do(t, http.MethodGet, "/api/v1/orders", api.requester, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVoteFlow(t *testing.T) {
	api := newTestAPI(t, 2)
	orderID := api.submitOrder(t)

	// First approval: pending.
	rec := api.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/votes", api.approvers[0], map[string]string{"decision": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var voteResp struct {
		Status   string `json:"status"`
		Resolved bool   `json:"resolved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voteResp))
	assert.Equal(t, "pending", voteResp.Status)
	assert.False(t, voteResp.Resolved)

	// Duplicate vote: conflict.
	rec = api.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/votes", api.approvers[0], map[string]string{"decision": "approved"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", errorCode(t, rec))

	// Tally shows one outstanding approver.
	rec = api.do(t, http.MethodGet, "/api/v1/orders/"+orderID+"/votes", api.requester, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tally struct {
		ApprovedBy  []string `json:"approved_by"`
		PendingFrom []string `json:"pending_from"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tally))
	assert.Equal(t, []string{api.approvers[0].ID}, tally.ApprovedBy)
	assert.Equal(t, []string{api.approvers[1].ID}, tally.PendingFrom)

	// Second approval resolves the order.
	rec = api.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/votes", api.approvers[1], map[string]string{"decision": "approved"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voteResp))
	assert.Equal(t, "approved", voteResp.Status)
	assert.True(t, voteResp.Resolved)

	// Voting on a resolved order: conflict.
	rec = api.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/votes", api.approvers[0], map[string]string{"decision": "rejected"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))
}

func TestVote_RequesterForbidden(t *testing.T) {
	api := newTestAPI(t, 1)
	orderID := api.submitOrder(t)

	rec := api.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/votes", api.requester, map[string]string{"decision": "approved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetOrder_DetailAndNotFound(t *testing.T) {
	api := newTestAPI(t, 1)
	orderID := api.submitOrder(t)

	comment := "ok to buy"
	rec := api.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/votes", api.approvers[0], map[string]interface{}{"decision": "approved", "comment": comment})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/orders/"+orderID, api.requester, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Status string `json:"status"`
		Votes  []struct {
			Decision string  `json:"decision"`
			Comment  *string `json:"comment"`
		} `json:"votes"`
		PendingFrom []string `json:"pending_from"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "approved", detail.Status)
	require.Len(t, detail.Votes, 1)
	require.NotNil(t, detail.Votes[0].Comment)
	assert.Equal(t, comment, *detail.Votes[0].Comment)
	assert.Empty(t, detail.PendingFrom)

	rec = api.do(t, http.MethodGet, "/api/v1/orders/no-such-order", api.requester, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsEndpoints(t *testing.T) {
	api := newTestAPI(t, 1)
	api.submitOrder(t)

	rec := api.do(t, http.MethodGet, "/api/v1/notifications", api.approvers[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Notifications []struct {
			ID     string `json:"id"`
			IsRead bool   `json:"is_read"`
		} `json:"notifications"`
		Unread int `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Notifications, 1)
	assert.Equal(t, 1, listResp.Unread)

	rec = api.do(t, http.MethodPost, "/api/v1/notifications/read", api.approvers[0], map[string]interface{}{"id": listResp.Notifications[0].ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/notifications", api.approvers[0], nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, 0, listResp.Unread)

	// Neither id nor all.
	rec = api.do(t, http.MethodPost, "/api/v1/notifications/read", api.approvers[0], map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserAdminEndpoints(t *testing.T) {
	api := newTestAPI(t, 0)

	// Non-admin cannot create users.
	rec := api.do(t, http.MethodPost, "/api/v1/users", api.requester, map[string]string{"username": "nadia", "role": "approver"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/users", api.admin, map[string]string{"username": "nadia", "role": "approver", "email": "nadia@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Duplicate username.
	rec = api.do(t, http.MethodPost, "/api/v1/users", api.admin, map[string]string{"username": "nadia", "role": "requester"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Partial update.
	rec = api.do(t, http.MethodPatch, "/api/v1/users/"+created.ID, api.admin, map[string]interface{}{"active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		Active bool    `json:"active"`
		Email  *string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.Active)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "nadia@example.com", *updated.Email)

	rec = api.do(t, http.MethodGet, "/api/v1/users", api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, 3, listResp.Total)
}

func TestBadJSONBody(t *testing.T) {
	api := newTestAPI(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-User-ID", api.requester.ID)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
