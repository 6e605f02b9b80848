package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tees-eng/purchasing-service/internal/repository"
	"github.com/tees-eng/purchasing-service/internal/repository/memory"
)

// fakeMailer records sends and can be told to fail.
type fakeMailer struct {
	mu    sync.Mutex
	fail  bool
	sends []fakeSend
}

type fakeSend struct {
	Recipients []string
	Subject    string
}

func (m *fakeMailer) SendEmail(_ context.Context, recipients []string, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("smtp relay unreachable")
	}
	m.sends = append(m.sends, fakeSend{Recipients: recipients, Subject: subject})
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

// fakePublisher records published workflow events.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) PublishOrderEvent(_ context.Context, eventType, _, _ string, _ []string, _ map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type testEnv struct {
	store         *memory.Store
	orders        *OrderService
	approvals     *ApprovalService
	directory     *DirectoryService
	notifications *NotificationService
	mailer        *fakeMailer
	events        *fakePublisher

	requester *repository.User
	admin     *repository.User
	approvers []*repository.User
}

func principalFor(u *repository.User) Principal {
	return Principal{UserID: u.ID, Role: u.Role}
}

func strPtr(s string) *string { return &s }

func newTestEnv(t *testing.T, approverCount int) *testEnv {
	t.Helper()

	store := memory.NewStore()
	mailer := &fakeMailer{}
	events := &fakePublisher{}
	log := zerolog.Nop()

	env := &testEnv{
		store:         store,
		mailer:        mailer,
		events:        events,
		orders:        NewOrderService(store, store, mailer, events, log),
		approvals:     NewApprovalService(store, store, mailer, events, log),
		directory:     NewDirectoryService(store, log),
		notifications: NewNotificationService(store, log),
	}

	ctx := context.Background()

	env.requester = &repository.User{Username: "dana", Role: repository.RoleRequester, Email: strPtr("dana@example.com"), Active: true}
	require.NoError(t, store.CreateUser(ctx, env.requester))

	env.admin = &repository.User{Username: "milo", Role: repository.RoleAdmin, Email: strPtr("milo@example.com"), Active: true}
	require.NoError(t, store.CreateUser(ctx, env.admin))

	for i := 0; i < approverCount; i++ {
		approver := &repository.User{
			Username: fmt.Sprintf("approver-%d", i+1),
			Role:     repository.RoleApprover,
			Email:    strPtr(fmt.Sprintf("approver-%d@example.com", i+1)),
			Active:   true,
		}
		require.NoError(t, store.CreateUser(ctx, approver))
		env.approvers = append(env.approvers, approver)
	}

	return env
}

// submitOrder submits a minimal valid order as the env requester.
func (e *testEnv) submitOrder(t *testing.T) *repository.PurchaseOrder {
	t.Helper()
	order, err := e.orders.Submit(context.Background(), principalFor(e.requester), &SubmitOrderRequest{
		Items: []*OrderItemRequest{
			{Quantity: 2, Unit: "UN", Description: "cement bags", UnitValue: 1000},
		},
		Metadata: repository.OrderMetadata{Justification: "site restock"},
	})
	require.NoError(t, err)
	return order
}
