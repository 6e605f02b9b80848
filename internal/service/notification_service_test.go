package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
	"github.com/tees-eng/purchasing-service/internal/repository"
)

func TestNotifications_MarkRead(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	env.submitOrder(t)

	a := principalFor(env.approvers[0])

	unread, err := env.notifications.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	notes, err := env.notifications.List(ctx, a)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	require.NoError(t, env.notifications.MarkRead(ctx, a, notes[0].ID))

	unread, err = env.notifications.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	// The other approver's copy is untouched.
	unread, err = env.notifications.UnreadCount(ctx, principalFor(env.approvers[1]))
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestNotifications_MarkReadIsRecipientScoped(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	env.submitOrder(t)

	notes, err := env.notifications.List(ctx, principalFor(env.approvers[0]))
	require.NoError(t, err)
	require.Len(t, notes, 1)

	// Another user cannot mark someone else's notification.
	err = env.notifications.MarkRead(ctx, principalFor(env.approvers[1]), notes[0].ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.Code(err))
}

func TestNotifications_MarkAllRead(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	// Two submissions → two notifications for the approver.
	env.submitOrder(t)
	env.submitOrder(t)

	a := principalFor(env.approvers[0])
	unread, err := env.notifications.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, env.notifications.MarkAllRead(ctx, a))

	unread, err = env.notifications.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestNotifications_NewestFirst(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	first := env.submitOrder(t)
	second := env.submitOrder(t)
	require.Greater(t, second.PONumber, first.PONumber)

	notes, err := env.notifications.List(ctx, principalFor(env.approvers[0]))
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Contains(t, notes[0].Message, repository.SubmittedMessage(second.PONumber, second.TotalValue))
}
