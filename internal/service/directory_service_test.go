package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
	"github.com/tees-eng/purchasing-service/internal/repository"
)

func TestCreateUser_AdminOnly(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	req := &CreateUserRequest{Username: "nadia", Role: repository.RoleApprover}

	_, err := env.directory.CreateUser(ctx, principalFor(env.requester), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.Code(err))

	user, err := env.directory.CreateUser(ctx, principalFor(env.admin), req)
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.NotEmpty(t, user.ID)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()
	admin := principalFor(env.admin)

	_, err := env.directory.CreateUser(ctx, admin, &CreateUserRequest{Username: "nadia", Role: repository.RoleRequester})
	require.NoError(t, err)

	_, err = env.directory.CreateUser(ctx, admin, &CreateUserRequest{Username: "nadia", Role: repository.RoleApprover})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAlreadyExists, apperrors.Code(err))
}

func TestCreateUser_Validation(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()
	admin := principalFor(env.admin)

	_, err := env.directory.CreateUser(ctx, admin, &CreateUserRequest{Username: "  ", Role: repository.RoleRequester})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.Code(err))

	_, err = env.directory.CreateUser(ctx, admin, &CreateUserRequest{Username: "nadia", Role: "superuser"})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.Code(err))
}

func TestUpdateUser_PartialPatch(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()
	admin := principalFor(env.admin)
	target := env.approvers[0]

	// Email-only patch leaves role and active untouched.
	updated, err := env.directory.UpdateUser(ctx, admin, target.ID, repository.UserPatch{Email: strPtr("new@example.com")})
	require.NoError(t, err)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "new@example.com", *updated.Email)
	assert.Equal(t, repository.RoleApprover, updated.Role)
	assert.True(t, updated.Active)

	// Active-only patch leaves the new email in place.
	inactive := false
	updated, err = env.directory.UpdateUser(ctx, admin, target.ID, repository.UserPatch{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "new@example.com", *updated.Email)
}

func TestUpdateUser_InvalidRoleAndUnknownUser(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()
	admin := principalFor(env.admin)

	_, err := env.directory.UpdateUser(ctx, admin, env.approvers[0].ID, repository.UserPatch{Role: strPtr("superuser")})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.Code(err))

	_, err = env.directory.UpdateUser(ctx, admin, "no-such-user", repository.UserPatch{Email: strPtr("x@example.com")})
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.Code(err))
}

func TestDeactivatedApproverLeavesFutureCohorts(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	inactive := false
	_, err := env.directory.UpdateUser(ctx, principalFor(env.admin), env.approvers[1].ID, repository.UserPatch{Active: &inactive})
	require.NoError(t, err)

	order := env.submitOrder(t)
	cohort, err := env.store.GetCohort(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{env.approvers[0].ID}, cohort)
}

func TestListUsers_AdminOnly(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	_, err := env.directory.ListUsers(ctx, principalFor(env.approvers[0]))
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.Code(err))

	users, err := env.directory.ListUsers(ctx, principalFor(env.admin))
	require.NoError(t, err)
	assert.Len(t, users, 3) // requester, admin, approver
}

func TestBootstrap(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	admin, err := env.directory.Bootstrap(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, repository.RoleAdmin, admin.Role)
	assert.True(t, admin.Active)

	// Idempotent: a second bootstrap finds the existing admin.
	again, err := env.directory.Bootstrap(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	users, err := env.directory.ListUsers(ctx, principalFor(admin))
	require.NoError(t, err)
	assert.Len(t, users, 3) // requester, seeded admin, bootstrap admin
}
