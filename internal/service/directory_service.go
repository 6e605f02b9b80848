package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
	"github.com/tees-eng/purchasing-service/internal/repository"
)

// DirectoryService is the admin surface over the user directory.
type DirectoryService struct {
	directory DirectoryStore
	log       zerolog.Logger
}

// NewDirectoryService creates a new directory service.
func NewDirectoryService(directory DirectoryStore, log zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		directory: directory,
		log:       log.With().Str("component", "directory_service").Logger(),
	}
}

func validRole(role string) bool {
	switch role {
	case repository.RoleRequester, repository.RoleApprover, repository.RoleAdmin:
		return true
	}
	return false
}

// CreateUserRequest is an admin user creation request.
type CreateUserRequest struct {
	Username string
	Role     string
	Email    *string
}

// CreateUser registers a new directory entry. Usernames are unique.
func (s *DirectoryService) CreateUser(ctx context.Context, principal Principal, req *CreateUserRequest) (*repository.User, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "only admins can manage users")
	}
	if strings.TrimSpace(req.Username) == "" {
		return nil, apperrors.InvalidInput("username", "username is required")
	}
	if !validRole(req.Role) {
		return nil, apperrors.InvalidInput("role", "must be requester, approver or admin")
	}

	user := &repository.User{
		Username: strings.TrimSpace(req.Username),
		Role:     req.Role,
		Email:    req.Email,
		Active:   true,
	}
	if err := s.directory.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Str("role", user.Role).
		Msg("User created")

	return user, nil
}

// Bootstrap ensures an active admin with the given username exists, so a
// fresh deployment has a principal that can manage the directory. Returns
// the admin whether it was found or just created.
func (s *DirectoryService) Bootstrap(ctx context.Context, username string) (*repository.User, error) {
	user, err := s.directory.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		return nil, err
	}

	user = &repository.User{Username: username, Role: repository.RoleAdmin, Active: true}
	if err := s.directory.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Str("username", username).Msg("Bootstrap admin created")
	return user, nil
}

// UpdateUser applies a partial update. Only fields present in the patch
// change; cohorts snapshotted before the update are unaffected.
func (s *DirectoryService) UpdateUser(ctx context.Context, principal Principal, id string, patch repository.UserPatch) (*repository.User, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "only admins can manage users")
	}
	if patch.Role != nil && !validRole(*patch.Role) {
		return nil, apperrors.InvalidInput("role", "must be requester, approver or admin")
	}

	user, err := s.directory.UpdateUser(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", id).
		Bool("role_changed", patch.Role != nil).
		Bool("email_changed", patch.Email != nil).
		Bool("active_changed", patch.Active != nil).
		Msg("User updated")

	return user, nil
}

// ListUsers returns the full directory; admin only.
func (s *DirectoryService) ListUsers(ctx context.Context, principal Principal) ([]*repository.User, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "only admins can list users")
	}
	return s.directory.ListUsers(ctx)
}

// GetUser returns a single directory entry.
func (s *DirectoryService) GetUser(ctx context.Context, id string) (*repository.User, error) {
	return s.directory.GetUser(ctx, id)
}
