package service

import "github.com/tees-eng/purchasing-service/internal/repository"

// Principal is the authenticated actor behind a request. Passed
// explicitly into every engine call; there is no ambient session state.
type Principal struct {
	UserID string
	Role   string
}

// CanApprove reports whether the principal may vote on orders.
func (p Principal) CanApprove() bool {
	return p.Role == repository.RoleApprover || p.Role == repository.RoleAdmin
}

// IsAdmin reports whether the principal may manage the directory.
func (p Principal) IsAdmin() bool {
	return p.Role == repository.RoleAdmin
}
