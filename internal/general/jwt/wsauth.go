package jwt

import (
	"errors"
	"strings"

	"trip-dispatch/internal/domain/user"
)

var (
	ErrBadAuthMsg   = errors.New("invalid auth frame")
	ErrBadTokenWrap = errors.New("token must be 'Bearer <token>'")
)

// Result carries the validated claims of a WebSocket auth frame.
type Result struct {
	Claims *Claims
	Raw    string
}

// ValidateWSToken validates the "Bearer <jwt>" token carried by the first
// auth frame of a WebSocket connection and enforces RBAC.
func ValidateWSToken(token string, mgr *Manager, allowedRoles ...user.Role) (*Result, error) {
	// expect "Bearer <token>" wrapping
	parts := strings.SplitN(token, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrBadTokenWrap
	}

	// parse and validate token
	raw := strings.TrimSpace(parts[1])
	_, claims, err := mgr.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}

	// enforce role-based access control (RBAC)
	if err := RoleAllowed(claims, allowedRoles...); err != nil {
		return nil, err
	}

	return &Result{Claims: claims, Raw: raw}, nil
}
