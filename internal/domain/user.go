package domain

import "time"

// Role is the platform authorization role carried in tokens.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsAdmin reports whether the role may call admin-restricted endpoints.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is the shared platform user row. Balances are written by the
// wallet subsystem; this service only reads them and owns the maturity
// columns.
type User struct {
	ID                   string
	Email                string
	PasswordHash         string
	Role                 Role
	UserType             string
	PointsBalance        int64
	KeysBalance          int64
	GemsBalance          int64
	MaturityState        MaturityState
	VerifiedActionsCount int
	FirstRewardAt        *time.Time
	LastUsedSurface      *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Snapshot projects the user row into the derived maturity view.
func (u *User) Snapshot() MaturitySnapshot {
	return MaturitySnapshot{
		UserID:               u.ID,
		State:                u.MaturityState,
		VerifiedActionsCount: u.VerifiedActionsCount,
		FirstRewardAt:        u.FirstRewardAt,
		LastUsedSurface:      u.LastUsedSurface,
		UserType:             u.UserType,
		PointsBalance:        u.PointsBalance,
		KeysBalance:          u.KeysBalance,
		GemsBalance:          u.GemsBalance,
	}
}
