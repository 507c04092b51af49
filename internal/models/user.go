package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleUser       UserRole = "USER"
)

// Principal is the acting identity passed explicitly into every workflow operation.
type Principal struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
}

// Authenticated reports whether the principal identifies a signed-in user.
func (p *Principal) Authenticated() bool {
	return p != nil && p.UserID != ""
}

// IsAdmin reports whether the principal may review requests and edit plots.
func (p *Principal) IsAdmin() bool {
	return p.Authenticated() && (p.Role == RoleAdmin || p.Role == RoleSuperAdmin)
}

// SystemPrincipal acts for scheduled jobs.
func SystemPrincipal() *Principal {
	return &Principal{UserID: "system", Role: RoleSuperAdmin}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
