package model

import "time"

// Tenant membership statuses as stored in tenant_users.status.  Only
// StatusActive grants access; every other value is treated as inactive by
// the permission gate.
const (
	StatusInvited   = "invited"
	StatusActive    = "active"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

// TenantUser represents a row in the `tenant_users` table, mapping a user to
// a tenant.  The same table corroborates super-admin claims: a user whose
// token carries no tenant must still own at least one row with IsAdmin set.
//
// Fields:
//
//	ID        – primary key identifier (UUID string).
//	UserID    – member user (UUID string).
//	TenantID  – tenant the membership belongs to; nil for global rows.
//	IsAdmin   – whether the user administers this tenant.
//	Status    – one of the Status* constants above.
//	CreatedAt – timestamp of creation.
//	UpdatedAt – timestamp of last update.
type TenantUser struct {
	ID        string    // tenant_users.id
	UserID    string    // tenant_users.user_id
	TenantID  *string   // tenant_users.tenant_id (nullable)
	IsAdmin   bool      // tenant_users.is_admin
	Status    string    // tenant_users.status
	CreatedAt time.Time // tenant_users.created_at
	UpdatedAt time.Time // tenant_users.updated_at
}
