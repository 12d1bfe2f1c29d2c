package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/saas-access-core/internal/database"
	"github.com/iliyamo/saas-access-core/internal/model"
)

// TenantUserRepo reads tenant membership rows. It backs two checks: the
// super-admin corroboration (a "None"-tenant token must still own an admin
// row) and the permission gate's live membership recheck.
type TenantUserRepo struct{ DB database.Querier }

func NewTenantUserRepo(db database.Querier) *TenantUserRepo { return &TenantUserRepo{DB: db} }

// HasAdminMembership reports whether the user administers any tenant.
func (r *TenantUserRepo) HasAdminMembership(ctx context.Context, userID string) (bool, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT 1 FROM tenant_users WHERE user_id=? AND is_admin=1 LIMIT 1",
		userID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	if rows.Next() {
		return true, nil
	}
	return false, rows.Err()
}

// FindMembership returns the membership row for a (user, tenant) pair.
// A missing row yields ErrNoMembership.
func (r *TenantUserRepo) FindMembership(ctx context.Context, userID, tenantID string) (model.TenantUser, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,user_id,tenant_id,is_admin,status,created_at,updated_at FROM tenant_users WHERE user_id=? AND tenant_id=? LIMIT 1",
		userID, tenantID)
	if err != nil {
		return model.TenantUser{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.TenantUser{}, err
		}
		return model.TenantUser{}, ErrNoMembership
	}
	var (
		tu        model.TenantUser
		tenantCol sql.NullString
	)
	if err := rows.Scan(&tu.ID, &tu.UserID, &tenantCol, &tu.IsAdmin, &tu.Status, &tu.CreatedAt, &tu.UpdatedAt); err != nil {
		return model.TenantUser{}, err
	}
	if tenantCol.Valid {
		v := tenantCol.String
		tu.TenantID = &v
	}
	return tu, nil
}
