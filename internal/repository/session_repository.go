package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/saas-access-core/internal/database"
	"github.com/iliyamo/saas-access-core/internal/model"
)

// SessionRepo persists login sessions keyed by their access token. It runs
// on a database.Querier so the same code serves both the plain pools and a
// per-request routing session.
type SessionRepo struct{ DB database.Querier }

func NewSessionRepo(db database.Querier) *SessionRepo { return &SessionRepo{DB: db} }

const sessionColumns = "id,user_id,tenant_id,access_token,refresh_token,access_token_expiry,refresh_token_expiry,deleted_at,created_at,updated_at"

// FindActive returns the non-deleted session row for an access token.
// A missing or soft-deleted row yields ErrNoActiveSession.
func (r *SessionRepo) FindActive(ctx context.Context, accessToken string) (model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE access_token=? AND deleted_at IS NULL LIMIT 1",
		accessToken)
	if err != nil {
		return model.Session{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.Session{}, err
		}
		return model.Session{}, ErrNoActiveSession
	}
	return scanSession(rows)
}

// FindActiveByRefreshHash returns the non-deleted session holding a refresh
// token hash, used by the token-rotation flow.
func (r *SessionRepo) FindActiveByRefreshHash(ctx context.Context, refreshHash string) (model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE refresh_token=? AND deleted_at IS NULL LIMIT 1",
		refreshHash)
	if err != nil {
		return model.Session{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.Session{}, err
		}
		return model.Session{}, ErrNoActiveSession
	}
	return scanSession(rows)
}

// Create inserts a session row and returns its generated id.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, tenant_id, access_token, refresh_token, access_token_expiry, refresh_token_expiry) VALUES (?,?,?,?,?,?,?)",
		id, s.UserID, s.TenantID, s.AccessToken, s.RefreshToken, s.AccessTokenExpiry, s.RefreshTokenExpiry)
	if err != nil {
		return "", err
	}
	return id, nil
}

// SoftDeleteByToken marks the session for an access token as deleted.
// Returns ErrNoActiveSession when no live row matched.
func (r *SessionRepo) SoftDeleteByToken(ctx context.Context, accessToken string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET deleted_at=NOW() WHERE access_token=? AND deleted_at IS NULL",
		accessToken)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoActiveSession
	}
	return nil
}

func scanSession(rows *sql.Rows) (model.Session, error) {
	var (
		s         model.Session
		tenantID  sql.NullString
		deletedAt sql.NullTime
	)
	if err := rows.Scan(&s.ID, &s.UserID, &tenantID, &s.AccessToken, &s.RefreshToken,
		&s.AccessTokenExpiry, &s.RefreshTokenExpiry, &deletedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return model.Session{}, err
	}
	if tenantID.Valid {
		v := tenantID.String
		s.TenantID = &v
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		s.DeletedAt = &t
	}
	return s, nil
}
