package model

import "time"

// Session represents a login session record as stored in the `sessions`
// table.  A row is inserted when a user logs in and soft-deleted when the
// user logs out; a request is authenticated only while a non-deleted row
// exists for the presented access token.
//
// Fields:
//
//	ID                 – primary key identifier (UUID string).
//	UserID             – owner of the session (UUID string).
//	TenantID           – tenant the session was opened against; nil for
//	                     super-admin sessions.
//	AccessToken        – signed JWT as presented by the client.
//	RefreshToken       – SHA-256 hex digest of the refresh token.  The raw
//	                     value is only ever returned to the client.
//	AccessTokenExpiry  – expiry of the access token.
//	RefreshTokenExpiry – expiry of the refresh token.
//	DeletedAt          – soft-delete timestamp; nil means the session is
//	                     active.
//	CreatedAt          – timestamp of creation.
//	UpdatedAt          – timestamp of last update.
type Session struct {
	ID                 string     // sessions.id
	UserID             string     // sessions.user_id
	TenantID           *string    // sessions.tenant_id (nullable)
	AccessToken        string     // sessions.access_token
	RefreshToken       string     // sessions.refresh_token
	AccessTokenExpiry  time.Time  // sessions.access_token_expiry
	RefreshTokenExpiry time.Time  // sessions.refresh_token_expiry
	DeletedAt          *time.Time // sessions.deleted_at (nullable)
	CreatedAt          time.Time  // sessions.created_at
	UpdatedAt          time.Time  // sessions.updated_at
}
