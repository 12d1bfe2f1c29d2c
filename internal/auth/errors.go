// Package auth implements the authenticated-request authorization flow:
// token verification, session lookup, privilege-bundle resolution and the
// per-API permission gate.  Failures are modeled as sentinel errors so that
// callers can branch with errors.Is and the HTTP layer can translate them
// into status codes with HTTPStatus.  Every failure is terminal for the
// current authorization attempt; nothing in this package retries.
package auth

import (
	"errors"
	"net/http"

	"github.com/iliyamo/saas-access-core/internal/cache"
	"github.com/iliyamo/saas-access-core/internal/database"
)

var (
	// ErrInvalidToken covers malformed, unverifiable and missing-claim
	// tokens.  Wrapped messages name the offending fields.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the expiry claim is in the past,
	// whether the signature library or our independent recheck caught it.
	ErrTokenExpired = errors.New("token has expired")

	// ErrSessionNotFound means no live session row backs the token: the
	// user logged out or the session was never created.
	ErrSessionNotFound = errors.New("session not found or logged out")

	// ErrNotSuperAdmin rejects a "None"-tenant claim with no corroborating
	// admin membership row.
	ErrNotSuperAdmin = errors.New("user is not a super admin")

	// ErrCacheMiss means no privilege bundle was warmed for the identity.
	// Treated as an authentication failure, never a fallback to defaults.
	ErrCacheMiss = errors.New("user not found in cache")

	// ErrCorruptCacheEntry means the cached bundle failed structural
	// validation (unparseable JSON or no "user" key).
	ErrCorruptCacheEntry = errors.New("invalid cached data")

	// ErrAccountInactive rejects cached users whose status is not "active".
	ErrAccountInactive = errors.New("user account is not active")

	// ErrSchemaValidation means the assembled user-context envelope failed
	// validation.
	ErrSchemaValidation = errors.New("failed to validate user data")

	// ErrUnknownAPI is returned by the permission gate for API names absent
	// from the permission table.
	ErrUnknownAPI = errors.New("api is not defined in permission mapping")

	// ErrTenantMembershipInactive rejects users whose live membership row
	// is missing or not active, regardless of what the cache says.
	ErrTenantMembershipInactive = errors.New("user is not active in this tenant")

	// ErrForbidden is returned when a required privilege string is absent.
	ErrForbidden = errors.New("access denied")
)

// HTTPStatus maps an authorization failure to its response status.  Store
// transport failures from either the cache or the database surface as 503;
// anything unrecognized is a 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrCacheMiss):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotSuperAdmin),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrTenantMembershipInactive),
		errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnknownAPI):
		return http.StatusBadRequest
	case errors.Is(err, cache.ErrUnavailable),
		errors.Is(err, database.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
