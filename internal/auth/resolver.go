package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/saas-access-core/internal/cache"
	"github.com/iliyamo/saas-access-core/internal/model"
	"github.com/iliyamo/saas-access-core/internal/repository"
)

// SessionFinder looks up the live session row for an access token.
type SessionFinder interface {
	FindActive(ctx context.Context, accessToken string) (model.Session, error)
}

// MembershipStore reads tenant membership rows.
type MembershipStore interface {
	HasAdminMembership(ctx context.Context, userID string) (bool, error)
	FindMembership(ctx context.Context, userID, tenantID string) (model.TenantUser, error)
}

// BundleCache reads cached privilege bundles.
type BundleCache interface {
	Get(ctx context.Context, key string) (string, error)
}

// validate is shared by all resolvers; the validator is safe for concurrent
// use and caches struct metadata across requests.
var validate = validator.New()

// Resolver composes token verification, session lookup and the cached
// privilege bundle into a UserContext envelope.  It is a pure read path:
// session and cache mutation happen in the login/logout flows.  Resolvers
// are cheap to construct, so the HTTP middleware builds one per request on
// top of that request's routing session.
type Resolver struct {
	Auth        *Authenticator
	Sessions    SessionFinder
	Memberships MembershipStore
	Cache       BundleCache
}

func NewResolver(a *Authenticator, sessions SessionFinder, memberships MembershipStore, bundles BundleCache) *Resolver {
	return &Resolver{
		Auth:        a,
		Sessions:    sessions,
		Memberships: memberships,
		Cache:       bundles,
	}
}

// Resolve authorizes a bearer token, short-circuiting on the first failure:
//
//  1. verify and normalize claims
//  2. require a live session row for the exact token
//  3. corroborate super-admin claims against an admin membership row
//  4. load the privilege bundle from cache (absence fails closed)
//  5. normalize the bundle, require an active account
//  6. flatten privileges and assemble the validated envelope
func (r *Resolver) Resolve(ctx context.Context, token string) (*UserResponse, error) {
	claims, err := r.Auth.Authenticate(token)
	if err != nil {
		return nil, err
	}
	id := claims.Identity

	if _, err := r.Sessions.FindActive(ctx, token); err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	// A forged "None" tenant claim must not grant admin rights without a
	// corroborating database record.
	if id.SuperAdmin {
		isAdmin, err := r.Memberships.HasAdminMembership(ctx, id.UserID.String())
		if err != nil {
			return nil, err
		}
		if !isAdmin {
			return nil, ErrNotSuperAdmin
		}
	}

	key := cache.PrivilegeKey(id.TenantString(), id.UserID.String())
	raw, err := r.Cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	bundle, err := parseBundle(raw)
	if err != nil {
		return nil, err
	}
	if status, _ := bundle.User["status"].(string); status != model.StatusActive {
		return nil, ErrAccountInactive
	}

	tenantID := id.TenantString()
	if !id.SuperAdmin {
		// Tenant-scoped contexts may carry the tenant from the bundle when
		// it was warmed with one; the claim value is the fallback.
		tenantID = stringOr(bundle.User["tenant_id"], tenantID)
	}
	uc := UserContext{
		Email:       stringOr(bundle.User["email"], claims.Subject),
		UserID:      stringOr(bundle.User["user_id"], id.UserID.String()),
		TenantID:    tenantID,
		Name:        stringOr(bundle.User["name"], ""),
		Status:      stringOr(bundle.User["status"], model.StatusActive),
		UserDetails: bundle.User,
		Privileges:  bundle.Privileges,
	}

	resp := &UserResponse{Users: []UserContext{uc}}
	if len(uc.Privileges) == 0 {
		msg := "No privileges assigned to user"
		resp.Message = &msg
	}
	if err := validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	return resp, nil
}

// stringOr returns the value when it is a non-empty string, otherwise the
// fallback.
func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
