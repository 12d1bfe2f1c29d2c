package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/saas-access-core/internal/cache"
	"github.com/iliyamo/saas-access-core/internal/model"
	"github.com/iliyamo/saas-access-core/internal/repository"
)

type fakeSessions struct {
	err error
}

func (f fakeSessions) FindActive(ctx context.Context, token string) (model.Session, error) {
	if f.err != nil {
		return model.Session{}, f.err
	}
	return model.Session{ID: uuid.NewString(), AccessToken: token}, nil
}

type fakeMemberships struct {
	admin      bool
	adminErr   error
	membership model.TenantUser
	memErr     error
}

func (f fakeMemberships) HasAdminMembership(ctx context.Context, userID string) (bool, error) {
	return f.admin, f.adminErr
}

func (f fakeMemberships) FindMembership(ctx context.Context, userID, tenantID string) (model.TenantUser, error) {
	if f.memErr != nil {
		return model.TenantUser{}, f.memErr
	}
	return f.membership, nil
}

type fakeCache map[string]string

func (f fakeCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func bundleJSON(email, userID, tenantID, status, privileges string) string {
	return fmt.Sprintf(`{"user":{"email":%q,"user_id":%q,"tenant_id":%q,"name":"Test User","status":%q},"privileges":%s}`,
		email, userID, tenantID, status, privileges)
}

func TestResolveTenantScoped(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	tenantID := uuid.NewString()
	token := signToken(t, testSecret, validClaims(userID, tenantID))

	bundles := fakeCache{
		cache.PrivilegeKey(tenantID, userID): bundleJSON(
			"user@example.com", userID, tenantID, model.StatusActive,
			`{"user_management":["create","view"],"privilege":"assign"}`),
	}
	r := NewResolver(a, fakeSessions{}, fakeMemberships{}, bundles)

	resp, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Len(t, resp.Users, 1)

	uc := resp.Users[0]
	assert.Equal(t, "user@example.com", uc.Email)
	assert.Equal(t, userID, uc.UserID)
	assert.Equal(t, tenantID, uc.TenantID)
	assert.Equal(t, model.StatusActive, uc.Status)
	assert.Equal(t, []string{"user_management:create", "user_management:view", "privilege:assign"}, uc.Privileges)
	assert.Nil(t, resp.Message)
}

// Flattening must preserve the stored key order, not Go map iteration order,
// so the same bundle always yields the same list.
func TestResolveFlattenOrderStable(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	tenantID := uuid.NewString()
	token := signToken(t, testSecret, validClaims(userID, tenantID))

	bundles := fakeCache{
		cache.PrivilegeKey(tenantID, userID): bundleJSON(
			"user@example.com", userID, tenantID, model.StatusActive,
			`{"zeta":["one","two"],"alpha":"solo","mid":["x"]}`),
	}
	r := NewResolver(a, fakeSessions{}, fakeMemberships{}, bundles)

	want := []string{"zeta:one", "zeta:two", "alpha:solo", "mid:x"}
	for i := 0; i < 20; i++ {
		resp, err := r.Resolve(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, want, resp.Users[0].Privileges)
	}
}

func TestResolveDoubleEncodedBundle(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	tenantID := uuid.NewString()
	token := signToken(t, testSecret, validClaims(userID, tenantID))

	inner := bundleJSON("user@example.com", userID, tenantID, model.StatusActive, `{"request":"view"}`)
	wrapped := fmt.Sprintf("%q", inner)
	bundles := fakeCache{cache.PrivilegeKey(tenantID, userID): wrapped}
	r := NewResolver(a, fakeSessions{}, fakeMemberships{}, bundles)

	resp, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, []string{"request:view"}, resp.Users[0].Privileges)
}

func TestResolveEmptyPrivilegesMessage(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	tenantID := uuid.NewString()
	token := signToken(t, testSecret, validClaims(userID, tenantID))

	bundles := fakeCache{
		cache.PrivilegeKey(tenantID, userID): bundleJSON(
			"user@example.com", userID, tenantID, model.StatusActive, `{}`),
	}
	r := NewResolver(a, fakeSessions{}, fakeMemberships{}, bundles)

	resp, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, resp.Users[0].Privileges)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "No privileges assigned to user", *resp.Message)
}

func TestResolveSessionNotFound(t *testing.T) {
	a := NewAuthenticator(testSecret)
	token := signToken(t, testSecret, validClaims(uuid.NewString(), uuid.NewString()))
	r := NewResolver(a, fakeSessions{err: repository.ErrNoActiveSession}, fakeMemberships{}, fakeCache{})

	_, err := r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// A warm cache entry must not rescue a request whose session row is gone.
func TestResolveRevokedSessionWithWarmCache(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	tenantID := uuid.NewString()
	token := signToken(t, testSecret, validClaims(userID, tenantID))

	bundles := fakeCache{
		cache.PrivilegeKey(tenantID, userID): bundleJSON(
			"user@example.com", userID, tenantID, model.StatusActive, `{"request":"view"}`),
	}
	r := NewResolver(a, fakeSessions{err: repository.ErrNoActiveSession}, fakeMemberships{}, bundles)

	_, err := r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResolveCacheMissFailsClosed(t *testing.T) {
	a := NewAuthenticator(testSecret)
	token := signToken(t, testSecret, validClaims(uuid.NewString(), uuid.NewString()))
	r := NewResolver(a, fakeSessions{}, fakeMemberships{}, fakeCache{})

	_, err := r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestResolveCorruptBundle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{{"},
		{"missing user", `{"privileges":{"a":"b"}}`},
		{"user not object", `{"user":"nope"}`},
		{"privileges not object", `{"user":{"status":"active"},"privileges":[1,2]}`},
	}
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	tenantID := uuid.NewString()
	token := signToken(t, testSecret, validClaims(userID, tenantID))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundles := fakeCache{cache.PrivilegeKey(tenantID, userID): tt.raw}
			r := NewResolver(a, fakeSessions{}, fakeMemberships{}, bundles)
			_, err := r.Resolve(context.Background(), token)
			assert.ErrorIs(t, err, ErrCorruptCacheEntry)
		})
	}
}

func TestResolveInactiveAccount(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	tenantID := uuid.NewString()
	token := signToken(t, testSecret, validClaims(userID, tenantID))

	bundles := fakeCache{
		cache.PrivilegeKey(tenantID, userID): bundleJSON(
			"user@example.com", userID, tenantID, model.StatusSuspended, `{"request":"view"}`),
	}
	r := NewResolver(a, fakeSessions{}, fakeMemberships{}, bundles)

	_, err := r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestResolveSuperAdmin(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	token := signToken(t, testSecret, validClaims(userID, TenantNone))

	bundles := fakeCache{
		cache.PrivilegeKey(TenantNone, userID): bundleJSON(
			"admin@example.com", userID, "", model.StatusActive,
			`{"user_management":["create","view","edit","delete"]}`),
	}

	t.Run("with admin row", func(t *testing.T) {
		r := NewResolver(a, fakeSessions{}, fakeMemberships{admin: true}, bundles)
		resp, err := r.Resolve(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, TenantNone, resp.Users[0].TenantID)
	})

	t.Run("without admin row", func(t *testing.T) {
		r := NewResolver(a, fakeSessions{}, fakeMemberships{admin: false}, bundles)
		_, err := r.Resolve(context.Background(), token)
		assert.ErrorIs(t, err, ErrNotSuperAdmin)
	})
}
