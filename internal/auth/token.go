package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TenantNone is the wire sentinel for identities not scoped to any tenant.
// It appears in token claims, cache keys and user-context JSON; inside the
// process the tagged Identity type carries the distinction instead.
const TenantNone = "None"

// Identity is the normalized outcome of claim validation.  The super-admin
// case is decided once here, so downstream code never compares tenant
// strings against the sentinel.
type Identity struct {
	UserID     uuid.UUID
	Tenant     uuid.UUID // zero value when SuperAdmin is set
	SuperAdmin bool
}

// TenantString renders the tenant for cache keys and response payloads:
// the UUID for tenant-scoped identities, "None" for super-admins.
func (id Identity) TenantString() string {
	if id.SuperAdmin {
		return TenantNone
	}
	return id.Tenant.String()
}

// Claims are the verified, normalized fields carried inside a bearer token.
type Claims struct {
	Subject   string
	Identity  Identity
	ExpiresAt time.Time
}

// Authenticator verifies HS256 bearer tokens against a shared secret.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Authenticate decodes and signature-verifies a token and normalizes its
// claims.  Signature or format problems yield ErrInvalidToken; expiry is
// ErrTokenExpired, both when the library reports it and on the independent
// recheck below.
func (a *Authenticator) Authenticate(token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: unexpected claims format", ErrInvalidToken)
	}

	sub, subOK := mc["sub"].(string)
	userIDStr, userOK := mc["user_id"].(string)
	tenantStr, tenantOK := mc["tenant_id"].(string)
	exp, expOK := numericClaim(mc["exp"])

	var missing []string
	if !subOK {
		missing = append(missing, "sub")
	}
	if !userOK {
		missing = append(missing, "user_id")
	}
	if !tenantOK {
		missing = append(missing, "tenant_id")
	}
	if !expOK {
		missing = append(missing, "exp")
	}
	if len(missing) > 0 {
		return Claims{}, fmt.Errorf("%w: missing or invalid %s", ErrInvalidToken, strings.Join(missing, ", "))
	}

	// The jwt library already validated exp; recheck against the clock
	// anyway so a misconfigured parser cannot admit a stale token.
	expiresAt := time.Unix(int64(exp), 0).UTC()
	if !expiresAt.After(time.Now().UTC()) {
		return Claims{}, ErrTokenExpired
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: invalid user_id format", ErrInvalidToken)
	}
	identity := Identity{UserID: userID}
	if tenantStr == TenantNone {
		identity.SuperAdmin = true
	} else {
		tenantID, err := uuid.Parse(tenantStr)
		if err != nil {
			return Claims{}, fmt.Errorf("%w: invalid tenant_id format", ErrInvalidToken)
		}
		identity.Tenant = tenantID
	}

	return Claims{Subject: sub, Identity: identity, ExpiresAt: expiresAt}, nil
}

// numericClaim accepts the types the JSON decoder may produce for a numeric
// claim.
func numericClaim(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
