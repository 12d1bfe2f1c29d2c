package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/saas-access-core/internal/auth"
	"github.com/iliyamo/saas-access-core/internal/cache"
	"github.com/iliyamo/saas-access-core/internal/config"
	"github.com/iliyamo/saas-access-core/internal/middleware"
	"github.com/iliyamo/saas-access-core/internal/model"
	"github.com/iliyamo/saas-access-core/internal/repository"
	"github.com/iliyamo/saas-access-core/internal/utils"
)

// AuthHandler bundles dependencies for the session-lifecycle endpoints.
// These endpoints own every mutation the authorization resolver only reads:
// session rows are created here at login and soft-deleted at logout.
// Repositories are built per request on the routing data session attached
// by the DataSession middleware.  Store failures are returned as
// *echo.HTTPError rather than written directly: a returned error is what
// makes the middleware roll the data session back, so a refresh whose
// INSERT fails cannot commit the soft-delete that preceded it.
type AuthHandler struct {
	Cfg     config.Config
	Bundles *cache.Manager
}

func NewAuthHandler(cfg config.Config, bundles *cache.Manager) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Bundles: bundles}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id"` // empty or "None" requests a super-admin session
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
type authResp struct {
	User     userPart  `json:"user"`
	TenantID string    `json:"tenant_id"` // "None" for super-admin sessions
	Access   tokenPart `json:"access"`
	Refresh  tokenPart `json:"refresh"`
}

// Login: verify credentials, resolve the tenant scope and open a session.
// A tenant-scoped login requires an active membership row; a super-admin
// login (no tenant given) requires an admin membership row.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	rs := middleware.SessionFrom(c)
	if rs == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "no data session")
	}
	users := repository.NewUserRepo(rs)
	memberships := repository.NewTenantUserRepo(rs)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNoUser) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if u.Status != model.StatusActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user account is not active"})
	}

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		tenantID = auth.TenantNone
	}
	if tenantID == auth.TenantNone {
		isAdmin, err := memberships.HasAdminMembership(ctx, u.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
		}
		if !isAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "user is not a super admin"})
		}
	} else {
		tu, err := memberships.FindMembership(ctx, u.ID, tenantID)
		if err != nil {
			if errors.Is(err, repository.ErrNoMembership) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "user is not active in this tenant"})
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
		}
		if tu.Status != model.StatusActive {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "user is not active in this tenant"})
		}
	}

	return h.issueSession(c, ctx, repository.NewSessionRepo(rs), u, tenantID)
}

// Refresh: validate by hash, close the old session and open a new one.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	rs := middleware.SessionFrom(c)
	if rs == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "no data session")
	}
	sessions := repository.NewSessionRepo(rs)
	users := repository.NewUserRepo(rs)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := sessions.FindActiveByRefreshHash(ctx, utils.HashRefreshRaw(req.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	if time.Now().UTC().After(s.RefreshTokenExpiry) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token expired"})
	}

	u, err := users.GetByID(ctx, s.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	if u.Status != model.StatusActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user account is not active"})
	}

	// Rotate: the old session dies with the old pair.
	if err := sessions.SoftDeleteByToken(ctx, s.AccessToken); err != nil && !errors.Is(err, repository.ErrNoActiveSession) {
		return echo.NewHTTPError(http.StatusInternalServerError, "rotate failed")
	}

	tenantID := auth.TenantNone
	if s.TenantID != nil {
		tenantID = *s.TenantID
	}
	return h.issueSession(c, ctx, sessions, u, tenantID)
}

// Logout: soft-delete the presented session and drop the cached privilege
// bundle so a stale entry cannot outlive the session.
func (h *AuthHandler) Logout(c echo.Context) error {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	rs := middleware.SessionFrom(c)
	if rs == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "no data session")
	}
	sessions := repository.NewSessionRepo(rs)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := sessions.SoftDeleteByToken(ctx, middleware.AccessTokenFrom(c)); err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session not found or logged out"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}
	if err := h.Bundles.Delete(ctx, cache.PrivilegeKey(uc.TenantID, uc.UserID)); err != nil {
		c.Logger().Warnf("logout: cache invalidation failed: %v", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUserPrivileges returns the caller's flattened privilege list.  The
// route is permission-gated, so reaching the handler already proves the
// caller holds user_management:view in an active tenant.
func (h *AuthHandler) ListUserPrivileges(c echo.Context) error {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":    uc.UserID,
		"tenant_id":  uc.TenantID,
		"privileges": uc.Privileges,
	})
}

// Me returns the resolved user-context envelope for the current request.
func (h *AuthHandler) Me(c echo.Context) error {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	resp := auth.UserResponse{Users: []auth.UserContext{uc}}
	if len(uc.Privileges) == 0 {
		msg := "No privileges assigned to user"
		resp.Message = &msg
	}
	return c.JSON(http.StatusOK, resp)
}

// issueSession mints a token pair, persists the session row and writes the
// auth response.
func (h *AuthHandler) issueSession(c echo.Context, ctx context.Context, sessions *repository.SessionRepo, u model.User, tenantID string) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.Email, u.ID, tenantID, h.Cfg.AccessTTLMin)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "issue refresh failed")
	}

	var tenantPtr *string
	if tenantID != auth.TenantNone {
		t := tenantID
		tenantPtr = &t
	}
	_, err = sessions.Create(ctx, model.Session{
		UserID:             u.ID,
		TenantID:           tenantPtr,
		AccessToken:        access.Token,
		RefreshToken:       utils.HashRefreshRaw(refresh.Raw),
		AccessTokenExpiry:  access.Exp,
		RefreshTokenExpiry: refresh.Exp,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "save session failed")
	}

	return c.JSON(http.StatusOK, authResp{
		User:     userPart{ID: u.ID, Email: u.Email, Name: u.Name},
		TenantID: tenantID,
		Access:   tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh:  tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}
