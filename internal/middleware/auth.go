package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/saas-access-core/internal/auth"
	"github.com/iliyamo/saas-access-core/internal/cache"
	"github.com/iliyamo/saas-access-core/internal/repository"
)

// Context keys under which the authorization results are stored.
const (
	userContextKey = "user_context"
	accessTokenKey = "access_token"
)

// Authenticate returns an Echo middleware that runs the full authorization
// flow for a Bearer access token and injects the resolved user-context into
// the request context.  Session and membership lookups run on the request's
// routing data session, so the DataSession middleware must be mounted
// first.  Handlers access the result via UserContextFrom(c).
func Authenticate(a *auth.Authenticator, bundles *cache.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			token := strings.TrimPrefix(header, "Bearer ")

			rs := SessionFrom(c)
			if rs == nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "no data session"})
			}

			resolver := auth.NewResolver(a,
				repository.NewSessionRepo(rs),
				repository.NewTenantUserRepo(rs),
				bundles)
			resp, err := resolver.Resolve(c.Request().Context(), token)
			if err != nil {
				return c.JSON(auth.HTTPStatus(err), echo.Map{"error": err.Error()})
			}

			c.Set(userContextKey, resp.Users[0])
			c.Set(accessTokenKey, token)
			return next(c)
		}
	}
}

// RequirePermission returns middleware enforcing the permission table entry
// for apiName against the authenticated user-context.  Multi-resource APIs
// read the sub-resource from the ":resource" route parameter.
func RequirePermission(apiName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uc, ok := c.Get(userContextKey).(auth.UserContext)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			rs := SessionFrom(c)
			if rs == nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "no data session"})
			}
			gate := auth.NewGate(repository.NewTenantUserRepo(rs))

			var err error
			if sub := c.Param("resource"); sub != "" {
				err = gate.CheckSubResource(c.Request().Context(), apiName, sub, uc)
			} else {
				err = gate.Check(c.Request().Context(), apiName, uc)
			}
			if err != nil {
				return c.JSON(auth.HTTPStatus(err), echo.Map{"error": err.Error()})
			}
			return next(c)
		}
	}
}

// UserContextFrom returns the resolved user-context stored by Authenticate.
func UserContextFrom(c echo.Context) (auth.UserContext, bool) {
	uc, ok := c.Get(userContextKey).(auth.UserContext)
	return uc, ok
}

// AccessTokenFrom returns the raw bearer token stored by Authenticate.
func AccessTokenFrom(c echo.Context) string {
	if t, ok := c.Get(accessTokenKey).(string); ok {
		return t
	}
	return ""
}
