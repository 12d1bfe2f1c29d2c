package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/saas-access-core/internal/handler"    // import the handlers that implement the session lifecycle
	"github.com/iliyamo/saas-access-core/internal/middleware" // import middleware for authentication and permission gating
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// The health endpoint can be used by load balancers or monitoring
	// systems to verify that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session-lifecycle routes and their middleware.
// dataSession attaches the per-request routing data session; authenticate
// runs the full authorization flow; rateLimit counts authenticated traffic
// per tenant:user identity, which is why it mounts after authenticate.
func RegisterAuth(e *echo.Echo, h *handler.AuthHandler, dataSession, authenticate, rateLimit echo.MiddlewareFunc) {
	// Operations that do not require an existing session live under
	// /v1/auth.  They still need a data session: login and refresh write
	// session rows.
	g := e.Group("/v1/auth", dataSession)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)

	// Protected endpoints live under /v1.  Every handler on this group
	// sees an authenticated user-context and shares the request's routing
	// session with the middleware that produced it.
	auth := e.Group("/v1", dataSession, authenticate, rateLimit)
	auth.GET("/me", h.Me)
	auth.POST("/logout", h.Logout)
	// The privilege listing is permission-gated like any downstream API
	// would be; the gate revalidates live tenant membership before the
	// handler runs.
	auth.GET("/privileges", h.ListUserPrivileges, middleware.RequirePermission("list_user_privilege"))
}
