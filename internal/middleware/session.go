package middleware

// session.go scopes one routing data session to each request.  The session
// is created before the handler runs, stored in the Echo context, committed
// when the handler succeeds and rolled back when it returns an error.  The
// deferred close runs unconditionally, so a cancelled request releases both
// connections and no partial writes survive.

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/saas-access-core/internal/database"
)

const dataSessionKey = "data_session"

// DataSession returns middleware that attaches a fresh routing session to
// every request.  attempts and backoff configure the replica fallback.
func DataSession(primary, replica *sql.DB, attempts int, backoff time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			rs, err := database.NewRoutingSession(ctx, primary, replica, attempts, backoff)
			if err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database unavailable"})
			}
			defer func() { _ = rs.Close() }()

			c.Set(dataSessionKey, rs)
			if err := next(c); err != nil {
				_ = rs.Rollback()
				return err
			}
			if err := rs.Commit(); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
			}
			return nil
		}
	}
}

// SessionFrom returns the request's routing session, or nil when the
// DataSession middleware is not mounted on the route.
func SessionFrom(c echo.Context) *database.RoutingSession {
	if rs, ok := c.Get(dataSessionKey).(*database.RoutingSession); ok {
		return rs
	}
	return nil
}
