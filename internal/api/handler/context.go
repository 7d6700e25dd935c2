package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/farmconnect/marketplace-api/internal/api/middleware"
	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

// ctxUserKey is where the Auth middleware stores the resolved *domain.User.
const ctxUserKey = middleware.UserKey

// currentUser returns the user injected by the Auth middleware. A missing or
// empty user means the route was mounted without Auth; fail closed with 401.
func currentUser(c echo.Context) (*domain.User, error) {
	u, _ := c.Get(ctxUserKey).(*domain.User)
	if u == nil || u.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return u, nil
}
