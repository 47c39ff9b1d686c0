package middleware

// identity.go defines helpers shared across middleware and handlers for
// reading the authenticated principal stored by JWTAuth.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated user id, or "" when the request is
// anonymous.
func UserID(c echo.Context) string {
	if v, ok := c.Get(CtxUserID).(string); ok {
		return v
	}
	return ""
}

// currentUserID is UserID with "anon" for anonymous requests, used in
// rate limit keys.
func currentUserID(c echo.Context) string {
	if v := UserID(c); v != "" {
		return v
	}
	return "anon"
}
