package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// tokenFromRequest returns the credential from the password query parameter
// or the auth headers. Websocket clients in browsers can only use the query.
func tokenFromRequest(r *http.Request) string {
	if q := r.URL.Query().Get("password"); q != "" {
		return q
	}
	if ah := r.Header.Get("Authorization"); len(ah) > len("bearer ") && strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(ah[len("bearer "):])
	}
	return strings.TrimSpace(r.Header.Get("X-Auth-Token"))
}

// tokenOK reports whether r carries the expected token. An empty expected
// token disables the check.
func tokenOK(r *http.Request, expected string) bool {
	if expected == "" {
		return true
	}
	if r == nil {
		return false
	}
	got := tokenFromRequest(r)
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// TokenAuth rejects requests that do not present the API token.
func TokenAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions || tokenOK(c.Request(), token) {
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
	}
}
