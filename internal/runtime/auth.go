// Package runtime holds shared request-scoped plumbing: JWT signing and the
// echo auth middleware used by every protected route group.
package runtime

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// SignJWT issues a signed token with the provided subject and TTL.
func SignJWT(subject string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// EchoAuthMiddleware validates JWT tokens from the Authorization header or
// the auth cookie and stores the subject as "user_id" on the context.
func EchoAuthMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) { return secret, nil })
			if err != nil || !parsed.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
				if sub, ok := claims["sub"].(string); ok {
					c.Set("user_id", sub)
					c.SetRequest(c.Request().WithContext(ContextWithSubject(c.Request().Context(), sub)))
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if ck, err := c.Cookie("auth"); err == nil {
		return ck.Value
	}
	return ""
}

type subjectKey struct{}

// ContextWithSubject stores the authenticated subject on the context.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the JWT subject stored by the middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if v := ctx.Value(subjectKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}
