package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// Context keys set by JWTAuth.
const (
	ActorKey = "actor"
	RoleKey  = "role"
	UserKey  = "user_id"
)

// JWTAuth validates a Bearer access token signed with secret (HS256) and
// stores the caller identity in the context.  The "sub" claim becomes the
// actor's customer id and "tenant_id" the tenant id; either may be empty,
// but not both.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			actor := model.Actor{
				CustomerID: claimString(claims, "sub"),
				TenantID:   claimString(claims, "tenant_id"),
			}
			if actor.IsZero() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token carries no identity"})
			}
			c.Set(ActorKey, actor)
			c.Set(UserKey, actor.CustomerID)
			c.Set(RoleKey, claimString(claims, "role"))
			return next(c)
		}
	}
}

func claimString(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}
