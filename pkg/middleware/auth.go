package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/salesbot/pkg/auth"
	"github.com/jordanlanch/salesbot/pkg/models"
)

// JWTAuth validates the Bearer token and stores the claims on the
// request context under "claims".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "unauthorized",
					Message: "Missing or malformed Authorization header",
				})
			}

			claims, err := auth.ValidateJWT(token, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "invalid_token",
					Message: "Token is invalid or expired",
				})
			}

			c.Set("claims", claims)
			return next(c)
		}
	}
}

// RequireSupervisor rejects requests whose token does not carry a
// supervisor or admin role. Must run after JWTAuth.
func RequireSupervisor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get("claims").(*auth.Claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
			}
			role := models.Role(claims.Role)
			if role != models.RoleSupervisor && role != models.RoleAdmin {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error:   "forbidden",
					Message: "This endpoint requires a supervisor role",
				})
			}
			return next(c)
		}
	}
}
