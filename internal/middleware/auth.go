package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/pkg/jwtutil"
	"github.com/suteetoe/procurement-service/pkg/logger"
	"github.com/suteetoe/procurement-service/prometheus"
)

// JWTAuthMiddleware validates the bearer token and stores its claims under "user".
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil, metrics *prometheus.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing authorization header")
				metrics.RecordAuth(false)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("Invalid authorization header format")
				metrics.RecordAuth(false)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				metrics.RecordAuth(false)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			metrics.RecordAuth(true)
			c.Set("user", claims)
			log = log.With(zap.Uint("user_id", claims.UserID))
			c.Set("logger", log)
			c.SetRequest(c.Request().WithContext(logger.WithLogger(c.Request().Context(), log)))
			log.Debug("JWT token validated", zap.String("email", claims.Email))

			return next(c)
		}
	}
}

// UserFromContext returns the claims stored by JWTAuthMiddleware.
func UserFromContext(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	return claims, ok
}
