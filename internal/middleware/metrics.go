package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/suteetoe/procurement-service/prometheus"
)

// MetricsMiddleware records a counter and latency histogram per route.
func MetricsMiddleware(metrics *prometheus.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.RecordHTTPRequest(c.Request().Method, path, strconv.Itoa(c.Response().Status), time.Since(start))
			return nil
		}
	}
}
