package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suteetoe/procurement-service/pkg/config"
	"github.com/suteetoe/procurement-service/pkg/jwtutil"
	"github.com/suteetoe/procurement-service/pkg/logger"
	"github.com/suteetoe/procurement-service/prometheus"
)

func newEcho(m *prometheus.Metrics, j *jwtutil.JWTUtil) *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.Use(RequestIDMiddleware)
	e.Use(MetricsMiddleware(m))

	e.GET("/open", func(c echo.Context) error {
		ctxLog := logger.FromContext(c.Request().Context())
		return c.JSON(http.StatusOK, echo.Map{
			"request_id":    c.Get("request_id"),
			"scoped_logger": ctxLog == logger.FromEcho(c),
		})
	})
	api := e.Group("/api", JWTAuthMiddleware(j, m))
	api.GET("/me", func(c echo.Context) error {
		u, ok := UserFromContext(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, echo.Map{"email": u.Email})
	})
	api.POST("/validate", func(c echo.Context) error {
		var body struct {
			Name string `json:"name" validate:"required"`
		}
		if err := c.Bind(&body); err != nil {
			return err
		}
		if err := c.Validate(&body); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
	return e
}

func TestRequestIDMiddleware(t *testing.T) {
	e := newEcho(nil, jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "k", ExpirationHours: 1}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	generated := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, generated, 36)
	assert.Contains(t, rec.Body.String(), `"scoped_logger":true`)

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestJWTAuthMiddleware(t *testing.T) {
	reg := prom.NewRegistry()
	m := prometheus.NewMetrics("test", reg)
	j := jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "k", ExpirationHours: 1})
	e := newEcho(m, j)

	token, err := j.GenerateToken("buyer@example.com", 3, "buyer")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, 4.0, testutil.ToFloat64(m.AuthAttemptsCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthSuccessCounter))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AuthErrorsCounter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HttpRequestsTotal.WithLabelValues(http.MethodGet, "/api/me", "200")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HttpRequestsTotal.WithLabelValues(http.MethodGet, "/api/me", "401")))
}

func TestValidator(t *testing.T) {
	reg := prom.NewRegistry()
	m := prometheus.NewMetrics("test", reg)
	j := jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "k", ExpirationHours: 1})
	e := newEcho(m, j)
	token, err := j.GenerateToken("buyer@example.com", 3, "buyer")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/validate", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HttpRequestsTotal.WithLabelValues(http.MethodPost, "/api/validate", "400")))
}
