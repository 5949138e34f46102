package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/suteetoe/procurement-service/pkg/config"
)

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core)

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
	assert.Same(t, GetLogger(), FromContext(context.Background()))
}

func TestFromEcho_PrefersEchoValue(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	ctxLogger := zap.NewExample()
	c.SetRequest(req.WithContext(WithLogger(req.Context(), ctxLogger)))
	assert.Same(t, ctxLogger, FromEcho(c))

	echoLogger := zap.NewExample()
	c.Set("logger", echoLogger)
	assert.Same(t, echoLogger, FromEcho(c))
}

func TestInitLogger(t *testing.T) {
	cfg := &config.Config{ServiceName: "svc"}
	cfg.Server.Env = "production"
	cfg.Log.Level = "warn"

	require.NoError(t, InitLogger(cfg))
	assert.False(t, GetLogger().Core().Enabled(zap.InfoLevel))
	assert.True(t, GetLogger().Core().Enabled(zap.WarnLevel))
}
