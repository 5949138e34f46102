package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "postgres")

	cfg, err := Load("procurement-service")
	require.NoError(t, err)

	assert.Equal(t, "procurement-service", cfg.ServiceName)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "email_proposta", cfg.Notify.TemplateID)
	assert.Equal(t, 15*time.Second, cfg.Notify.SendTimeout)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.UseSSL)
	assert.True(t, cfg.MCP.Enabled)
	assert.Equal(t, logger.Warn, cfg.DB.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/rfq.db")
	t.Setenv("NOTIFY_SEND_TIMEOUT", "3s")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_USE_SSL", "false")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("MCP_ENABLED", "not-a-bool")

	cfg, err := Load("svc")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Notify.SendTimeout)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.False(t, cfg.SMTP.UseSSL)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
	assert.True(t, cfg.MCP.Enabled, "unparseable bool falls back to default")
	assert.Equal(t, "file:/tmp/rfq.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cfg.DB.GetDSN())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "oracle"}},
		{name: "smtp without sender", env: map[string]string{"DB_DRIVER": "postgres", "SMTP_HOST": "smtp.example.com", "SMTP_USERNAME": "", "RFQ_FROM_ADDRESS": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("svc")
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_PostgresDSN(t *testing.T) {
	c := DBConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", DBName: "supply", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=supply sslmode=disable", c.GetDSN())
}
