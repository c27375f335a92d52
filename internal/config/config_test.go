package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestLoadAppliesDefaultsAndSecrets(t *testing.T) {
	t.Setenv("CLINIC_JWT_SECRET", "jwt-secret")
	t.Setenv("CLINIC_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("CLINIC_PAYMENT_SECRET_KEY", "sk_test_123")

	cfg, err := load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.Invitation.TTL)
	assert.Equal(t, "@every 1h", cfg.Jobs.SessionPurgeSchedule)
	assert.Equal(t, "jwt-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "sk_test_123", cfg.Payment.SecretKey)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	t.Setenv("CLINIC_JWT_SECRET", "")
	t.Setenv("CLINIC_ENCRYPTION_KEY", "")

	_, err := load(newViper())
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestValidateEncryptionKeyLength(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Auth:   AuthConfig{JWTSecret: "x", EncryptionKey: "short"},
	}
	assert.ErrorContains(t, cfg.Validate(), "encryption_key")

	cfg.Auth.EncryptionKey = "0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "clinic", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=clinic sslmode=disable", c.DSN())
}

func TestDatabaseURL(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", Name: "clinic", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/clinic?sslmode=disable", c.URL())
}
