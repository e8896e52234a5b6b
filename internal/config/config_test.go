package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvFallsBackOnEmpty(t *testing.T) {
	t.Setenv("OCRU_TEST_EMPTY", "")
	assert.Equal(t, "fallback", GetEnv("OCRU_TEST_EMPTY", "fallback"))

	t.Setenv("OCRU_TEST_SET", "value")
	assert.Equal(t, "value", GetEnv("OCRU_TEST_SET", "fallback"))
}

func TestGetIntEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("OCRU_TEST_INT", "abc")
	assert.Equal(t, 7, GetIntEnv("OCRU_TEST_INT", 7))

	t.Setenv("OCRU_TEST_INT", "42")
	assert.Equal(t, 42, GetIntEnv("OCRU_TEST_INT", 7))
}

func TestLoadSchedulerDefaults(t *testing.T) {
	t.Setenv("PENDING_EXPIRE_SCAN_MINUTES", "")
	t.Setenv("PENDING_EXPIRE_TTL_MINUTES", "")

	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ExpireScanInterval)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.PendingTTL)
	assert.Equal(t, 15*time.Second, cfg.ProviderHTTPTimeout)
}

func TestLoadSchedulerOverrides(t *testing.T) {
	t.Setenv("PENDING_EXPIRE_SCAN_MINUTES", "1")
	t.Setenv("PENDING_EXPIRE_TTL_MINUTES", "30")
	t.Setenv("PROVIDER_HTTP_TIMEOUT", "3s")

	cfg := Load()
	assert.Equal(t, time.Minute, cfg.Scheduler.ExpireScanInterval)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.PendingTTL)
	assert.Equal(t, 3*time.Second, cfg.ProviderHTTPTimeout)
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=disable", c.DSN())
}
