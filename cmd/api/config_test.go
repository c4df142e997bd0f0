package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "twelve")
	t.Setenv("TEST_DUR", "250ms")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BLANK", "  ")

	assert.Equal(t, 12, envInt("TEST_INT", 1))
	assert.Equal(t, 1, envInt("TEST_BAD_INT", 1))
	assert.Equal(t, 3, envInt("TEST_UNSET_INT", 3))
	assert.Equal(t, 250*time.Millisecond, envDuration("TEST_DUR", time.Second))
	assert.True(t, envBool("TEST_BOOL", false))
	assert.Equal(t, "fallback", envString("TEST_BLANK", "fallback"))
}

func TestLoadRateLimiterConfigDefaults(t *testing.T) {
	cfg := LoadRateLimiterConfig()
	assert.Equal(t, 200, cfg.RequestsPerTimeFrame)
	assert.Equal(t, 5*time.Second, cfg.TimeFrame)
}
