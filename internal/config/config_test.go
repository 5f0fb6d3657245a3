package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Point at an environment with no config file so only defaults apply.
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.True(t, cfg.Hardened())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(1<<20), cfg.ReadLimit)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)

	assert.Equal(t, 1000, cfg.MaxRooms)
	assert.Equal(t, 50, cfg.MaxRoomMembers)
	assert.Equal(t, time.Hour, cfg.RoomTTL)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)

	assert.Equal(t, 60*time.Second, cfg.RateWindow)
	assert.Equal(t, Rates{Join: 10, CodeChange: 1000, LanguageChange: 20, InputChange: 1000, ExecuteCode: 10}, cfg.Rates)

	assert.Empty(t, cfg.ExecURL)
	assert.Equal(t, 30*time.Second, cfg.ExecTimeout)
}

func TestHardened(t *testing.T) {
	assert.True(t, (&Config{Mode: "release"}).Hardened())
	assert.False(t, (&Config{Mode: "debug"}).Hardened())
}
