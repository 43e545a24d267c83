package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/objcache/cache"
)

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[cache]
shards = 8
retain = 64
policy = "2q"
idle_ttl = "2s"

[workload]
workers = 3
duration = "250ms"
keys = 100
`), 0o644))

	cfg, err := loadConfig([]string{"-config", path, "-workers", "5"})
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Cache.Shards)
	assert.Equal(t, 64, cfg.Cache.Retain)
	assert.Equal(t, "2q", cfg.Cache.Policy)
	assert.Equal(t, Duration(2*time.Second), cfg.Cache.IdleTTL)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Workload.Duration)
	assert.Equal(t, 100, cfg.Workload.Keys)
	assert.Equal(t, 5, cfg.Workload.Workers, "flags win over the file")
	assert.Equal(t, 1.1, cfg.Workload.ZipfS, "defaults fill the rest")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig([]string{"-policy", "fifo", "-keys", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown policy")
	assert.Contains(t, err.Error(), "keys must be positive")

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("shardz = 3\n"), 0o644))
	_, err = loadConfig([]string{"-config", path})
	assert.Error(t, err, "unknown keys are rejected")

	_, err = loadConfig([]string{"-duration", "soon"})
	assert.Error(t, err)
}

func TestRun_NoLeaks(t *testing.T) {
	for _, opt := range []cache.Options[string, *resource]{
		{},
		{Shards: 4, Retain: 8},
		{Coalesce: true},
	} {
		c := cache.New[string, *resource](opt)
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		res, err := run(ctx, c, WorkloadConfig{
			Workers: 8, Keys: 32, Hold: 3, ZipfS: 1.2, ZipfV: 1, Seed: 1,
		})
		cancel()
		require.NoError(t, err)
		assert.NotZero(t, res.Ops)
		assert.Zero(t, res.Leaked)
		assert.Zero(t, c.Len())

		var out bytes.Buffer
		res.print(&out, c.Stats())
		assert.Contains(t, out.String(), "leaked=0")
	}
}
