package xconf_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdbtune/pkg/config/xconf"
)

type reloadResult struct {
	settings *xconf.Settings
	err      error
}

func TestWatch_NotWatchable(t *testing.T) {
	cfg, err := xconf.NewFromBytes(nil, xconf.FormatYAML)
	require.NoError(t, err)

	_, err = xconf.Watch(cfg, nil)
	assert.ErrorIs(t, err, xconf.ErrNotWatchable)
}

func TestWatch_ReloadsSettings(t *testing.T) {
	path := writeFile(t, "xdbtune.yaml", "query:\n  slow_threshold: 100ms\n")
	cfg, err := xconf.New(path, xconf.WithEnvPrefix(""))
	require.NoError(t, err)

	results := make(chan reloadResult, 4)
	w, err := xconf.Watch(cfg, func(s *xconf.Settings, err error) {
		results <- reloadResult{settings: s, err: err}
	}, xconf.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	t.Cleanup(func() { assert.NoError(t, w.Stop()) })

	require.NoError(t, os.WriteFile(path, []byte("query:\n  slow_threshold: 2s\n"), 0o600))

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Equal(t, 2*time.Second, r.settings.Query.SlowThreshold)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not invoked")
	}
}

func TestWatch_InvalidSettingsReported(t *testing.T) {
	path := writeFile(t, "xdbtune.yaml", "tier: test\n")
	cfg, err := xconf.New(path, xconf.WithEnvPrefix(""))
	require.NoError(t, err)

	results := make(chan reloadResult, 4)
	w, err := xconf.Watch(cfg, func(s *xconf.Settings, err error) {
		results <- reloadResult{settings: s, err: err}
	}, xconf.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	t.Cleanup(func() { assert.NoError(t, w.Stop()) })

	require.NoError(t, os.WriteFile(path, []byte("tier: staging\n"), 0o600))

	select {
	case r := <-results:
		assert.ErrorIs(t, r.err, xconf.ErrInvalidSettings)
		assert.Nil(t, r.settings)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not invoked")
	}
}

func TestWatch_StopIsIdempotent(t *testing.T) {
	path := writeFile(t, "xdbtune.yaml", "tier: test\n")
	cfg, err := xconf.New(path)
	require.NoError(t, err)

	w, err := xconf.Watch(cfg, nil)
	require.NoError(t, err)
	w.StartAsync()
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	// 停止后不能再次启动
	w.StartAsync()
}
