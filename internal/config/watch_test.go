package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docengine/internal/logging"
)

func TestWatchReloads(t *testing.T) {
	path := writeFile(t, "docengine.toml", "[logging]\nlevel = \"info\"\n")

	changes := make(chan *Config, 16)
	w, err := Watch(context.Background(), path, func(c *Config) {
		select {
		case changes <- c:
		default:
		}
	},
		WithDebounce(10*time.Millisecond), WithWatchLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	// An invalid edit is ignored.
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o600))

	// A write can be observed half done, so wait for the final contents.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			assert.NotEqual(t, "loud", cfg.Logging.Level)
			if cfg.Logging.Level == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("no reload after change")
		}
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	path := writeFile(t, "docengine.toml", "")
	ctx, cancel := context.WithCancel(context.Background())
	w, err := Watch(ctx, path, nil)
	require.NoError(t, err)
	cancel()

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.NoError(t, w.Close())
}
