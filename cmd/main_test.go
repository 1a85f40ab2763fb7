package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blendmate/bridge/coreengine/testutil"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestPrintConfig_FlagsOverrideDefaults(t *testing.T) {
	out, _, err := execute(t, context.Background(),
		"--print-config",
		"--socket-url", "ws://10.1.1.1:4000",
		"--throttle-interval-ms", "5",
		"--throttled-kinds", "depsgraph_update",
		"--log-format", "json",
	)
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "ws://10.1.1.1:4000", cfg["socket_url"])
	assert.Equal(t, float64(10), cfg["throttle_interval_ms"], "clamped to the minimum window")
	assert.Equal(t, []any{"depsgraph_update"}, cfg["throttled_kinds"])
	assert.Equal(t, "json", cfg["log_format"])
	assert.Equal(t, float64(5000), cfg["reconnect_backoff_ms"])
}

func TestPrintConfig_Defaults(t *testing.T) {
	out, _, err := execute(t, context.Background(), "--print-config")
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "ws://127.0.0.1:32123", cfg["socket_url"])
	assert.Equal(t, []any{"depsgraph_update", "frame_changed"}, cfg["throttled_kinds"])
}

func TestInvalidConfig(t *testing.T) {
	_, _, err := execute(t, context.Background(), "--print-config", "--socket-url", "http://nope")
	assert.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	out, _, err := execute(t, context.Background(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRun_ConnectsAndShutsDown(t *testing.T) {
	counterpart := testutil.NewCounterpart(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		stderr string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		_, stderr, err := execute(t, ctx,
			"--socket-url", counterpart.URL(),
			"--metrics-addr", "",
			"--health-addr", "127.0.0.1:0",
			"--heartbeat-interval-ms", "0",
			"--tick-interval-ms", "10",
		)
		done <- result{stderr, err}
	}()

	connected := counterpart.WaitFor(ctx, 3*time.Second, func(frames []map[string]any) bool {
		for _, f := range frames {
			if f["type"] == "event" && f["event"] == "connected" {
				return true
			}
		}
		return false
	})
	require.True(t, connected, "connected event not received")

	cancel()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Contains(t, r.stderr, "bridge_ready")
		assert.Contains(t, r.stderr, "bridge_stopped")
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not shut down")
	}
}
