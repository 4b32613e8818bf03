package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/agentuity/go-cache/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_ttl: 1h
cleanup_interval: "0"
max_size: 100
max_memory: 16Mi
persistence:
  backend: file
  path: `+filepath.Join(dir, "entries")+`
`), 0644))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	prev := tui.HasTTY
	tui.HasTTY = false
	t.Cleanup(func() { tui.HasTTY = prev })

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	base := []string{"--log-level", "error", "--env-file", filepath.Join(t.TempDir(), "none.env")}
	if configPath != "" {
		base = append(base, "--config", configPath)
	}
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSetGetAcrossInvocations(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "set", "greeting", `{"text":"hello"}`, "--tag", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "stored greeting")

	out, err = run(t, cfg, "get", "greeting")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello"}`, out)

	out, err = run(t, cfg, "set", "plain", "just text", "--namespace", "notes")
	require.NoError(t, err)
	out, err = run(t, cfg, "get", "plain", "--namespace", "notes")
	require.NoError(t, err)
	assert.Equal(t, "\"just text\"\n", out)

	_, err = run(t, cfg, "get", "plain")
	assert.Error(t, err)

	out, err = run(t, cfg, "delete", "greeting", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 of 2 keys")
	_, err = run(t, cfg, "get", "greeting")
	assert.Error(t, err)
}

func TestStatsJSON(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, cfg, "set", "a", "1")
	require.NoError(t, err)

	out, err := run(t, cfg, "stats", "--json")
	require.NoError(t, err)
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))
	assert.Equal(t, float64(1), snapshot["cache_size"])
	assert.Equal(t, float64(100), snapshot["max_size"])

	out, err = run(t, cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Hit rate")
	assert.Contains(t, out, "default")
}

func TestTopAndReport(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, cfg, "set", "a", "1")
	require.NoError(t, err)

	out, err := run(t, cfg, "top", "--sort", "size")
	require.NoError(t, err)
	assert.Contains(t, out, "default:a")

	_, err = run(t, cfg, "top", "--sort", "random")
	assert.Error(t, err)

	out, err = run(t, cfg, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "CACHE REPORT")
}

func TestExport(t *testing.T) {
	cfg := writeConfig(t)
	path := filepath.Join(t.TempDir(), "stats.json")
	out, err := run(t, cfg, "export", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exported statistics")
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(buf), "top_items")
}

func TestHealth(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, cfg, "health", "--disk", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	out, err = run(t, cfg, "health", "--json")
	require.NoError(t, err)
	var metrics map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &metrics))
	assert.Equal(t, "ok", metrics["cache.health_status"])
}

func TestClearAndInvalidate(t *testing.T) {
	cfg := writeConfig(t)
	for _, args := range [][]string{
		{"set", "a", "1", "--tag", "red"},
		{"set", "b", "2", "--tag", "red"},
		{"set", "user:1", "3"},
		{"set", "user:2", "4"},
		{"set", "n", "5", "--namespace", "other"},
	} {
		_, err := run(t, cfg, args...)
		require.NoError(t, err)
	}

	out, err := run(t, cfg, "invalidate", "--tag", "red")
	require.NoError(t, err)
	assert.Contains(t, out, "invalidated 2 entries")

	out, err = run(t, cfg, "invalidate", "--pattern", "user:")
	require.NoError(t, err)
	assert.Contains(t, out, "invalidated 2 entries")

	_, err = run(t, cfg, "invalidate")
	assert.Error(t, err)

	out, err = run(t, cfg, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "aborted")

	out, err = run(t, cfg, "clear", "--yes", "--namespace", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 entries")
}

func TestDemo(t *testing.T) {
	out, err := run(t, "", "demo", "--users", "5", "--products", "12", "--requests", "50", "--report")
	require.NoError(t, err)
	assert.Contains(t, out, "Round 1 of 1")
	assert.Contains(t, out, "query")
	assert.Contains(t, out, "session")
	assert.Contains(t, out, "product")
	assert.Contains(t, out, "CACHE REPORT")
}

func TestDemoExportsSpans(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := run(t, "", "demo", "--users", "3", "--products", "5", "--requests", "10", "--otlp-url", srv.URL)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "/v1/traces")
}

func TestEnvFileOverrides(t *testing.T) {
	cfg := writeConfig(t)
	envFile := filepath.Join(t.TempDir(), "cache.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CACHE_MAX_SIZE=7\n"), 0644))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"stats", "--json", "--config", cfg, "--env-file", envFile, "--log-level", "error"})
	require.NoError(t, cmd.Execute())
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
	assert.Equal(t, float64(7), snapshot["max_size"])
}
