package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/narcan-finder/internal/history"
	"github.com/danielpatrickdp/narcan-finder/internal/triage"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
	"github.com/danielpatrickdp/narcan-finder/internal/vault"
)

// env isolates every path the CLI touches under a temp dir.
type env struct {
	dir       string
	exportDir string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("NARCAN_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("NARCAN_VAULT_PATH", filepath.Join(dir, "vault", "credential.vault"))
	t.Setenv("NARCAN_VAULT_ITERATIONS", "1000")
	t.Setenv("NARCAN_HISTORY_DB", filepath.Join(dir, "history.db"))
	t.Setenv("NARCAN_EXPORT_DIR", filepath.Join(dir, "exports"))
	t.Setenv("NARCAN_LOG_LEVEL", "error")
	for _, k := range []string{
		"NARCAN_LOG_FORMAT", "NARCAN_ADVISORY_BACKEND", "NARCAN_ADVISORY_MODEL",
		"NARCAN_ADVISORY_ENDPOINT", "NARCAN_SAMPLER_INTERVAL", envVaultPassword, envAPIKey,
	} {
		t.Setenv(k, "")
	}
	return env{dir: dir, exportDir: filepath.Join(dir, "exports")}
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	newEnv(t)
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "narcan")
	assert.Contains(t, out, Version)
}

func TestScoreJSON(t *testing.T) {
	newEnv(t)
	tests := []struct {
		name       string
		cpu, mem   string
		tier       urgency.Tier
		overridden bool
	}{
		{"idle", "0.1", "0.1", urgency.TierLow, false},
		{"busy", "0.6", "0.9", urgency.TierMedium, false},
		{"loaded", "0.9", "0.9", urgency.TierHigh, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, "", "score", "--json", "--cpu", tt.cpu, "--memory", tt.mem)
			require.NoError(t, err)

			var a triage.Assessment
			require.NoError(t, json.Unmarshal([]byte(out), &a))
			assert.Equal(t, tt.tier, a.Verdict.Tier)
			assert.Equal(t, tt.overridden, a.Verdict.Overridden)
			assert.False(t, a.Sample.Degraded)
		})
	}
}

func TestScoreRendered(t *testing.T) {
	newEnv(t)
	out, _, err := run(t, "", "score", "--cpu", "0.1", "--memory", "0.1", "friend", "is", "drowsy")
	require.NoError(t, err)
	assert.Contains(t, out, "LOW")
	assert.Contains(t, out, "cpu 10%")
}

func TestScoreInvalidConfig(t *testing.T) {
	e := newEnv(t)
	cfg := filepath.Join(e.dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("scoring:\n  medium_threshold: 0.9\n  high_threshold: 0.5\n"), 0o600))
	_, _, err := run(t, "", "score", "--cpu", "0.1", "--memory", "0.1")
	require.Error(t, err)
}

func TestVaultLifecycle(t *testing.T) {
	newEnv(t)

	out, _, err := run(t, "", "vault", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "uninitialized")

	out, _, err = run(t, "sk-test\nhunter2\nhunter2\n", "vault", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "vault sealed")

	out, _, err = run(t, "", "vault", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "sealed")

	_, _, err = run(t, "sk-other\npw\npw\n", "vault", "init")
	require.Error(t, err, "init must refuse to overwrite without --force")

	out, _, err = run(t, "hunter2\n", "vault", "verify")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	_, _, err = run(t, "wrong\n", "vault", "verify")
	require.Error(t, err)

	_, _, err = run(t, "hunter2\ncorrect horse\ncorrect horse\n", "vault", "rekey")
	require.NoError(t, err)

	_, _, err = run(t, "hunter2\n", "vault", "verify")
	require.Error(t, err)
	_, _, err = run(t, "correct horse\n", "vault", "verify")
	require.NoError(t, err)
}

func TestVaultInitMismatch(t *testing.T) {
	newEnv(t)
	_, _, err := run(t, "sk-test\none\ntwo\n", "vault", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")

	out, _, err := run(t, "", "vault", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "uninitialized")
}

func TestVaultInitFromEnv(t *testing.T) {
	newEnv(t)
	t.Setenv(envAPIKey, "sk-env")
	t.Setenv(envVaultPassword, "pw-env")
	_, _, err := run(t, "", "vault", "init")
	require.NoError(t, err)
	out, _, err := run(t, "", "vault", "verify")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestAskLocalBackend(t *testing.T) {
	newEnv(t)
	out, _, err := run(t, "", "ask", "--backend", "none", "--location", "Main St", "--json", "not", "breathing")
	require.NoError(t, err)

	var res askJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.Fallback)
	assert.Contains(t, res.Advice, "SAMHSA")

	out, _, err = run(t, "", "history", "--json")
	require.NoError(t, err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, res.ID, entries[0].ID)
	assert.Equal(t, "Main St", entries[0].Location)
	assert.Equal(t, "not breathing", entries[0].Symptoms)
	assert.Equal(t, res.Advice, entries[0].Advice)
}

func TestAskLocationFile(t *testing.T) {
	e := newEnv(t)
	loc := filepath.Join(e.dir, "loc.txt")
	require.NoError(t, os.WriteFile(loc, []byte("  10001 \n"), 0o600))

	_, _, err := run(t, "", "ask", "--location-file", loc, "help")
	require.NoError(t, err)

	out, _, err := run(t, "", "history", "--json")
	require.NoError(t, err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "10001", entries[0].Location)

	empty := filepath.Join(e.dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, _, err = run(t, "", "ask", "--location-file", empty, "help")
	require.ErrorIs(t, err, triage.ErrEmptyLocationFile)
}

func TestAskRemoteNeedsVault(t *testing.T) {
	newEnv(t)
	_, _, err := run(t, "", "ask", "--backend", "openai", "help")
	require.ErrorIs(t, err, vault.ErrUninitialized)
}

func TestAskOpenAIThroughVault(t *testing.T) {
	newEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Walgreens on Main St stocks naloxone."}}]}`))
	}))
	defer srv.Close()
	t.Setenv("NARCAN_ADVISORY_ENDPOINT", srv.URL)

	_, _, err := run(t, "sk-test\nhunter2\nhunter2\n", "vault", "init")
	require.NoError(t, err)

	out, _, err := run(t, "hunter2\n", "ask", "--backend", "openai", "--json", "--location", "Main St", "help")
	require.NoError(t, err)
	var res askJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Walgreens on Main St stocks naloxone.", res.Advice)
	assert.False(t, res.Fallback)

	_, _, err = run(t, "wrong\n", "ask", "--backend", "openai", "help")
	require.ErrorIs(t, err, vault.ErrAuthenticationFailed)
}

func TestAskBackendFailureFallsBack(t *testing.T) {
	newEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	t.Setenv("NARCAN_ADVISORY_ENDPOINT", srv.URL)
	t.Setenv(envAPIKey, "sk-test")
	t.Setenv(envVaultPassword, "pw")

	_, _, err := run(t, "", "vault", "init")
	require.NoError(t, err)

	out, _, err := run(t, "", "ask", "--backend", "openai", "--json", "help")
	require.NoError(t, err)
	var res askJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Fallback)
	assert.Contains(t, res.AdviceErr, "403")
	assert.Contains(t, res.Advice, "SAMHSA")
}

func TestHistoryEmpty(t *testing.T) {
	newEnv(t)
	out, _, err := run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "no requests recorded")
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		_, _, err := run(t, "", "ask", "--location", "Main St", "help")
		require.NoError(t, err)
	}

	out, _, err := run(t, "", "export", "--format", "csv", "--limit", "2")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.Equal(t, e.exportDir, filepath.Dir(path))
	assert.Equal(t, ".csv", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3, "header plus two rows")

	_, _, err = run(t, "", "export", "--format", "xml")
	require.Error(t, err)
}

func TestReplayFixture(t *testing.T) {
	newEnv(t)
	out, _, err := run(t, "", "replay", "--fixture", filepath.Join("..", "replay", "testdata", "baseline.json"), "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "replayed 6 cases")
	assert.Contains(t, out, "low=2 medium=1 high=3")
	assert.Contains(t, out, "overridden: 3")
	assert.Contains(t, out, "changed:    0")
}

func TestReplayHistory(t *testing.T) {
	newEnv(t)
	_, _, err := run(t, "", "ask", "help")
	require.NoError(t, err)
	_, _, err = run(t, "", "ask", "not breathing")
	require.NoError(t, err)

	out, _, err := run(t, "", "replay", "--cases")
	require.NoError(t, err)
	assert.Contains(t, out, "replayed 2 cases")
	assert.Contains(t, out, "no baseline: 0")
}

func TestReplLoop(t *testing.T) {
	newEnv(t)
	in := "Main St\n\nfriend is unresponsive\nquit\nignored\n"
	out, _, err := run(t, in, "repl", "--no-watch")
	require.NoError(t, err)
	assert.Contains(t, out, "call 911 first")
	assert.Contains(t, out, "SAMHSA")

	hist, _, err := run(t, "", "history", "--json")
	require.NoError(t, err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(hist), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "friend is unresponsive", entries[0].Symptoms)
}

func TestReplEOF(t *testing.T) {
	newEnv(t)
	_, _, err := run(t, "", "repl", "--no-watch")
	require.NoError(t, err)
}
