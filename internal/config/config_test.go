package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestDefaults(t *testing.T) {
	c, err := load(t)
	require.NoError(t, err)
	want := &Config{
		URL:         "http://localhost:8080",
		HTTPAuth:    "digest",
		LogLevel:    "info",
		OtelService: "scidbq",
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, c.Options())
}

func TestEnvAndFlags(t *testing.T) {
	t.Setenv("SCIDB_URL", "http://env:8080")
	t.Setenv("SCIDB_HTTP_USER", "alice")
	t.Setenv("SCIDB_RATE_LIMIT", "2.5")

	c, err := load(t, "--url", "https://flag:8083", "--http.auth", "basic")
	require.NoError(t, err)
	require.Equal(t, "https://flag:8083", c.URL)
	require.Equal(t, "alice", c.HTTPUser)
	require.Equal(t, "basic", c.HTTPAuth)
	require.Equal(t, 2.5, c.RateLimit)
	require.Len(t, c.Options(), 2)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scidb.yaml")
	data := "url: https://file:8083\nscidb:\n  user: scidb\n  password: secret\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("SCIDB_LOG_LEVEL", "warn")

	c, err := load(t, "--config", path)
	require.NoError(t, err)
	require.Equal(t, "https://file:8083", c.URL)
	require.Equal(t, "scidb", c.SciDBUser)
	require.Equal(t, "secret", c.SciDBPassword)
	require.Equal(t, "warn", c.LogLevel)
	require.Len(t, c.Options(), 1)
}

func TestInvalidSettings(t *testing.T) {
	_, err := load(t, "--http.auth", "ntlm")
	require.ErrorContains(t, err, `unknown http.auth "ntlm"`)

	_, err = load(t, "--rate-limit=-1")
	require.Error(t, err)

	_, err = load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
