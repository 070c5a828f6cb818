package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig, *cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfigFlags(t *testing.T) {
	cfg, err := ParseConfig([]string{
		"--history.depth=12",
		"--auth.owner=alice.testnet",
		"--store.backend=redis",
		"--store.redis-url=redis://localhost:6379/0",
		"--log.dev",
	})
	require.NoError(t, err)
	require.Equal(t, 12, cfg.History.Depth)
	require.Equal(t, "alice.testnet", cfg.Auth.Owner)
	require.Equal(t, backendRedis, cfg.Store.Backend)
	require.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
	require.True(t, cfg.Log.Dev)
}

func TestParseConfigFileUnderFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	err := os.WriteFile(path, []byte(`{
		"listen": ":9000",
		"history": {"depth": 7, "key": "eth"},
		"auth": {"owner": "bob.testnet"}
	}`), 0o600)
	require.NoError(t, err)

	cfg, err := ParseConfig([]string{"--conf.file", path, "--history.depth", "9"})
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Listen)
	require.Equal(t, "eth", cfg.History.Key)
	require.Equal(t, "bob.testnet", cfg.Auth.Owner)
	require.Equal(t, 9, cfg.History.Depth, "explicit flags win over the file")
	require.Equal(t, DefaultConfig.Store, cfg.Store)
}

func TestParseConfigInvalid(t *testing.T) {
	for name, args := range map[string][]string{
		"zero depth":   {"--history.depth=0"},
		"empty key":    {"--history.key="},
		"backend":      {"--store.backend=etcd"},
		"redis url":    {"--store.backend=redis"},
		"pebble path":  {"--store.backend=pebble", "--store.path="},
		"half tls":     {"--tls.cert=server.crt"},
		"unknown flag": {"--history.size=3"},
		"missing file": {"--conf.file=/nonexistent/conf.json"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(args)
			require.Error(t, err)
		})
	}
}
