package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"database": {"driver": "sqlite", "dsn": "clood.db"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 72, cfg.JWTTTLHours)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "sql", cfg.CasebaseStore.Type)
	require.Equal(t, "local", cfg.Ontology.Mode)
	require.Equal(t, 30, cfg.Vectorizer.TimeoutSec)
	require.Equal(t, 30, cfg.Schedule.CacheMaxAgeDays)
	require.Equal(t, "clood", cfg.Trace.ServiceName)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing secret",
			body: `{"port": 1, "database": {"driver": "sqlite", "dsn": "x"}}`,
			want: "jwt_secret is required",
		},
		{
			name: "missing port",
			body: `{"jwt_secret": "s", "database": {"driver": "sqlite", "dsn": "x"}}`,
			want: "port is required",
		},
		{
			name: "unknown driver",
			body: `{"port": 1, "jwt_secret": "s", "database": {"driver": "mysql"}}`,
			want: "database.driver must be postgres, pgx or sqlite",
		},
		{
			name: "opensearch without endpoint",
			body: `{"port": 1, "jwt_secret": "s", "database": {"driver": "sqlite", "dsn": "x"}, "casebase_store": {"type": "opensearch"}}`,
			want: "casebase_store.opensearch.endpoint is required for opensearch store",
		},
		{
			name: "remote ontology without endpoint",
			body: `{"port": 1, "jwt_secret": "s", "database": {"driver": "sqlite", "dsn": "x"}, "ontology": {"mode": "remote"}}`,
			want: "ontology.remote_endpoint is required for remote mode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.EqualError(t, err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "open config")
}
