package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/frontdesk/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name               string
		configContent      string
		path               string
		expectedListenAddr string
		expectedStore      string
		expectedTimeout    time.Duration
		expectError        bool
	}{
		{
			name: "full config",
			configContent: `
server:
  listenAddress: ":9090"
  debug: true
escalation:
  timeout: "30m"
  sweepInterval: "1m"
store:
  type: redis
  redis:
    addr: "redis:6379"
mail:
  disabled: false
  host: "smtp.example.com"
  operators:
    - "ops@example.com"
rateLimit:
  rate: 5
  burst: 10
`,
			expectedListenAddr: ":9090",
			expectedStore:      config.StoreRedis,
			expectedTimeout:    30 * time.Minute,
		},
		{
			name: "minimal config keeps defaults",
			configContent: `
server:
  listenAddress: ":3000"
`,
			expectedListenAddr: ":3000",
			expectedStore:      config.StoreSQLite,
			expectedTimeout:    2 * time.Hour,
		},
		{
			name:          "invalid YAML",
			configContent: `invalid: yaml: content [`,
			expectError:   true,
		},
		{
			name: "invalid duration",
			configContent: `
escalation:
  timeout: "soon"
`,
			expectError: true,
		},
		{
			name: "unknown store type",
			configContent: `
store:
  type: postgres
`,
			expectError: true,
		},
		{
			name: "mail enabled without operators",
			configContent: `
mail:
  disabled: false
  host: "smtp.example.com"
`,
			expectError: true,
		},
		{
			name:        "file not found",
			path:        "/nonexistent/path/config.yaml",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if tt.configContent != "" {
				path = writeConfig(t, tt.configContent)
			}

			cfg, err := config.Load(path)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedListenAddr, cfg.Server.ListenAddress)
			assert.Equal(t, tt.expectedStore, cfg.Store.Type)
			assert.Equal(t, tt.expectedTimeout, cfg.EscalationTimeout(time.Hour))
		})
	}
}

func TestLoadDefaultPath(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := config.Load()
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2*time.Hour, cfg.EscalationTimeout(0))
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval(0))
	assert.Equal(t, time.Minute, cfg.RetryInterval(0))
	assert.Equal(t, 15*time.Second, cfg.Server.GetShutdownTimeout())
	assert.True(t, cfg.Mail.Disabled)
	assert.False(t, cfg.Mail.InsecureSkipVerify)
	assert.False(t, cfg.Audit.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestDurationFallback(t *testing.T) {
	var cfg config.Config
	assert.Equal(t, 42*time.Second, cfg.SweepInterval(42*time.Second))

	cfg.Escalation.SweepInterval = "-5m"
	assert.Equal(t, 42*time.Second, cfg.SweepInterval(42*time.Second))
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := config.Defaults()
	cfg.Escalation.Timeout = "0s"
	cfg.Store.Type = "nope"
	cfg.Telemetry.SamplingRate = 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escalation.timeout must be positive")
	assert.Contains(t, err.Error(), `store.type "nope"`)
	assert.Contains(t, err.Error(), "telemetry.samplingRate")
}
