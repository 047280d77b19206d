package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "cakeday", cmd.Use)

	for _, name := range []string{"data-dir", "sweep-at", "listen", "verbose"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config-dir"))
	assert.Equal(t, "v", cmd.Flags().Lookup("verbose").Shorthand)

	sub, _, err := cmd.Find([]string{"hash-key"})
	require.NoError(t, err)
	assert.Equal(t, "hash-key", sub.Name())
}

func TestVersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "cakeday "+Version)
	assert.Contains(t, out.String(), modulePath)
}

// runRoot executes the root command with a cancelled context so the service
// starts and shuts down immediately.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRun_GracefulExit(t *testing.T) {
	if testing.Short() {
		t.Skip("starts the full service")
	}
	configDir := t.TempDir()
	dataDir := t.TempDir()
	t.Setenv("CAKEDAY_SHUTDOWN_TIMEOUT", "1s")

	_, err := runRoot(t, "--config-dir", configDir, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, ExitCode(err))

	assert.FileExists(t, filepath.Join(configDir, "config.yaml"))
	assert.FileExists(t, filepath.Join(dataDir, "cakeday.db"))
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
		args []string
		want int
	}{
		{
			name: "unknown storage driver",
			yaml: "storage:\n  driver: etcd\n",
			want: ExitConfigError,
		},
		{
			name: "bad sweep flag",
			args: []string{"--sweep-at", "noon"},
			want: ExitConfigError,
		},
		{
			name: "malformed yaml",
			yaml: "schedule: [\n",
			want: ExitConfigError,
		},
		{
			name: "webhook without token",
			env:  map[string]string{"CAKEDAY_TRANSPORT_DRIVER": "webhook", "CAKEDAY_TRANSPORT_URL": "http://localhost"},
			want: ExitStartup,
		},
		{
			name: "unknown flag",
			args: []string{"--frobnicate"},
			want: ExitConfigError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configDir := t.TempDir()
			if tt.yaml != "" {
				require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(tt.yaml), 0o644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			args := append([]string{"--config-dir", configDir, "--data-dir", t.TempDir()}, tt.args...)
			_, err := runRoot(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, ExitCode(err))
		})
	}
}

func TestRun_StorageFailureIsStartupError(t *testing.T) {
	configDir := t.TempDir()
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// The data dir is a path below a regular file, so it cannot be created.
	_, err := runRoot(t, "--config-dir", configDir, "--data-dir", filepath.Join(blocker, "data"))
	require.Error(t, err)
	assert.Equal(t, ExitStartup, ExitCode(err))
	assert.ErrorIs(t, err, types.ErrStorage)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitConfigError, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitStartup, ExitCode(WrapExitError(ExitStartup, "x", nil)))
	assert.Equal(t, ExitConfigError, ExitCode(classify(types.ErrTimezoneInvalid)))
	assert.Equal(t, ExitStartup, ExitCode(classify(types.ErrSchedulerFault)))
	assert.Equal(t, ExitStartup, ExitCode(classify(types.ErrTransportCredential)))
}

func TestHashKeyCommand(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("s3cret\n"))
	cmd.SetArgs([]string{"hash-key"})
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashKeyCommand_Empty(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"hash-key"})
	assert.Error(t, cmd.Execute())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	l, err := newLogger(types.LogConfig{Level: "warn", Format: types.LogFormatJSON}, false, &buf)
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	l, err = newLogger(types.LogConfig{Level: "error"}, true, &buf)
	require.NoError(t, err)
	l.Debug("debug line")
	assert.Contains(t, buf.String(), "debug line")

	_, err = newLogger(types.LogConfig{Level: "loud"}, false, &buf)
	assert.Error(t, err)

	_, err = newLogger(types.LogConfig{Format: "xml"}, false, &buf)
	assert.ErrorIs(t, err, types.ErrLogFormatUnknown)
}

func TestLoadConfig_Precedence(t *testing.T) {
	configDir := t.TempDir()
	yaml := "timezone: Europe/Berlin\nschedule:\n  at: \"07:00\"\n  leap_day: feb28\ntransport:\n  timeout: 3s\ndata_dir: /from/yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("CAKEDAY_TIMEZONE", "UTC")
	t.Setenv("CAKEDAY_DATA_DIR", "/from/env")
	t.Setenv("CAKEDAY_SERVER_LISTEN", "127.0.0.1:9999")

	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--sweep-at", "06:15"}))

	cfg, err := loadConfig(configDir, cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, "06:15", cfg.Schedule.At, "flag beats file")
	assert.Equal(t, "UTC", cfg.Timezone, "env beats file")
	assert.Equal(t, "feb28", cfg.Schedule.LeapDay, "file beats default")
	assert.Equal(t, 3*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)
	assert.Equal(t, types.StorageSQLite, cfg.Storage.Driver, "default")
	assert.Equal(t, types.DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, "/from/yaml", cfg.DataDir, "data_dir in config.yaml beats CAKEDAY_DATA_DIR")
}

func TestLoadConfig_WritesDefaultFile(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "nested", "cakeday")
	t.Setenv("CAKEDAY_DATA_DIR", "")

	cfg, err := loadConfig(configDir, NewRootCmd().Flags())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfigYAML, string(data))

	want := types.DefaultConfig()
	want.DataDir = cfg.DataDir
	assert.Equal(t, want, cfg, "the default file decodes to DefaultConfig")
	assert.NoError(t, cfg.Validate())
}
