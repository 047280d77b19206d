package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cakedayBin is the path to the binary built by TestMain.
var cakedayBin string

func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "cakeday-test-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cakedayBin = filepath.Join(tmpDir, "cakeday")

	build := exec.Command("go", "build", "-o", cakedayBin, ".")
	if out, err := build.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "building cakeday: %v\n%s", err, out)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// lockedBuffer lets the test read stderr while the process writes it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testEnv isolates one invocation's config and data directories.
type testEnv struct {
	t       *testing.T
	config  string
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("runs the cakeday binary")
	}
	dir := t.TempDir()
	return &testEnv{
		t:       t,
		config:  filepath.Join(dir, "config"),
		dataDir: filepath.Join(dir, "data"),
	}
}

func (e *testEnv) command(args ...string) *exec.Cmd {
	all := append([]string{"--config-dir", e.config, "--data-dir", e.dataDir}, args...)
	cmd := exec.Command(cakedayBin, all...)
	cmd.Env = append(os.Environ(), "CAKEDAY_SHUTDOWN_TIMEOUT=2s")
	return cmd
}

// run executes the binary to completion and returns stdout, stderr and the
// exit code.
func (e *testEnv) run(stdin string, args ...string) (string, string, int) {
	e.t.Helper()
	cmd := e.command(args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return stdout.String(), stderr.String(), 0
	case errors.As(err, &exitErr):
		return stdout.String(), stderr.String(), exitErr.ExitCode()
	default:
		e.t.Fatalf("running cakeday: %v", err)
		return "", "", -1
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, code := env.run("", "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "cakeday ")
}

func TestInvalidSweepTimeExitsWithConfigError(t *testing.T) {
	env := newTestEnv(t)
	_, stderr, code := env.run("", "--sweep-at", "25:00")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "cakeday:")
}

func TestHashKeyFromStdin(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, code := env.run("secret\n", "hash-key")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(stdout), "$2"), stdout)
}

func TestSIGTERMStopsCleanly(t *testing.T) {
	env := newTestEnv(t)
	cmd := env.command()
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	require.NoError(t, cmd.Start())

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "service ready")
	}, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, cmd.Process.Signal(syscall.SIGTERM))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err, stderr.String())
	case <-time.After(10 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("cakeday did not exit after SIGTERM")
	}

	assert.FileExists(t, filepath.Join(env.config, "config.yaml"))
	assert.FileExists(t, filepath.Join(env.dataDir, "cakeday.db"))
}
