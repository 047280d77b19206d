package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

func mirrorConfig(dir string) types.Config {
	config := types.DefaultConfig()
	config.DataDir = dir
	config.Storage.JSONLMirror = true
	return config
}

func TestMirror_WrittenOnMutation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(mirrorConfig(dir))
	require.NoError(t, err)
	defer b.Close()

	add(t, b, "1", "Doe Jane", "1990-03-15")
	add(t, b, "1", "Smith John", "1985-11-02")

	data, err := os.ReadFile(filepath.Join(dir, recordsJSONL))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"label":"Doe Jane"`)
	assert.Contains(t, lines[0], `"date":"1990-03-15"`)
	assert.Contains(t, lines[1], `"label":"Smith John"`)

	ok, err := b.DeleteByOwnerAndLabel(ctx, "1", "Doe Jane")
	require.NoError(t, err)
	require.True(t, ok)

	data, err = os.ReadFile(filepath.Join(dir, recordsJSONL))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Doe Jane")
}

func TestMirror_DisabledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	b := setupBackendIn(t, dir)
	add(t, b, "1", "Doe Jane", "1990-03-15")

	_, err := os.Stat(filepath.Join(dir, recordsJSONL))
	assert.True(t, os.IsNotExist(err))
}

func TestMirror_SeedsEmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		`{"record_id":"r1","owner_id":"1","label":"Doe Jane","date":"1990-03-15","group":"family","details":null,"created_at":"2024-01-01T00:00:00Z"}`,
		`not json`,
		`{"record_id":"r2","owner_id":"1","label":"Bad Date","date":"1990-02-30","created_at":"2024-01-01T00:00:00Z"}`,
		`{"record_id":"r3","owner_id":"2","label":"Smith John","date":"1985-11-02","future_field":true}`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, recordsJSONL), []byte(content), 0o644))

	b, err := Open(mirrorConfig(dir))
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	owners, err := b.ListDistinctOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, owners)

	got, err := b.ListByOwner(ctx, "1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RecordID)
	require.NotNil(t, got[0].Group)
	assert.Equal(t, "family", *got[0].Group)
	assert.Nil(t, got[0].Details)
}

func TestMirror_IgnoredWhenDatabaseHasRecords(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(mirrorConfig(dir))
	require.NoError(t, err)
	add(t, b, "1", "Doe Jane", "1990-03-15")
	require.NoError(t, b.Close())

	stale := `{"record_id":"zz","owner_id":"9","label":"Stale","date":"2000-01-01","created_at":"2024-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, recordsJSONL), []byte(stale), 0o644))

	b2, err := Open(mirrorConfig(dir))
	require.NoError(t, err)
	defer b2.Close()

	owners, err := b2.ListDistinctOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, owners)
}

func setupBackendIn(t *testing.T, dir string) *Backend {
	t.Helper()
	config := types.DefaultConfig()
	config.DataDir = dir
	b, err := Open(config)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}
