package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raj2399/Task-Evallo/internal/engine"
	"github.com/raj2399/Task-Evallo/internal/query"
	"github.com/raj2399/Task-Evallo/internal/validate"
	"github.com/raj2399/Task-Evallo/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const sampleRecord = `{"level":"warn","message":"High memory usage","resourceId":"server-1234",` +
	`"timestamp":"2023-09-15T08:02:00Z","traceId":"abc-xyz-123","spanId":"span-456","commit":"5e5342f",` +
	`"metadata":{"parentResourceId":"server-0987"}}`

func TestLocalPostAndQuery(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, sampleRecord, "--data-dir", dir, "post")
	require.NoError(t, err)
	assert.Contains(t, out, "High memory usage")

	_, err = execute(t, `{"level":"fatal"}`, "--data-dir", dir, "post", "-")
	assert.ErrorContains(t, err, "invalid log schema")

	out, err = execute(t, "", "--data-dir", dir, "query", "--message", "MEMORY")
	require.NoError(t, err)
	var res query.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "server-1234", res.Logs[0].ResourceID)
}

func TestLocalExportImportMigrate(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	snapshot := filepath.Join(t.TempDir(), "logs.json.zst")

	_, err := execute(t, sampleRecord, "--data-dir", src, "post")
	require.NoError(t, err)

	out, err := execute(t, "", "--data-dir", src, "export", "-o", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 records")

	out, err = execute(t, "", "--data-dir", dst, "import", "-i", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 records")

	content, err := os.ReadFile(filepath.Join(dst, "logs.json"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "High memory usage")

	db := filepath.Join(t.TempDir(), "logs.db")
	out, err = execute(t, "", "migrate", "--from-path", filepath.Join(dst, "logs.json"), "--to-path", db)
	require.NoError(t, err)
	assert.Contains(t, out, "migrated 1 records")
}

func TestLocalImportRejectsInvalidSnapshot(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, sampleRecord, "--data-dir", dir, "post")
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(dir, "logs.json"))
	require.NoError(t, err)

	good, err := schema.Decode([]byte(sampleRecord))
	require.NoError(t, err)
	snapshot := filepath.Join(t.TempDir(), "bad.json.zst")
	f, err := os.Create(snapshot)
	require.NoError(t, err)
	require.NoError(t, engine.WriteSnapshot(f, []schema.LogRecord{
		good,
		{Level: "fatal", Message: "m", Timestamp: "not a date"},
	}))
	require.NoError(t, f.Close())

	_, err = execute(t, "", "--data-dir", dir, "import", "-i", snapshot)
	require.Error(t, err)
	assert.ErrorIs(t, err, validate.ErrSchemaInvalid)
	assert.Contains(t, err.Error(), "imported 0 of 2 records")

	after, err := os.ReadFile(filepath.Join(dir, "logs.json"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestMigrateRejectsInvalidSource(t *testing.T) {
	src := filepath.Join(t.TempDir(), "logs.json")
	require.NoError(t, os.WriteFile(src, []byte(`[`+sampleRecord+`,{"level":"fatal","timestamp":"not a date"}]`), 0644))
	db := filepath.Join(t.TempDir(), "logs.db")

	_, err := execute(t, "", "migrate", "--from-path", src, "--to-path", db)
	assert.ErrorIs(t, err, validate.ErrSchemaInvalid)

	dst, err := engine.NewSQLiteStore(db)
	require.NoError(t, err)
	defer dst.Close()
	recs, err := dst.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}
