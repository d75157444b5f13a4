package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCatalog writes CUE catalog content into a fresh temp directory.
func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "catalog.cue"), []byte("package catalog\n"+content), 0o644)
	require.NoError(t, err)
	return dir
}

func TestLoadCatalog_Valid(t *testing.T) {
	dir := writeCatalog(t, `
instrument: "912828YK0": {
	security_id: 42
	min_size:    100
	enabled:     true
}
instrument: "38141G104": {
	security_id: 7
	min_size:    1
	enabled:     false
}
`)

	result, errs := LoadCatalog(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Instruments, 2)

	byCusip := make(map[string]int64)
	for _, inst := range result.Instruments {
		byCusip[inst.Cusip] = inst.SecurityID
	}
	assert.Equal(t, int64(42), byCusip["912828YK0"])
	assert.Equal(t, int64(7), byCusip["38141G104"])
}

func TestLoadCatalog_DefaultsEnabled(t *testing.T) {
	dir := writeCatalog(t, `
instrument: "912828YK0": {
	security_id: 42
}
`)

	result, errs := LoadCatalog(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	require.Len(t, result.Instruments, 1)
	assert.True(t, result.Instruments[0].Enabled)
	assert.Equal(t, int64(0), result.Instruments[0].MinSize)
}

func TestLoadCatalog_MissingSecurityID(t *testing.T) {
	dir := writeCatalog(t, `
instrument: "912828YK0": {
	min_size: 100
}
`)

	_, errs := LoadCatalog(dir, LoadModeCollectAll)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "security_id")
}

func TestLoadCatalog_NonPositiveSecurityID(t *testing.T) {
	dir := writeCatalog(t, `
instrument: "912828YK0": {
	security_id: 0
}
`)

	_, errs := LoadCatalog(dir, LoadModeCollectAll)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "positive")
}

func TestLoadCatalog_NegativeMinSize(t *testing.T) {
	dir := writeCatalog(t, `
instrument: "912828YK0": {
	security_id: 42
	min_size:    -1
}
`)

	_, errs := LoadCatalog(dir, LoadModeCollectAll)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "min_size")
}

func TestLoadCatalog_DuplicateSecurityID(t *testing.T) {
	dir := writeCatalog(t, `
instrument: "912828YK0": {
	security_id: 42
}
instrument: "38141G104": {
	security_id: 42
}
`)

	result, errs := LoadCatalog(dir, LoadModeCollectAll)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "already used")
	// The first definition survives.
	require.Len(t, result.Instruments, 1)
}

func TestLoadCatalog_FailFastStopsEarly(t *testing.T) {
	dir := writeCatalog(t, `
instrument: "AAA111222": {
	security_id: 0
}
instrument: "BBB333444": {
	security_id: -5
}
`)

	_, errs := LoadCatalog(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)

	_, errs = LoadCatalog(dir, LoadModeCollectAll)
	assert.Len(t, errs, 2)
}

func TestLoadCatalog_DirectoryNotFound(t *testing.T) {
	result, errs := LoadCatalog(filepath.Join(t.TempDir(), "missing"), LoadModeCollectAll)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	loadErr, ok := errs[0].(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadCatalog_NoCUEFiles(t *testing.T) {
	result, errs := LoadCatalog(t.TempDir(), LoadModeCollectAll)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	loadErr, ok := errs[0].(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}

func TestLoadCatalog_EmptyCatalog(t *testing.T) {
	dir := writeCatalog(t, `other: 1`)

	_, errs := LoadCatalog(dir, LoadModeCollectAll)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "no instruments")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("x: 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("not cue"), 0o644))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.cue"), []byte("y: 2"), 0o644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
