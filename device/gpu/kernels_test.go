package gpu

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/dctdenoise/device"
)

func TestDefaultCatalogDefinesEntries(t *testing.T) {
	require.NoError(t, CheckCatalog(DefaultCatalog()))

	src, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), src)
}

func TestCheckCatalogReportsMissingEntries(t *testing.T) {
	src := strings.Replace(DefaultCatalog(), "fn unsharp_v(", "fn sharpen_v(", 1)
	err := CheckCatalog(src)
	require.ErrorIs(t, err, device.ErrCompile)
	assert.Contains(t, err.Error(), "unsharp_v")
	assert.NotContains(t, err.Error(), "normalize")
}

func TestLoadCatalogFromFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.wgsl")
	require.NoError(t, os.WriteFile(good, []byte(DefaultCatalog()), 0o600))
	src, err := LoadCatalog(good)
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), src)

	bad := filepath.Join(dir, "bad.wgsl")
	require.NoError(t, os.WriteFile(bad, []byte("fn main() {}"), 0o600))
	_, err = LoadCatalog(bad)
	assert.ErrorIs(t, err, device.ErrCompile)

	_, err = LoadCatalog(filepath.Join(dir, "missing.wgsl"))
	assert.ErrorIs(t, err, device.ErrCompile)
}

func TestGroups(t *testing.T) {
	assert.Equal(t, uint32(1), groups(1, 16))
	assert.Equal(t, uint32(1), groups(16, 16))
	assert.Equal(t, uint32(2), groups(17, 16))
	assert.Equal(t, uint32(0), groups(0, 8))
}
