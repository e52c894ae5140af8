package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleturbo/teleturbo/accounts"
	"github.com/teleturbo/teleturbo/icon"
)

func newTestService(t *testing.T) *TeleTurboService {
	t.Helper()
	dir := t.TempDir()
	am, err := accounts.NewManager(filepath.Join(dir, "accounts.json"), filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	return NewTeleTurboService(am)
}

func TestSystemInfo(t *testing.T) {
	s := newTestService(t)

	info := s.SystemInfo()
	assert.GreaterOrEqual(t, info["cpu_cores"].(int), 1)
	p := info["parallelism"].(int)
	assert.GreaterOrEqual(t, p, 4)
	assert.LessOrEqual(t, p, 16)
	assert.NotEmpty(t, info["os"])
	assert.NotEmpty(t, info["arch"])
}

func TestGenerateIcon(t *testing.T) {
	s := newTestService(t)
	dir := t.TempDir()

	resp, err := s.GenerateIcon(dir)
	require.NoError(t, err)
	assert.Equal(t, "Icon SVG created", resp.Message)
	assert.Equal(t, len(icon.Document), resp.Bytes)

	data, err := os.ReadFile(resp.Path)
	require.NoError(t, err)
	assert.Equal(t, icon.Document, string(data))
}

func TestGenerateIconFailure(t *testing.T) {
	s := newTestService(t)

	_, err := s.GenerateIcon(filepath.Join(t.TempDir(), "missing", "nested"))
	assert.Error(t, err)
}

func TestDownloadRegistryMisses(t *testing.T) {
	s := newTestService(t)

	_, err := s.GetDownload("unknown")
	assert.Error(t, err)
	assert.Error(t, s.CancelDownload("unknown"))
	assert.Empty(t, s.ListDownloads())
}

func TestRenderDownloadsTableEmpty(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, "no downloads", s.RenderDownloadsTable())
}
