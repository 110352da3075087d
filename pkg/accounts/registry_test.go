package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/pkg/config"
	"igarchive/pkg/logger"
)

func testConfig(base string) config.AccountsConfig {
	return config.AccountsConfig{
		BaseDir: base,
		Default: "default",
		List: []config.AccountConfig{
			{ID: "brand", DisplayName: "Brand", Store: "brand/brand.db", MediaDir: "brand/media"},
			{ID: "default", Store: "instagram_data.db", MediaDir: "instagram"},
		},
	}
}

func TestResolveKnown(t *testing.T) {
	base := t.TempDir()
	r := NewRegistry(testConfig(base), logger.NewNopLogger())

	p := r.Resolve("brand")
	assert.Equal(t, "brand", p.ID)
	assert.Equal(t, "Brand", p.DisplayName)
	assert.Equal(t, filepath.Join(base, "brand", "brand.db"), p.StorePath)
	assert.Equal(t, filepath.Join(base, "brand", "media"), p.MediaDir)

	info, err := os.Stat(p.MediaDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveUnknownFallsBackToDefault(t *testing.T) {
	base := t.TempDir()
	tl := logger.NewTestLogger()
	r := NewRegistry(testConfig(base), tl)

	p := r.Resolve("unknown_acct")
	assert.Equal(t, "default", p.ID)
	assert.Equal(t, "default", p.DisplayName)
	assert.False(t, r.IsKnown("unknown_acct"))
	assert.True(t, tl.HasMessage("DEBUG", "Unknown account"))

	_, err := os.Stat(filepath.Join(base, "unknown_acct"))
	assert.True(t, os.IsNotExist(err))
}

func TestResolveFallsBackToFirstEntry(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Default = "missing"
	cfg.List = cfg.List[:1]

	r := NewRegistry(cfg, nil)
	assert.Equal(t, "brand", r.Resolve("nobody").ID)
	assert.Equal(t, "brand", r.DefaultID())
}

func TestEmptyListSynthesizesDefault(t *testing.T) {
	base := t.TempDir()
	r := NewRegistry(config.AccountsConfig{BaseDir: base}, nil)

	parts := r.List()
	require.Len(t, parts, 1)
	assert.Equal(t, DefaultID, parts[0].ID)
	assert.Equal(t, filepath.Join(base, "instagram_data.db"), parts[0].StorePath)
	assert.Equal(t, DefaultID, r.Resolve("anything").ID)
}

func TestListPreservesOrder(t *testing.T) {
	r := NewRegistry(testConfig(t.TempDir()), nil)

	parts := r.List()
	require.Len(t, parts, 2)
	assert.Equal(t, "brand", parts[0].ID)
	assert.Equal(t, "default", parts[1].ID)

	parts[0].ID = "mutated"
	assert.Equal(t, "brand", r.List()[0].ID)
}

func TestAbsolutePathsKept(t *testing.T) {
	abs := t.TempDir()
	cfg := config.AccountsConfig{
		BaseDir: "/somewhere/else",
		List: []config.AccountConfig{
			{ID: "a", Store: filepath.Join(abs, "a.db"), MediaDir: filepath.Join(abs, "a_media")},
		},
	}

	p := NewRegistry(cfg, nil).Resolve("a")
	assert.Equal(t, filepath.Join(abs, "a.db"), p.StorePath)
	assert.Equal(t, filepath.Join(abs, "a_media"), p.MediaDir)
}
