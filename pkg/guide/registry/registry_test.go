package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	g := &schema.Guide{APIVersion: schema.APIVersionGuide, Meta: schema.GuideMeta{ID: "g1"}}
	require.NoError(t, r.Register(g))

	got, ok := r.LookupGuideTemplate("g1")
	require.True(t, ok)
	assert.Same(t, g, got)

	_, ok = r.LookupGuideTemplate("missing")
	assert.False(t, ok)

	err := r.Register(&schema.Guide{Meta: schema.GuideMeta{ID: "g1"}})
	assert.ErrorContains(t, err, "duplicate guide id")

	assert.Error(t, r.Register(&schema.Guide{}))
}

func TestRegistry_LoadDir(t *testing.T) {
	r := New()
	n, err := r.LoadDir(filepath.Join("testdata", "guides"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"g1", "g1-toml"}, r.IDs())
	assert.Contains(t, r.Path("g1"), "valid.guide.yaml")
}

func TestRegistry_LoadDir_InvalidGuide(t *testing.T) {
	dir := t.TempDir()
	bad := "apiVersion: guide/v1\nguide:\n  id: bad\nsteps:\n  - id: a\n  - id: a\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.guide.yaml"), []byte(bad), 0o644))

	r := New()
	_, err := r.LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step ID")
	assert.False(t, r.Has("bad"))
}

func TestRegistry_LoadDir_Missing(t *testing.T) {
	_, err := New().LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
