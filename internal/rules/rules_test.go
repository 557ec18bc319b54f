package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
default:
  feed_item:
    content: ".body||."
    image: "img@src"
rssapp:
  feed_item:
    content: "div.text"
`), 0o644))
	r, err := Load(p)
	require.NoError(t, err)
	require.Len(t, r.Presets, 2)
	assert.Equal(t, ".body||.", r.Presets["default"].FeedItem.Content)
	assert.Equal(t, "div.text", r.Presets["rssapp"].FeedItem.Content)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetPreset(t *testing.T) {
	r := &Rules{Presets: map[string]Preset{
		"Default": {FeedItem: &FeedItem{Content: ".d"}},
		"rssapp":  {FeedItem: &FeedItem{Content: ".r"}},
	}}
	p, ok := r.GetPreset("")
	require.True(t, ok)
	assert.Equal(t, ".d", p.FeedItem.Content)

	p, ok = r.GetPreset("RSSAPP")
	require.True(t, ok)
	assert.Equal(t, ".r", p.FeedItem.Content)

	p, ok = r.GetPreset("unknown")
	require.True(t, ok)
	assert.Equal(t, ".d", p.FeedItem.Content)

	var nilRules *Rules
	_, ok = nilRules.GetPreset("x")
	assert.False(t, ok)
}

func TestGetPreset_FallbackIsStable(t *testing.T) {
	r := &Rules{Presets: map[string]Preset{
		"zapier":    {FeedItem: &FeedItem{Content: ".z"}},
		"fetchrss":  {FeedItem: &FeedItem{Content: ".f"}},
		"rssapp":    {FeedItem: &FeedItem{Content: ".r"}},
		"politepol": {FeedItem: &FeedItem{Content: ".p"}},
	}}
	for i := 0; i < 50; i++ {
		p, ok := r.GetPreset("unknown")
		require.True(t, ok)
		require.Equal(t, ".f", p.FeedItem.Content)
	}

	p, ok := r.GetPreset("")
	require.True(t, ok)
	assert.Equal(t, ".f", p.FeedItem.Content)
}

func TestGetPreset_CaseCollisionIsStable(t *testing.T) {
	r := &Rules{Presets: map[string]Preset{
		"RSSApp": {FeedItem: &FeedItem{Content: ".upper"}},
		"rssApp": {FeedItem: &FeedItem{Content: ".lower"}},
	}}
	for i := 0; i < 50; i++ {
		p, ok := r.GetPreset("rssapp")
		require.True(t, ok)
		require.Equal(t, ".upper", p.FeedItem.Content)
	}
}
