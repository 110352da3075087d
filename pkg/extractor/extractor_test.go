package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/pkg/config"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
)

const postsPage = `<html><head><link rel="icon" href="/favicon.ico"></head><body>
<img src="https://static.example.com/favicon.ico" alt="icon">
<div class="x1lliihq x1n2onr6 xh8yej3">
  <img src="https://cdn.example.com/u1.jpg?sig=a" alt="alt one">
  <span class="_aacl _aaco _aacu _aacx _aad7 _aade">  First <b>caption</b> </span>
</div>
<div class="x1lliihq x1n2onr6 xh8yej3 extra">
  <img src="https://cdn.example.com/u2.jpg" alt="alt two">
</div>
<div class="x1lliihq x1n2onr6 xh8yej3">
  <img src="https://cdn.example.com/u3.jpg">
  <span class="_aade _aad7 _aacx _aacu _aaco _aacl">Third caption</span>
</div>
<img src="" alt="empty">
<img alt="missing">
</body></html>`

func newTestExtractor() *Extractor {
	return New(DefaultRules(), logger.NewNopLogger())
}

func TestExtractPosts(t *testing.T) {
	got := newTestExtractor().Extract(postsPage, models.CategoryPost)

	require.Len(t, got, 3)
	assert.Equal(t, models.Candidate{
		Category:    models.CategoryPost,
		MediaURL:    "https://cdn.example.com/u1.jpg?sig=a",
		Description: "First caption",
	}, got[0])
	// No caption in the second container keeps the alt text.
	assert.Equal(t, "alt two", got[1].Description)
	assert.Equal(t, "Third caption", got[2].Description)
	for _, c := range got {
		assert.False(t, c.IsVideo)
	}
}

func TestExtractReelsPrefersVideo(t *testing.T) {
	page := `<body>
<img src="https://cdn.example.com/preview.jpg">
<video src="https://cdn.example.com/r1.mp4"></video>
<video></video>
<video src="https://cdn.example.com/r2.mp4"></video>
<h1 class="_ap3a _aaco _aacu _aacx _aad7 _aade">Reel one</h1>
</body>`

	got := newTestExtractor().Extract(page, models.CategoryReel)

	require.Len(t, got, 2)
	assert.Equal(t, "https://cdn.example.com/r1.mp4", got[0].MediaURL)
	assert.Equal(t, "Reel one", got[0].Description)
	assert.Equal(t, "", got[1].Description)
	for _, c := range got {
		assert.True(t, c.IsVideo)
		assert.Equal(t, models.CategoryReel, c.Category)
	}
}

func TestExtractReelsFallsBackToImages(t *testing.T) {
	page := `<body>
<img src="https://cdn.example.com/p1.jpg" alt="first preview">
<img src="https://cdn.example.com/p2.webp" alt="second preview">
<h1 class="_ap3a _aaco _aacu _aacx _aad7 _aade">Title 1</h1>
<h1 class="_ap3a _aaco _aacu _aacx _aad7 _aade">Title 2</h1>
<h1 class="_ap3a _aaco _aacu _aacx _aad7 _aade">Title 3</h1>
</body>`

	got := newTestExtractor().Extract(page, models.CategoryReel)

	require.Len(t, got, 2)
	assert.Equal(t, "Title 1", got[0].Description)
	assert.Equal(t, "Title 2", got[1].Description)
	assert.True(t, got[0].IsVideo)
}

func TestExtractEmpty(t *testing.T) {
	e := newTestExtractor()

	for _, page := range []string{"", "<html><body><p>nothing here</p></body></html>", "<<<not html"} {
		got := e.Extract(page, models.CategoryPost)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestExtractUnknownCategory(t *testing.T) {
	tl := logger.NewTestLogger()
	e := New(DefaultRules(), tl)

	got := e.Extract(postsPage, models.Category("story"))
	assert.Empty(t, got)
	assert.True(t, tl.HasMessage("WARN", "Unknown category"))
}

func TestExtractDeterministic(t *testing.T) {
	e := newTestExtractor()
	assert.Equal(t, e.Extract(postsPage, models.CategoryPost), e.Extract(postsPage, models.CategoryPost))
}

func TestRulesFromConfig(t *testing.T) {
	rules := RulesFromConfig(config.ExtractorConfig{
		CaptionClass: "caption",
		IconSuffixes: []string{".svg"},
	})
	assert.Equal(t, "caption", rules.CaptionClass)
	assert.Equal(t, DefaultRules().PostContainerClass, rules.PostContainerClass)

	page := `<body><img src="/logo.svg"><img src="/a.ico"><div class="x1lliihq x1n2onr6 xh8yej3"><span class="caption">custom</span></div></body>`
	got := New(rules, nil).Extract(page, models.CategoryPost)
	require.Len(t, got, 1)
	assert.Equal(t, "/a.ico", got[0].MediaURL)
	assert.Equal(t, "custom", got[0].Description)
}
