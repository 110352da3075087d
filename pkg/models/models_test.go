package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	igerrors "igarchive/pkg/errors"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Reel ")
	require.NoError(t, err)
	assert.Equal(t, CategoryReel, c)

	_, err = ParseCategory("story")
	assert.True(t, errors.Is(err, igerrors.ErrUnknownCategory))
}

func TestHasLocalMedia(t *testing.T) {
	empty := ""
	path := "instagram/post_1_abcdef12.jpg"

	assert.False(t, ContentRecord{}.HasLocalMedia())
	assert.False(t, ContentRecord{LocalMediaPath: &empty}.HasLocalMedia())
	assert.True(t, ContentRecord{LocalMediaPath: &path}.HasLocalMedia())
}

func TestRunOutcomeMessage(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	o := RunOutcome{Added: 3, Skipped: 1, StartedAt: start, FinishedAt: start.Add(2 * time.Second)}

	assert.True(t, o.Succeeded())
	assert.Equal(t, "Added 3 new items, skipped 1 duplicates", o.Message())
	assert.Equal(t, 2*time.Second, o.Duration())

	o.Failures = []string{"reel: open store: disk full"}
	assert.False(t, o.Succeeded())
	assert.Contains(t, o.Message(), "failures: reel: open store")
}
