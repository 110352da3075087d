package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/pkg/accounts"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/mediacache"
	"igarchive/pkg/models"
)

// fakeMedia writes a small file for every resolve unless fail is set.
type fakeMedia struct {
	mu    sync.Mutex
	calls []mediacache.Request
	fail  bool
}

func (f *fakeMedia) Resolve(ctx context.Context, req mediacache.Request) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.fail {
		return "", false
	}
	p := mediacache.Path(req)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", false
	}
	if err := os.WriteFile(p, []byte{0xFF, 0xD8, 0xFF}, 0644); err != nil {
		return "", false
	}
	return p, true
}

func (f *fakeMedia) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newPartition(t *testing.T, id string) accounts.Partition {
	dir := t.TempDir()
	return accounts.Partition{
		ID:        id,
		StorePath: filepath.Join(dir, id+".db"),
		MediaDir:  filepath.Join(dir, id+"_media"),
	}
}

func openStore(t *testing.T, p accounts.Partition) *Store {
	t.Helper()
	s, err := Open(p.StorePath, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func post(url string) models.Candidate {
	return models.Candidate{Category: models.CategoryPost, MediaURL: url, Description: "d " + url}
}

func TestOpenRunsMigrationsOnce(t *testing.T) {
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	versions, err := s.AppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)
	require.NoError(t, s.Close())

	s2, err := Open(p.StorePath, nil)
	require.NoError(t, err)
	defer s2.Close()
	versions, err = s2.AppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)
}

func TestUpsertAddThenDuplicate(t *testing.T) {
	ctx := context.Background()
	p := newPartition(t, "acct1")
	s := openStore(t, p)
	media := &fakeMedia{}

	first, err := s.Upsert(ctx, p, post("https://cdn.example.com/u1.jpg"), media)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdded, first.Outcome)
	assert.NotZero(t, first.RecordID)

	for i := 0; i < 3; i++ {
		res, err := s.Upsert(ctx, p, post("https://cdn.example.com/u1.jpg"), media)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSkippedDuplicate, res.Outcome)
		assert.Equal(t, first.RecordID, res.RecordID)
		assert.False(t, res.Backfilled)
	}

	n, err := s.Count(ctx, p.ID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	// Only the insert touched the media cache; the file still exists.
	assert.Equal(t, 1, media.count())

	rec, err := s.FindByURL(ctx, p.ID, "https://cdn.example.com/u1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "d https://cdn.example.com/u1.jpg", rec.Description)
	assert.Equal(t, "acct1", rec.Account)
	require.True(t, rec.HasLocalMedia())
	assert.True(t, mediacache.Exists(*rec.LocalMediaPath))
}

func TestUpsertWithoutMediaStillInserts(t *testing.T) {
	ctx := context.Background()
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	res, err := s.Upsert(ctx, p, post("https://cdn.example.com/broken.jpg"), &fakeMedia{fail: true})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdded, res.Outcome)

	rec, err := s.FindByURL(ctx, p.ID, "https://cdn.example.com/broken.jpg")
	require.NoError(t, err)
	assert.Nil(t, rec.LocalMediaPath)
}

func TestUpsertBackfillsMissingMedia(t *testing.T) {
	ctx := context.Background()
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	// First observation: media fetch fails, row stored without a path.
	_, err := s.Upsert(ctx, p, post("https://cdn.example.com/u1.jpg"), &fakeMedia{fail: true})
	require.NoError(t, err)

	media := &fakeMedia{}
	res, err := s.Upsert(ctx, p, post("https://cdn.example.com/u1.jpg"), media)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkippedDuplicate, res.Outcome)
	assert.True(t, res.Backfilled)

	require.Len(t, media.calls, 1)
	assert.Equal(t, res.RecordID, media.calls[0].RecordID)

	rec, err := s.FindByURL(ctx, p.ID, "https://cdn.example.com/u1.jpg")
	require.NoError(t, err)
	require.True(t, rec.HasLocalMedia())

	// Delete the file externally; the next duplicate repairs it again.
	require.NoError(t, os.Remove(*rec.LocalMediaPath))
	res, err = s.Upsert(ctx, p, post("https://cdn.example.com/u1.jpg"), media)
	require.NoError(t, err)
	assert.True(t, res.Backfilled)
	assert.Equal(t, 2, media.count())

	n, err := s.Count(ctx, p.ID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertBackfillUsesStoredCategory(t *testing.T) {
	ctx := context.Background()
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	_, err := s.Upsert(ctx, p, post("https://cdn.example.com/x.jpg"), &fakeMedia{fail: true})
	require.NoError(t, err)

	media := &fakeMedia{}
	_, err = s.Upsert(ctx, p, models.Candidate{Category: models.CategoryReel, MediaURL: "https://cdn.example.com/x.jpg"}, media)
	require.NoError(t, err)
	require.Len(t, media.calls, 1)
	assert.Equal(t, models.CategoryPost, media.calls[0].Category)
}

func TestUpsertRejectsInvalidCandidates(t *testing.T) {
	ctx := context.Background()
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	_, err := s.Upsert(ctx, p, models.Candidate{Category: models.CategoryPost}, &fakeMedia{})
	assert.True(t, errors.Is(err, errs.ErrEmptyMediaURL))

	_, err = s.Upsert(ctx, p, models.Candidate{Category: "story", MediaURL: "u"}, &fakeMedia{})
	assert.True(t, errors.Is(err, errs.ErrUnknownCategory))
}

func TestPartitionIsolation(t *testing.T) {
	ctx := context.Background()
	a := newPartition(t, "a")
	b := newPartition(t, "b")
	// Point both partitions at one file to prove the account filter alone
	// keeps them apart.
	b.StorePath = a.StorePath
	s := openStore(t, a)
	media := &fakeMedia{}

	_, err := s.Upsert(ctx, a, post("https://cdn.example.com/shared.jpg"), media)
	require.NoError(t, err)

	_, err = s.FindByURL(ctx, b.ID, "https://cdn.example.com/shared.jpg")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	n, err := s.Count(ctx, b.ID, Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	recs, err := s.List(ctx, b.ID, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, ok, err := s.Latest(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// The same URL under b is a fresh add, not a duplicate of a's row.
	res, err := s.Upsert(ctx, b, post("https://cdn.example.com/shared.jpg"), media)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdded, res.Outcome)
}

func TestStatsListAndLatest(t *testing.T) {
	ctx := context.Background()
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	ok := &fakeMedia{}
	fail := &fakeMedia{fail: true}
	_, err := s.Upsert(ctx, p, post("https://cdn.example.com/p1.jpg"), ok)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, p, post("https://cdn.example.com/p2.jpg"), fail)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, p, models.Candidate{Category: models.CategoryReel, MediaURL: "https://cdn.example.com/r1.mp4", IsVideo: true}, ok)
	require.NoError(t, err)

	st, err := s.Stats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Posts)
	assert.Equal(t, 1, st.Reels)
	assert.Equal(t, 2, st.LocalMedia)
	require.NotNil(t, st.LastUpdate)
	assert.Equal(t, base.Add(3*time.Minute), *st.LastUpdate)

	without := false
	n, err := s.Count(ctx, p.ID, Filter{HasLocalMedia: &without})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := s.List(ctx, p.ID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "https://cdn.example.com/r1.mp4", recs[0].MediaURL)
	assert.True(t, recs[0].IsVideo)
	assert.Equal(t, base.Add(3*time.Minute), recs[0].CapturedAt)

	page, err := s.List(ctx, p.ID, ListOptions{Category: models.CategoryPost, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "https://cdn.example.com/p1.jpg", page[0].MediaURL)

	rest, err := s.List(ctx, p.ID, ListOptions{Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "https://cdn.example.com/p1.jpg", rest[0].MediaURL)
}

func TestListSince(t *testing.T) {
	ctx := context.Background()
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	media := &fakeMedia{}
	for _, u := range []string{"p1", "p2", "p3"} {
		_, err := s.Upsert(ctx, p, post("https://cdn.example.com/"+u+".jpg"), media)
		require.NoError(t, err)
	}

	since := base.Add(time.Minute)
	recs, err := s.List(ctx, p.ID, ListOptions{Since: since})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "https://cdn.example.com/p3.jpg", recs[0].MediaURL)
	assert.Equal(t, "https://cdn.example.com/p2.jpg", recs[1].MediaURL)

	n, err := s.Count(ctx, p.ID, Filter{Since: since, Category: models.CategoryPost})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	none, err := s.List(ctx, p.ID, ListOptions{Since: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLatestEmpty(t *testing.T) {
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	_, ok, err := s.Latest(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := s.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, st.LastUpdate)
}

func TestSetLocalMediaPathUnknownRecord(t *testing.T) {
	p := newPartition(t, "acct1")
	s := openStore(t, p)

	err := s.SetLocalMediaPath(context.Background(), p.ID, 999, "/tmp/x.jpg")
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
}

func TestSetSharesHandles(t *testing.T) {
	a := newPartition(t, "a")
	set := NewSet(nil)
	defer set.Close()

	s1, err := set.Open(a)
	require.NoError(t, err)
	s2, err := set.Open(a)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	b := newPartition(t, "b")
	s3, err := set.Open(b)
	require.NoError(t, err)
	assert.NotSame(t, s1, s3)

	require.NoError(t, set.Close())
	s4, err := set.Open(a)
	require.NoError(t, err)
	assert.NotSame(t, s1, s4)
}

func TestOpenFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := Open(filepath.Join(blocker, "sub", "x.db"), nil)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeStorage, errs.TypeOf(err))
}
