package runner

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/internal/ingest"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/runlog"
)

// blockingIngester holds each run open until release is closed
type blockingIngester struct {
	started chan string
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingIngester() *blockingIngester {
	return &blockingIngester{started: make(chan string, 16), release: make(chan struct{})}
}

func (b *blockingIngester) Run(ctx context.Context, accountID string, src ingest.RawSource, opts ...ingest.RunOption) models.RunOutcome {
	b.calls.Add(1)
	ro := ingest.ResolveOptions(opts...)
	start := time.Now()

	ro.Progress(models.RunProgress{Account: accountID, State: models.StatePersisting, Percent: 40, Message: "Persisting post 2/5", Added: 2})
	b.started <- ro.RunID
	<-b.release

	return models.RunOutcome{
		RunID:      ro.RunID,
		Account:    accountID,
		Partition:  accountID,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Added:      5,
		Skipped:    1,
	}
}

// instantIngester finishes immediately
type instantIngester struct{ added int }

func (i instantIngester) Run(ctx context.Context, accountID string, src ingest.RawSource, opts ...ingest.RunOption) models.RunOutcome {
	ro := ingest.ResolveOptions(opts...)
	return models.RunOutcome{RunID: ro.RunID, Account: accountID, Partition: accountID, StartedAt: time.Now(), FinishedAt: time.Now(), Added: i.added}
}

func emptySource() ingest.RawSource {
	return ingest.NewMemorySource(nil)
}

func TestConcurrentStartIsRejected(t *testing.T) {
	ing := newBlockingIngester()
	r := New(ing)

	runID, err := r.Start("default", emptySource())
	require.NoError(t, err)
	assert.Equal(t, runID, <-ing.started)

	_, err = r.Start("default", emptySource())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRunInProgress)
	assert.Equal(t, errs.ErrorTypeConflict, errs.TypeOf(err))

	close(ing.release)
	r.Wait()

	_, err = r.Start("default", emptySource())
	require.NoError(t, err)
	<-ing.started
	r.Wait()
	assert.Equal(t, int32(2), ing.calls.Load())
}

func TestOnlyOneOfManyConcurrentStartsWins(t *testing.T) {
	ing := newBlockingIngester()
	r := New(ing)

	var wg sync.WaitGroup
	var accepted, rejected atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Start("default", emptySource()); err == nil {
				accepted.Add(1)
			} else if errors.Is(err, errs.ErrRunInProgress) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(49), rejected.Load())

	<-ing.started
	close(ing.release)
	r.Wait()
}

func TestRunnersSharingALockFileRunOneAtATime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive", ".igarchive.lock")

	firstLock, err := LockFile(path)
	require.NoError(t, err)
	secondLock, err := LockFile(path)
	require.NoError(t, err)

	ing := newBlockingIngester()
	first := New(ing, WithLock(firstLock))
	second := New(instantIngester{added: 1}, WithLock(secondLock))

	_, err = first.Start("default", emptySource())
	require.NoError(t, err)
	<-ing.started

	_, err = second.Start("default", emptySource())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRunInProgress)
	assert.False(t, second.Status().Running)

	close(ing.release)
	first.Wait()

	_, err = second.Start("default", emptySource())
	require.NoError(t, err)
	second.Wait()
	assert.Equal(t, 1, second.Status().Added)

	// the lock is released again once the second run finishes
	ing2 := newBlockingIngester()
	close(ing2.release)
	third := New(ing2, WithLock(firstLock))
	_, err = third.Start("default", emptySource())
	require.NoError(t, err)
	third.Wait()
}

type failingLock struct{ unlocks atomic.Int32 }

func (f *failingLock) TryLock() (bool, error) { return false, errors.New("permission denied") }

func (f *failingLock) Unlock() error {
	f.unlocks.Add(1)
	return nil
}

func TestLockErrorRejectsStart(t *testing.T) {
	lock := &failingLock{}
	ing := newBlockingIngester()
	r := New(ing, WithLock(lock))

	_, err := r.Start("default", emptySource())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeStorage, errs.TypeOf(err))
	assert.False(t, errors.Is(err, errs.ErrRunInProgress))
	assert.Equal(t, int32(0), ing.calls.Load())
	assert.Equal(t, int32(0), lock.unlocks.Load())
	assert.False(t, r.Status().Running)
}

func TestStatusTracksRun(t *testing.T) {
	ing := newBlockingIngester()
	r := New(ing)

	idle := r.Status()
	assert.False(t, idle.Running)
	assert.Equal(t, models.StateIdle, idle.State)

	runID, err := r.Start("brand", emptySource())
	require.NoError(t, err)
	<-ing.started

	s := r.Status()
	assert.True(t, s.Running)
	assert.Equal(t, runID, s.RunID)
	assert.Equal(t, "brand", s.Account)
	assert.Equal(t, models.StatePersisting, s.State)
	assert.Equal(t, 40, s.Progress)
	assert.Equal(t, 2, s.Added)
	require.NotNil(t, s.StartedAt)
	assert.Nil(t, s.FinishedAt)

	close(ing.release)
	r.Wait()

	s = r.Status()
	assert.False(t, s.Running)
	assert.Equal(t, models.StateIdle, s.State)
	assert.Equal(t, 100, s.Progress)
	assert.Equal(t, "Added 5 new items, skipped 1 duplicates", s.Message)
	require.NotNil(t, s.FinishedAt)
	require.NotNil(t, s.Last)
	assert.Equal(t, runID, s.Last.RunID)
}

func TestStatusIsACopy(t *testing.T) {
	r := New(instantIngester{added: 1})
	_, err := r.Start("default", emptySource())
	require.NoError(t, err)
	r.Wait()

	s := r.Status()
	s.Last.Added = 99
	*s.FinishedAt = time.Time{}

	again := r.Status()
	assert.Equal(t, 1, again.Last.Added)
	assert.False(t, again.FinishedAt.IsZero())
}

func TestRunsAreJournaled(t *testing.T) {
	path := filepath.Join(t.TempDir(), runlog.FileName)
	j, err := runlog.Open(path, nil)
	require.NoError(t, err)

	var finished []models.RunOutcome
	r := New(instantIngester{added: 3}, WithJournal(j), OnFinish(func(o models.RunOutcome) {
		finished = append(finished, o)
	}))
	runID, err := r.Start("brand", emptySource())
	require.NoError(t, err)
	r.Wait()

	last, ok := j.Last("brand")
	require.True(t, ok)
	assert.Equal(t, runID, last.RunID)
	require.Len(t, finished, 1)
	assert.Equal(t, 3, finished[0].Added)

	// A new runner picks the last outcome up from the journal.
	reopened, err := runlog.Open(path, nil)
	require.NoError(t, err)
	s := New(instantIngester{}, WithJournal(reopened)).Status()
	require.NotNil(t, s.Last)
	assert.Equal(t, runID, s.Last.RunID)
	assert.Equal(t, "Added 3 new items, skipped 0 duplicates", s.Message)
}

func TestProgressObserversAndLogging(t *testing.T) {
	log := logger.NewTestLogger()
	var seen []models.RunProgress
	ing := newBlockingIngester()
	r := New(ing, WithLogger(log), OnProgress(func(p models.RunProgress) { seen = append(seen, p) }))

	_, err := r.Start("brand", emptySource())
	require.NoError(t, err)
	<-ing.started
	close(ing.release)
	r.Wait()

	require.Len(t, seen, 1)
	assert.Equal(t, models.StatePersisting, seen[0].State)
	assert.True(t, log.HasMessage("INFO", "Persisting post 2/5"))
}

func TestShutdownWaitsAndRejects(t *testing.T) {
	ing := newBlockingIngester()
	r := New(ing)

	_, err := r.Start("default", emptySource())
	require.NoError(t, err)
	<-ing.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Shutdown(ctx), context.DeadlineExceeded)

	_, err = r.Start("default", emptySource())
	assert.ErrorIs(t, err, ErrShuttingDown)

	close(ing.release)
	require.NoError(t, r.Shutdown(context.Background()))
	assert.False(t, r.Status().Running)
}
