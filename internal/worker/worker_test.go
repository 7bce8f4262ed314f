package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/visit-metrics/internal/directory"
	"github.com/cuongbtq/visit-metrics/internal/domain"
	"github.com/cuongbtq/visit-metrics/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu        sync.Mutex
	perimeter map[string]int
	calls     []string
	block     chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, url string) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}

	if url == "panic" {
		panic("decoder exploded")
	}

	p, ok := f.perimeter[url]
	if !ok {
		return 0, &domain.ResolveError{Kind: domain.ResolveErrorStatus, URL: url, StatusCode: 404}
	}
	return p, nil
}

func (f *fakeResolver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakePublisher struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (f *fakePublisher) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	return f.err
}

type panickingDirectory struct{}

func (panickingDirectory) Lookup(storeID string) (domain.StoreRecord, bool) {
	panic("directory corrupted")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	worker    *Worker
	storage   *storage.Storage
	resolver  *fakeResolver
	publisher *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := discardLogger()
	f := &fixture{
		storage: storage.NewStorage(logger),
		resolver: &fakeResolver{perimeter: map[string]int{
			"https://good/img.png":   300,
			"https://good/other.png": 1000,
		}},
		publisher: &fakePublisher{},
	}
	f.worker = NewWorker(&Config{
		Logger:    logger,
		Storage:   f.storage,
		Directory: directory.Builtin(),
		Resolver:  f.resolver,
		Publisher: f.publisher,
	})
	return f
}

// run processes visits synchronously and returns the terminal job
func (f *fixture) run(t *testing.T, visits []domain.Visit) *domain.Job {
	t.Helper()
	ctx := context.Background()
	job, err := f.storage.CreateJob(ctx)
	require.NoError(t, err)

	f.worker.processJob(ctx, job.JobID, visits)

	final, err := f.storage.GetJobByID(ctx, job.JobID)
	require.NoError(t, err)
	require.True(t, final.Status.IsTerminal())
	return final
}

func TestProcessJob_SingleGoodImage(t *testing.T) {
	f := newFixture(t)

	job := f.run(t, []domain.Visit{
		{StoreID: "S00339218", ImageURLs: []string{"https://good/img.png"}},
	})

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Errors)
	require.Len(t, job.Results, 1)
	assert.Equal(t, domain.ResultRecord{
		StoreID:   "S00339218",
		StoreName: "Retail Hub A",
		ImageURL:  "https://good/img.png",
		Perimeter: 300,
	}, job.Results[0])
}

func TestProcessJob_UnknownStoreSkipsImages(t *testing.T) {
	f := newFixture(t)

	job := f.run(t, []domain.Visit{
		{StoreID: "S99999999", ImageURLs: []string{"https://good/img.png", "https://good/other.png"}},
	})

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Empty(t, job.Results)
	require.Len(t, job.Errors, 1)
	assert.Equal(t, "S99999999", job.Errors[0].StoreID)
	assert.Equal(t, "Store not found in Store Master", job.Errors[0].Message())
	assert.ErrorIs(t, job.Errors[0].Err, domain.ErrStoreNotFound)
	assert.Empty(t, f.resolver.Calls(), "no image of an unknown store may be resolved")
}

func TestProcessJob_OneGoodOneBadImage(t *testing.T) {
	f := newFixture(t)

	job := f.run(t, []domain.Visit{
		{StoreID: "S01408764", ImageURLs: []string{"https://good/img.png", "https://unreachable/img.png"}},
	})

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	require.Len(t, job.Results, 1)
	require.Len(t, job.Errors, 1)
	assert.Equal(t, "S01408764", job.Results[0].StoreID)
	assert.Equal(t, "Retail Hub B", job.Results[0].StoreName)
	assert.Equal(t, "S01408764", job.Errors[0].StoreID)
	assert.Equal(t, "Image processing error: Failed to download image. Status: 404", job.Errors[0].Message())
}

func TestProcessJob_OrderAndCounts(t *testing.T) {
	f := newFixture(t)

	visits := []domain.Visit{
		{StoreID: "S00339218", ImageURLs: []string{"https://good/other.png", "https://bad/1.png", "https://good/img.png"}},
		{StoreID: "S99999999", ImageURLs: []string{"https://good/img.png"}},
		{StoreID: "S01408764", ImageURLs: nil},
		{StoreID: "S01408764", ImageURLs: []string{"https://bad/2.png"}},
	}

	job := f.run(t, visits)

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	require.Len(t, job.Results, 2)
	assert.Equal(t, "https://good/other.png", job.Results[0].ImageURL)
	assert.Equal(t, "https://good/img.png", job.Results[1].ImageURL)

	require.Len(t, job.Errors, 3)
	assert.Equal(t, []string{"S00339218", "S99999999", "S01408764"},
		[]string{job.Errors[0].StoreID, job.Errors[1].StoreID, job.Errors[2].StoreID})

	assert.Equal(t, []string{
		"https://good/other.png", "https://bad/1.png", "https://good/img.png", "https://bad/2.png",
	}, f.resolver.Calls(), "images are resolved sequentially in input order")
}

func TestProcessJob_EmptyVisits(t *testing.T) {
	f := newFixture(t)

	job := f.run(t, nil)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Results)
	assert.Empty(t, job.Errors)
}

func TestProcessJob_ResolverPanicBecomesErrorRecord(t *testing.T) {
	f := newFixture(t)

	job := f.run(t, []domain.Visit{
		{StoreID: "S00339218", ImageURLs: []string{"panic", "https://good/img.png"}},
	})

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	require.Len(t, job.Errors, 1)
	assert.True(t, domain.IsResolveKind(job.Errors[0].Err, domain.ResolveErrorInternal))
	assert.Contains(t, job.Errors[0].Message(), "decoder exploded")
	require.Len(t, job.Results, 1, "processing continues after a panicking image")
}

func TestProcessJob_PanicOutsideResolverStillFinalizes(t *testing.T) {
	logger := discardLogger()
	s := storage.NewStorage(logger)
	w := NewWorker(&Config{
		Logger:    logger,
		Storage:   s,
		Directory: panickingDirectory{},
		Resolver:  &fakeResolver{},
	})

	ctx := context.Background()
	job, err := s.CreateJob(ctx)
	require.NoError(t, err)

	w.processJob(ctx, job.JobID, []domain.Visit{{StoreID: "S00339218", ImageURLs: []string{"x"}}})

	final, err := s.GetJobByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	require.Len(t, final.Errors, 1)
	assert.Equal(t, "S00339218", final.Errors[0].StoreID)
	assert.Contains(t, final.Errors[0].Message(), "directory corrupted")
}

func TestDispatch_RunsDetached(t *testing.T) {
	f := newFixture(t)
	f.resolver.block = make(chan struct{})
	ctx := context.Background()

	job, err := f.storage.CreateJob(ctx)
	require.NoError(t, err)

	f.worker.Dispatch(job.JobID, []domain.Visit{
		{StoreID: "S00339218", ImageURLs: []string{"https://good/img.png"}},
	})

	got, err := f.storage.GetJobByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOngoing, got.Status)
	assert.Equal(t, 1, f.worker.InFlight())

	close(f.resolver.block)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.worker.Stop(stopCtx))

	got, err = f.storage.GetJobByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, 0, f.worker.InFlight())
}

func TestDispatch_ConcurrentJobsAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := make([]string, 20)
	for i := range ids {
		job, err := f.storage.CreateJob(ctx)
		require.NoError(t, err)
		ids[i] = job.JobID

		visits := []domain.Visit{{StoreID: "S00339218", ImageURLs: []string{"https://good/img.png"}}}
		if i%2 == 1 {
			visits = []domain.Visit{{StoreID: "S99999999", ImageURLs: []string{"https://good/img.png"}}}
		}
		f.worker.Dispatch(job.JobID, visits)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.worker.Stop(stopCtx))

	for i, id := range ids {
		job, err := f.storage.GetJobByID(ctx, id)
		require.NoError(t, err)
		if i%2 == 1 {
			assert.Equal(t, domain.JobStatusFailed, job.Status)
			assert.Len(t, job.Errors, 1)
			assert.Empty(t, job.Results)
		} else {
			assert.Equal(t, domain.JobStatusCompleted, job.Status)
			assert.Len(t, job.Results, 1)
			assert.Empty(t, job.Errors)
		}
	}
}

func TestStop_Timeout(t *testing.T) {
	f := newFixture(t)
	f.resolver.block = make(chan struct{})
	defer close(f.resolver.block)

	job, err := f.storage.CreateJob(context.Background())
	require.NoError(t, err)
	f.worker.Dispatch(job.JobID, []domain.Visit{{StoreID: "S00339218", ImageURLs: []string{"https://good/img.png"}}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = f.worker.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublishFinalized(t *testing.T) {
	t.Run("publishes once per job", func(t *testing.T) {
		f := newFixture(t)
		job := f.run(t, []domain.Visit{
			{StoreID: "S00339218", ImageURLs: []string{"https://good/img.png"}},
			{StoreID: "S99999999"},
		})

		require.Len(t, f.publisher.bodies, 1)

		var event JobEvent
		require.NoError(t, json.Unmarshal(f.publisher.bodies[0], &event))
		assert.Equal(t, EventJobFinalized, event.Type)
		assert.Equal(t, job.JobID, event.JobID)
		assert.Equal(t, domain.JobStatusFailed, event.Status)
		assert.Equal(t, 1, event.ResultCount)
		assert.Equal(t, 1, event.ErrorCount)
	})

	t.Run("publish failure does not affect job", func(t *testing.T) {
		f := newFixture(t)
		f.publisher.err = errors.New("broker down")

		job := f.run(t, []domain.Visit{{StoreID: "S00339218", ImageURLs: []string{"https://good/img.png"}}})
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
	})

	t.Run("no publisher configured", func(t *testing.T) {
		f := newFixture(t)
		f.worker.publisher = nil

		job := f.run(t, []domain.Visit{{StoreID: "S00339218", ImageURLs: []string{"https://good/img.png"}}})
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
	})
}
