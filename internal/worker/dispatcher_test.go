package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/metrics"
	"backoffice/internal/models"
	"backoffice/internal/services"
	"backoffice/internal/tenant"
)

type call struct {
	importID string
	orgID    string
	actorID  string
}

// fakeImporter records calls and answers with importFn.
type fakeImporter struct {
	mu       sync.Mutex
	imported []call
	failed   map[string]string
	importFn func(ctx context.Context, importID string) (*services.ImportResult, error)
}

func newFakeImporter(fn func(ctx context.Context, importID string) (*services.ImportResult, error)) *fakeImporter {
	return &fakeImporter{failed: make(map[string]string), importFn: fn}
}

func (f *fakeImporter) ImportFromFile(ctx context.Context, importID string, _ services.ImportOptions) (*services.ImportResult, error) {
	orgID, _ := tenant.OrgID(ctx)
	f.mu.Lock()
	f.imported = append(f.imported, call{importID: importID, orgID: orgID, actorID: tenant.Actor(ctx)})
	f.mu.Unlock()
	if f.importFn == nil {
		return &services.ImportResult{ImportID: importID, Status: models.ImportStatusSuccess}, nil
	}
	return f.importFn(ctx, importID)
}

func (f *fakeImporter) MarkFailed(_ context.Context, importID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[importID] = message
	return nil
}

func (f *fakeImporter) calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.imported...)
}

func (f *fakeImporter) failure(importID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.failed[importID]
	return msg, ok
}

func stop(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherRunsJobsInTenantScope(t *testing.T) {
	importer := newFakeImporter(nil)
	d := NewDispatcher(importer, nil, 2, 8)
	d.Start()

	require.NoError(t, d.Submit(Job{OrgID: "org-a", ActorID: "user-1", ImportID: "imp-1"}))
	require.NoError(t, d.Submit(Job{OrgID: "org-b", ImportID: "imp-2"}))
	stop(t, d)

	calls := importer.calls()
	require.Len(t, calls, 2)
	byImport := map[string]call{}
	for _, c := range calls {
		byImport[c.importID] = c
	}
	assert.Equal(t, call{importID: "imp-1", orgID: "org-a", actorID: "user-1"}, byImport["imp-1"])
	assert.Equal(t, "org-b", byImport["imp-2"].orgID)
}

func TestDispatcherSubmit(t *testing.T) {
	t.Run("requires_organization", func(t *testing.T) {
		d := NewDispatcher(newFakeImporter(nil), nil, 1, 1)
		err := d.Submit(Job{ImportID: "imp-1"})
		assert.ErrorIs(t, err, apperrors.ErrMissingTenantContext)
	})

	t.Run("queue_full", func(t *testing.T) {
		m := metrics.New()
		d := NewDispatcher(newFakeImporter(nil), m, 1, 1)

		require.NoError(t, d.Submit(Job{OrgID: "org", ImportID: "imp-1"}))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkerQueueDepth))

		err := d.Submit(Job{OrgID: "org", ImportID: "imp-2"})
		assert.ErrorIs(t, err, apperrors.ErrQueueFull)
	})

	t.Run("after_stop", func(t *testing.T) {
		d := NewDispatcher(newFakeImporter(nil), nil, 1, 1)
		d.Start()
		stop(t, d)

		err := d.Submit(Job{OrgID: "org", ImportID: "imp-1"})
		assert.ErrorIs(t, err, apperrors.ErrQueueFull)
	})
}

func TestDispatcherFailures(t *testing.T) {
	importer := newFakeImporter(func(ctx context.Context, importID string) (*services.ImportResult, error) {
		switch importID {
		case "panics":
			panic("boom")
		case "errors":
			return nil, errors.New("database gone")
		case "done":
			return nil, apperrors.ErrImportAlreadyProcessed
		}
		return &services.ImportResult{ImportID: importID, Status: models.ImportStatusSuccess}, nil
	})
	d := NewDispatcher(importer, nil, 1, 8)
	d.Start()

	for _, id := range []string{"panics", "errors", "done", "ok"} {
		require.NoError(t, d.Submit(Job{OrgID: "org", ImportID: id}))
	}
	stop(t, d)

	msg, ok := importer.failure("panics")
	assert.True(t, ok)
	assert.Equal(t, "System error: boom", msg)

	msg, ok = importer.failure("errors")
	assert.True(t, ok)
	assert.Equal(t, "database gone", msg)

	_, ok = importer.failure("done")
	assert.False(t, ok, "terminal imports are left alone")

	_, ok = importer.failure("ok")
	assert.False(t, ok)
	assert.Len(t, importer.calls(), 4, "a panicking job must not stop the worker")
}

func TestDispatcherStopDrainsQueue(t *testing.T) {
	release := make(chan struct{})
	importer := newFakeImporter(func(ctx context.Context, importID string) (*services.ImportResult, error) {
		<-release
		return &services.ImportResult{ImportID: importID, Status: models.ImportStatusSuccess}, nil
	})
	d := NewDispatcher(importer, nil, 1, 4)
	d.Start()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.Submit(Job{OrgID: "org", ImportID: id}))
	}
	close(release)
	stop(t, d)

	assert.Len(t, importer.calls(), 3)
}

func TestDispatcherStopTimeoutCancelsRunningImports(t *testing.T) {
	importer := newFakeImporter(func(ctx context.Context, importID string) (*services.ImportResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	d := NewDispatcher(importer, nil, 1, 1)
	d.Start()
	require.NoError(t, d.Submit(Job{OrgID: "org", ImportID: "slow"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := importer.failure("slow")
	assert.True(t, ok, "cancelled import is marked failed")
}
