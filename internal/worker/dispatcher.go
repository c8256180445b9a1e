// Package worker runs portfolio imports in the background on a fixed pool
// of goroutines fed by a bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/services"
	"backoffice/internal/tenant"
)

// Importer is the part of the import service the dispatcher drives.
type Importer interface {
	ImportFromFile(ctx context.Context, importID string, opts services.ImportOptions) (*services.ImportResult, error)
	MarkFailed(ctx context.Context, importID, message string) error
}

// Job is one queued import. It carries the organization as plain data; the
// worker scopes its own context to it.
type Job struct {
	OrgID    string
	ActorID  string
	ImportID string
	Options  services.ImportOptions
}

// Dispatcher owns the import queue and its workers.
type Dispatcher struct {
	importer Importer
	metrics  *metrics.Registry
	workers  int

	queue  chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewDispatcher creates a dispatcher with the given number of workers and
// queue capacity. m may be nil.
func NewDispatcher(importer Importer, m *metrics.Registry, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		importer: importer,
		metrics:  m,
		workers:  workers,
		queue:    make(chan Job, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.loop(i)
	}
	logger.Get().Infow("import dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
}

// Submit queues a job without blocking. It fails with ErrQueueFull when the
// queue is at capacity or the dispatcher is stopping.
func (d *Dispatcher) Submit(job Job) error {
	if job.OrgID == "" {
		return apperrors.ErrMissingTenantContext
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return apperrors.WithMessage(apperrors.ErrQueueFull, "Import queue is shutting down")
	}

	select {
	case d.queue <- job:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		return apperrors.ErrQueueFull
	}
}

// Stop stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, running imports are cancelled and Stop returns ctx's error.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		d.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		logger.Get().Info("import dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) loop(n int) {
	defer d.wg.Done()
	for job := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		d.run(n, job)
	}
}

// run executes one job. A panic is contained to the job and marks the
// import as failed.
func (d *Dispatcher) run(n int, job Job) {
	ctx := tenant.WithActor(tenant.WithOrg(d.ctx, job.OrgID), job.ActorID)
	log := logger.With("worker", n, "organization_id", job.OrgID, "import_id", job.ImportID)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("recovered from panic in import worker",
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			d.markFailed(ctx, job, fmt.Sprintf("System error: %v", r))
		}
	}()

	result, err := d.importer.ImportFromFile(ctx, job.ImportID, job.Options)
	if err != nil {
		if errors.Is(err, apperrors.ErrImportAlreadyProcessed) || errors.Is(err, apperrors.ErrImportNotFound) {
			log.Warnw("import job skipped", "reason", err.Error())
			return
		}
		log.Warnw("import job failed", "error", err, "duration", time.Since(started))
		d.markFailed(ctx, job, err.Error())
		return
	}

	log.Infow("import job finished",
		"status", result.Status,
		"created", result.Created,
		"errors", result.Errors,
		"duration", time.Since(started),
	)
}

// markFailed records a failure even when the dispatcher is shutting down.
func (d *Dispatcher) markFailed(ctx context.Context, job Job, message string) {
	if err := d.importer.MarkFailed(context.WithoutCancel(ctx), job.ImportID, message); err != nil {
		logger.Get().Errorw("failed to mark import as failed", "import_id", job.ImportID, "error", err)
	}
}
