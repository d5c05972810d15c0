package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/parser"
	"github.com/dgallion1/tocindex/internal/report"
	"github.com/dgallion1/tocindex/internal/stats"
	"github.com/dgallion1/tocindex/internal/store"
)

// ResultStore persists finished runs.
type ResultStore interface {
	FindByHash(ctx context.Context, hash string) (string, bool, error)
	Save(ctx context.Context, idx *store.Index) error
}

// Publisher pushes a finished listing to an external system. It is optional.
type Publisher interface {
	PublishDocument(ctx context.Context, s *report.Summary, entries []*doctree.SectionEntry) error
}

// OrchestratorConfig sizes the worker pool.
type OrchestratorConfig struct {
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
	Parser       parser.Options
}

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("pipeline is shutting down")

// Orchestrator manages the document indexing pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	indexer *Indexer
	store   ResultStore
	pub     Publisher
	log     *slog.Logger
	cfg     OrchestratorConfig

	durations *stats.Window

	mu       sync.Mutex // guards stopped and sends on queue
	stopped  bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewOrchestrator creates the pipeline. pub may be nil.
func NewOrchestrator(cfg OrchestratorConfig, ix *Indexer, rs ResultStore, pub Publisher, log *slog.Logger) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		indexer:   ix,
		store:     rs,
		pub:       pub,
		log:       log,
		cfg:       cfg,
		durations: stats.NewWindow(time.Hour),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.indexer, o.store, o.pub, o.log, o.cfg.Parser)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					start := time.Now()
					w.Process(workerCtx, job)
					o.durations.Record(time.Since(start).Milliseconds())
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		o.mu.Lock()
		o.stopped = true
		close(o.queue)
		o.mu.Unlock()
		o.wg.Wait()
	})
}

// Submit queues a new job for processing. It never blocks.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// TrackedJobs returns the number of jobs still held in memory.
func (o *Orchestrator) TrackedJobs() int {
	return o.jobs.Len()
}

// Durations summarises job run times over the last hour, in milliseconds.
func (o *Orchestrator) Durations() stats.Snapshot {
	return o.durations.Snapshot()
}
