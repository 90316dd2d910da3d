package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/liuwen-dev/studyforge/internal/ai"
	"github.com/liuwen-dev/studyforge/internal/library"
	"github.com/liuwen-dev/studyforge/internal/media"
	"github.com/liuwen-dev/studyforge/internal/parser"
	"github.com/liuwen-dev/studyforge/internal/task"
)

// Config controls queue and worker sizing.
type Config struct {
	WorkerCount  int
	MaxQueueSize int
}

// Orchestrator owns the job queue, the worker pool and the task store.
type Orchestrator struct {
	tasks       *task.Store
	queue       chan *Job
	downloader  *media.Downloader
	extractor   *media.Extractor
	transcriber ai.Transcriber
	parsers     *parser.Registry
	lib         *library.Library
	log         *slog.Logger
	cfg         Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Start must be called before
// submitted jobs are processed.
func NewOrchestrator(
	cfg Config,
	tasks *task.Store,
	downloader *media.Downloader,
	extractor *media.Extractor,
	transcriber ai.Transcriber,
	parsers *parser.Registry,
	lib *library.Library,
	log *slog.Logger,
) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 16
	}
	return &Orchestrator{
		tasks:       tasks,
		queue:       make(chan *Job, cfg.MaxQueueSize),
		downloader:  downloader,
		extractor:   extractor,
		transcriber: transcriber,
		parsers:     parsers,
		lib:         lib,
		log:         log,
		cfg:         cfg,
	}
}

// Start launches worker goroutines and the task store cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

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
				o.tasks.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// CanTranscribe reports whether a transcription collaborator is wired.
// URL ingestion is unavailable without one.
func (o *Orchestrator) CanTranscribe() bool {
	return o.transcriber != nil
}

// Submit registers the task and queues the job. A full queue fails the
// task immediately instead of blocking the request. Invalid jobs are
// rejected before a task is created.
func (o *Orchestrator) Submit(job *Job) error {
	if job.Source == SourceURL && o.transcriber == nil {
		return fmt.Errorf("video ingestion requires a transcription service")
	}
	o.tasks.Create(job.TaskID, job.DocID)
	select {
	case o.queue <- job:
		return nil
	default:
		o.tasks.Fail(job.TaskID, "processing queue is full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// Task returns the current snapshot of a task.
func (o *Orchestrator) Task(taskID string) task.Task {
	return o.tasks.Get(taskID)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
