// Package worker runs batch jobs across a fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/cwygoda/sts/internal/container"
	"github.com/cwygoda/sts/internal/domain"
	"github.com/cwygoda/sts/internal/logger"
)

// DefaultTimeout bounds how long Run waits for the pool to drain.
const DefaultTimeout = 24 * time.Hour

// Progress receives the run after every finished job.
type Progress interface {
	Update(run *domain.BatchRun)
	Finish(run *domain.BatchRun)
	Stop()
}

// Options are the per-run parameters of an Engine.
type Options struct {
	Layout       domain.Layout
	Password     string
	MaxDimension int
	Workers      int
	Timeout      time.Duration
}

// Engine converts images to containers and back.
type Engine struct {
	archiver domain.ArchiveTool
	thumbs   domain.ThumbnailGenerator
	codec    *container.Codec
	opts     Options
	progress Progress
}

// NewEngine creates an engine. progress may be nil.
func NewEngine(archiver domain.ArchiveTool, thumbs domain.ThumbnailGenerator, opts Options, progress Progress) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if progress == nil {
		progress = nopProgress{}
	}
	return &Engine{
		archiver: archiver,
		thumbs:   thumbs,
		codec:    container.NewCodec(archiver),
		opts:     opts,
		progress: progress,
	}
}

// Run processes one job per relative path in dir and blocks until every job
// is terminal or the timeout elapses. On timeout the run is marked
// incomplete and domain.ErrIncomplete is returned; jobs still in flight keep
// running in the background.
func (e *Engine) Run(ctx context.Context, dir domain.Direction, paths []string) (*domain.BatchRun, error) {
	run := domain.NewBatchRun(dir, len(paths))
	logger.Info.Printf("run %s: %s %d files with %d workers", run.ID, dir, len(paths), e.opts.Workers)

	jobs := make(chan *domain.Job, len(paths))
	for _, p := range paths {
		jobs <- domain.NewJob(p, dir)
	}
	close(jobs)

	done := make(chan struct{})
	go func() {
		e.drain(ctx, jobs, run)
		close(done)
	}()

	timer := time.NewTimer(e.opts.Timeout)
	defer timer.Stop()

	select {
	case <-done:
		run.Finish(false)
		e.progress.Finish(run)
		return run, nil
	case <-timer.C:
		run.Finish(true)
		e.progress.Stop()
		snap := run.Snapshot()
		logger.Warn.Printf("run %s: gave up after %s with %d/%d jobs done", run.ID, e.opts.Timeout, snap.Done(), snap.Total)
		return run, domain.ErrIncomplete
	}
}

func (e *Engine) drain(ctx context.Context, jobs <-chan *domain.Job, run *domain.BatchRun) {
	var wg sync.WaitGroup
	for id := range e.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				e.process(ctx, id, job, run)
			}
		}()
	}
	wg.Wait()
}

func (e *Engine) process(ctx context.Context, id int, job *domain.Job, run *domain.BatchRun) {
	path := logger.SanitizeForLog(job.Path)
	if err := job.Start(); err != nil {
		logger.Error.Printf("worker %d: %v", id, err)
		return
	}
	logger.Debug.Printf("worker %d: %s %s", id, job.Direction, path)

	var flags domain.ErrorFlags
	switch job.Direction {
	case domain.Encrypt:
		flags = e.encrypt(ctx, job.Path)
	case domain.Decrypt:
		flags = e.decrypt(ctx, job.Path)
	}

	if err := job.Finish(flags); err != nil {
		logger.Error.Printf("worker %d: %v", id, err)
		return
	}
	run.Record(job)
	e.progress.Update(run)
	logger.Debug.Printf("worker %d: %s %s finished [%s]", id, job.Direction, path, flags)
}

func (e *Engine) encrypt(ctx context.Context, rel string) domain.ErrorFlags {
	l := e.opts.Layout
	var flags domain.ErrorFlags

	if err := os.MkdirAll(l.TargetDirFor(rel), 0755); err != nil {
		stageFailed("prepare", rel, err)
	}

	archive := l.ArchiveTemp(rel)
	removeStale(archive)
	if err := e.archiver.Compress(ctx, l.Source(rel), archive, e.opts.Password); err != nil {
		flags = flags.Accumulate(domain.ArchiveStageFailed)
		stageFailed("compress", rel, err)
		removeStale(archive)
	}

	thumb := l.ThumbnailTemp(rel)
	if err := e.thumbs.Resize(ctx, l.Source(rel), thumb, e.opts.MaxDimension); err != nil {
		flags = flags.Accumulate(domain.ThumbnailStageFailed)
		stageFailed("thumbnail", rel, err)
		removeStale(thumb)
	}

	dest := l.Container(rel)
	if err := e.codec.Merge(thumb, archive, dest); err != nil {
		flags = flags.Accumulate(domain.MergeStageFailed)
		stageFailed("merge", rel, err)
		removeStale(dest)
	}
	return flags
}

func (e *Engine) decrypt(ctx context.Context, rel string) domain.ErrorFlags {
	l := e.opts.Layout
	out := l.TargetDirFor(rel)
	if err := os.MkdirAll(out, 0755); err != nil {
		stageFailed("prepare", rel, err)
	}
	if err := e.codec.Extract(ctx, l.Source(rel), out, e.opts.Password); err != nil {
		stageFailed("extract", rel, err)
		return domain.ExtractStageFailed
	}
	return 0
}

// tailer is implemented by errors that carry captured tool output.
type tailer interface {
	Tail(n int) string
}

func stageFailed(stage, rel string, err error) {
	path := logger.SanitizeForLog(rel)
	var t tailer
	if errors.As(err, &t) {
		if out := t.Tail(3); out != "" {
			logger.Warn.Printf("%s %s: %v: %s", stage, path, err, logger.SanitizeForLog(out))
			return
		}
	}
	logger.Warn.Printf("%s %s: %v", stage, path, err)
}

func removeStale(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn.Printf("remove %s: %v", logger.SanitizeForLog(path), err)
	}
}

type nopProgress struct{}

func (nopProgress) Update(*domain.BatchRun) {}
func (nopProgress) Finish(*domain.BatchRun) {}
func (nopProgress) Stop() {}
