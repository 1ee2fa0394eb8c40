package core

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ResourceResult is the terminal state of one resource: Err is set when it
// stopped while fetching, parsing or validating, Report otherwise.
type ResourceResult struct {
	Resource string
	Report   *Report
	Err      error
}

// Task processes one resource in its own goroutine.
type Task struct {
	Resource string

	cancel context.CancelFunc
	done   chan struct{}
	result ResourceResult
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task reaches a terminal state.
func (t *Task) Wait() ResourceResult {
	<-t.done
	return t.result
}

// Cancel aborts a task still loading. Dispatch already underway completes.
func (t *Task) Cancel() {
	t.cancel()
}

type RunResult struct {
	// Main is the error of the main config, when it could not be used.
	Main      error
	Resources []string
	Results   []ResourceResult
}

// Applied counts the resources that reached dispatch.
func (r *RunResult) Applied() int {
	count := 0
	for _, result := range r.Results {
		if result.Err == nil {
			count++
		}
	}
	return count
}

type Engine struct {
	loader   *Loader
	pipeline *Pipeline

	main       string
	defaults   []string
	sequential bool
}

type EngineOption func(e *Engine)

// WithMainConfig names the resource listing per-context resources. When it
// cannot be fetched the default list is used instead.
func WithMainConfig(id string) EngineOption {
	return func(e *Engine) {
		e.main = id
	}
}

func WithDefaultResources(ids ...string) EngineOption {
	return func(e *Engine) {
		e.defaults = ids
	}
}

// WithSequential makes resources dispatch one after another in resolved
// order. Loading stays concurrent.
func WithSequential(sequential bool) EngineOption {
	return func(e *Engine) {
		e.sequential = sequential
	}
}

func NewEngine(loader *Loader, pipeline *Pipeline, opts ...EngineOption) *Engine {
	e := &Engine{
		loader:   loader,
		pipeline: pipeline,
		defaults: make([]string, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve lists the resources to apply for c.
func (e *Engine) Resolve(ctx context.Context, c Context) ([]string, error) {
	if e.main == "" {
		return e.defaults, nil
	}
	value, err := e.loader.Load(ctx, e.main)
	if err != nil {
		if errors.Is(err, ErrLoad) {
			zap.L().Debug("main config not available, using defaults", zap.String("main", e.main), zap.Error(err))
			return e.defaults, nil
		}
		return nil, err
	}
	main, err := DecodeMainConfig(value)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Resource = e.main
		}
		return nil, err
	}
	return main.Resolve(c), nil
}

// Apply resolves the resources for c, processes them concurrently against
// doc and waits for every one of them.
func (e *Engine) Apply(ctx context.Context, doc Document, c Context) *RunResult {
	rel := &RunResult{
		Resources: make([]string, 0),
		Results:   make([]ResourceResult, 0),
	}
	ids, err := e.Resolve(ctx, c)
	if err != nil {
		zap.L().Error("failed to resolve configuration resources", zap.String("main", e.main), zap.Error(err))
		rel.Main = err
		return rel
	}
	rel.Resources = ids
	for _, task := range e.Start(ctx, doc, ids) {
		rel.Results = append(rel.Results, task.Wait())
	}
	return rel
}

// Start launches one task per resource. Each task holds the document for its
// whole dispatch phase, so two resources never interleave within a dispatch;
// which one dispatches first depends on which load finishes first, unless the
// engine is sequential.
func (e *Engine) Start(ctx context.Context, doc Document, ids []string) []*Task {
	docLock := &sync.Mutex{}
	tasks := make([]*Task, 0, len(ids))
	var previous *Task
	for _, id := range ids {
		taskCtx, cancel := context.WithCancel(ctx)
		task := &Task{
			Resource: id,
			cancel:   cancel,
			done:     make(chan struct{}),
		}
		var wait <-chan struct{}
		if e.sequential && previous != nil {
			wait = previous.done
		}
		go func() {
			defer close(task.done)
			defer cancel()
			task.result = e.run(taskCtx, doc, docLock, id, wait)
		}()
		tasks = append(tasks, task)
		previous = task
	}
	return tasks
}

func (e *Engine) run(ctx context.Context, doc Document, docLock sync.Locker, id string, wait <-chan struct{}) ResourceResult {
	actions, err := e.prepare(ctx, id)
	if wait != nil {
		<-wait
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		zap.L().Warn("config resource skipped", zap.String("resource", id), zap.Error(err))
		return ResourceResult{Resource: id, Err: err}
	}
	docLock.Lock()
	report := e.pipeline.Dispatch(doc, id, actions)
	docLock.Unlock()
	zap.L().Debug("config resource applied",
		zap.String("resource", id),
		zap.Int("actions", len(actions)),
		zap.Int("applied", report.Applied()))
	return ResourceResult{Resource: id, Report: report}
}

func (e *Engine) prepare(ctx context.Context, id string) ([]*Action, error) {
	value, err := e.loader.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.pipeline.Prepare(id, value)
}
