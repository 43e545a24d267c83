// Package simulation tracks the tasks a scene must run at each
// synchronisation point. Tasks are registered from anywhere during a frame;
// the set that runs is the one published by the context's last flush.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/objcache/collection"
	"github.com/IvanBrykalov/objcache/registry"
)

// Task is one unit of per-frame work. Implementations must be comparable
// (usually pointers): the same task value is added and removed.
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc adapts a function to Task. Use a pointer to it so it compares by
// identity.
type TaskFunc func(ctx context.Context) error

// Execute calls f.
func (f *TaskFunc) Execute(ctx context.Context) error { return (*f)(ctx) }

// JobDependencies is a handle to the scene-wide task set of one context.
// Every handle keeps the set alive; Release it when done.
type JobDependencies struct {
	tasks *collection.Collection[Task]
	log   *slog.Logger
}

// For returns a handle to the task set of ctx in r.
func For(r *registry.Registry, ctx registry.Context) (*JobDependencies, error) {
	tasks, err := collection.Get[Task](r, ctx)
	if err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	log := slog.Default()
	if l, ok := ctx.(interface{ Logger() *slog.Logger }); ok {
		log = l.Logger()
	}
	return &JobDependencies{tasks: tasks, log: log}, nil
}

// AddTask schedules t to join the set on the next flush.
func (d *JobDependencies) AddTask(t Task) { d.tasks.Add(t) }

// RemoveTask schedules t to leave the set on the next flush.
func (d *JobDependencies) RemoveTask(t Task) { d.tasks.Remove(t) }

// CollectDependencies reports every task of the current set.
func (d *JobDependencies) CollectDependencies(report func(Task)) { d.tasks.GetAll(report) }

// Tasks exposes the underlying collection for change notifications.
func (d *JobDependencies) Tasks() *collection.Collection[Task] { return d.tasks }

// Release drops the handle's reference to the task set.
func (d *JobDependencies) Release() { d.tasks.Release() }

// Execute runs the current set concurrently, at most limit tasks at a time
// (limit <= 0 means no limit), and returns the first error. The context
// passed to tasks is cancelled as soon as one fails.
func (d *JobDependencies) Execute(ctx context.Context, limit int) error {
	tasks := d.tasks.Items()
	if len(tasks) == 0 {
		return nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, t := range tasks {
		g.Go(func() error { return t.Execute(gctx) })
	}
	if err := g.Wait(); err != nil {
		d.log.Error("simulation: task failed", slog.Any("err", err))
		return fmt.Errorf("simulation: %w", err)
	}
	d.log.Debug("simulation: step done", slog.Int("tasks", len(tasks)), slog.Duration("took", time.Since(start)))
	return nil
}

// Flusher is a context that can publish pending registrations.
type Flusher interface {
	Flush()
}

// Step flushes sc, publishing the tasks registered since the previous step,
// then runs them.
func Step(ctx context.Context, sc Flusher, d *JobDependencies, limit int) error {
	sc.Flush()
	return d.Execute(ctx, limit)
}
