package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Task is one long-running path of the relay.
type Task interface {
	Run(ctx context.Context) error
}

// Orchestrator runs the stream listener and the clip poller side by side under one shutdown
// signal. The paths are independent: one failing or being disabled does not stop the other.
type Orchestrator struct {
	tasks map[string]Task
}

func NewOrchestrator(listener, poller Task) *Orchestrator {
	return &Orchestrator{tasks: map[string]Task{
		"stream_listener": listener,
		"clip_poller":     poller,
	}}
}

// Run blocks until both tasks have returned. SIGINT or SIGTERM, or cancelling ctx, is the
// shutdown signal. The returned error is the first task failure, if any.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A plain Group: a failing task must not cancel the other one.
	var g errgroup.Group
	for name, task := range o.tasks {
		g.Go(func() error {
			if err := task.Run(ctx); err != nil {
				slog.Error("Task failed", "task", name, "error", err)
				return err
			}
			slog.Info("Task finished", "task", name)
			return nil
		})
	}
	return g.Wait()
}
