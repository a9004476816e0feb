// Package iocp is the goroutine-based realization of the completion-port
// worker pool from spec.md §4.1/§5: a fixed-width pool of workers dequeues
// completed (or pending) I/O tasks and runs a completion callback, with a
// two-level priority queue so a foreground volume's reads drain ahead of
// background ones, and clean, bounded shutdown on context cancellation.
//
// This adapts the shape of original_source/io/io_completion_port.hpp
// (worker loop, priority-aware pending drain, terminate-on-shutdown) to Go:
// GetQueuedCompletionStatus's blocking dequeue becomes a channel receive,
// PostQueuedCompletionStatus becomes a channel send, and the IOCP's
// priority rescan of a pending-task slice becomes a biased select between a
// foreground and a background channel, since a channel receive cannot scan
// and reorder a waiting set the way the original's mutex-guarded slice did.
package iocp

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of work submitted to the pool: Run performs the work (an
// aligned read followed by its completion handling, in volscan's use) and
// should itself respect ctx cancellation for any blocking step it takes.
type Task func(ctx context.Context) error

// Pool is a fixed-width worker pool with two priority levels.
type Pool struct {
	width int
	fg    chan Task
	bg    chan Task
}

// DefaultWidth returns the pool width the teacher's cross-platform
// CPU-count idiom would choose: one worker per logical CPU, falling back to
// runtime.NumCPU if gopsutil's probe fails (e.g. inside a restricted
// container).
func DefaultWidth() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// New creates a pool with the given width (number of concurrent workers).
// width <= 0 selects DefaultWidth().
func New(width int) *Pool {
	if width <= 0 {
		width = DefaultWidth()
	}
	return &Pool{
		width: width,
		fg:    make(chan Task),
		bg:    make(chan Task),
	}
}

// Submit enqueues a task. Foreground tasks (the volume currently being
// interactively queried, in a multi-volume `serve` process) are drained
// ahead of background ones whenever both are ready, mirroring the
// original's per-wakeup priority rescan without needing to scan a slice.
func (p *Pool) Submit(ctx context.Context, t Task, foreground bool) error {
	ch := p.bg
	if foreground {
		ch = p.fg
	}
	select {
	case ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts p.width workers and blocks until ctx is cancelled or a task
// returns an error; either way every worker finishes the task in hand and
// returns, and Run returns the first task error (nil on cancellation). The
// channels are unbuffered, so the pool holds no pending tasks: a task no
// worker has received stays with its blocked Submit call. This matches the
// completion port's synthetic-terminate-packet shutdown (spec.md §5: "An
// Index carries a cancelled atomic flag... Completion-port shutdown posts N
// synthetic terminate packets, one per worker, and waits for all workers to
// exit").
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.width; i++ {
		g.Go(func() error {
			return p.worker(ctx)
		})
	}
	return g.Wait()
}

func (p *Pool) worker(ctx context.Context) error {
	for {
		var t Task
		// Bias towards foreground work: try it non-blockingly first, then
		// fall back to a fair select across both levels and cancellation.
		select {
		case t = <-p.fg:
		default:
			select {
			case t = <-p.fg:
			case t = <-p.bg:
			case <-ctx.Done():
				return nil
			}
		}
		if err := t(ctx); err != nil {
			if ctx.Err() != nil {
				// Cancellation racing a task's own context check is not a
				// worker error (spec.md §7: "ERROR_CANCELLED is not an
				// error").
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
