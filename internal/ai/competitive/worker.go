package competitive

import (
	"context"
	"log"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
)

// Worker drains pending sources in the background.
type Worker struct {
	pipeline *Pipeline
	store    Store
	interval time.Duration
	batch    int
}

// NewWorker builds a worker. Interval defaults to one minute and batch to 10
// when zero.
func NewWorker(pipeline *Pipeline, store Store, interval time.Duration, batch int) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 10
	}
	return &Worker{pipeline: pipeline, store: store, interval: interval, batch: batch}
}

// Run processes pending sources until the context is cancelled. A batch is
// drained immediately on start, then on every tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes one batch of pending sources. Failures are logged and the
// source is left in failed state; the next tick moves on to other sources.
func (w *Worker) drain(ctx context.Context) {
	sources, err := w.store.ListSources(ctx, catalog.SourcePending, w.batch)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("competitive worker: list pending sources: %v", err)
		}
		return
	}
	for _, source := range sources {
		if ctx.Err() != nil {
			return
		}
		if err := w.pipeline.Process(ctx, source); err != nil {
			log.Printf("competitive worker: source %s: %v", source.ID, err)
		}
	}
}
