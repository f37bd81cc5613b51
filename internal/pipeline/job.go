package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is a batch phase running in the background.
type Job[T any] struct {
	events chan Progress
	g      *errgroup.Group
	result T
}

// Run starts fn on its own goroutine. fn reports progress through the
// function it receives; the events arrive on Events, which is closed when fn
// returns. Callers must drain Events before or while calling Wait.
//
// A started phase runs to completion; ctx only stops progress delivery.
func Run[T any](ctx context.Context, phase string, fn func(report ProgressFunc) (T, error)) *Job[T] {
	j := &Job[T]{events: make(chan Progress, 16)}

	var g errgroup.Group
	j.g = &g
	g.Go(func() error {
		defer close(j.events)

		log := zap.L().With(zap.String("phase", phase))
		start := time.Now()
		res, err := fn(func(p Progress) {
			select {
			case j.events <- p:
			case <-ctx.Done():
			}
		})
		duration := time.Since(start).Milliseconds()
		if err != nil {
			log.Error("pipeline: phase failed", zap.Int64("duration_ms", duration), zap.Error(err))
			return err
		}
		log.Info("pipeline: phase complete", zap.Int64("duration_ms", duration))
		j.result = res
		return nil
	})
	return j
}

// Events streams the phase's progress.
func (j *Job[T]) Events() <-chan Progress { return j.events }

// Wait blocks until the phase ends and returns its result.
func (j *Job[T]) Wait() (T, error) {
	err := j.g.Wait()
	return j.result, err
}
