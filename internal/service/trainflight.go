package service

import (
	"context"
	"sync"
	"time"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/trainer"
)

// inFlightTraining tracks a single training run that multiple callers may
// wait for.
type inFlightTraining struct {
	mu      sync.Mutex
	bundle  *trainer.Bundle
	err     error
	done    bool
	waiters []chan struct{}
}

// trainingFlight guarantees at most one training run per location key. A
// second caller for the same key waits on the in-progress run instead of
// starting another.
type trainingFlight struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightTraining
	timeout  time.Duration
}

func newTrainingFlight(timeout time.Duration) *trainingFlight {
	return &trainingFlight{
		inFlight: make(map[string]*inFlightTraining),
		timeout:  timeout,
	}
}

// GetOrDo runs fn for key unless a run is already in flight, in which case it
// waits for that run's result. The run itself is never cancelled by a
// waiter's context; a departing waiter just stops waiting.
func (tf *trainingFlight) GetOrDo(ctx context.Context, key string, fn func() (*trainer.Bundle, error)) (*trainer.Bundle, error) {
	tf.mu.Lock()
	run, exists := tf.inFlight[key]
	if !exists {
		run = &inFlightTraining{}
		tf.inFlight[key] = run
		tf.mu.Unlock()

		go func() {
			bundle, err := fn()

			run.mu.Lock()
			run.bundle = bundle
			run.err = err
			run.done = true
			waiters := run.waiters
			run.waiters = nil
			run.mu.Unlock()

			for _, notify := range waiters {
				close(notify)
			}

			tf.mu.Lock()
			delete(tf.inFlight, key)
			tf.mu.Unlock()
		}()
	} else {
		tf.mu.Unlock()
	}

	notify := make(chan struct{})
	run.mu.Lock()
	if run.done {
		bundle, err := run.bundle, run.err
		run.mu.Unlock()
		return bundle, err
	}
	run.waiters = append(run.waiters, notify)
	run.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, tf.timeout)
	defer cancel()
	select {
	case <-notify:
		run.mu.Lock()
		bundle, err := run.bundle, run.err
		run.mu.Unlock()
		return bundle, err
	case <-waitCtx.Done():
		return nil, waitCtx.Err()
	}
}
