package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Effect is one best-effort side effect. Run returns a provider reference
// (message id, sid) on success.
type Effect struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

type EffectResult struct {
	Name     string
	Ref      string
	Err      error
	Skipped  bool
	Duration time.Duration
}

func (r EffectResult) OK() bool {
	return r.Err == nil && !r.Skipped
}

// Dispatcher runs effects concurrently and records their outcomes. Failures
// are logged and returned as results, never as errors.
type Dispatcher struct {
	logger logrus.FieldLogger
}

func NewDispatcher(logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

func (d *Dispatcher) Run(ctx context.Context, effects ...Effect) []EffectResult {
	results := make([]EffectResult, len(effects))
	if len(effects) == 0 {
		return results
	}

	var wg sync.WaitGroup
	for i, effect := range effects {
		wg.Add(1)
		go func(i int, effect Effect) {
			defer wg.Done()
			results[i] = d.runOne(ctx, effect)
		}(i, effect)
	}
	wg.Wait()

	for _, result := range results {
		d.log(result)
	}
	return results
}

func (d *Dispatcher) runOne(ctx context.Context, effect Effect) (result EffectResult) {
	start := time.Now()
	result.Name = effect.Name
	defer func() {
		if r := recover(); r != nil {
			result.Err = errors.New("side effect panicked")
			d.logger.WithField("effect", effect.Name).WithField("panic", r).Error("side_effect_panic")
		}
		result.Duration = time.Since(start)
	}()

	ref, err := effect.Run(ctx)
	result.Ref = ref
	if errors.Is(err, ErrEmailDisabled) {
		result.Skipped = true
		return result
	}
	result.Err = err
	return result
}

func (d *Dispatcher) log(result EffectResult) {
	entry := d.logger.WithField("effect", result.Name).WithField("latency", result.Duration.String())
	switch {
	case result.Skipped:
		entry.Info("side_effect_skipped")
	case result.Err != nil:
		entry.WithError(result.Err).Warn("side_effect_failed")
	default:
		entry.WithField("ref", result.Ref).Info("side_effect_completed")
	}
}
