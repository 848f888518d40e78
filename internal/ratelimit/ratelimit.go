// Package ratelimit implements the Rate-Limit Adapter (spec §4.10): the
// single point through which every platform call is retried, layered
// above the gotd/td-level flood-wait and throughput middlewares wired at
// client construction (see platform/gotdclient).
package ratelimit

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tgforward/internal/tgerr"
)

// Options configures the adapter's retry policy.
type Options struct {
	MaxRetries      int
	MaxRateLimitWait time.Duration // requests signaling a longer wait fail immediately
	InitialInterval time.Duration
}

// DefaultOptions mirrors the spec's stated defaults (max_retries 3, 300s
// rate-limit ceiling).
func DefaultOptions() Options {
	return Options{
		MaxRetries:       3,
		MaxRateLimitWait: 300 * time.Second,
		InitialInterval:  time.Second,
	}
}

// Reconnector is implemented by anything that can re-establish a session
// after an authorization failure, so the adapter can attempt one
// reconnect before giving up (spec §4.10).
type Reconnector interface {
	Connect(ctx context.Context) error
}

// Adapter wraps platform calls with exponential backoff and honors
// rate-limit signals surfaced as tgerr errors.
type Adapter struct {
	opts Options
	log  *zap.Logger
}

// New builds an Adapter.
func New(opts Options, log *zap.Logger) *Adapter {
	return &Adapter{opts: opts, log: log.Named("RateLimit")}
}

// Do runs fn, retrying on transient and rate-limit errors up to
// opts.MaxRetries attempts. A rate-limit signal whose RetryAfter exceeds
// MaxRateLimitWait fails immediately without consuming an attempt budget
// the way a sleep-and-retry would; waiting itself does not count against
// the retry budget (spec §4.10: "sleeping for the signaled duration does
// not consume a retry attempt").
func (a *Adapter) Do(ctx context.Context, client Reconnector, fn func(ctx context.Context) error) error {
	attempts := 0
	reconnected := false

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.opts.InitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // bounded by MaxRetries instead of wall-clock
	b.Reset()            // start from InitialInterval rather than the library default

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if wait, ok := tgerr.AsRateLimit(err); ok {
			if wait > a.opts.MaxRateLimitWait {
				a.log.Warn("rate limit wait exceeds ceiling, aborting", zap.Duration("wait", wait))
				return err
			}
			a.log.Info("rate limited, sleeping before retry", zap.Duration("wait", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue // does not consume an attempt
		}

		if tgerr.Is(err, tgerr.KindAuthorization) && !reconnected && client != nil {
			reconnected = true
			a.log.Warn("authorization error, attempting one reconnect", zap.Error(err))
			if cErr := client.Connect(ctx); cErr != nil {
				a.log.Error("reconnect failed", zap.Error(cErr))
				return err
			}
			continue
		}

		if !tgerr.Is(err, tgerr.KindTransient) {
			return err // permanent errors are never retried
		}

		attempts++
		if attempts > a.opts.MaxRetries {
			a.log.Error("exhausted retries", zap.Int("attempts", attempts), zap.Error(err))
			return err
		}

		wait := b.NextBackOff()
		a.log.Warn("transient error, backing off", zap.Int("attempt", attempts), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
