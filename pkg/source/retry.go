package source

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/osm"

	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/observability"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default [Sleeper].
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier applies the fetch failure policy and counts what it did.
//
// On a rate-limit signal it sleeps for the advertised delay plus one second
// and calls the operation exactly once more. If that also fails, or the first
// failure was anything other than a rate limit, the zero value is returned
// with a nil error. Fatal errors and context cancellation pass through.
type Retrier struct {
	sleep  Sleeper
	logger *log.Logger

	retries  atomic.Int64
	failures atomic.Int64
}

// NewRetrier creates a retrier. A nil sleep uses [SleepContext]; a nil logger
// discards output.
func NewRetrier(logger *log.Logger, sleep Sleeper) *Retrier {
	if sleep == nil {
		sleep = SleepContext
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Retrier{sleep: sleep, logger: logger}
}

// Retries returns how many retries were performed.
func (r *Retrier) Retries() int { return int(r.retries.Load()) }

// Failures returns how many fetches degraded to an empty result.
func (r *Retrier) Failures() int { return int(r.failures.Load()) }

// Do runs fn under the retrier's policy. op names the operation in logs and
// hooks.
func Do[T any](ctx context.Context, r *Retrier, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	v, err := fn(ctx)
	if err == nil {
		return v, nil
	}
	if stop(ctx, err) {
		return zero, err
	}

	if secs, ok := errors.RetryAfter(err); ok {
		wait := time.Duration(secs+1) * time.Second
		r.retries.Add(1)
		observability.Fetch().OnRateLimited(ctx, op, wait)
		r.logger.Warn("rate limited, retrying", "op", op, "wait", wait)
		if serr := r.sleep(ctx, wait); serr != nil {
			return zero, serr
		}

		v, err = fn(ctx)
		if err == nil {
			r.logger.Info("rate limit recovered", "op", op, "slept", wait)
			return v, nil
		}
		if stop(ctx, err) {
			return zero, err
		}
	}

	r.failures.Add(1)
	observability.Fetch().OnError(ctx, op, err)
	r.logger.Warn("fetch failed, using empty result", "op", op, "err", err)
	return zero, nil
}

func stop(ctx context.Context, err error) bool {
	return errors.IsFatal(err) || ctx.Err() != nil
}

type retrying struct {
	src Source
	r   *Retrier
}

// WithRetry wraps src with the retrier's failure policy. Results are never
// nil: a degraded fetch yields an empty collection.
func WithRetry(src Source, r *Retrier) Source {
	return &retrying{src: src, r: r}
}

func (s *retrying) FetchSector(ctx context.Context, box geo.BoundingBox) (*osm.OSM, error) {
	o, err := Do(ctx, s.r, "sector", func(ctx context.Context) (*osm.OSM, error) {
		return s.src.FetchSector(ctx, box)
	})
	if o == nil && err == nil {
		o = &osm.OSM{}
	}
	return o, err
}

func (s *retrying) FetchWays(ctx context.Context, id osm.RelationID) (map[osm.WayID]*osm.Way, error) {
	ways, err := Do(ctx, s.r, "ways", func(ctx context.Context) (map[osm.WayID]*osm.Way, error) {
		return s.src.FetchWays(ctx, id)
	})
	if ways == nil && err == nil {
		ways = map[osm.WayID]*osm.Way{}
	}
	return ways, err
}

func (s *retrying) FetchNodes(ctx context.Context, ids []osm.NodeID) (map[osm.NodeID]*osm.Node, error) {
	nodes, err := Do(ctx, s.r, "nodes", func(ctx context.Context) (map[osm.NodeID]*osm.Node, error) {
		return s.src.FetchNodes(ctx, ids)
	})
	if nodes == nil && err == nil {
		nodes = map[osm.NodeID]*osm.Node{}
	}
	return nodes, err
}
