package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"slipforge/internal/cache"
	"slipforge/internal/engine"
)

// EngineCaller is the outbound seam; satisfied by *engine.Client.
type EngineCaller interface {
	Do(ctx context.Context, req engine.Request) (*engine.Response, error)
}

// RetryPolicy is the per-queue retry discipline, sourced from the explicit
// queue config.
type RetryPolicy struct {
	MaxRetries int
	Backoff    []time.Duration
}

// DelayFor returns the backoff delay for a given zero-based attempt. The
// last entry repeats when the schedule is shorter than the retry budget.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 30 * time.Second
	}
	if attempt >= len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[attempt]
}

// Controller sends requests to the engine with cache lookups on the way in
// and cache writes on the way out.
type Controller struct {
	Engine EngineCaller
	Cache  cache.Cache
	Logger *zap.Logger
}

// Dispatch runs one attempt for the request.
//
// A cache hit returns immediately and does not count against the retry
// budget. A miss calls the engine under the kind's timeout; success is
// cached with the kind's TTL. On failure the controller decides between
// RetryableError (budget left; carries the backoff delay for the attempt)
// and ExhaustedError (budget spent).
func (c *Controller) Dispatch(ctx context.Context, req engine.Request, attempt int, policy RetryPolicy) (*engine.Response, error) {
	payload, err := req.MarshalPayload()
	if err != nil {
		return nil, err
	}
	key := cache.Fingerprint(req.Kind.Path(), payload)

	if c.Cache != nil {
		raw, hit, cerr := c.Cache.Get(ctx, key)
		if cerr != nil && c.Logger != nil {
			c.Logger.Warn("cache read failed", zap.String("kind", req.Kind.String()), zap.Error(cerr))
		}
		if hit {
			var cached engine.Response
			if err := json.Unmarshal(raw, &cached); err == nil {
				if c.Logger != nil {
					c.Logger.Debug("dispatch served from cache",
						zap.String("kind", req.Kind.String()),
						zap.String("fingerprint", key[:12]),
					)
				}
				return &cached, nil
			}
			// Undecodable entry: fall through to a real call.
		}
	}

	resp, err := c.Engine.Do(ctx, req)
	if err != nil {
		maxRetries := policy.MaxRetries
		if maxRetries < 1 {
			maxRetries = 1
		}
		if attempt < maxRetries-1 {
			return nil, &RetryableError{
				Attempt: attempt,
				Delay:   policy.DelayFor(attempt),
				Err:     err,
			}
		}
		return nil, &ExhaustedError{Attempts: maxRetries, LastErr: err}
	}

	if c.Cache != nil {
		if raw, merr := json.Marshal(resp); merr == nil {
			if serr := c.Cache.Set(ctx, key, raw, req.Kind.CacheTTL()); serr != nil && c.Logger != nil {
				c.Logger.Warn("cache write failed", zap.String("kind", req.Kind.String()), zap.Error(serr))
			}
		}
	}
	return resp, nil
}
