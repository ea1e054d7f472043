// Package idempotency implements C8: at-most-once execution of a publish
// call keyed by the caller-supplied checksum, backed by Redis and
// namespaced by the idempotency identifier.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// Runner guards a function so that concurrent or retried calls carrying the
// same identifier execute it at most once and share its result.
type Runner struct {
	client *redis.Client
}

func NewRunner(client *redis.Client) *Runner {
	return &Runner{client: client}
}

type storedResult struct {
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Decode rebuilds a concrete result value from the JSON this package stored
// for it, so a cache-hit or in-flight-poll path returns the same Go type fn
// would have returned directly instead of a generic map/slice shape. raw is
// the JSON literal null when fn returned a nil value.
type Decode func(raw json.RawMessage) (interface{}, error)

// Run executes fn at most once for the given identifier within ttl. A
// second call with the same identifier while the first is still running
// polls for the first call's result instead of re-running fn; a call after
// the first has completed and within ttl replays the stored result,
// including a stored error. decode reconstructs fn's concrete return type
// from the stored JSON on every path except the one where fn actually ran.
func (r *Runner) Run(ctx context.Context, identifier string, ttl time.Duration, decode Decode, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	key := keyPrefix + identifier
	lockKey := key + ":lock"

	acquired, err := r.client.SetNX(ctx, lockKey, "1", ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("idempotency lock failed: %w", err)
	}

	if !acquired {
		return r.waitForResult(ctx, key, ttl, decode)
	}
	defer r.client.Del(ctx, lockKey)

	if cached, ok, err := r.load(ctx, key, decode); err != nil {
		return nil, err
	} else if ok {
		return cached.value, cached.err
	}

	value, fnErr := fn(ctx)

	if saveErr := r.save(ctx, key, ttl, value, fnErr); saveErr != nil {
		return value, fnErr
	}

	return value, fnErr
}

type cachedResult struct {
	value interface{}
	err   error
}

func (r *Runner) load(ctx context.Context, key string, decode Decode) (cachedResult, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return cachedResult{}, false, nil
	}
	if err != nil {
		return cachedResult{}, false, fmt.Errorf("idempotency lookup failed: %w", err)
	}

	var stored storedResult
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return cachedResult{}, false, fmt.Errorf("corrupt idempotency record: %w", err)
	}

	var value interface{}
	if len(stored.Value) > 0 {
		value, err = decode(stored.Value)
		if err != nil {
			return cachedResult{}, false, fmt.Errorf("corrupt idempotency record: %w", err)
		}
	}

	var resultErr error
	if stored.Error != "" {
		resultErr = fmt.Errorf("%s", stored.Error)
	}

	return cachedResult{value: value, err: resultErr}, true, nil
}

func (r *Runner) save(ctx context.Context, key string, ttl time.Duration, value interface{}, fnErr error) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize idempotency result: %w", err)
	}

	stored := storedResult{Value: valueJSON}
	if fnErr != nil {
		stored.Error = fnErr.Error()
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to serialize idempotency record: %w", err)
	}

	return r.client.Set(ctx, key, data, ttl).Err()
}

// waitForResult polls for a result written by whichever caller holds the
// lock, giving up once ttl elapses.
func (r *Runner) waitForResult(ctx context.Context, key string, ttl time.Duration, decode Decode) (interface{}, error) {
	deadline := time.Now().Add(ttl)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cached, ok, err := r.load(ctx, key, decode); err != nil {
			return nil, err
		} else if ok {
			return cached.value, cached.err
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("idempotent call timed out waiting for in-flight execution")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
