package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type publishResult struct {
	SchemaURL string `json:"schemaUrl"`
}

func decodePublishResult(raw json.RawMessage) (interface{}, error) {
	var out publishResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return NewRunner(client)
}

func TestRunner_RunExecutesFnExactlyOnce(t *testing.T) {
	r := newTestRunner(t)
	calls := 0
	fn := func(ctx context.Context) (interface{}, error) {
		calls++
		return &publishResult{SchemaURL: "https://cdn.example.com/schema"}, nil
	}

	result, err := r.Run(context.Background(), "checksum-1", time.Second, decodePublishResult, fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := result.(*publishResult)
	if !ok {
		t.Fatalf("expected *publishResult, got %T", result)
	}
	if out.SchemaURL != "https://cdn.example.com/schema" {
		t.Errorf("unexpected schema url: %s", out.SchemaURL)
	}
	if calls != 1 {
		t.Fatalf("expected fn to run once, ran %d times", calls)
	}
}

func TestRunner_SecondCallReplaysStoredResultWithConcreteType(t *testing.T) {
	r := newTestRunner(t)
	fn := func(ctx context.Context) (interface{}, error) {
		return &publishResult{SchemaURL: "https://cdn.example.com/schema"}, nil
	}

	if _, err := r.Run(context.Background(), "checksum-2", time.Second, decodePublishResult, fn); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	calls := 0
	result, err := r.Run(context.Background(), "checksum-2", time.Second, decodePublishResult, func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, fmt.Errorf("should not run again")
	})
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if calls != 0 {
		t.Fatal("fn should not run again for an identifier already resolved within ttl")
	}

	// This is the exact shape the lifecycle coordinator relies on: a type
	// assertion against the concrete pointer type, not a generic map.
	out, ok := result.(*publishResult)
	if !ok {
		t.Fatalf("expected replayed result to decode to *publishResult, got %T", result)
	}
	if out.SchemaURL != "https://cdn.example.com/schema" {
		t.Errorf("unexpected replayed schema url: %s", out.SchemaURL)
	}
}

func TestRunner_ReplaysStoredErrorWithoutRerunningFn(t *testing.T) {
	r := newTestRunner(t)
	wantErr := fmt.Errorf("composition failed")
	fn := func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	}

	if _, err := r.Run(context.Background(), "checksum-3", time.Second, decodePublishResult, fn); err == nil {
		t.Fatal("expected first call to return the fn error")
	}

	calls := 0
	_, err := r.Run(context.Background(), "checksum-3", time.Second, decodePublishResult, func(ctx context.Context) (interface{}, error) {
		calls++
		return &publishResult{}, nil
	})
	if err == nil || err.Error() != wantErr.Error() {
		t.Fatalf("expected replayed error %q, got %v", wantErr, err)
	}
	if calls != 0 {
		t.Fatal("fn should not run again once an error is cached")
	}
}

func TestRunner_DistinctIdentifiersRunIndependently(t *testing.T) {
	r := newTestRunner(t)
	calls := 0
	fn := func(ctx context.Context) (interface{}, error) {
		calls++
		return &publishResult{SchemaURL: "https://cdn.example.com/schema"}, nil
	}

	if _, err := r.Run(context.Background(), "checksum-a", time.Second, decodePublishResult, fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Run(context.Background(), "checksum-b", time.Second, decodePublishResult, fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected fn to run once per distinct identifier, ran %d times", calls)
	}
}
