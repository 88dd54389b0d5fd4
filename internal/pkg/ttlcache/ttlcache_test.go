package ttlcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetOrLoad_CachesValue(t *testing.T) {
	c := New[int](time.Minute)

	loads := 0
	load := func(ctx context.Context) (int, error) {
		loads++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "k", load)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	}
	if loads != 1 {
		t.Errorf("expected a single load, got %d", loads)
	}
}

func TestGetOrLoad_ExpiryReloads(t *testing.T) {
	c := New[string](time.Hour)

	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	loads := 0
	load := func(ctx context.Context) (string, error) {
		loads++
		return "v", nil
	}

	_, _ = c.GetOrLoad(context.Background(), "k", load)
	current = current.Add(59 * time.Minute)
	_, _ = c.GetOrLoad(context.Background(), "k", load)
	if loads != 1 {
		t.Fatalf("expected no reload before expiry, got %d loads", loads)
	}

	current = current.Add(2 * time.Minute)
	_, _ = c.GetOrLoad(context.Background(), "k", load)
	if loads != 2 {
		t.Errorf("expected reload after expiry, got %d loads", loads)
	}
}

func TestGetOrLoad_ErrorNotCached(t *testing.T) {
	c := New[int](time.Minute)

	boom := errors.New("storage down")
	calls := 0
	failing := func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	}

	if _, err := c.GetOrLoad(context.Background(), "k", failing); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed load must not populate the cache")
	}

	// A later successful load goes through.
	v, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Errorf("expected recovery, got %d, %v", v, err)
	}
}

func TestInvalidate(t *testing.T) {
	c := New[int](time.Hour)

	loads := 0
	load := func(ctx context.Context) (int, error) {
		loads++
		return loads, nil
	}

	_, _ = c.GetOrLoad(context.Background(), "a", load)
	_, _ = c.GetOrLoad(context.Background(), "b", load)
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	c.Invalidate()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after invalidate, got %d", c.Len())
	}

	v, _ := c.GetOrLoad(context.Background(), "a", load)
	if v != 3 {
		t.Errorf("expected reload after invalidate, got %d", v)
	}
}
