package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoaderCache_Get_miss_then_hit(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, string](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	v, hit, err := c.GetWithStats(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if hit {
		t.Error("expected miss")
	}

	if v != "v-a" {
		t.Errorf("got %q", v)
	}

	if loads.Load() != 1 {
		t.Errorf("loads = %d", loads.Load())
	}

	v, hit, err = c.GetWithStats(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if !hit {
		t.Error("expected hit")
	}

	if v != "v-a" {
		t.Errorf("got %q", v)
	}

	if loads.Load() != 1 {
		t.Errorf("loads = %d", loads.Load())
	}
}

func TestLoaderCache_Get_singleflight(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, int](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	var gate sync.WaitGroup
	gate.Add(1)

	var arrived atomic.Int32
	//nolint:unparam // load always returns nil error for this test.
	load := func(_ context.Context, _ string) (int, error) {
		loads.Add(1)

		return 42, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			if arrived.Add(1) == 10 {
				gate.Done()
			}

			gate.Wait()

			val, _, err := c.GetWithStats(ctx, "x", load)
			if err != nil {
				t.Error(err)

				return
			}

			if val != 42 {
				t.Errorf("got %d", val)
			}
		})
	}

	wg.Wait()

	// Scheduling decides how many callers overlap inside Do, so any count in 1..10 is valid.
	if n := loads.Load(); n < 1 || n > 10 {
		t.Errorf("expected 1–10 loads (singleflight coalescing), got %d", n)
	}
}

func TestLoaderCache_Invalidate(t *testing.T) {
	c, err := NewLoaderCache[string, string](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) { return "v-" + key, nil }

	_, _ = c.Get(ctx, "a", load)
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}

	c.Invalidate("a")

	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}

	_, hit, _ := c.GetWithStats(ctx, "a", load)
	if hit {
		t.Error("expected miss after Invalidate")
	}
}

func TestLoaderCache_InvalidateAll(t *testing.T) {
	c, err := NewLoaderCache[string, string](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) { return "v-" + key, nil }

	_, _ = c.Get(ctx, "a", load)

	_, _ = c.Get(ctx, "b", load)
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}

	c.InvalidateAll()

	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}

	_, hit, _ := c.GetWithStats(ctx, "a", load)
	if hit {
		t.Error("expected miss after InvalidateAll")
	}
}

func TestLoaderCache_Get_load_error(t *testing.T) {
	c, err := NewLoaderCache[string, string](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	loadErr := context.DeadlineExceeded
	load := func(_ context.Context, _ string) (string, error) {
		return "", loadErr
	}

	_, err = c.Get(ctx, "a", load)
	if !errors.Is(err, loadErr) {
		t.Errorf("got err %v", err)
	}

	if c.Len() != 0 {
		t.Error("failed load should not be cached")
	}
}

func TestLoaderCache_WithTTL(t *testing.T) {
	c, err := NewLoaderCache[string, []float32](4, func(s string) string { return s }, WithTTL(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	loads := 0
	load := func(_ context.Context, _ string) ([]float32, error) {
		loads++

		return []float32{1, 0}, nil
	}

	for range 3 {
		if _, err := c.Get(ctx, "dragon lair", load); err != nil {
			t.Fatal(err)
		}
	}

	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}

	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestLoaderCache_WithTTL_invalidSize(t *testing.T) {
	_, err := NewLoaderCache[string, int](0, func(s string) string { return s }, WithTTL(time.Minute))
	if err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestLoaderCache_evicts_least_recently_used(t *testing.T) {
	c, err := NewLoaderCache[int, int](2, func(k int) string { return string(rune('a' + k)) })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, k int) (int, error) { return k * 10, nil }

	_, _ = c.Get(ctx, 1, load)
	_, _ = c.Get(ctx, 2, load)
	_, _ = c.Get(ctx, 1, load)
	_, _ = c.Get(ctx, 3, load)

	if _, hit, _ := c.GetWithStats(ctx, 1, load); !hit {
		t.Error("recently used key should survive eviction")
	}

	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}
