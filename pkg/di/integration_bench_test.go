package di

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/goliatone/go-targeted-ads/internal/targeting"
)

func seed(tb testing.TB, container *Container, n int) {
	tb.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		platform := ads.Platform(i%9 + 1)
		err := container.Service().Insert(ctx, ads.Advertisement{
			Title:    fmt.Sprintf("campaign-%03d", i),
			AgeRange: ads.AgeRange{From: i % 30, To: 30 + i%40},
			Platform: &platform,
			EndAt:    time.Now().Add(time.Hour),
		})
		if err != nil {
			tb.Fatalf("seed insert %d: %v", i, err)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	container := newTestContainer(t, sqliteConfig(t))
	seed(t, container, 40)

	age := 35
	cond := ads.Condition{Age: &age}
	page := ads.Page{Limit: 10}

	const workers = 32
	results := make([][]ads.PartialAdvertisement, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = container.Querier().QueryPartial(context.Background(), cond, page)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if len(results[i]) != len(results[0]) {
			t.Fatalf("worker %d saw %d rows, worker 0 saw %d", i, len(results[i]), len(results[0]))
		}
		for j := range results[i] {
			if results[i][j] != results[0][j] {
				t.Errorf("worker %d row %d differs", i, j)
			}
		}
	}

	if loads := container.Querier().Stats().Loads; loads != 1 {
		t.Errorf("Expected identical concurrent reads to load once, got %d loads", loads)
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	container := newTestContainer(t, sqliteConfig(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 64)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				err := container.Querier().Insert(ctx, ads.Advertisement{
					Title:    fmt.Sprintf("writer-%d-%d", w, i),
					AgeRange: ads.AgeRange{From: 10, To: 60},
					EndAt:    time.Now().Add(time.Hour),
				})
				if err != nil {
					errCh <- err
					return
				}
			}
		}(w)
	}
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			age := 20 + r
			for i := 0; i < 10; i++ {
				if _, err := container.Querier().QueryPartial(ctx, ads.Condition{Age: &age}, ads.Page{Limit: 5, Offset: i}); err != nil {
					errCh <- err
					return
				}
			}
		}(r)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent operation failed: %v", err)
	}

	age := 30
	rows, err := container.Service().QueryPartial(ctx, ads.Condition{Age: &age}, ads.Page{Limit: 100})
	if err != nil {
		t.Fatalf("QueryPartial() failed: %v", err)
	}
	if len(rows) != 40 {
		t.Errorf("Expected 40 persisted rows, got %d", len(rows))
	}
}

func benchmarkRead(b *testing.B, q targeting.Querier, distinct int) {
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		age := 18 + i%distinct
		if _, err := q.QueryPartial(ctx, ads.Condition{Age: &age}, ads.Page{Limit: 10}); err != nil {
			b.Fatalf("QueryPartial() failed: %v", err)
		}
	}
}

func BenchmarkCachedVsUncachedRead(b *testing.B) {
	container := newTestContainer(b, sqliteConfig(b))
	seed(b, container, 200)

	b.Run("Uncached", func(b *testing.B) {
		benchmarkRead(b, container.Service(), 40)
	})
	b.Run("Cached", func(b *testing.B) {
		benchmarkRead(b, container.Querier(), 40)
	})
}

func BenchmarkConcurrentCachedRead(b *testing.B) {
	container := newTestContainer(b, sqliteConfig(b))
	seed(b, container, 200)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			age := 18 + i%40
			if _, err := container.Querier().QueryPartial(ctx, ads.Condition{Age: &age}, ads.Page{Limit: 10}); err != nil {
				b.Errorf("QueryPartial() failed: %v", err)
				return
			}
			i++
		}
	})
}
