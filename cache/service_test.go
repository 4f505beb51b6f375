package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewService_Backends(t *testing.T) {
	for _, backend := range []string{BackendWeighted, BackendSturdyc, BackendRistretto} {
		t.Run(backend, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = backend

			svc, err := NewService[[]string](cfg, func(v []string) int64 { return int64(len(v)) })
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			t.Cleanup(func() { Close(svc) })

			calls := 0
			fetch := FetchFn[[]string](func(ctx context.Context) ([]string, error) {
				calls++
				return []string{"a", "b"}, nil
			})

			for i := 0; i < 2; i++ {
				got, err := GetOrFetch(context.Background(), svc, "key", fetch)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(got) != 2 {
					t.Fatalf("unexpected value %v", got)
				}
			}

			if calls != 1 {
				t.Errorf("expected a single fetch, got %d", calls)
			}
			if st := svc.Stats(); st.Loads != 1 {
				t.Errorf("expected 1 load, got %+v", st)
			}
		})
	}
}

func TestNewService_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 0
	svc, err := NewService[int](cfg, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if svc != nil {
		t.Error("expected nil service on error")
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EarlyRefresh = &EarlyRefreshConfig{MinAsyncRefreshTime: time.Second, MaxAsyncRefreshTime: 2 * time.Second}

	back := convertFromInternal(cfg.toInternal())
	if back.EarlyRefresh == nil || back.EarlyRefresh.MaxAsyncRefreshTime != 2*time.Second {
		t.Errorf("early refresh lost: %+v", back.EarlyRefresh)
	}
	if back.Capacity != cfg.Capacity || back.TTL != cfg.TTL || back.Backend != cfg.Backend {
		t.Errorf("config mismatch: %+v vs %+v", back, cfg)
	}
}

func TestGetOrFetch_PropagatesError(t *testing.T) {
	svc, err := NewService[int](DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	_, err = GetOrFetch(context.Background(), svc, "k", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestKeyBuilder(t *testing.T) {
	age := 30
	zero := 0

	tests := []struct {
		name string
		key  string
		want string
	}{
		{
			name: "namespace only",
			key:  NewKey("ads").String(),
			want: "ads",
		},
		{
			name: "absent pointer",
			key:  NewKey("ads").Field("age", (*int)(nil)).String(),
			want: "ads::age=nil",
		},
		{
			name: "present pointer is dereferenced",
			key:  NewKey("ads").Field("age", &age).Field("limit", 10).String(),
			want: "ads::age=30::limit=10",
		},
		{
			name: "zero differs from absent",
			key:  NewKey("ads").Field("age", &zero).String(),
			want: "ads::age=0",
		},
		{
			name: "separator escaped",
			key:  NewKey("ads").Field("title", "a::b").String(),
			want: `ads::title=a\:\:b`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.key)
			}
		})
	}
}
