package price

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCache struct {
	prices map[string]float64
	sets   int
}

func (c *fakeCache) GetPrice(ctx context.Context, day string) (float64, bool, error) {
	p, ok := c.prices[day]
	return p, ok, nil
}

func (c *fakeCache) SetPrice(ctx context.Context, day string, price float64) error {
	c.prices[day] = price
	c.sets++
	return nil
}

func TestFormatDay(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"no zero padding", time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), "5-3-2024"},
		{"double digits", time.Date(2023, 11, 21, 0, 0, 0, 0, time.UTC), "21-11-2023"},
	}
	for _, tt := range tests {
		if got := formatDay(tt.in.UnixMilli()); got != tt.want {
			t.Errorf("%s: formatDay() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSolPriceAtFetchesAndCaches(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/coins/solana/history" {
			t.Errorf("path = %q, want /coins/solana/history", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "15-3-2024" {
			t.Errorf("date = %q, want 15-3-2024", got)
		}
		if got := r.URL.Query().Get("localization"); got != "false" {
			t.Errorf("localization = %q, want false", got)
		}
		w.Write([]byte(`{"market_data":{"current_price":{"usd":20.5}}}`))
	}))
	defer srv.Close()

	cache := &fakeCache{prices: make(map[string]float64)}
	client := NewClient(Config{BaseURL: srv.URL}, cache, testLogger())

	ts := time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC).UnixMilli()
	price, err := client.SolPriceAt(context.Background(), ts)
	if err != nil {
		t.Fatalf("SolPriceAt() error = %v", err)
	}
	if price != 20.5 {
		t.Errorf("price = %v, want 20.5", price)
	}
	if cache.sets != 1 {
		t.Errorf("cache writes = %d, want 1", cache.sets)
	}

	// Second lookup for the same day is served from the cache.
	price, err = client.SolPriceAt(context.Background(), ts)
	if err != nil {
		t.Fatalf("SolPriceAt() error = %v", err)
	}
	if price != 20.5 {
		t.Errorf("cached price = %v, want 20.5", price)
	}
	if hits.Load() != 1 {
		t.Errorf("api requests = %d, want 1", hits.Load())
	}
}

func TestSolPriceAtWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"market_data":{"current_price":{"usd":142.1}}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil, testLogger())
	price, err := client.SolPriceAt(context.Background(), time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("SolPriceAt() error = %v", err)
	}
	if price != 142.1 {
		t.Errorf("price = %v, want 142.1", price)
	}
}
