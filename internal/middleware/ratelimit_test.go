package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestNewRateLimiterConfig は req/min 指定からの設定変換をテストする。
func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120)

	if cfg.Rate != rate.Limit(2.0) {
		t.Errorf("Rate = %v, want 2.0 (120 req/min)", cfg.Rate)
	}
	if cfg.Burst != 120 {
		t.Errorf("Burst = %d, want 120", cfg.Burst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

// TestNewRateLimiterConfig_Default は0以下の指定にデフォルト120が
// 適用されることをテストする。
func TestNewRateLimiterConfig_Default(t *testing.T) {
	cfg := NewRateLimiterConfig(0)
	if cfg.Burst != 120 {
		t.Errorf("Burst = %d, want default 120", cfg.Burst)
	}
}

// TestRateLimiter_AllowsWithinLimit はバースト内のリクエストが
// 通過することをテストする。
func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(NewRateLimiterConfig(120))
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

// TestRateLimiter_Returns429OverLimit はバースト超過で429と
// Retry-Afterヘッダーが返ることをテストする。
func TestRateLimiter_Returns429OverLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Limit(1),
		Burst:           2,
		CleanupInterval: 5 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
		req.RemoteAddr = "192.0.2.2:12345"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on 429 response")
	}
	if ct := last.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// TestRateLimiter_PerClientIsolation はクライアントIPごとに独立した
// 制限が適用されることをテストする。
func TestRateLimiter_PerClientIsolation(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Limit(1),
		Burst:           1,
		CleanupInterval: 5 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	// クライアントAがバーストを使い切る
	reqA := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	reqA.RemoteAddr = "192.0.2.10:1000"
	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, reqA)

	reqA2 := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	reqA2.RemoteAddr = "192.0.2.10:1001"
	recA2 := httptest.NewRecorder()
	handler.ServeHTTP(recA2, reqA2)
	if recA2.Code != http.StatusTooManyRequests {
		t.Fatalf("client A second request status = %d, want 429", recA2.Code)
	}

	// クライアントBは影響を受けない
	reqB := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	reqB.RemoteAddr = "192.0.2.20:2000"
	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, reqB)
	if recB.Code != http.StatusOK {
		t.Errorf("client B status = %d, want 200", recB.Code)
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

// TestClientIP はクライアントIP抽出の優先順位をテストする。
func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"RemoteAddrのみ", "192.0.2.1:12345", "", "192.0.2.1"},
		{"X-Forwarded-For優先", "10.0.0.1:80", "203.0.113.5", "203.0.113.5"},
		{"X-Forwarded-For先頭のみ", "10.0.0.1:80", "203.0.113.5, 10.0.0.2, 10.0.0.3", "203.0.113.5"},
		{"ポートなしRemoteAddr", "192.0.2.1", "", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRateLimiter_Cleanup は期限切れエントリの削除をテストする。
func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Limit(1),
		Burst:           1,
		CleanupInterval: 10 * time.Millisecond,
	})
	defer rl.Stop()

	rl.getOrCreateLimiter("192.0.2.1")
	if rl.LimiterCount() != 1 {
		t.Fatalf("LimiterCount = %d, want 1", rl.LimiterCount())
	}

	// TTL（CleanupIntervalの2倍）を超えて放置したエントリは削除される
	rl.mu.Lock()
	rl.limiters["192.0.2.1"].lastAccess = time.Now().Add(-time.Minute)
	rl.mu.Unlock()

	rl.cleanup()

	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount = %d after cleanup, want 0", rl.LimiterCount())
	}
}
