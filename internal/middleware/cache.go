package middleware

import (
	"fmt"
	"net/http"
)

// NewCacheControlMiddleware は共有/プライベートキャッシュの有効期間を
// 広告するミドルウェアを返す。繰り返しのクライアント/CDNリクエストによる
// 上流ポーリング圧力を減らすため、/api/newsには60秒を指定する。
func NewCacheControlMiddleware(maxAgeSeconds int) func(next http.Handler) http.Handler {
	value := fmt.Sprintf("s-maxage=%d, max-age=%d", maxAgeSeconds, maxAgeSeconds)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}
