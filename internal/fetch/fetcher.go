// Package fetch はフィードのHTTP取得とパースを提供する。
//
// 取得はSSRF防止機能付きクライアントでバイト列をダウンロードしてから
// gofeedでパースする方式をとる。パーサ側に取得を任せるよりも、
// ヘッダとタイムアウトの制御が確実で制限付きネットワーク環境に強い。
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/marketfeed/internal/model"
)

// フィードサーバーにブロックされにくくするための固定リクエストヘッダ。
const (
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X) AppleWebKit/537.36 (KHTML, like Gecko) Chrome Safari"
	acceptHeader = "application/rss+xml, application/xml;q=0.9, */*;q=0.8"
)

// Error は1ソースのフェッチ失敗を表す。
// 「フェッチ失敗」は「フェッチ成功かつエントリ0件」と明確に区別される。
// Bozoはドキュメントが構造的に不正だった（デコーダが拒否した）ことを示す。
type Error struct {
	Kind string // ステータス表示用の短い失敗分類
	Bozo bool
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind
}

// Unwrap はラップされた元エラーを返す。
func (e *Error) Unwrap() error { return e.Err }

// SafeClientFactory はSSRF防止付きHTTPクライアントの生成インターフェース。
type SafeClientFactory interface {
	NewSafeClient(timeout time.Duration) *http.Client
}

// Fetcher は個別フィードの取得とパースを行う。
type Fetcher struct {
	clients     SafeClientFactory
	timeout     time.Duration
	maxBodySize int64
	maxEntries  int
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// maxEntriesは1ソースあたりのエントリ上限（病的に巨大なフィードへのガード）。
func NewFetcher(clients SafeClientFactory, timeout time.Duration, maxBodySize int64, maxEntries int) *Fetcher {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	return &Fetcher{
		clients:     clients,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		maxEntries:  maxEntries,
	}
}

// Fetch はソースのフィードを取得してエントリ列に変換する。
//
// トランスポート失敗（タイムアウト、接続不能、非2xxステータス）と
// デコード失敗（不正ドキュメント）はいずれも*Errorとして報告され、
// 呼び出し側はそのソースをスキップ扱いにする。エラーが上位へ
// パニックとして漏れることはない。成功時のエントリ0件はエラーではない。
func (f *Fetcher) Fetch(ctx context.Context, source model.Source) ([]model.RawEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, &Error{Kind: "bad url", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	client := f.clients.NewSafeClient(f.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Kind: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &Error{Kind: "read", Err: err}
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: "malformed document", Bozo: true, Err: err}
	}

	return convertEntries(parsed.Items, f.maxEntries), nil
}

// convertEntries はgofeedのアイテムをRawEntryに変換する。
// limit件を超えるエントリは無視する。
func convertEntries(items []*gofeed.Item, limit int) []model.RawEntry {
	if len(items) > limit {
		items = items[:limit]
	}

	entries := make([]model.RawEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		entry := model.RawEntry{
			Title:     item.Title,
			Link:      item.Link,
			Summary:   item.Description,
			Published: item.PublishedParsed,
			Updated:   item.UpdatedParsed,
		}

		// Descriptionがない場合はContentをサマリーとして使う
		if entry.Summary == "" {
			entry.Summary = item.Content
		}

		entries = append(entries, entry)
	}

	return entries
}

// classifyTransport はトランスポートエラーをステータス表示用の短い分類に落とす。
func classifyTransport(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return "timeout"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "connection"
	}
	return "transport"
}
