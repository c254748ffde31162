package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/marketfeed/internal/model"
	"github.com/hitoshi/marketfeed/internal/normalize"
)

// NewsStore はニュースハンドラーが必要とするストア操作のインターフェース。
type NewsStore interface {
	Search(ctx context.Context, q model.ItemQuery) ([]model.NewsItem, error)
	DistinctSources(ctx context.Context) ([]string, error)
}

// StatusProvider は最新のポーリングステータスを提供するインターフェース。
type StatusProvider interface {
	Status() *model.Status
}

// NewsHandler はニュースAPIのHTTPハンドラー。
type NewsHandler struct {
	store       NewsStore
	status      StatusProvider
	sourceNames []string // 設定済みソース名（レスポンスのsourcesフィールド用）
	limit       int
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(store NewsStore, status StatusProvider, sources []model.Source, limit int) *NewsHandler {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name)
	}
	return &NewsHandler{
		store:       store,
		status:      status,
		sourceNames: names,
		limit:       limit,
	}
}

// --- レスポンス型 ---

// itemResponse は1ニュースアイテムのレスポンス。
type itemResponse struct {
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	Source      string  `json:"source"`
	Summary     string  `json:"summary"`
	Published   *string `json:"published"` // IST表示文字列。時刻のないアイテムはnull
	PublishedTS *int64  `json:"published_ts"`
	FetchedTS   int64   `json:"fetched_ts"`
}

// newsResponse は/api/newsのレスポンスエンベロープ。
type newsResponse struct {
	Sources     []string       `json:"sources"`
	Count       int            `json:"count"`
	Items       []itemResponse `json:"items"`
	GeneratedAt string         `json:"generated_at"`
}

// statusResponse は/api/statusのレスポンス。
type statusResponse struct {
	CycleID   string            `json:"cycle_id"`
	LastRun   string            `json:"last_run"`
	PerSource map[string]string `json:"per_source"`
	LastError string            `json:"last_error,omitempty"`
	Inserted  int               `json:"inserted"`
}

// GetNews は集約済みニュースを返す。
// GET /api/news?q=<keyword>&src=<source name>
//
// qはtitle/summaryへの大文字小文字を区別しない部分一致、srcはソース名の
// 完全一致。フィルタはページ描画経路と同一のストアクエリで適用される。
// 部分的なソース障害はここでは決して表面化しない（アイテムが減るだけ）。
func (h *NewsHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	query := model.ItemQuery{
		Keyword: r.URL.Query().Get("q"),
		Source:  r.URL.Query().Get("src"),
		Limit:   h.limit,
	}

	items, err := h.store.Search(r.Context(), query)
	if err != nil {
		slog.Error("ニュースの検索に失敗しました", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to query news items")
		return
	}

	resp := newsResponse{
		Sources:     h.sourceNames,
		Count:       len(items),
		Items:       make([]itemResponse, 0, len(items)),
		GeneratedAt: normalize.FormatISTNow(time.Now()),
	}

	for _, item := range items {
		resp.Items = append(resp.Items, itemResponse{
			Title:       item.Title,
			Link:        item.Link,
			Source:      item.Source,
			Summary:     item.Summary,
			Published:   normalize.FormatIST(effectiveTS(item)),
			PublishedTS: item.PublishedTS,
			FetchedTS:   item.FetchedTS,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetHealth は死活確認に応答する。
// GET /api/health
func (h *NewsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetStatus は最新のポーリングステータススナップショットを返す。
// GET /api/status
func (h *NewsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	s := h.status.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		CycleID:   s.CycleID,
		LastRun:   s.LastRun,
		PerSource: s.PerSource,
		LastError: s.LastError,
		Inserted:  s.Inserted,
	})
}

// effectiveTS は表示用の実効時刻（published、なければfetched）を返す。
func effectiveTS(item model.NewsItem) *int64 {
	if item.PublishedTS != nil {
		return item.PublishedTS
	}
	ts := item.FetchedTS
	return &ts
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
