package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/marketfeed/internal/model"
)

// TestGetPage_RendersItems はアイテム一覧とステータスブロックの描画をテストする。
func TestGetPage_RendersItems(t *testing.T) {
	store := &mockNewsStore{
		items: []model.NewsItem{
			{
				Title:       "Sensex hits record high",
				Link:        "https://example.com/1",
				Source:      "LiveMint Markets",
				Summary:     "broad rally",
				PublishedTS: ptrInt64(1705312800),
				FetchedTS:   1705313000,
			},
		},
		sources: []string{"LiveMint Markets", "NSE Circulars (Official)"},
	}
	provider := &mockStatusProvider{
		status: &model.Status{
			LastRun:   "15 Jan 2024, 03:30 PM IST",
			PerSource: map[string]string{"LiveMint Markets": "ok (+1)"},
		},
	}
	h := NewPageHandler(store, provider, 150)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.GetPage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"Sensex hits record high",
		"https://example.com/1",
		"15 Jan 2024, 03:30 PM IST",
		"ok (+1)",
		`<option value="LiveMint Markets"`,
		`content="60"`, // 60秒自動リロード
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page body missing %q", want)
		}
	}
}

// TestGetPage_EscapesMarkup はアイテム由来のマークアップがエスケープ
// されることをテストする。
func TestGetPage_EscapesMarkup(t *testing.T) {
	store := &mockNewsStore{
		items: []model.NewsItem{
			{
				Title:     "<script>alert(1)</script>",
				Link:      "https://example.com/1",
				Source:    "LiveMint Markets",
				FetchedTS: 1705313000,
			},
		},
	}
	h := NewPageHandler(store, &mockStatusProvider{}, 150)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.GetPage(rec, req)

	if strings.Contains(rec.Body.String(), "<script>alert(1)</script>") {
		t.Error("page body contains unescaped markup")
	}
}

// TestGetPage_EmptyState はアイテム0件時の案内文をテストする。
func TestGetPage_EmptyState(t *testing.T) {
	h := NewPageHandler(&mockNewsStore{}, &mockStatusProvider{}, 150)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.GetPage(rec, req)

	if !strings.Contains(rec.Body.String(), "No items yet") {
		t.Error("page body missing empty-state message")
	}
}

// TestGetPage_PassesFilters はq/srcパラメータがストアクエリへ
// APIと同一セマンティクスで渡ることをテストする。
func TestGetPage_PassesFilters(t *testing.T) {
	store := &mockNewsStore{}
	h := NewPageHandler(store, &mockStatusProvider{}, 150)

	req := httptest.NewRequest(http.MethodGet, "/?q=dividend&src=LiveMint+Markets", nil)
	rec := httptest.NewRecorder()
	h.GetPage(rec, req)

	if store.lastQuery.Keyword != "dividend" {
		t.Errorf("Keyword = %q, want %q", store.lastQuery.Keyword, "dividend")
	}
	if store.lastQuery.Source != "LiveMint Markets" {
		t.Errorf("Source = %q, want %q", store.lastQuery.Source, "LiveMint Markets")
	}
	if store.lastQuery.Limit != 150 {
		t.Errorf("Limit = %d, want 150", store.lastQuery.Limit)
	}

	// 入力値はフォームに再掲される
	if !strings.Contains(rec.Body.String(), `value="dividend"`) {
		t.Error("page body missing echoed query value")
	}
}
