package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/marketfeed/internal/model"
)

// --- テスト用モック ---

// mockNewsStore はクエリを記録して固定結果を返すNewsStoreモック。
type mockNewsStore struct {
	items     []model.NewsItem
	sources   []string
	err       error
	lastQuery model.ItemQuery
}

func (m *mockNewsStore) Search(_ context.Context, q model.ItemQuery) ([]model.NewsItem, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

func (m *mockNewsStore) DistinctSources(_ context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sources, nil
}

// mockStatusProvider は固定スナップショットを返すStatusProviderモック。
type mockStatusProvider struct {
	status *model.Status
}

func (m *mockStatusProvider) Status() *model.Status {
	if m.status != nil {
		return m.status
	}
	return &model.Status{PerSource: map[string]string{}}
}

func testSources() []model.Source {
	return []model.Source{
		{Name: "NSE Circulars (Official)", URL: "https://example.com/nse"},
		{Name: "LiveMint Markets", URL: "https://example.com/mint"},
	}
}

func ptrInt64(v int64) *int64 { return &v }

// --- /api/news ---

// TestGetNews_Envelope はレスポンスエンベロープの形をテストする。
func TestGetNews_Envelope(t *testing.T) {
	store := &mockNewsStore{
		items: []model.NewsItem{
			{
				ID:          1,
				Title:       "Sensex hits record high",
				Link:        "https://example.com/1",
				Source:      "LiveMint Markets",
				Summary:     "broad rally",
				PublishedTS: ptrInt64(1705312800), // 2024-01-15 10:00 UTC
				FetchedTS:   1705313000,
			},
			{
				ID:        2,
				Title:     "Undated circular",
				Link:      "https://example.com/2",
				Source:    "NSE Circulars (Official)",
				FetchedTS: 1705313000,
			},
		},
	}
	h := NewNewsHandler(store, &mockStatusProvider{}, testSources(), 250)

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	rec := httptest.NewRecorder()
	h.GetNews(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp struct {
		Sources     []string `json:"sources"`
		Count       int      `json:"count"`
		GeneratedAt string   `json:"generated_at"`
		Items       []struct {
			Title       string  `json:"title"`
			Published   *string `json:"published"`
			PublishedTS *int64  `json:"published_ts"`
			FetchedTS   int64   `json:"fetched_ts"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}

	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("len(sources) = %d, want 2 (configured sources)", len(resp.Sources))
	}
	if resp.GeneratedAt == "" {
		t.Error("generated_at is empty")
	}

	// 日時ありアイテムはIST表示文字列を持つ
	if resp.Items[0].Published == nil || *resp.Items[0].Published != "15 Jan 2024, 03:30 PM IST" {
		t.Errorf("items[0].published = %v, want IST string", resp.Items[0].Published)
	}
	if resp.Items[0].PublishedTS == nil || *resp.Items[0].PublishedTS != 1705312800 {
		t.Errorf("items[0].published_ts = %v, want 1705312800", resp.Items[0].PublishedTS)
	}

	// 日時なしアイテムはfetched_tsで表示時刻を補い、published_tsはnull
	if resp.Items[1].PublishedTS != nil {
		t.Errorf("items[1].published_ts = %v, want null", resp.Items[1].PublishedTS)
	}
	if resp.Items[1].Published == nil {
		t.Error("items[1].published = null, want IST string from fetched_ts")
	}
}

// TestGetNews_PassesFilters はq/srcクエリパラメータがストアクエリに
// 引き渡されることをテストする。
func TestGetNews_PassesFilters(t *testing.T) {
	store := &mockNewsStore{}
	h := NewNewsHandler(store, &mockStatusProvider{}, testSources(), 250)

	req := httptest.NewRequest(http.MethodGet, "/api/news?q=dividend&src=LiveMint+Markets", nil)
	rec := httptest.NewRecorder()
	h.GetNews(rec, req)

	if store.lastQuery.Keyword != "dividend" {
		t.Errorf("Keyword = %q, want %q", store.lastQuery.Keyword, "dividend")
	}
	if store.lastQuery.Source != "LiveMint Markets" {
		t.Errorf("Source = %q, want %q", store.lastQuery.Source, "LiveMint Markets")
	}
	if store.lastQuery.Limit != 250 {
		t.Errorf("Limit = %d, want 250", store.lastQuery.Limit)
	}
}

// TestGetNews_EmptyResult はアイテム0件でも空配列（nullではない）を
// 返すことをテストする。
func TestGetNews_EmptyResult(t *testing.T) {
	h := NewNewsHandler(&mockNewsStore{}, &mockStatusProvider{}, testSources(), 250)

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	rec := httptest.NewRecorder()
	h.GetNews(rec, req)

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if string(resp["items"]) != "[]" {
		t.Errorf("items = %s, want []", resp["items"])
	}
	if string(resp["count"]) != "0" {
		t.Errorf("count = %s, want 0", resp["count"])
	}
}

// TestGetNews_StoreError はストア障害が500になることをテストする。
func TestGetNews_StoreError(t *testing.T) {
	store := &mockNewsStore{err: errors.New("connection refused")}
	h := NewNewsHandler(store, &mockStatusProvider{}, testSources(), 250)

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	rec := httptest.NewRecorder()
	h.GetNews(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error response is not JSON: %v", err)
	}
	if resp["error"] == "" {
		t.Error("error field is empty")
	}
}

// --- /api/health ---

// TestGetHealth は死活確認レスポンスをテストする。
// ストアやポーラーの状態に依存しない。
func TestGetHealth(t *testing.T) {
	h := NewNewsHandler(&mockNewsStore{err: errors.New("db down")}, &mockStatusProvider{}, nil, 250)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.GetHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if !resp["ok"] {
		t.Error(`ok = false, want true`)
	}
}

// --- /api/status ---

// TestGetStatus は最新スナップショットの返却をテストする。
func TestGetStatus(t *testing.T) {
	provider := &mockStatusProvider{
		status: &model.Status{
			CycleID: "cycle-42",
			LastRun: "15 Jan 2024, 03:30 PM IST",
			PerSource: map[string]string{
				"NSE Circulars (Official)": "ok (+3)",
				"LiveMint Markets":         "error: timeout",
			},
			LastError: "LiveMint Markets: timeout",
			Inserted:  3,
		},
	}
	h := NewNewsHandler(&mockNewsStore{}, provider, testSources(), 250)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		CycleID   string            `json:"cycle_id"`
		LastRun   string            `json:"last_run"`
		PerSource map[string]string `json:"per_source"`
		LastError string            `json:"last_error"`
		Inserted  int               `json:"inserted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.CycleID != "cycle-42" {
		t.Errorf("cycle_id = %q, want %q", resp.CycleID, "cycle-42")
	}
	if resp.PerSource["NSE Circulars (Official)"] != "ok (+3)" {
		t.Errorf("per_source = %v, want ok (+3) entry", resp.PerSource)
	}
	if resp.Inserted != 3 {
		t.Errorf("inserted = %d, want 3", resp.Inserted)
	}
}
