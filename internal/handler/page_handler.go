package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/marketfeed/internal/model"
	"github.com/hitoshi/marketfeed/internal/normalize"
)

// pageTemplate はトップページのテンプレート。
// 60秒ごとに自動リロードし、q/srcフィルタとステータスブロックを表示する。
var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
  <title>Indian Equity Markets</title>
  <meta http-equiv="refresh" content="60">
  <style>
    body { font-family: system-ui; margin: 24px; max-width: 1000px; }
    .row { display:flex; gap:10px; margin-bottom:12px; flex-wrap:wrap; }
    input, select, button { padding:8px; font-size:14px; }
    .status { background:#f6f6f6; padding:12px; border:1px solid #ddd; border-radius:10px; margin: 12px 0 18px; font-size: 13px; }
    .item { padding:14px 0; border-bottom:1px solid #ddd; }
    .src { font-size:12px; color:#555; margin-top:4px; }
    .sum { font-size:13px; color:#333; margin-top:6px; }
    a { text-decoration:none; color:#111; }
    a:hover { text-decoration:underline; }
  </style>
</head>
<body>

<h2>Indian Equity Markets</h2>

<form class="row" method="get" action="/">
  <input name="q" value="{{.Q}}" placeholder="Keyword (e.g., dividend, bonus, rights, buyback, reliance)" size="55">
  <select name="src">
    <option value="">All sources</option>
    {{range .Sources}}
      <option value="{{.}}" {{if eq . $.Src}}selected{{end}}>{{.}}</option>
    {{end}}
  </select>
  <button type="submit">Apply</button>
  <a href="/" style="padding:8px 0; display:inline-block;">Reset</a>
</form>

<div class="status">
  <div><b>Status</b></div>
  <div>Last fetch: {{.Status.LastRun}}</div>
  <div>Per source:</div>
  <ul>
    {{range $name, $outcome := .Status.PerSource}}
      <li>{{$name}} &mdash; {{$outcome}}</li>
    {{end}}
  </ul>
  {{if .Status.LastError}}
    <div><b>Last error:</b> {{.Status.LastError}}</div>
  {{end}}
</div>

{{if not .Items}}
  <p>No items yet. Leave it running 1-2 minutes, then refresh.</p>
{{end}}

{{range .Items}}
  <div class="item">
    <div>
      <a href="{{.Link}}" target="_blank" rel="noopener noreferrer">{{.Title}}</a>
    </div>
    {{if .Summary}}
      <div class="sum">{{.Summary}}</div>
    {{end}}
    <div class="src">
      {{.Source}}{{if .Published}} &bull; {{.Published}}{{end}}
    </div>
  </div>
{{end}}

</body>
</html>
`))

// pageItem はページ描画用の1アイテム。
type pageItem struct {
	Title     string
	Link      string
	Source    string
	Summary   string
	Published string // IST表示文字列。時刻がなければ空
}

// pageData はページテンプレートに渡すデータ。
type pageData struct {
	Items   []pageItem
	Sources []string
	Q       string
	Src     string
	Status  *model.Status
}

// PageHandler はトップページのHTTPハンドラー。
// APIと同一のストアクエリ（同一のq/srcセマンティクス）で描画する。
type PageHandler struct {
	store  NewsStore
	status StatusProvider
	limit  int
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(store NewsStore, status StatusProvider, limit int) *PageHandler {
	return &PageHandler{
		store:  store,
		status: status,
		limit:  limit,
	}
}

// GetPage はフィルタ付きのニュース一覧ページを描画する。
// GET /?q=<keyword>&src=<source name>
func (h *PageHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	src := r.URL.Query().Get("src")

	items, err := h.store.Search(r.Context(), model.ItemQuery{
		Keyword: q,
		Source:  src,
		Limit:   h.limit,
	})
	if err != nil {
		slog.Error("ページ描画用の検索に失敗しました", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// セレクタにはストアに実在するソースを使う
	sources, err := h.store.DistinctSources(r.Context())
	if err != nil {
		slog.Error("ソース一覧の取得に失敗しました", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Items:   make([]pageItem, 0, len(items)),
		Sources: sources,
		Q:       q,
		Src:     src,
		Status:  h.status.Status(),
	}

	for _, item := range items {
		published := ""
		if s := normalize.FormatIST(effectiveTS(item)); s != nil {
			published = *s
		}
		data.Items = append(data.Items, pageItem{
			Title:     item.Title,
			Link:      item.Link,
			Source:    item.Source,
			Summary:   item.Summary,
			Published: published,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		slog.Error("ページテンプレートの描画に失敗しました", slog.String("error", err.Error()))
	}
}
