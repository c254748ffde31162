package config

import (
	"net/url"

	"github.com/hitoshi/marketfeed/internal/model"
)

// インド株式市場関連のRSSフィードURL。
const (
	nseFinancialResults   = "https://nsearchives.nseindia.com/content/RSS/Financial_Results.xml"
	nseAnnouncements      = "https://nsearchives.nseindia.com/content/RSS/Online_announcements.xml"
	nseCorporateActions   = "https://nsearchives.nseindia.com/content/RSS/Corporate_action.xml"
	livemintMarkets       = "https://www.livemint.com/rss/markets"
	economicTimesMarkets  = "https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms"
	googleNewsSearchQuery = `(NSE OR BSE OR "bonus issue" OR dividend OR buyback OR "stock split" OR rights issue) -crypto -bitcoin -ethereum when:2d`
)

// GoogleNewsRSS は検索クエリからGoogle News RSSのURLを構築する。
// hl/gl/ceidはインド英語版に固定したデフォルトを用いる。
func GoogleNewsRSS(query, hl, gl, ceid string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", hl)
	v.Set("gl", gl)
	v.Set("ceid", ceid)
	return "https://news.google.com/rss/search?" + v.Encode()
}

// DefaultSources は組み込みのフィードソース一覧を返す。
// FEED_SOURCES環境変数で上書き可能。
func DefaultSources() []model.Source {
	return []model.Source{
		{Name: "NSE Financial Results", URL: nseFinancialResults},
		{Name: "NSE Announcements", URL: nseAnnouncements},
		{Name: "NSE Corporate Actions (Official)", URL: nseCorporateActions},
		{Name: "LiveMint Markets", URL: livemintMarkets},
		{Name: "Economic Times Markets", URL: economicTimesMarkets},
		{Name: "Google News (India equities)", URL: GoogleNewsRSS(googleNewsSearchQuery, "en-IN", "IN", "IN:en")},
	}
}

// DefaultIncludeKeywords は組み込みの採用キーワード一覧を返す。
func DefaultIncludeKeywords() []string {
	return []string{
		"nse", "bse", "nifty", "sensex",
		"dividend", "buyback", "split", "bonus", "rights issue",
		"ipo", "results", "earnings", "shares", "stock",
		"equity", "equities", "gold", "silver", "commodities",
	}
}

// DefaultExcludeKeywords は組み込みの除外キーワード一覧を返す。
func DefaultExcludeKeywords() []string {
	return []string{"crypto", "bitcoin", "ethereum"}
}
