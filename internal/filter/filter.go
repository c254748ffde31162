// Package filter はエントリの話題関連性を判定するキーワードフィルタを提供する。
package filter

import (
	"strings"

	"github.com/hitoshi/marketfeed/internal/model"
)

// Relevance は採用/除外キーワード集合による関連性判定器。
// 判定はタイトルとサマリーを連結したhaystackへの大文字小文字を区別しない部分一致で行う。
type Relevance struct {
	include []string
	exclude []string
}

// NewRelevance はRelevanceを生成する。キーワードは小文字に正規化して保持する。
func NewRelevance(include, exclude []string) *Relevance {
	return &Relevance{
		include: lowerAll(include),
		exclude: lowerAll(exclude),
	}
}

// Accept はエントリを採用すべきかを返す。
//
// 信頼ソース（一次取引所公式フィード）はキーワード判定を完全に免除する。
// それ以外は、除外キーワードに1つでも一致すれば拒否（除外が優先）、
// 採用キーワードに1つも一致しなければ拒否する。
func (r *Relevance) Accept(source model.Source, title, summary string) bool {
	if source.Trusted() {
		return true
	}
	return r.matches(title + " " + summary)
}

// matches はhaystackに対する採用/除外判定を行う。
func (r *Relevance) matches(haystack string) bool {
	hay := strings.ToLower(haystack)
	for _, x := range r.exclude {
		if strings.Contains(hay, x) {
			return false
		}
	}
	for _, k := range r.include {
		if strings.Contains(hay, k) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
