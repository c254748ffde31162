// Package normalize はフィードエントリの本文と時刻の正規化を提供する。
//
// テキスト正規化はbluemondayの許可タグなしポリシーでマークアップを除去し、
// HTMLエンティティをデコードした上で空白類を単一スペースに畳み込む。
// 不正なネストのマークアップも例外なく除去される（グレースフルデグレード）。
package normalize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy は全タグを除去するbluemondayポリシー。
// ポリシー構築は高コストなのでパッケージ初期化時に1回だけ行う。
// Sanitizeはスレッドセーフであり、複数goroutineから共有できる。
var stripPolicy = bluemonday.StrictPolicy()

// CleanText は生テキストからHTMLエンティティをデコードし、全タグを除去し、
// 改行を含む空白類の連続を単一スペースに畳み込んでトリムする。
// 空入力には空文字列を返す。エラーは発生しない。
func CleanText(raw string) string {
	if raw == "" {
		return ""
	}

	// エンティティをデコードしてからタグを除去する。
	// &lt;b&gt; のようにエンコードされたマークアップもここで実体化されて除去される。
	text := html.UnescapeString(raw)
	text = stripPolicy.Sanitize(text)

	// Sanitizeは残ったテキスト中の特殊文字を再エスケープするため、もう一度デコードする。
	text = html.UnescapeString(text)

	return strings.Join(strings.Fields(text), " ")
}
