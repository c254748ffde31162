// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Source は設定済みのフィードソース（表示名と取得URLの不変ペア）を表す。
// 同一性はNameで判定する。ソース集合はプロセス起動時に固定される。
type Source struct {
	Name string
	URL  string
}

// TrustedPrefix はキーワードフィルタを免除する公式ソース名のプレフィックス。
const TrustedPrefix = "NSE "

// Trusted はこのソースがキーワードフィルタ免除の一次取引所公式フィードかを返す。
func (s Source) Trusted() bool {
	return strings.HasPrefix(s.Name, TrustedPrefix)
}

// RawEntry はフィードからパースした1エントリの一時表現。
// タイトル・サマリーは未正規化の生テキスト。1回のフェッチサイクルの間のみ
// 存在し、独立したライフサイクルを持たない。
type RawEntry struct {
	Title     string
	Link      string
	Summary   string
	Published *time.Time // フィード申告の公開時刻。欠落・解析不能ならnil
	Updated   *time.Time // フィード申告の更新時刻。欠落・解析不能ならnil
}

// NewsItem は正規化・重複排除済みの永続エンティティ。
// 同一性は(Title, Source)で判定し、重複到着は挿入時に黙って破棄される。
// 既存レコードのフィールドが後続の重複によって上書きされることはない。
type NewsItem struct {
	ID          int64
	Title       string
	Link        string
	Source      string
	Summary     string
	PublishedTS *int64 // UTCエポック秒。欠落時はnil
	FetchedTS   int64  // 取り込み時刻（UTCエポック秒）
}

// ItemQuery は保存済みアイテムの検索条件を表す。
// Keywordはtitle/summaryに対する大文字小文字を区別しない部分一致、
// Sourceはソース名の完全一致。ゼロ値は条件なしを意味する。
type ItemQuery struct {
	Keyword string
	Source  string
	Limit   int
}
