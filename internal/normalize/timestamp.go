package normalize

import "time"

// IST はインド標準時（UTC+5:30、DSTなし）。表示整形にのみ使用する。
var IST = time.FixedZone("IST", 5*60*60+30*60)

// istLayout は "15 Jan 2024, 10:00 AM IST" 形式の表示レイアウト。
const istLayout = "02 Jan 2006, 03:04 PM"

// ResolveTimestamp はフィード由来の時刻表現をUTCエポック秒に解決する。
// publishedを優先し、なければupdatedを使う。両方nilならnilを返す。
//
// フィードのカレンダーフィールドはUTC壁時計として解釈される。パーサが返す
// time.Timeはタイムゾーン情報を保持しているため、Unix()がホストのUTCオフセットに
// 依存しないエポック秒を与える。ローカルタイム解釈は使用しない。
func ResolveTimestamp(published, updated *time.Time) *int64 {
	for _, t := range []*time.Time{published, updated} {
		if t == nil || t.IsZero() {
			continue
		}
		ts := t.Unix()
		return &ts
	}
	return nil
}

// FormatIST はUTCエポック秒をIST表示文字列に整形する。
// nil入力にはnilを返す（時刻を持たないアイテムには表示文字列を出さない）。
func FormatIST(ts *int64) *string {
	if ts == nil {
		return nil
	}
	s := time.Unix(*ts, 0).UTC().In(IST).Format(istLayout) + " IST"
	return &s
}

// FormatISTNow は現在時刻のIST表示文字列を返す。
// レスポンスのgenerated_atやステータスのlast_runに使用する。
func FormatISTNow(now time.Time) string {
	return now.UTC().In(IST).Format(istLayout) + " IST"
}
