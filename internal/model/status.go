package model

// Status は1回のポーリングサイクルの結果を表すイミュータブルなスナップショット。
// サイクルごとに新しいインスタンスを構築し、atomicスワップで公開する。
// フィールド単位のミューテーションは行わない（torn read防止）。
type Status struct {
	CycleID   string            // サイクルごとのUUID
	LastRun   string            // 最終実行時刻のIST表示文字列
	PerSource map[string]string // ソース名 -> 結果 ("ok (+3)" / "error: <kind>" / "bozo: <kind>")
	LastError string            // 直近のエラーメッセージ（なければ空）
	Inserted  int               // このサイクルで挿入されたアイテム数
}
