// Package poller はバックグラウンドのポーリングループを提供する。
//
// 起動直後に1回、以後は固定間隔で集約パイプラインを実行する。間隔は
// 「前サイクルの完了から少なくともinterval後」であり、壁時計に整列しない。
// 低速なソースでサイクルが間隔を超過した場合、次サイクルは完了直後に始まる。
package poller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hitoshi/marketfeed/internal/model"
)

// CycleRunner は1ポーリングサイクルの実行インターフェース。
type CycleRunner interface {
	Run(ctx context.Context, onlySource string) *model.Status
}

// CycleObserver はサイクル所要時間のメトリクス記録インターフェース。
type CycleObserver interface {
	RecordCycleDuration(d time.Duration)
}

// Poller はバックグラウンドポーリングループ。
//
// ステータスはサイクルごとに構築したイミュータブルなスナップショットを
// atomicスワップで公開する。書き込みはポーラーgoroutineのみが行い、
// リクエスト処理側はロックなしで最新スナップショットを読める。
type Poller struct {
	runner   CycleRunner
	observer CycleObserver
	logger   *slog.Logger
	interval time.Duration

	status atomic.Pointer[model.Status]
}

// New はPollerの新しいインスタンスを生成する。
// intervalが0以下の場合はデフォルト60秒を使用する。
func New(runner CycleRunner, observer CycleObserver, logger *slog.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	p := &Poller{
		runner:   runner,
		observer: observer,
		logger:   logger,
		interval: interval,
	}
	p.status.Store(&model.Status{PerSource: map[string]string{}})
	return p
}

// Status は最新のステータススナップショットを返す。
// 返り値はイミュータブルとして扱うこと。
func (p *Poller) Status() *model.Status {
	return p.status.Load()
}

// Start はポーリングループを実行する。コンテキストがキャンセルされるまで
// ブロックする。呼び出し側が専用goroutineで起動し、キャンセルで停止する
// 明示的なライフサイクルを持つ（プロセス起動の副作用としては開始しない）。
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("ポーラーを開始しました",
		slog.Duration("interval", p.interval),
	)

	for {
		p.runCycle(ctx)

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("ポーラーを停止しました")
			return
		case <-timer.C:
		}
	}
}

// runCycle は1サイクルを実行し、ステータスを公開する。
// サイクルから漏れたpanicはここで捕捉され、ループは次の間隔へ継続する。
func (p *Poller) runCycle(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("ポーリングサイクルでpanicが発生しました",
				slog.Any("panic", rec),
			)
			prev := p.status.Load()
			next := &model.Status{
				CycleID:   prev.CycleID,
				LastRun:   prev.LastRun,
				PerSource: prev.PerSource,
				LastError: "poller: panic in poll cycle",
			}
			p.status.Store(next)
		}
	}()

	start := time.Now()
	status := p.runner.Run(ctx, "")
	p.status.Store(status)

	if p.observer != nil {
		p.observer.RecordCycleDuration(time.Since(start))
	}
}
