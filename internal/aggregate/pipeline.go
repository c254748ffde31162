// Package aggregate はフィード集約パイプラインを提供する。
//
// 設定済みの各ソースに対してフェッチ、正規化、関連性フィルタ、重複排除を
// 適用し、ニュースアイテムとしてストアに取り込む。失敗したソースはスキップ
// して記録するだけで、1つの不調なソースが集約全体を止めることはない。
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/marketfeed/internal/fetch"
	"github.com/hitoshi/marketfeed/internal/filter"
	"github.com/hitoshi/marketfeed/internal/model"
	"github.com/hitoshi/marketfeed/internal/normalize"
	"github.com/hitoshi/marketfeed/internal/store"
)

// SourceFetcher はソースのフェッチインターフェース。
type SourceFetcher interface {
	Fetch(ctx context.Context, source model.Source) ([]model.RawEntry, error)
}

// MetricsRecorder はパイプラインが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordFetchSuccess(source string)
	RecordFetchFailure(source string)
	RecordBozo(source string)
	RecordItemsInserted(count int)
}

// Pipeline はフィード集約パイプライン。1回の実行が1ポーリングサイクルに相当する。
type Pipeline struct {
	sources   []model.Source
	fetcher   SourceFetcher
	store     store.ItemStore
	relevance *filter.Relevance
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewPipeline はPipelineの新しいインスタンスを生成する。
func NewPipeline(
	sources []model.Source,
	fetcher SourceFetcher,
	itemStore store.ItemStore,
	relevance *filter.Relevance,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		sources:   sources,
		fetcher:   fetcher,
		store:     itemStore,
		relevance: relevance,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run は全ソースを1回処理し、結果のステータススナップショットを返す。
//
// onlySourceが空でない場合は該当ソースのみ処理する。各ソースの失敗は
// ステータスに記録して次のソースへ進む（同一サイクル内のリトライなし、
// 全体の中断なし）。戻り値のStatusはイミュータブルとして扱うこと。
func (p *Pipeline) Run(ctx context.Context, onlySource string) *model.Status {
	start := time.Now()

	status := &model.Status{
		CycleID:   uuid.New().String(),
		PerSource: make(map[string]string, len(p.sources)),
	}

	for _, source := range p.sources {
		if onlySource != "" && source.Name != onlySource {
			continue
		}

		outcome := p.processSource(ctx, source, status)
		status.PerSource[source.Name] = outcome
	}

	status.LastRun = normalize.FormatISTNow(time.Now())

	// 挿入ゼロかつ明示エラーなしのサイクルは「静かなフィード」と
	// 「沈黙した障害」を運用者が区別できるよう汎用診断を残す
	if status.Inserted == 0 && status.LastError == "" {
		status.LastError = "No new items inserted (may be empty feeds or blocked requests)."
	}

	p.logger.Info("集約サイクルが完了しました",
		slog.String("cycle_id", status.CycleID),
		slog.Int("inserted", status.Inserted),
		slog.Int("source_count", len(status.PerSource)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return status
}

// processSource は1ソースを処理し、ステータス表示用の結果文字列を返す。
// パニックを含むあらゆる失敗をこの境界で捕捉する。
func (p *Pipeline) processSource(ctx context.Context, source model.Source, status *model.Status) (outcome string) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("ソース処理でpanicが発生しました",
				slog.String("source", source.Name),
				slog.Any("panic", rec),
			)
			status.LastError = fmt.Sprintf("%s: panic: %v", source.Name, rec)
			outcome = "error: panic"
		}
	}()

	entries, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) && fetchErr.Bozo {
			p.metrics.RecordBozo(source.Name)
			p.logger.Warn("不正なフィードドキュメントをスキップします",
				slog.String("source", source.Name),
				slog.String("error", err.Error()),
			)
			return "bozo: " + fetchErr.Kind
		}

		p.metrics.RecordFetchFailure(source.Name)
		p.logger.Warn("ソースのフェッチに失敗しました",
			slog.String("source", source.Name),
			slog.String("error", err.Error()),
		)
		status.LastError = fmt.Sprintf("%s: %s", source.Name, err.Error())

		kind := "transport"
		if errors.As(err, &fetchErr) {
			kind = fetchErr.Kind
		}
		return "error: " + kind
	}

	p.metrics.RecordFetchSuccess(source.Name)

	now := time.Now().UTC().Unix()
	inserted := 0

	for _, entry := range entries {
		title := normalize.CleanText(entry.Title)
		if title == "" {
			// タイトルのないエントリは黙って破棄（エラーとして数えない）
			continue
		}
		summary := normalize.CleanText(entry.Summary)

		if !p.relevance.Accept(source, title, summary) {
			continue
		}

		item := &model.NewsItem{
			Title:       title,
			Link:        strings.TrimSpace(entry.Link),
			Source:      source.Name,
			Summary:     summary,
			PublishedTS: normalize.ResolveTimestamp(entry.Published, entry.Updated),
			FetchedTS:   now,
		}

		ok, err := p.store.InsertIgnore(ctx, item)
		if err != nil {
			p.logger.Error("アイテムの保存に失敗しました",
				slog.String("source", source.Name),
				slog.String("title", title),
				slog.String("error", err.Error()),
			)
			status.LastError = fmt.Sprintf("%s: %s", source.Name, err.Error())
			return "error: store"
		}
		if ok {
			inserted++
		}
	}

	status.Inserted += inserted
	p.metrics.RecordItemsInserted(inserted)

	return fmt.Sprintf("ok (+%d)", inserted)
}
