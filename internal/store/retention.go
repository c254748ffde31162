package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionJob は保持期間を超過したアイテムの自動削除ジョブ。
// データ保持ポリシーがないとアイテムは無期限に蓄積するため、
// 日次バッチで保持期間（デフォルト180日）より古いものを削除する。
type RetentionJob struct {
	store         ItemStore
	logger        *slog.Logger
	RetentionDays int // 保持日数。0以下で無効
}

// NewRetentionJob は新しいRetentionJobを生成する。
func NewRetentionJob(store ItemStore, logger *slog.Logger, retentionDays int) *RetentionJob {
	return &RetentionJob{
		store:         store,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run は保持期間を超過したアイテムを削除する。冪等。
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.RetentionDays <= 0 {
		return nil
	}

	start := time.Now()
	cutoff := start.UTC().AddDate(0, 0, -j.RetentionDays).Unix()

	deleted, err := j.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("アイテム保持ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("アイテム保持ジョブの実行に失敗: %w", err)
	}

	j.logger.Info("アイテム保持ジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は保持ジョブを起動直後に1回、以後は日次で実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *RetentionJob) Start(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("retention job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("retention job failed", slog.String("error", err.Error()))
			}
		}
	}
}
