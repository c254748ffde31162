package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/marketfeed/internal/model"
)

// ItemStore はニュースアイテムの永続化操作のインターフェース。
type ItemStore interface {
	// InsertIgnore はアイテムを挿入する。(title, source)が既存の場合は
	// 何もせずfalseを返す（既存レコードは一切変更されない）。
	InsertIgnore(ctx context.Context, item *model.NewsItem) (bool, error)
	// Search は条件に一致するアイテムを新しい順に返す。
	Search(ctx context.Context, q model.ItemQuery) ([]model.NewsItem, error)
	// DistinctSources はストアに実在するソース名の一覧を返す。
	DistinctSources(ctx context.Context) ([]string, error)
	// DeleteOlderThan はfetched_tsがcutoffより古いアイテムを削除する。
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)
}

// PostgresItemStore はPostgreSQLを使用したItemStoreの実装。
type PostgresItemStore struct {
	db *sql.DB
}

// NewPostgresItemStore はPostgresItemStoreを生成する。
func NewPostgresItemStore(db *sql.DB) *PostgresItemStore {
	return &PostgresItemStore{db: db}
}

// InsertIgnore はアイテムをINSERT ... ON CONFLICT DO NOTHINGで挿入する。
// 重複キーは衝突としてもエラーとしても扱わず、黙って破棄する。
// 挿入された場合のみtrueを返す。
func (s *PostgresItemStore) InsertIgnore(ctx context.Context, item *model.NewsItem) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO items (title, link, source, summary, published_ts, fetched_ts)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (title, source) DO NOTHING`,
		item.Title, item.Link, item.Source, item.Summary,
		nullInt64(item.PublishedTS), item.FetchedTS,
	)
	if err != nil {
		return false, fmt.Errorf("アイテムの挿入に失敗しました: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// Search は条件に一致するアイテムを取得する。
// キーワードはtitle/summaryへの大文字小文字を区別しない部分一致、
// ソースは完全一致。並び順はCOALESCE(published_ts, fetched_ts)の降順で、
// 時刻を持たないアイテムほど後に並ぶ。
func (s *PostgresItemStore) Search(ctx context.Context, q model.ItemQuery) ([]model.NewsItem, error) {
	baseQuery := `SELECT id, title, link, source, COALESCE(summary, ''), published_ts, fetched_ts
	              FROM items`

	var args []interface{}
	var where []string

	if q.Keyword != "" {
		args = append(args, "%"+q.Keyword+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR summary ILIKE $%d)", len(args), len(args)))
	}
	if q.Source != "" {
		args = append(args, q.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}

	for i, cond := range where {
		if i == 0 {
			baseQuery += " WHERE " + cond
		} else {
			baseQuery += " AND " + cond
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 150
	}
	args = append(args, limit)
	baseQuery += fmt.Sprintf(" ORDER BY COALESCE(published_ts, fetched_ts) DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("アイテムの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.NewsItem
	for rows.Next() {
		var item model.NewsItem
		var publishedTS sql.NullInt64

		if err := rows.Scan(
			&item.ID, &item.Title, &item.Link, &item.Source,
			&item.Summary, &publishedTS, &item.FetchedTS,
		); err != nil {
			return nil, fmt.Errorf("アイテム行の読み取りに失敗しました: %w", err)
		}
		if publishedTS.Valid {
			ts := publishedTS.Int64
			item.PublishedTS = &ts
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイテム一覧の走査に失敗しました: %w", err)
	}

	return items, nil
}

// DistinctSources はストアに実在するソース名をソート済みで返す。
// UIのフィルタセレクタに使用する。
func (s *PostgresItemStore) DistinctSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source FROM items ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("ソース行の読み取りに失敗しました: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の走査に失敗しました: %w", err)
	}

	return sources, nil
}

// DeleteOlderThan はfetched_tsがcutoff（UTCエポック秒）より古いアイテムを削除する。
// 冪等であり、削除対象がなくてもエラーにならない。
func (s *PostgresItemStore) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM items WHERE fetched_ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("アイテムの削除に失敗しました: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// compile-time interface check
var _ ItemStore = (*PostgresItemStore)(nil)
