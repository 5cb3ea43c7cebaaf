package database

import (
	"context"
	"database/sql"
)

// Querier は*sql.DBと*sql.Txの共通部分を表すインターフェース。
// リポジトリのメソッドはQuerierを受け取ることで、単発クエリと
// エンジンのトランザクション内の両方から同じコードで実行できる。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)
