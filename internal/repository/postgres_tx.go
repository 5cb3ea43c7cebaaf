package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lendman/internal/database"
)

// PostgresTxManager は*sql.DB上でTxManagerを実装する。
type PostgresTxManager struct {
	db *sql.DB
}

// NewPostgresTxManager はPostgresTxManagerを生成する。
func NewPostgresTxManager(db *sql.DB) *PostgresTxManager {
	return &PostgresTxManager{db: db}
}

// WithinTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合・panicした場合はロールバックし、正常終了時のみコミットする。
// ホスト環境のデッドライン切れでctxがキャンセルされた場合もロールバックされ、
// ストアは操作前の状態のまま残る。
func (m *PostgresTxManager) WithinTx(ctx context.Context, fn func(q database.Querier) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
