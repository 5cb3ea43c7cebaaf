package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/lendman/internal/database"
	"github.com/hitoshi/lendman/internal/model"
)

// PostgresLoanRepo はPostgreSQLを使用した貸出台帳リポジトリ。
// 接続は保持せず、呼び出しごとにQuerierを受け取る。
type PostgresLoanRepo struct{}

// NewPostgresLoanRepo はPostgresLoanRepoを生成する。
func NewPostgresLoanRepo() *PostgresLoanRepo {
	return &PostgresLoanRepo{}
}

// HasActive は指定利用者が指定作品をすでに借りていて未返却かどうかを返す。
func (r *PostgresLoanRepo) HasActive(ctx context.Context, q database.Querier, userID, titleID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM loans
		 WHERE user_id = $1 AND title_id = $2 AND return_date IS NULL`,
		userID, titleID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("貸出中チェックに失敗しました: %w", err)
	}
	return count > 0, nil
}

// FindActiveOwnedForUpdate は指定利用者が所有するアクティブな貸出記録を行ロック付きで取得する。
// 存在しない・他人の記録・返却済みのいずれの場合もnilを返し、呼び出し側はそれらを区別できない。
func (r *PostgresLoanRepo) FindActiveOwnedForUpdate(ctx context.Context, q database.Querier, loanID, userID string) (*model.Loan, error) {
	l := &model.Loan{}
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, title_id, loan_date, due_date, return_date
		 FROM loans
		 WHERE id = $1 AND user_id = $2 AND return_date IS NULL
		 FOR UPDATE`,
		loanID, userID,
	).Scan(&l.ID, &l.UserID, &l.TitleID, &l.LoanDate, &l.DueDate, &l.ReturnDate)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("貸出記録の取得に失敗しました: %w", err)
	}

	return l, nil
}

// Insert は貸出記録を登録する。
func (r *PostgresLoanRepo) Insert(ctx context.Context, q database.Querier, loan *model.Loan) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO loans (id, user_id, title_id, loan_date, due_date, return_date)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		loan.ID, loan.UserID, loan.TitleID, loan.LoanDate, loan.DueDate, loan.ReturnDate,
	)
	if err != nil {
		return fmt.Errorf("貸出記録の登録に失敗しました: %w", err)
	}
	return nil
}

// MarkReturned はアクティブな貸出記録に返却日時を記録する。
// 対象がすでに返却済み、または存在しない場合はfalseを返す。
// return_date IS NULL条件により同じ記録への二重返却は決して成立しない。
func (r *PostgresLoanRepo) MarkReturned(ctx context.Context, q database.Querier, loanID string, returnedAt time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE loans SET return_date = $2 WHERE id = $1 AND return_date IS NULL`,
		loanID, returnedAt,
	)
	if err != nil {
		return false, fmt.Errorf("返却の記録に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("返却の記録結果の確認に失敗しました: %w", err)
	}
	return n > 0, nil
}

// CountActiveForTitle は指定作品のアクティブな貸出件数を返す。
func (r *PostgresLoanRepo) CountActiveForTitle(ctx context.Context, q database.Querier, titleID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM loans WHERE title_id = $1 AND return_date IS NULL`,
		titleID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("アクティブな貸出件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

func (r *PostgresLoanRepo) listLoansWithTitle(ctx context.Context, q database.Querier, query string, args ...any) ([]LoanWithTitle, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("貸出一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var loans []LoanWithTitle
	for rows.Next() {
		var lw LoanWithTitle
		var name, creator *string
		if err := rows.Scan(&lw.LoanID, &lw.TitleID, &name, &creator, &lw.LoanDate, &lw.DueDate, &lw.ReturnDate); err != nil {
			return nil, fmt.Errorf("貸出行の読み取りに失敗しました: %w", err)
		}
		// LEFT JOINで作品が見つからない＝削除済み。履歴は残す。
		if name == nil {
			lw.TitleRemoved = true
		} else {
			lw.TitleName = *name
			lw.TitleCreator = *creator
		}
		loans = append(loans, lw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("貸出一覧の走査に失敗しました: %w", err)
	}
	return loans, nil
}

// ListActiveByUser は指定利用者のアクティブな貸出を作品情報付きで貸出日順に返す。
func (r *PostgresLoanRepo) ListActiveByUser(ctx context.Context, q database.Querier, userID string) ([]LoanWithTitle, error) {
	return r.listLoansWithTitle(ctx, q,
		`SELECT l.id, l.title_id, t.name, t.creator, l.loan_date, l.due_date, l.return_date
		 FROM loans l LEFT JOIN titles t ON t.id = l.title_id
		 WHERE l.user_id = $1 AND l.return_date IS NULL
		 ORDER BY l.loan_date, l.id`,
		userID,
	)
}

// ListHistoryByUser は指定利用者の全貸出履歴を作品情報付きで新しい順に返す。
// 削除済み作品の履歴も返る（TitleRemovedがtrueになる）。
func (r *PostgresLoanRepo) ListHistoryByUser(ctx context.Context, q database.Querier, userID string) ([]LoanWithTitle, error) {
	return r.listLoansWithTitle(ctx, q,
		`SELECT l.id, l.title_id, t.name, t.creator, l.loan_date, l.due_date, l.return_date
		 FROM loans l LEFT JOIN titles t ON t.id = l.title_id
		 WHERE l.user_id = $1
		 ORDER BY l.loan_date DESC, l.id DESC`,
		userID,
	)
}
