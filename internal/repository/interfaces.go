// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/lendman/internal/database"
	"github.com/hitoshi/lendman/internal/model"
)

// TxManager は1つの原子的操作を1つのトランザクションとして実行する。
// fnがエラーを返した場合は全変更をロールバックし、正常終了時のみコミットする。
// fnに渡されるQuerierはそのトランザクションにスコープされる。
type TxManager interface {
	WithinTx(ctx context.Context, fn func(q database.Querier) error) error
}

// TitleRepository は蔵書カタログ（titlesテーブル）の永続化インターフェース。
// 各メソッドはQuerierを受け取り、単発クエリにもエンジンのトランザクション内にも参加できる。
type TitleRepository interface {
	// FindByID は指定IDの作品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, q database.Querier, id string) (*model.Title, error)

	// FindByIDForUpdate は指定IDの作品を行ロック付きで取得する。見つからない場合はnilを返す。
	// 同一作品への並行操作はこのロックで直列化される。別作品の操作はブロックしない。
	FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*model.Title, error)

	// Insert は作品を登録する。
	Insert(ctx context.Context, q database.Querier, title *model.Title) error

	// UpdateCounts は作品の総冊数と貸出可能数を更新する。
	UpdateCounts(ctx context.Context, q database.Querier, id string, total, available int) error

	// Delete は指定IDの作品を削除する。
	Delete(ctx context.Context, q database.Querier, id string) error

	// ListAll は全作品をID順ではなく登録順で返す。
	ListAll(ctx context.Context, q database.Querier) ([]*model.Title, error)

	// ListAvailable は貸出可能な複本が残る作品のみ返す。
	ListAvailable(ctx context.Context, q database.Querier) ([]*model.Title, error)

	// Search はnameまたはcreatorに部分一致する作品を返す。大文字小文字は区別しない。
	Search(ctx context.Context, q database.Querier, text string) ([]*model.Title, error)
}

// LoanWithTitle は貸出記録と作品情報を結合した読み取り専用の射影。
// 作品が削除済みの場合はTitleRemovedがtrueになり、作品属性は空になる。
type LoanWithTitle struct {
	LoanID       string
	TitleID      string
	TitleName    string
	TitleCreator string
	TitleRemoved bool
	LoanDate     time.Time
	DueDate      time.Time
	ReturnDate   *time.Time
}

// LoanRepository は貸出台帳（loansテーブル）の永続化インターフェース。
type LoanRepository interface {
	// HasActive は指定利用者が指定作品をすでに借りていて未返却かどうかを返す。
	HasActive(ctx context.Context, q database.Querier, userID, titleID string) (bool, error)

	// FindActiveOwnedForUpdate は指定利用者が所有するアクティブな貸出記録を
	// 行ロック付きで取得する。存在しない・他人の記録・返却済みのいずれもnilを返す。
	FindActiveOwnedForUpdate(ctx context.Context, q database.Querier, loanID, userID string) (*model.Loan, error)

	// Insert は貸出記録を登録する。
	Insert(ctx context.Context, q database.Querier, loan *model.Loan) error

	// MarkReturned はアクティブな貸出記録に返却日時を記録する。
	// 対象がすでに返却済みの場合はfalseを返す。
	MarkReturned(ctx context.Context, q database.Querier, loanID string, returnedAt time.Time) (bool, error)

	// CountActiveForTitle は指定作品のアクティブな貸出件数を返す。
	CountActiveForTitle(ctx context.Context, q database.Querier, titleID string) (int, error)

	// ListActiveByUser は指定利用者のアクティブな貸出を作品情報付きで貸出日順に返す。
	ListActiveByUser(ctx context.Context, q database.Querier, userID string) ([]LoanWithTitle, error)

	// ListHistoryByUser は指定利用者の全貸出履歴を作品情報付きで新しい順に返す。
	// 削除済み作品の履歴も返す。
	ListHistoryByUser(ctx context.Context, q database.Querier, userID string) ([]LoanWithTitle, error)
}
