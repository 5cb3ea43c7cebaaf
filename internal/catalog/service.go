// Package catalog は蔵書と貸出の読み取り専用ビューを提供する。
// 書き込み経路（整合性エンジン）には関与せず、呼び出しごとの一貫性だけを持つ。
// スナップショットは多少古くてもよいが、不可能な状態（負の在庫など）は
// スキーマ制約とエンジンの直列化により決して観測されない。
package catalog

import (
	"context"
	"time"

	"github.com/hitoshi/lendman/internal/database"
	"github.com/hitoshi/lendman/internal/model"
	"github.com/hitoshi/lendman/internal/repository"
)

// LoanView は表示層向けの貸出情報。
// 作品が削除済みの場合はTitleRemovedがtrueになり、作品属性は空になる。
// 表示層はその場合にプレースホルダを表示する。
type LoanView struct {
	LoanID       string
	TitleID      string
	TitleName    string
	TitleCreator string
	TitleRemoved bool
	LoanDate     time.Time
	DueDate      time.Time
	ReturnDate   *time.Time
	Returned     bool
	Overdue      bool
}

// Service は読み取り専用のクエリファサード。
type Service struct {
	db     database.Querier
	titles repository.TitleRepository
	loans  repository.LoanRepository
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(db database.Querier, titles repository.TitleRepository, loans repository.LoanRepository) *Service {
	return &Service{
		db:     db,
		titles: titles,
		loans:  loans,
		now:    time.Now,
	}
}

// GetTitle は指定IDの作品を返す。見つからない場合はTITLE_NOT_FOUNDを返す。
func (s *Service) GetTitle(ctx context.Context, titleID string) (*model.Title, error) {
	title, err := s.titles.FindByID(ctx, s.db, titleID)
	if err != nil {
		return nil, model.NewStorageFailureError(err)
	}
	if title == nil {
		return nil, model.NewTitleNotFoundError(titleID)
	}
	return title, nil
}

// ListAll は全作品を登録順で返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Title, error) {
	titles, err := s.titles.ListAll(ctx, s.db)
	if err != nil {
		return nil, model.NewStorageFailureError(err)
	}
	return titles, nil
}

// ListAvailable は貸出可能な複本が残る作品のみ返す。
func (s *Service) ListAvailable(ctx context.Context) ([]*model.Title, error) {
	titles, err := s.titles.ListAvailable(ctx, s.db)
	if err != nil {
		return nil, model.NewStorageFailureError(err)
	}
	return titles, nil
}

// Search は作品名または作者名に部分一致する作品を返す。大文字小文字は区別しない。
func (s *Service) Search(ctx context.Context, text string) ([]*model.Title, error) {
	titles, err := s.titles.Search(ctx, s.db, text)
	if err != nil {
		return nil, model.NewStorageFailureError(err)
	}
	return titles, nil
}

// ActiveLoansFor は指定利用者のアクティブな貸出一覧を貸出日順で返す。
func (s *Service) ActiveLoansFor(ctx context.Context, userID string) ([]LoanView, error) {
	rows, err := s.loans.ListActiveByUser(ctx, s.db, userID)
	if err != nil {
		return nil, model.NewStorageFailureError(err)
	}
	return s.toViews(rows), nil
}

// HistoryFor は指定利用者の全貸出履歴を新しい順で返す。
// 返却済み・貸出中のステータスはReturnDateの有無から導出される。
func (s *Service) HistoryFor(ctx context.Context, userID string) ([]LoanView, error) {
	rows, err := s.loans.ListHistoryByUser(ctx, s.db, userID)
	if err != nil {
		return nil, model.NewStorageFailureError(err)
	}
	return s.toViews(rows), nil
}

func (s *Service) toViews(rows []repository.LoanWithTitle) []LoanView {
	at := s.now()
	views := make([]LoanView, len(rows))
	for i, row := range rows {
		views[i] = LoanView{
			LoanID:       row.LoanID,
			TitleID:      row.TitleID,
			TitleName:    row.TitleName,
			TitleCreator: row.TitleCreator,
			TitleRemoved: row.TitleRemoved,
			LoanDate:     row.LoanDate,
			DueDate:      row.DueDate,
			ReturnDate:   row.ReturnDate,
			Returned:     row.ReturnDate != nil,
			Overdue:      row.ReturnDate == nil && at.After(row.DueDate),
		}
	}
	return views
}
