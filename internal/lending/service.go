// Package lending は在庫と貸出の整合性エンジンを提供する。
// 貸出・返却・作品登録・在庫調整・作品削除の各操作を、蔵書カタログと
// 貸出台帳にまたがる1つの原子的なトランザクションとして実行する。
package lending

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/lendman/internal/database"
	"github.com/hitoshi/lendman/internal/metrics"
	"github.com/hitoshi/lendman/internal/model"
	"github.com/hitoshi/lendman/internal/repository"
)

// 操作名。メトリクスのラベルに使用する。
const (
	opBorrow         = "borrow"
	opReturn         = "return"
	opAddTitle       = "add_title"
	opAdjustCapacity = "adjust_capacity"
	opRemoveTitle    = "remove_title"
)

// PostgreSQLエラーコード
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Service は整合性エンジンのサービス層。
// 各操作は作品行をFOR UPDATEでロックしてから依存する読み取りを行うため、
// 同一作品への並行操作は直列化され、別作品への操作は互いにブロックしない。
// 業務ルール違反はmodel.DomainErrorとして返し、ストレージ障害は
// STORAGE_FAILUREに包んで返す。自動リトライは行わない。
//
// 管理者専用操作（AddTitle、AdjustCapacity、RemoveTitle）の権限チェックは
// 呼び出し側の責務であり、エンジンはすでに検証済みの入力を前提とする。
type Service struct {
	tx      repository.TxManager
	titles  repository.TitleRepository
	loans   repository.LoanRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	tx repository.TxManager,
	titles repository.TitleRepository,
	loans repository.LoanRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		tx:      tx,
		titles:  titles,
		loans:   loans,
		metrics: collector,
		now:     time.Now,
	}
}

// run は1つの操作を1トランザクションとして実行し、結果をメトリクスに記録する。
// fnが返したDomainErrorはそのまま伝播し、それ以外のエラーはSTORAGE_FAILUREに包む。
func (s *Service) run(ctx context.Context, operation string, fn func(q database.Querier) error) error {
	start := s.now()
	err := s.tx.WithinTx(ctx, fn)
	duration := s.now().Sub(start)

	if err == nil {
		s.metrics.RecordOperationSuccess(operation, duration)
		return nil
	}

	var de *model.DomainError
	if !errors.As(err, &de) {
		de = mapStorageError(err)
	}
	s.metrics.RecordOperationFailure(operation, de.Code, duration)
	return de
}

// mapStorageError はリポジトリ層のエラーを業務エラーに対応付ける。
// スキーマの防衛線（アクティブ貸出の部分ユニークインデックス、利用者の外部キー）に
// 当たった場合はそれぞれの業務エラーとして返し、それ以外はストレージ障害として返す。
func mapStorageError(err error) *model.DomainError {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return model.NewDuplicateLoanError("")
		case pgForeignKeyViolation:
			return model.NewInvalidInputError("利用者が存在しません")
		}
	}
	return model.NewStorageFailureError(err)
}

// Borrow は指定利用者に指定作品の複本を1冊貸し出す。
// 作品行のロック下で在庫と重複貸出を検査し、在庫の減算と貸出記録の登録を
// 同一トランザクションでコミットする。最後の1冊への並行貸出は
// どちらか一方だけが成功し、もう一方はCOPIES_UNAVAILABLEで失敗する。
func (s *Service) Borrow(ctx context.Context, userID, titleID string) (*model.Loan, error) {
	var loan *model.Loan

	err := s.run(ctx, opBorrow, func(q database.Querier) error {
		title, err := s.titles.FindByIDForUpdate(ctx, q, titleID)
		if err != nil {
			return err
		}
		if title == nil {
			return model.NewTitleNotFoundError(titleID)
		}
		if title.CopiesAvailable <= 0 {
			return model.NewCopiesUnavailableError(titleID)
		}

		active, err := s.loans.HasActive(ctx, q, userID, titleID)
		if err != nil {
			return err
		}
		if active {
			return model.NewDuplicateLoanError(titleID)
		}

		if err := s.titles.UpdateCounts(ctx, q, titleID, title.CopiesTotal, title.CopiesAvailable-1); err != nil {
			return err
		}

		loanedAt := s.now()
		loan = &model.Loan{
			ID:       uuid.NewString(),
			UserID:   userID,
			TitleID:  titleID,
			LoanDate: loanedAt,
			DueDate:  loanedAt.Add(model.LoanPeriod),
		}
		return s.loans.Insert(ctx, q, loan)
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

// Return は指定利用者が指定の貸出記録を返却する。
// 返却日時の記録と在庫の加算を同一トランザクションでコミットする。
// 他人の貸出記録と存在しない記録はどちらもLOAN_NOT_FOUNDで返し、区別できない。
// すでに返却済みの記録もLOAN_NOT_FOUNDで失敗し、在庫は二重に加算されない。
func (s *Service) Return(ctx context.Context, userID, loanID string) (*model.Loan, error) {
	var loan *model.Loan

	err := s.run(ctx, opReturn, func(q database.Querier) error {
		found, err := s.loans.FindActiveOwnedForUpdate(ctx, q, loanID, userID)
		if err != nil {
			return err
		}
		if found == nil {
			return model.NewLoanNotFoundError(loanID)
		}

		title, err := s.titles.FindByIDForUpdate(ctx, q, found.TitleID)
		if err != nil {
			return err
		}
		if title == nil {
			// アクティブな貸出が残る作品は削除できないため、到達するのは
			// エンジン外でストアが直接操作された場合のみ。
			return model.NewTitleNotFoundError(found.TitleID)
		}

		returnedAt := s.now()
		marked, err := s.loans.MarkReturned(ctx, q, loanID, returnedAt)
		if err != nil {
			return err
		}
		if !marked {
			return model.NewLoanNotFoundError(loanID)
		}

		if err := s.titles.UpdateCounts(ctx, q, title.ID, title.CopiesTotal, title.CopiesAvailable+1); err != nil {
			return err
		}

		found.ReturnDate = &returnedAt
		loan = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

// AddTitle は新しい作品をカタログに登録する。管理者専用（検査は呼び出し側）。
// 総冊数と貸出可能数はどちらもinitialCopiesで初期化される。
func (s *Service) AddTitle(ctx context.Context, name, creator string, year *int, initialCopies int) (*model.Title, error) {
	var title *model.Title

	err := s.run(ctx, opAddTitle, func(q database.Querier) error {
		if strings.TrimSpace(name) == "" {
			return model.NewInvalidInputError("作品名が空です")
		}
		if strings.TrimSpace(creator) == "" {
			return model.NewInvalidInputError("作者名が空です")
		}
		if initialCopies < 1 {
			return model.NewInvalidInputError("冊数は1以上を指定してください")
		}

		title = &model.Title{
			ID:              uuid.NewString(),
			Name:            strings.TrimSpace(name),
			Creator:         strings.TrimSpace(creator),
			Year:            year,
			CopiesTotal:     initialCopies,
			CopiesAvailable: initialCopies,
			CreatedAt:       s.now(),
		}
		return s.titles.Insert(ctx, q, title)
	})
	if err != nil {
		return nil, err
	}

	return title, nil
}

// AdjustCapacity は作品の総冊数を変更する。管理者専用（検査は呼び出し側）。
// 貸出中の冊数を保存したまま差分を貸出可能数に反映する:
//
//	newAvailable = oldAvailable + (newTotal - oldTotal)
//
// newAvailableが負になる場合、つまり新しい総冊数が貸出中の冊数を下回る場合は
// CAPACITY_BELOW_OUTSTANDINGで拒否し、ゼロへの丸め込みは行わない。
func (s *Service) AdjustCapacity(ctx context.Context, titleID string, newTotal int) (*model.Title, error) {
	var title *model.Title

	err := s.run(ctx, opAdjustCapacity, func(q database.Querier) error {
		if newTotal < 0 {
			return model.NewInvalidInputError("総冊数は0以上を指定してください")
		}

		found, err := s.titles.FindByIDForUpdate(ctx, q, titleID)
		if err != nil {
			return err
		}
		if found == nil {
			return model.NewTitleNotFoundError(titleID)
		}

		delta := newTotal - found.CopiesTotal
		newAvailable := found.CopiesAvailable + delta
		if newAvailable < 0 {
			outstanding := found.CopiesTotal - found.CopiesAvailable
			return model.NewCapacityBelowOutstandingError(titleID, newTotal, outstanding)
		}

		if err := s.titles.UpdateCounts(ctx, q, titleID, newTotal, newAvailable); err != nil {
			return err
		}

		found.CopiesTotal = newTotal
		found.CopiesAvailable = newAvailable
		title = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return title, nil
}

// RemoveTitle は作品をカタログから削除する。管理者専用（検査は呼び出し側）。
// アクティブな貸出が1件でも残る場合はREMOVE_CONFLICTで拒否する。
// 返却済みの貸出履歴は削除後も台帳に残る。
func (s *Service) RemoveTitle(ctx context.Context, titleID string) error {
	return s.run(ctx, opRemoveTitle, func(q database.Querier) error {
		title, err := s.titles.FindByIDForUpdate(ctx, q, titleID)
		if err != nil {
			return err
		}
		if title == nil {
			return model.NewTitleNotFoundError(titleID)
		}

		active, err := s.loans.CountActiveForTitle(ctx, q, titleID)
		if err != nil {
			return err
		}
		if active > 0 {
			return model.NewRemoveConflictError(titleID, active)
		}

		return s.titles.Delete(ctx, q, titleID)
	})
}
