package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/lendman/internal/database"
	"github.com/hitoshi/lendman/internal/model"
	"github.com/hitoshi/lendman/internal/repository"
)

// --- モック ---

type mockTitleRepo struct {
	findByIDFn      func(ctx context.Context, id string) (*model.Title, error)
	listAllFn       func(ctx context.Context) ([]*model.Title, error)
	listAvailableFn func(ctx context.Context) ([]*model.Title, error)
	searchFn        func(ctx context.Context, text string) ([]*model.Title, error)
}

func (m *mockTitleRepo) FindByID(ctx context.Context, q database.Querier, id string) (*model.Title, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockTitleRepo) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*model.Title, error) {
	return nil, nil
}
func (m *mockTitleRepo) Insert(ctx context.Context, q database.Querier, title *model.Title) error {
	return nil
}
func (m *mockTitleRepo) UpdateCounts(ctx context.Context, q database.Querier, id string, total, available int) error {
	return nil
}
func (m *mockTitleRepo) Delete(ctx context.Context, q database.Querier, id string) error {
	return nil
}
func (m *mockTitleRepo) ListAll(ctx context.Context, q database.Querier) ([]*model.Title, error) {
	return m.listAllFn(ctx)
}
func (m *mockTitleRepo) ListAvailable(ctx context.Context, q database.Querier) ([]*model.Title, error) {
	return m.listAvailableFn(ctx)
}
func (m *mockTitleRepo) Search(ctx context.Context, q database.Querier, text string) ([]*model.Title, error) {
	return m.searchFn(ctx, text)
}

type mockLoanRepo struct {
	listActiveFn  func(ctx context.Context, userID string) ([]repository.LoanWithTitle, error)
	listHistoryFn func(ctx context.Context, userID string) ([]repository.LoanWithTitle, error)
}

func (m *mockLoanRepo) HasActive(ctx context.Context, q database.Querier, userID, titleID string) (bool, error) {
	return false, nil
}
func (m *mockLoanRepo) FindActiveOwnedForUpdate(ctx context.Context, q database.Querier, loanID, userID string) (*model.Loan, error) {
	return nil, nil
}
func (m *mockLoanRepo) Insert(ctx context.Context, q database.Querier, loan *model.Loan) error {
	return nil
}
func (m *mockLoanRepo) MarkReturned(ctx context.Context, q database.Querier, loanID string, returnedAt time.Time) (bool, error) {
	return false, nil
}
func (m *mockLoanRepo) CountActiveForTitle(ctx context.Context, q database.Querier, titleID string) (int, error) {
	return 0, nil
}
func (m *mockLoanRepo) ListActiveByUser(ctx context.Context, q database.Querier, userID string) ([]repository.LoanWithTitle, error) {
	return m.listActiveFn(ctx, userID)
}
func (m *mockLoanRepo) ListHistoryByUser(ctx context.Context, q database.Querier, userID string) ([]repository.LoanWithTitle, error) {
	return m.listHistoryFn(ctx, userID)
}

var fixedNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func newTestService(titles *mockTitleRepo, loans *mockLoanRepo) *Service {
	s := NewService(nil, titles, loans)
	s.now = func() time.Time { return fixedNow }
	return s
}

// --- GetTitle ---

// 作品詳細の取得と未検出エラーを検証
func TestGetTitle(t *testing.T) {
	titles := &mockTitleRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Title, error) {
			if id == "t1" {
				return &model.Title{ID: "t1", Name: "SICP"}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(titles, &mockLoanRepo{})

	got, err := svc.GetTitle(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetTitle returned error: %v", err)
	}
	if got.Name != "SICP" {
		t.Errorf("Name = %q, want %q", got.Name, "SICP")
	}

	_, err = svc.GetTitle(context.Background(), "missing")
	if model.CodeOf(err) != model.ErrCodeTitleNotFound {
		t.Errorf("error code = %q, want %q", model.CodeOf(err), model.ErrCodeTitleNotFound)
	}
}

// リポジトリのエラーがSTORAGE_FAILUREとして返ることを検証
func TestGetTitle_StorageFailure(t *testing.T) {
	titles := &mockTitleRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Title, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := newTestService(titles, &mockLoanRepo{})

	_, err := svc.GetTitle(context.Background(), "t1")
	if model.CodeOf(err) != model.ErrCodeStorageFailure {
		t.Errorf("error code = %q, want %q", model.CodeOf(err), model.ErrCodeStorageFailure)
	}
}

// --- 一覧と検索 ---

// 一覧系メソッドがリポジトリの結果をそのまま返すことを検証
func TestListAndSearch_Passthrough(t *testing.T) {
	all := []*model.Title{{ID: "t1"}, {ID: "t2"}}
	available := []*model.Title{{ID: "t1"}}
	matched := []*model.Title{{ID: "t2"}}

	var searched string
	titles := &mockTitleRepo{
		listAllFn:       func(ctx context.Context) ([]*model.Title, error) { return all, nil },
		listAvailableFn: func(ctx context.Context) ([]*model.Title, error) { return available, nil },
		searchFn: func(ctx context.Context, text string) ([]*model.Title, error) {
			searched = text
			return matched, nil
		},
	}
	svc := newTestService(titles, &mockLoanRepo{})

	if got, err := svc.ListAll(context.Background()); err != nil || len(got) != 2 {
		t.Errorf("ListAll = %d titles, err %v; want 2, nil", len(got), err)
	}
	if got, err := svc.ListAvailable(context.Background()); err != nil || len(got) != 1 {
		t.Errorf("ListAvailable = %d titles, err %v; want 1, nil", len(got), err)
	}
	got, err := svc.Search(context.Background(), "pragmatic")
	if err != nil || len(got) != 1 {
		t.Errorf("Search = %d titles, err %v; want 1, nil", len(got), err)
	}
	if searched != "pragmatic" {
		t.Errorf("search text = %q, want %q", searched, "pragmatic")
	}
}

// --- 貸出ビュー ---

// アクティブな貸出ビューに期限超過フラグが導出されることを検証
func TestActiveLoansFor_OverdueFlag(t *testing.T) {
	loans := &mockLoanRepo{
		listActiveFn: func(ctx context.Context, userID string) ([]repository.LoanWithTitle, error) {
			return []repository.LoanWithTitle{
				{
					LoanID:    "l1",
					TitleID:   "t1",
					TitleName: "The Go Programming Language",
					LoanDate:  fixedNow.Add(-10 * 24 * time.Hour),
					DueDate:   fixedNow.Add(-3 * 24 * time.Hour),
				},
				{
					LoanID:    "l2",
					TitleID:   "t2",
					TitleName: "The Pragmatic Programmer",
					LoanDate:  fixedNow.Add(-24 * time.Hour),
					DueDate:   fixedNow.Add(6 * 24 * time.Hour),
				},
			}, nil
		},
	}
	svc := newTestService(&mockTitleRepo{}, loans)

	views, err := svc.ActiveLoansFor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ActiveLoansFor returned error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}

	if !views[0].Overdue {
		t.Error("loan past due date should be overdue")
	}
	if views[0].Returned {
		t.Error("active loan should not be returned")
	}
	if views[1].Overdue {
		t.Error("loan within due date should not be overdue")
	}
}

// 履歴ビューが返却ステータスを導出し、削除済み作品を許容することを検証
func TestHistoryFor_ReturnedAndRemovedTitle(t *testing.T) {
	returnedAt := fixedNow.Add(-2 * 24 * time.Hour)
	loans := &mockLoanRepo{
		listHistoryFn: func(ctx context.Context, userID string) ([]repository.LoanWithTitle, error) {
			return []repository.LoanWithTitle{
				{
					LoanID:       "l2",
					TitleID:      "t-removed",
					TitleRemoved: true,
					LoanDate:     fixedNow.Add(-20 * 24 * time.Hour),
					DueDate:      fixedNow.Add(-13 * 24 * time.Hour),
					ReturnDate:   &returnedAt,
				},
				{
					LoanID:    "l1",
					TitleID:   "t1",
					TitleName: "Mythical Man-Month",
					LoanDate:  fixedNow.Add(-30 * 24 * time.Hour),
					DueDate:   fixedNow.Add(-23 * 24 * time.Hour),
				},
			}, nil
		},
	}
	svc := newTestService(&mockTitleRepo{}, loans)

	views, err := svc.HistoryFor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("HistoryFor returned error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}

	// 削除済み作品の履歴も失敗せずに返り、フラグで識別できる
	if !views[0].TitleRemoved {
		t.Error("expected TitleRemoved flag for deleted title")
	}
	if !views[0].Returned {
		t.Error("loan with return date should be returned")
	}
	if views[0].Overdue {
		t.Error("returned loan should never be overdue")
	}

	// 未返却のままの古い貸出は期限超過
	if views[1].Returned {
		t.Error("loan without return date should not be returned")
	}
	if !views[1].Overdue {
		t.Error("old unreturned loan should be overdue")
	}
}

// 貸出一覧のリポジトリエラーがSTORAGE_FAILUREとして返ることを検証
func TestActiveLoansFor_StorageFailure(t *testing.T) {
	loans := &mockLoanRepo{
		listActiveFn: func(ctx context.Context, userID string) ([]repository.LoanWithTitle, error) {
			return nil, errors.New("timeout")
		},
	}
	svc := newTestService(&mockTitleRepo{}, loans)

	_, err := svc.ActiveLoansFor(context.Background(), "u1")
	if model.CodeOf(err) != model.ErrCodeStorageFailure {
		t.Errorf("error code = %q, want %q", model.CodeOf(err), model.ErrCodeStorageFailure)
	}
}
