// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// DomainError はエンジンが返す業務ルール違反の統一エラーフォーマットを表す。
// 呼び出し側（表示層）はCodeを見てメッセージにマッピングする。
// エンジン自身は業務ルール違反でpanicせず、必ずこの型で返す。
type DomainError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: catalog, loan, validation, system
	Action   string // ユーザー向け対処方法
	cause    error  // ストレージ障害の原因（STORAGE_FAILUREのみ）
}

// Error はerrorインターフェースを実装する。
func (e *DomainError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はストレージ障害の原因エラーを返す。業務エラーの場合はnil。
func (e *DomainError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodeTitleNotFound            = "TITLE_NOT_FOUND"
	ErrCodeLoanNotFound             = "LOAN_NOT_FOUND"
	ErrCodeCopiesUnavailable        = "COPIES_UNAVAILABLE"
	ErrCodeDuplicateLoan            = "DUPLICATE_LOAN"
	ErrCodeRemoveConflict           = "REMOVE_CONFLICT"
	ErrCodeCapacityBelowOutstanding = "CAPACITY_BELOW_OUTSTANDING"
	ErrCodeInvalidInput             = "INVALID_INPUT"
	ErrCodeStorageFailure           = "STORAGE_FAILURE"
)

// CodeOf はエラーからDomainErrorのコードを取り出す。
// DomainErrorでない場合は空文字列を返す。
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// NewTitleNotFoundError は作品未検出エラーを生成する。
func NewTitleNotFoundError(titleID string) *DomainError {
	return &DomainError{
		Code:     ErrCodeTitleNotFound,
		Message:  fmt.Sprintf("指定された作品が見つかりません: %s", titleID),
		Category: "catalog",
		Action:   "作品IDを確認してください。",
	}
}

// NewLoanNotFoundError は貸出記録未検出エラーを生成する。
// 他人の貸出記録は存在の有無を漏らさないよう、同じエラーで返す。
func NewLoanNotFoundError(loanID string) *DomainError {
	return &DomainError{
		Code:     ErrCodeLoanNotFound,
		Message:  fmt.Sprintf("指定された貸出記録が見つかりません: %s", loanID),
		Category: "loan",
		Action:   "貸出IDを確認してください。",
	}
}

// NewCopiesUnavailableError は在庫切れエラーを生成する。
func NewCopiesUnavailableError(titleID string) *DomainError {
	return &DomainError{
		Code:     ErrCodeCopiesUnavailable,
		Message:  fmt.Sprintf("この作品は現在貸出可能な複本がありません: %s", titleID),
		Category: "loan",
		Action:   "返却されるまでお待ちください。",
	}
}

// NewDuplicateLoanError は同一作品の重複貸出エラーを生成する。
func NewDuplicateLoanError(titleID string) *DomainError {
	return &DomainError{
		Code:     ErrCodeDuplicateLoan,
		Message:  fmt.Sprintf("この作品はすでに貸出中で、まだ返却されていません: %s", titleID),
		Category: "loan",
		Action:   "返却してから再度借りてください。",
	}
}

// NewRemoveConflictError はアクティブな貸出が残る作品の削除エラーを生成する。
func NewRemoveConflictError(titleID string, activeLoans int) *DomainError {
	return &DomainError{
		Code:     ErrCodeRemoveConflict,
		Message:  fmt.Sprintf("この作品には貸出中の記録が%d件あるため削除できません: %s", activeLoans, titleID),
		Category: "catalog",
		Action:   "すべての複本が返却されてから削除してください。",
	}
}

// NewCapacityBelowOutstandingError は貸出中の冊数を下回る在庫削減エラーを生成する。
func NewCapacityBelowOutstandingError(titleID string, newTotal, outstanding int) *DomainError {
	return &DomainError{
		Code:     ErrCodeCapacityBelowOutstanding,
		Message:  fmt.Sprintf("総冊数%dは貸出中の%d冊を下回るため変更できません: %s", newTotal, outstanding, titleID),
		Category: "catalog",
		Action:   "貸出中の冊数以上の総冊数を指定してください。",
	}
}

// NewInvalidInputError は不正な入力エラーを生成する。
func NewInvalidInputError(reason string) *DomainError {
	return &DomainError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewStorageFailureError は回復不能なストレージ障害エラーを生成する。
// 業務ルール違反と異なり、呼び出し側はこのリクエストを致命的失敗として扱う。
// エンジンは自動リトライを行わない。
func NewStorageFailureError(cause error) *DomainError {
	return &DomainError{
		Code:     ErrCodeStorageFailure,
		Message:  "ストレージ操作に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		cause:    cause,
	}
}
