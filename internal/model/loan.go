// Package model はドメインモデルを定義する。
package model

import "time"

// LoanPeriod は貸出期間。返却期限はLoanDate + LoanPeriodで固定される。
// 設定項目ではなくエンジンの固定パラメータ。
const LoanPeriod = 7 * 24 * time.Hour

// Loan は1冊の複本の貸出記録を表す。
// ReturnDateがnilの間は貸出中（アクティブ）で、返却後も履歴として残り削除されない。
type Loan struct {
	ID         string
	UserID     string
	TitleID    string
	LoanDate   time.Time
	DueDate    time.Time
	ReturnDate *time.Time
}

// Active は貸出中（未返却）かどうかを返す。
func (l *Loan) Active() bool {
	return l.ReturnDate == nil
}

// Overdue は指定時刻において返却期限を過ぎた貸出中の記録かどうかを返す。
// 返却済みの記録は期限に関わらずfalseを返す。
func (l *Loan) Overdue(at time.Time) bool {
	return l.Active() && at.After(l.DueDate)
}
