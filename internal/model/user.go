// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限区分を表す。
type Role string

const (
	// RoleMember は一般会員。貸出と返却のみ行える。
	RoleMember Role = "member"
	// RoleAdministrator は管理者。カタログの登録・在庫調整・削除を行える。
	RoleAdministrator Role = "administrator"
)

// User はシステム利用者を表す。
// 認証（パスワード検証・セッション管理）は外部の認証コラボレータが担い、
// エンジンは識別子と権限区分のみを扱う。
type User struct {
	ID        string
	Username  string
	Role      Role
	CreatedAt time.Time
}

// IsAdministrator は管理者権限を持つかどうかを返す。
// 管理者専用操作の権限チェックは呼び出し側の責務であり、エンジンは検査しない。
func (u *User) IsAdministrator() bool {
	return u.Role == RoleAdministrator
}
