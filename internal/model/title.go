// Package model はドメインモデルを定義する。
package model

import "time"

// Title は蔵書カタログの1作品を表す。
// 物理的な複本（copies）を複数冊持ち、CopiesAvailableが貸出可能な冊数を示す。
// 不変条件: 0 <= CopiesAvailable <= CopiesTotal。
type Title struct {
	ID              string
	Name            string
	Creator         string
	Year            *int
	CopiesTotal     int
	CopiesAvailable int
	CreatedAt       time.Time
}

// Available は貸出可能な複本が残っているかどうかを返す。
func (t *Title) Available() bool {
	return t.CopiesAvailable > 0
}
