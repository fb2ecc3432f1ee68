package model

import (
	"strings"
	"time"
)

// 管理者の許可リスト。レコードが存在すれば管理者として扱う
type AllowedAdmin struct {
	Email     string `gorm:"type:varchar(255);primary_key"`
	CreatedAt time.Time
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
