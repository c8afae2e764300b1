package db

import "time"

// User 定义了本地账号模型，UID 对外作为作者与互动的用户标识。
type User struct {
	UID          string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"size:191;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string `gorm:"size:100"`
	PhotoURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
