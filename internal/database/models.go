package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile 表示一个登录身份的资料。
// ID 为身份 ID（UUID 字符串），Google 登录与密码登录共用同一张表。
type Profile struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"index;size:255"`
	Name         string `gorm:"size:255"`
	PasswordHash string `gorm:"size:255"`
	UpdatedAt    time.Time
}

// Resume 表示一份远端保存的简历。
// Data 存放去掉远端元数据之后的完整文档 JSON。
type Resume struct {
	gorm.Model
	UserID string         `gorm:"index;size:36;not null"`
	Data   datatypes.JSON `gorm:"type:jsonb"`
}
