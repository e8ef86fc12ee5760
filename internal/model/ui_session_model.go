package model

import (
	"time"

	"gorm.io/datatypes"
)

type UISession struct {
	Id        string         `gorm:"type:text;primaryKey"`
	ThreadId  string         `gorm:"type:text;not null"`
	State     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	ExpiresAt time.Time      `gorm:"index"`
}

func (UISession) TableName() string {
	return "ui_sessions"
}
