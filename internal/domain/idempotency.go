package domain

import "time"

// ProcessedUpdate marks a transport update as handled so a redelivery after a
// restart is not handled twice. Rows expire after ExpiresAt.
type ProcessedUpdate struct {
	UpdateID  int64     `json:"update_id"  gorm:"column:update_id;primaryKey;autoIncrement:false"`
	ChatID    int64     `json:"chat_id"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

// TableName returns the database table name for ProcessedUpdate.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
