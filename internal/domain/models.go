// Package domain defines the persistence models for users, binding requests,
// the audit log and the error journal. These types are mapped with GORM and
// form the core data layer of the bot.
package domain

import "time"

// BindingStatusPending is the only status the bot ever writes. Resolution
// happens out-of-band through the operator's reply.
const BindingStatusPending = "pending"

// User is a chat participant who has issued /start at least once.
//
// Fields:
//   - ID: external (Telegram) user id; primary key, never auto-assigned.
//   - Username / FirstName / LastName: latest profile values, replaced on upsert.
//   - RegisteredAt: time of the latest upsert.
type User struct {
	ID           int64     `json:"user_id"       gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Username     string    `json:"username"      gorm:"type:text"`
	FirstName    string    `json:"first_name"    gorm:"type:text"`
	LastName     string    `json:"last_name"     gorm:"type:text"`
	RegisteredAt time.Time `json:"registered_at" gorm:"not null"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Binding is a user's server-selection request awaiting operator action.
//
// AdminMessageID is the correlation key used to route operator replies back
// to UserID; it is unique among bindings (NULL until the notification is
// sent). UserMessageID references the acknowledgement shown to the user.
type Binding struct {
	ID             int64     `json:"id"                         gorm:"primaryKey;autoIncrement"`
	UserID         int64     `json:"user_id"                    gorm:"not null;index:idx_bindings_user"`
	Server         string    `json:"server"                     gorm:"type:text;not null"`
	Status         string    `json:"status"                     gorm:"type:text;not null;default:'pending';index"`
	CreatedAt      time.Time `json:"created_at"                 gorm:"not null"`
	AdminMessageID *int      `json:"admin_message_id,omitempty" gorm:"uniqueIndex:ux_bindings_admin_msg"`
	UserMessageID  *int      `json:"user_message_id,omitempty"`
}

// TableName returns the database table name for Binding.
func (Binding) TableName() string { return "bindings" }

// LogEntry is an append-only audit record of a user action.
type LogEntry struct {
	ID        int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id"   gorm:"index"`
	Action    string    `json:"action"    gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
}

// TableName returns the database table name for LogEntry.
func (LogEntry) TableName() string { return "logs" }

// ErrorEntry records an unexpected handler failure.
type ErrorEntry struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	ErrorText string    `json:"error_text" gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp"  gorm:"not null"`
}

// TableName returns the database table name for ErrorEntry.
func (ErrorEntry) TableName() string { return "errors" }
