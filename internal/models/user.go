package models

import "time"

// User roles.
const (
	RoleAdmin  = "admin"
	RoleReader = "reader"
)

// User represents an application operator account.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	DisplayName  string    `gorm:"size:64"`
	Role         string    `gorm:"size:16;not null;default:reader"` // admin / reader
	CreatedAt    time.Time
	UpdatedAt    time.Time

	LastLoginAt *time.Time
	LastLoginIP string `gorm:"size:64"`
}
