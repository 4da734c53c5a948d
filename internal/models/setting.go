package models

import "time"

// Setting is one key/value configuration option, read through at each
// logical call. Recognized keys live in ledger.Settings.
type Setting struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"size:255;not null"`
	UpdatedAt time.Time
}
