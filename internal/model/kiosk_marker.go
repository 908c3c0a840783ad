package model

import "time"

// KioskMarker records whether the current patient has passed the welcome screen.
type KioskMarker struct {
	DeviceUID        string    `gorm:"primaryKey;size:128"`
	HasSeenWelcome   bool      `gorm:"not null"`
	CurrentPatientID int64     `gorm:"not null"`
	LastActivityAt   time.Time `gorm:"not null;index"`
}
