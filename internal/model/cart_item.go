package model

import "time"

// CartItem is one line of a kiosk cart, persisted per device so it survives restarts.
type CartItem struct {
	DeviceUID string    `gorm:"primaryKey;size:128"`
	ProductID int64     `gorm:"primaryKey"`
	Quantity  int       `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
