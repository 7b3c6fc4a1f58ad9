package model

import (
	"time"

	"gorm.io/gorm"
)

// Account 用户账户，Resource.OwnerID 指向它.
type Account struct {
	ID           string    `gorm:"primaryKey;size:26"            json:"id"`
	Username     string    `gorm:"size:30;uniqueIndex;not null"  json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null"             json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate 补齐 ID.
func (a *Account) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = NewID()
	}

	return nil
}
