package model

import "time"

// WalletLink binds a wallet address to an owner. An address belongs to at
// most one active owner at a time; linking is idempotent and unlinking keeps
// the row with IsActive=false.
type WalletLink struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Address    string     `gorm:"size:64;uniqueIndex;not null" json:"address"`
	OwnerID    string     `gorm:"size:128;index;not null" json:"ownerId"`
	IsPrimary  bool       `json:"isPrimary"`
	IsActive   bool       `gorm:"index" json:"isActive"`
	LinkedAt   time.Time  `json:"linkedAt"`
	UnlinkedAt *time.Time `json:"unlinkedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
