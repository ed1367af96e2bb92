package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	FirstName    string    `gorm:"not null"                  json:"firstName"`
	LastName     string    `gorm:"not null"                  json:"lastName"`
	Email        string    `gorm:"uniqueIndex;not null"      json:"email"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	Role         string    `gorm:"not null"                  json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Tenant struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name      string    `gorm:"not null"                  json:"name"`
	Address   string    `gorm:"not null"                  json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RefreshToken is one outstanding refresh token. The token itself is never
// stored; its jti is this row's ID.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"             json:"id"`
	UserID    uint      `gorm:"index;not null"                       json:"userId"`
	User      User      `gorm:"constraint:OnDelete:CASCADE"          json:"-"`
	ExpiresAt time.Time `gorm:"index;not null"                       json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// All lists every model the service migrates.
func All() []any {
	return []any{&User{}, &Tenant{}, &RefreshToken{}}
}
