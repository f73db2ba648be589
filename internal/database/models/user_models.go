package models

import (
	"time"

	"caisse-system/internal/permissions"
)

type User struct {
	ID           int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string           `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string           `gorm:"not null" json:"-"`
	Role         permissions.Role `gorm:"type:varchar(16);not null" json:"role"`
	IsActive     bool             `gorm:"not null" json:"is_active"`
	LastLogin    *time.Time       `json:"last_login,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (u User) Caller() permissions.Caller {
	return permissions.Caller{UserID: u.ID, Username: u.Username, Role: u.Role}
}

type Client struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	LastName   string    `gorm:"type:varchar(100);not null;index" json:"last_name"`
	FirstName  string    `gorm:"type:varchar(100);not null" json:"first_name"`
	Phone      string    `gorm:"type:varchar(32)" json:"phone"`
	Email      string    `gorm:"type:varchar(100)" json:"email"`
	Address    string    `gorm:"type:text" json:"address"`
	City       string    `gorm:"type:varchar(100)" json:"city"`
	PostalCode string    `gorm:"type:varchar(10)" json:"postal_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c Client) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Setting struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Key         string    `gorm:"column:setting_key;type:varchar(64);uniqueIndex;not null" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
