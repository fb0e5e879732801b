package models

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type User struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Email        string       `json:"email" gorm:"unique;not null"`
	Name         string       `json:"name" gorm:"not null"`
	Role         UserRole     `json:"role" gorm:"not null;default:'client'"`
	PasswordHash string       `json:"-" gorm:"not null"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type UserRole string

const (
	RoleClient   UserRole = "client"
	RoleEmployee UserRole = "employee"
)

func (r UserRole) Valid() bool {
	return r == RoleClient || r == RoleEmployee
}
