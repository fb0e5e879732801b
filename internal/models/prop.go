package models

import "github.com/bwmarrin/snowflake"

// Prop is an entry of the studio's 3D model library.
type Prop struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name      string       `json:"name" gorm:"not null"`
	ModelURL  string       `json:"modelUrl" gorm:"not null"`
	Thumbnail string       `json:"thumbnail,omitempty"`
	Category  string       `json:"category" gorm:"not null;index"`
}

func (Prop) TableName() string { return "props" }
