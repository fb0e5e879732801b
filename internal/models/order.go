package models

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Order is stored as a single document: products (with their files and
// comments), order files and selected props are embedded JSON columns.
type Order struct {
	ID            snowflake.ID                   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title         string                         `json:"title" gorm:"not null"`
	Brief         string                         `json:"brief" gorm:"type:text;not null"`
	Status        OrderStatus                    `json:"status" gorm:"not null;default:'draft';index"`
	Products      datatypes.JSONSlice[Product]   `json:"products"`
	Files         datatypes.JSONSlice[OrderFile] `json:"files"`
	SelectedProps datatypes.JSONSlice[Prop]      `json:"selectedProps"`
	CreatedBy     snowflake.ID                   `json:"createdBy" gorm:"not null;index"`
	Version       int64                          `json:"version" gorm:"not null;default:1"`
	CreatedAt     time.Time                      `json:"createdAt" gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time                      `json:"updatedAt" gorm:"autoUpdateTime:false"`
}

func (Order) TableName() string { return "orders" }

type OrderStatus string

const (
	OrderDraft      OrderStatus = "draft"
	OrderInProgress OrderStatus = "in-progress"
	OrderReview     OrderStatus = "review"
	OrderCompleted  OrderStatus = "completed"

	// OrderSubmitted only appears in documents written by the old backend.
	// It is readable but never accepted on write.
	OrderSubmitted OrderStatus = "submitted"
)

// FindProduct returns the index of the product with the given id, or -1.
func (o *Order) FindProduct(id snowflake.ID) int {
	for i := range o.Products {
		if o.Products[i].ID == id {
			return i
		}
	}
	return -1
}

// FindFile returns the index of the order-level file with the given id, or -1.
func (o *Order) FindFile(id snowflake.ID) int {
	for i := range o.Files {
		if o.Files[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can build a replacement document
// without aliasing the stored one.
func (o *Order) Clone() *Order {
	c := *o
	c.Products = make(datatypes.JSONSlice[Product], len(o.Products))
	for i, p := range o.Products {
		c.Products[i] = p.clone()
	}
	c.Files = make(datatypes.JSONSlice[OrderFile], len(o.Files))
	for i, f := range o.Files {
		f.Comments = append([]Comment(nil), f.Comments...)
		c.Files[i] = f
	}
	c.SelectedProps = append(datatypes.JSONSlice[Prop](nil), o.SelectedProps...)
	return &c
}

// Normalize replaces nil collections with empty ones so documents always
// serialize lists as [] rather than null.
func (o *Order) Normalize() {
	if o.Products == nil {
		o.Products = datatypes.JSONSlice[Product]{}
	}
	if o.Files == nil {
		o.Files = datatypes.JSONSlice[OrderFile]{}
	}
	if o.SelectedProps == nil {
		o.SelectedProps = datatypes.JSONSlice[Prop]{}
	}
	for i := range o.Products {
		if o.Products[i].Files == nil {
			o.Products[i].Files = []ProductFile{}
		}
		for j := range o.Products[i].Files {
			if o.Products[i].Files[j].Comments == nil {
				o.Products[i].Files[j].Comments = []Comment{}
			}
		}
	}
	for i := range o.Files {
		if o.Files[i].Comments == nil {
			o.Files[i].Comments = []Comment{}
		}
	}
}
