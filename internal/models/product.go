package models

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Product struct {
	ID          snowflake.ID  `json:"id"`
	Name        string        `json:"name"`
	Code        string        `json:"code"`
	Type        ProductType   `json:"type"`
	Description string        `json:"description"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Status      ProductStatus `json:"status"`
	Files       []ProductFile `json:"files"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// FindFile returns the index of the product file with the given id, or -1.
func (p *Product) FindFile(id snowflake.ID) int {
	for i := range p.Files {
		if p.Files[i].ID == id {
			return i
		}
	}
	return -1
}

func (p Product) clone() Product {
	files := make([]ProductFile, len(p.Files))
	for i, f := range p.Files {
		f.Comments = append([]Comment(nil), f.Comments...)
		files[i] = f
	}
	p.Files = files
	return p
}

type ProductStatus string

const (
	ProductPending    ProductStatus = "pending"
	ProductInProgress ProductStatus = "in-progress"
	ProductReview     ProductStatus = "review"
	ProductCompleted  ProductStatus = "completed"
)

type ProductType string

const (
	ProductChair   ProductType = "chair"
	ProductTable   ProductType = "table"
	ProductLamp    ProductType = "lamp"
	ProductSofa    ProductType = "sofa"
	ProductStorage ProductType = "storage"
	ProductDecor   ProductType = "decor"
	ProductOther   ProductType = "other"
)
