package repository

import (
	"context"
	"strings"

	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type PropRepository interface {
	Create(ctx context.Context, prop *models.Prop) error
	GetByIDs(ctx context.Context, ids []snowflake.ID) ([]models.Prop, error)
	Search(ctx context.Context, query string) ([]models.Prop, error)
	Count(ctx context.Context) (int64, error)
}

type propRepository struct {
	db *gorm.DB
}

func NewPropRepository(db *gorm.DB) PropRepository {
	return &propRepository{db: db}
}

func (r *propRepository) Create(ctx context.Context, prop *models.Prop) error {
	return r.db.WithContext(ctx).Create(prop).Error
}

func (r *propRepository) GetByIDs(ctx context.Context, ids []snowflake.ID) ([]models.Prop, error) {
	if len(ids) == 0 {
		return []models.Prop{}, nil
	}
	var props []models.Prop
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&props).Error
	return props, err
}

// Search matches name or category, case-insensitively. An empty query
// returns the whole library.
func (r *propRepository) Search(ctx context.Context, query string) ([]models.Prop, error) {
	var props []models.Prop
	stmt := r.db.WithContext(ctx).Order("id ASC")
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where("LOWER(name) LIKE ? OR LOWER(category) LIKE ?", like, like)
	}
	err := stmt.Find(&props).Error
	return props, err
}

func (r *propRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Prop{}).Count(&n).Error
	return n, err
}
