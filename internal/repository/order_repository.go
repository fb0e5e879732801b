package repository

import (
	"context"
	"errors"

	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ErrStaleVersion means the row changed (or vanished) since it was read.
var ErrStaleVersion = errors.New("stale order version")

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id snowflake.ID) (*models.Order, error)
	GetAll(ctx context.Context) ([]models.Order, error)
	Update(ctx context.Context, order *models.Order, expectedVersion int64) error
	Delete(ctx context.Context, id snowflake.ID) (bool, error)
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID returns gorm.ErrRecordNotFound when the order does not exist.
func (r *orderRepository) GetByID(ctx context.Context, id snowflake.ID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	order.Normalize()
	return &order, nil
}

// GetAll returns every order in creation order. Snowflake ids grow with time,
// so ordering by id is insertion order.
func (r *orderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Order("id ASC").Find(&orders).Error
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Normalize()
	}
	return orders, nil
}

// Update writes the whole document if the stored version still equals
// expectedVersion. order.Version must already hold the new version.
func (r *orderRepository) Update(ctx context.Context, order *models.Order, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":          order.Title,
			"brief":          order.Brief,
			"status":         order.Status,
			"products":       order.Products,
			"files":          order.Files,
			"selected_props": order.SelectedProps,
			"version":        order.Version,
			"updated_at":     order.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id snowflake.ID) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	var rows []struct {
		Status models.OrderStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
