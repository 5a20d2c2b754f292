package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	domain "github.com/techfy/storefront-api/internal/domain"
	ppostgres "github.com/techfy/storefront-api/internal/platform/postgres"
	"github.com/techfy/storefront-api/internal/repositories"
)

// OrderRepository keeps orders in three tables: orders, order_items and order_support_logs.
type OrderRepository struct {
	db *gorm.DB
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(db *gorm.DB) (*OrderRepository, error) {
	if db == nil {
		return nil, errors.New("order repository requires database")
	}
	return &OrderRepository{db: db}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	model, err := fromDomainOrder(order)
	if err != nil {
		return ppostgres.WrapError("orders.insert", err)
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	return ppostgres.WrapError("orders.insert", err)
}

// Update applies a versioned UPDATE. Zero affected rows means the order is gone or another
// writer bumped the version first.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current orderModel
		if err := tx.Select("id", "version").Where("order_number = ?", order.OrderNumber).Take(&current).Error; err != nil {
			return err
		}
		res := tx.Model(&orderModel{}).
			Where("id = ? AND version = ?", current.ID, expectedVersion).
			Updates(map[string]any{
				"status":            string(order.Status),
				"ship_line1":        order.ShippingAddress.Line1,
				"ship_line2":        order.ShippingAddress.Line2,
				"ship_city":         order.ShippingAddress.City,
				"ship_state":        order.ShippingAddress.State,
				"ship_postal_code":  order.ShippingAddress.PostalCode,
				"ship_country_code": order.ShippingAddress.CountryCode,
				"shipped_at":        order.ShippedAt,
				"delivered_at":      order.DeliveredAt,
				"updated_at":        order.UpdatedAt.UTC(),
				"version":           order.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ppostgres.Conflict("orders.update", "order was modified concurrently")
		}

		var stored int64
		if err := tx.Model(&supportLogModel{}).Where("order_id = ?", current.ID).Count(&stored).Error; err != nil {
			return err
		}
		added := repositories.NewSupportEntries(order, int(stored))
		if len(added) == 0 {
			return nil
		}
		logs, err := supportLogModels(current.ID, added, int(stored))
		if err != nil {
			return err
		}
		return tx.Create(&logs).Error
	})
	return ppostgres.WrapError("orders.update", err)
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var model orderModel
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("order_number = ?", strings.TrimSpace(orderNumber)).
		Take(&model).Error
	if err != nil {
		return domain.Order{}, ppostgres.WrapError("orders.find", err)
	}
	order, err := model.toDomain()
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.find: %w", err)
	}
	return order, nil
}

func (r *OrderRepository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&orderModel{}).
		Where("order_number = ?", strings.TrimSpace(orderNumber)).
		Count(&count).Error
	if err != nil {
		return false, ppostgres.WrapError("orders.exists", err)
	}
	return count > 0, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	var models []orderModel
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, ppostgres.WrapError("orders.list_by_user", err)
	}
	orders, err := toDomainOrders(models)
	if err != nil {
		return nil, fmt.Errorf("orders.list_by_user: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) Search(ctx context.Context, filter repositories.OrderSearchFilter) (domain.PageResult[domain.Order], error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&orderModel{})
		if filter.Status != nil {
			db = db.Where("status = ?", string(*filter.Status))
		}
		if q := strings.TrimSpace(filter.Query); q != "" {
			pattern := "%" + escapeLike(q) + "%"
			db = db.Where("order_number ILIKE ? OR customer_name ILIKE ? OR customer_email ILIKE ?", pattern, pattern, pattern)
		}
		return db
	}

	db := r.db.WithContext(ctx)
	var total int64
	if err := db.Scopes(scope).Count(&total).Error; err != nil {
		return domain.PageResult[domain.Order]{}, ppostgres.WrapError("orders.search", err)
	}

	query := r.withChildren(db.Scopes(scope)).Order("created_at DESC").Offset(filter.Page.Offset())
	if filter.Page.Limit > 0 {
		query = query.Limit(filter.Page.Limit)
	}
	var models []orderModel
	if err := query.Find(&models).Error; err != nil {
		return domain.PageResult[domain.Order]{}, ppostgres.WrapError("orders.search", err)
	}
	orders, err := toDomainOrders(models)
	if err != nil {
		return domain.PageResult[domain.Order]{}, fmt.Errorf("orders.search: %w", err)
	}
	return domain.PageResult[domain.Order]{
		Items: orders,
		Page:  filter.Page.Page,
		Limit: filter.Page.Limit,
		Total: int(total),
	}, nil
}

func (r *OrderRepository) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("SupportLog", func(db *gorm.DB) *gorm.DB { return db.Order("seq") })
}

func toDomainOrders(models []orderModel) ([]domain.Order, error) {
	orders := make([]domain.Order, len(models))
	for i, model := range models {
		order, err := model.toDomain()
		if err != nil {
			return nil, err
		}
		orders[i] = order
	}
	return orders, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
