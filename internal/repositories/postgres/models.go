package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/techfy/storefront-api/internal/domain"
)

type orderModel struct {
	ID                  string `gorm:"primaryKey;size:26"`
	OrderNumber         string `gorm:"size:32;not null;uniqueIndex"`
	UserID              string `gorm:"size:128;index"`
	Status              string `gorm:"size:16;not null;index"`
	Currency            string `gorm:"size:3;not null"`
	Subtotal            int64  `gorm:"not null"`
	Discount            int64  `gorm:"not null"`
	Shipping            int64  `gorm:"not null"`
	Total               int64  `gorm:"not null"`
	CustomerName        string
	CustomerEmail       string `gorm:"index"`
	CustomerPhone       string
	ShipLine1           string
	ShipLine2           string
	ShipCity            string
	ShipState           string
	ShipPostalCode      string
	ShipCountryCode     string `gorm:"size:3"`
	EstimatedDeliveryAt time.Time
	CreatedAt           time.Time `gorm:"index"`
	UpdatedAt           time.Time
	ShippedAt           *time.Time
	DeliveredAt         *time.Time
	Version             int64             `gorm:"not null;default:1"`
	Items               []orderItemModel  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	SupportLog          []supportLogModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (orderModel) TableName() string { return "orders" }

type orderItemModel struct {
	ID            uint   `gorm:"primaryKey"`
	OrderID       string `gorm:"size:26;not null;index"`
	Position      int    `gorm:"not null"`
	ProductID     int64  `gorm:"not null"`
	Quantity      int    `gorm:"not null"`
	UnitPrice     int64  `gorm:"not null"`
	LineTotal     int64  `gorm:"not null"`
	SelectedSize  string
	SelectedColor string
}

func (orderItemModel) TableName() string { return "order_items" }

type supportLogModel struct {
	ID        string `gorm:"primaryKey;size:26"`
	OrderID   string `gorm:"size:26;not null;index:idx_support_log_order_seq,priority:1"`
	Seq       int    `gorm:"not null;index:idx_support_log_order_seq,priority:2"`
	ActorID   string
	ActorRole string `gorm:"size:16"`
	Action    string `gorm:"size:32;not null"`
	Details   string `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (supportLogModel) TableName() string { return "order_support_logs" }

type productModel struct {
	ID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Name  string `gorm:"not null"`
	Price int64  `gorm:"not null"`
	Image string
}

func (productModel) TableName() string { return "products" }

func fromDomainOrder(order domain.Order) (orderModel, error) {
	model := orderModel{
		ID:                  order.ID,
		OrderNumber:         order.OrderNumber,
		UserID:              order.UserID,
		Status:              string(order.Status),
		Currency:            order.Currency,
		Subtotal:            order.Totals.Subtotal,
		Discount:            order.Totals.Discount,
		Shipping:            order.Totals.Shipping,
		Total:               order.Totals.Total,
		CustomerName:        order.Customer.Name,
		CustomerEmail:       order.Customer.Email,
		CustomerPhone:       order.Customer.Phone,
		EstimatedDeliveryAt: order.EstimatedDeliveryAt.UTC(),
		CreatedAt:           order.CreatedAt.UTC(),
		UpdatedAt:           order.UpdatedAt.UTC(),
		ShippedAt:           order.ShippedAt,
		DeliveredAt:         order.DeliveredAt,
		Version:             order.Version,
	}
	model.setAddress(order.ShippingAddress)
	model.Items = make([]orderItemModel, len(order.Items))
	for i, item := range order.Items {
		model.Items[i] = orderItemModel{
			OrderID:       order.ID,
			Position:      i,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			LineTotal:     item.LineTotal,
			SelectedSize:  item.SelectedSize,
			SelectedColor: item.SelectedColor,
		}
	}
	logs, err := supportLogModels(order.ID, order.SupportLog, 0)
	if err != nil {
		return orderModel{}, err
	}
	model.SupportLog = logs
	return model, nil
}

func (m *orderModel) setAddress(addr domain.Address) {
	m.ShipLine1 = addr.Line1
	m.ShipLine2 = addr.Line2
	m.ShipCity = addr.City
	m.ShipState = addr.State
	m.ShipPostalCode = addr.PostalCode
	m.ShipCountryCode = addr.CountryCode
}

// supportLogModels converts entries, numbering them from offset so reads keep append order.
func supportLogModels(orderID string, entries []domain.SupportLogEntry, offset int) ([]supportLogModel, error) {
	models := make([]supportLogModel, 0, len(entries))
	for i, entry := range entries {
		details := "{}"
		if len(entry.Details) > 0 {
			raw, err := json.Marshal(entry.Details)
			if err != nil {
				return nil, err
			}
			details = string(raw)
		}
		models = append(models, supportLogModel{
			ID:        entry.ID,
			OrderID:   orderID,
			Seq:       offset + i,
			ActorID:   entry.ActorID,
			ActorRole: string(entry.ActorRole),
			Action:    string(entry.Action),
			Details:   details,
			CreatedAt: entry.CreatedAt.UTC(),
		})
	}
	return models, nil
}

// toDomain fails when a stored support-log entry carries details that are not a JSON object.
func (m orderModel) toDomain() (domain.Order, error) {
	order := domain.Order{
		ID:          m.ID,
		OrderNumber: m.OrderNumber,
		UserID:      m.UserID,
		Status:      domain.OrderStatus(m.Status),
		Currency:    m.Currency,
		Totals: domain.OrderTotals{
			Subtotal: m.Subtotal,
			Discount: m.Discount,
			Shipping: m.Shipping,
			Total:    m.Total,
		},
		Customer: domain.CustomerContact{
			Name:  m.CustomerName,
			Email: m.CustomerEmail,
			Phone: m.CustomerPhone,
		},
		ShippingAddress: domain.Address{
			Line1:       m.ShipLine1,
			Line2:       m.ShipLine2,
			City:        m.ShipCity,
			State:       m.ShipState,
			PostalCode:  m.ShipPostalCode,
			CountryCode: m.ShipCountryCode,
		},
		EstimatedDeliveryAt: m.EstimatedDeliveryAt.UTC(),
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
		ShippedAt:           utcPtr(m.ShippedAt),
		DeliveredAt:         utcPtr(m.DeliveredAt),
		Version:             m.Version,
		Items:               make([]domain.OrderItem, len(m.Items)),
		SupportLog:          make([]domain.SupportLogEntry, 0, len(m.SupportLog)),
	}
	for i, item := range m.Items {
		order.Items[i] = domain.OrderItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			LineTotal:     item.LineTotal,
			SelectedSize:  item.SelectedSize,
			SelectedColor: item.SelectedColor,
		}
	}
	for _, entry := range m.SupportLog {
		var details map[string]any
		if entry.Details != "" && entry.Details != "{}" {
			if err := json.Unmarshal([]byte(entry.Details), &details); err != nil {
				return domain.Order{}, fmt.Errorf("order %s: support log %s: decode details: %w", m.OrderNumber, entry.ID, err)
			}
		}
		order.SupportLog = append(order.SupportLog, domain.SupportLogEntry{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			ActorRole: domain.Role(entry.ActorRole),
			Action:    domain.SupportAction(entry.Action),
			Details:   details,
			CreatedAt: entry.CreatedAt.UTC(),
		})
	}
	return order, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
