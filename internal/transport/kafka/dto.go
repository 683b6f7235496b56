package kafka

import (
	"errors"
	"strings"
	"time"

	"service-dispatch/internal/service/orders"
)

// EventDTO is a data transfer object for orders.Event.
// Older producers send the order status instead of an action.
type EventDTO struct {
	OrderID   int64     `json:"order_id"`
	ShopID    int64     `json:"shop_id"`
	Action    string    `json:"action"`
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToDomain converts EventDTO to orders.Event
func ToDomain(dto EventDTO) (orders.Event, error) {
	if dto.OrderID <= 0 {
		return orders.Event{}, Permanent(errors.New("order_id must be positive"))
	}
	if dto.ShopID < 0 {
		return orders.Event{}, Permanent(errors.New("shop_id must not be negative"))
	}
	action := strings.TrimSpace(dto.Action)
	if action == "" {
		action = strings.TrimSpace(dto.Status)
	}
	return orders.Event{
		OrderID:   dto.OrderID,
		ShopID:    dto.ShopID,
		Action:    action,
		Reason:    strings.TrimSpace(dto.Reason),
		CreatedAt: dto.CreatedAt,
	}, nil
}
