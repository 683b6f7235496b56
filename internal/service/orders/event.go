package orders

import (
	"time"
)

// Event is a single dispatch trigger coming from the order producer.
type Event struct {
	OrderID   int64     `json:"order_id"`
	ShopID    int64     `json:"shop_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
