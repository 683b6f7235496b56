package notify

import (
	"fmt"
	"time"

	"service-dispatch/internal/domain"
)

// Event is a notification type understood by the realtime push layer.
type Event string

// Notification types
const (
	EventOrderOffer      Event = "order_offer"
	EventOrderTimeout    Event = "order_timeout"
	EventOrderTaken      Event = "order_taken"
	EventOrderAssigned   Event = "order_assigned"
	EventOrderCanceled   Event = "order_canceled"
	EventDirectionUpdate Event = "order_direction_update"
	EventLocationUpdate  Event = "location_update"
	EventDurationUpdate  Event = "duration_update"
	EventNoCourierFound  Event = "no_courier_found"
)

// Audience is the role suffix of a user topic.
type Audience string

// Audiences
const (
	AudienceCustomer Audience = "goo"
	AudienceCourier  Audience = "pro"
	AudienceShop     Audience = "shop"
)

// AudienceFor maps an actor role to the topic suffix of that party.
func AudienceFor(role domain.ActorRole) Audience {
	if role == domain.RoleCourier {
		return AudienceCourier
	}
	return AudienceCustomer
}

// Topic returns the per-user topic, e.g. user_12_pro.
func Topic(userID int64, a Audience) string {
	return fmt.Sprintf("user_%d_%s", userID, a)
}

// Message is the envelope every sink delivers.
type Message struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Type      Event     `json:"type"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// OfferPayload is sent to a candidate courier.
type OfferPayload struct {
	OrderID     int64    `json:"order_id"`
	ShopID      int64    `json:"shop_id"`
	ShopTitle   string   `json:"shop_title"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
	DurationMin *float64 `json:"duration_min,omitempty"`
	Price       *int64   `json:"price,omitempty"`
	TimeoutSec  int      `json:"timeout_sec"`
}

// OrderRef carries just the order id.
type OrderRef struct {
	OrderID int64 `json:"order_id"`
}

// AssignedPayload describes a finalized assignment.
type AssignedPayload struct {
	OrderID     int64              `json:"order_id"`
	CourierID   int64              `json:"courier_id"`
	Mode        domain.CourierMode `json:"mode"`
	Location    *domain.Point      `json:"location,omitempty"`
	DistanceKm  *float64           `json:"distance_km,omitempty"`
	DurationMin *float64           `json:"duration_min,omitempty"`
	Price       *int64             `json:"price,omitempty"`
}

// CanceledPayload tells the counterpart who canceled and why.
type CanceledPayload struct {
	OrderID int64            `json:"order_id"`
	By      domain.ActorRole `json:"by"`
	Reason  string           `json:"reason"`
}

// DirectionPayload carries the new direction.
type DirectionPayload struct {
	OrderID   int64            `json:"order_id"`
	Direction domain.Direction `json:"direction"`
}

// LocationPayload carries a raw courier position.
type LocationPayload struct {
	OrderID   int64   `json:"order_id"`
	CourierID int64   `json:"courier_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// DurationPayload carries a recomputed route.
type DurationPayload struct {
	OrderID     int64   `json:"order_id"`
	CourierID   int64   `json:"courier_id"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}
