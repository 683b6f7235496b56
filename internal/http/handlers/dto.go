package handlers

import (
	"time"

	"service-dispatch/internal/domain"
)

type dispatchRequest struct {
	ShopID int64 `json:"shop_id"`
}

type dispatchResponse struct {
	OrderID int64              `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
}

type assignResponse struct {
	OrderID         int64     `json:"order_id"`
	CourierID       int64     `json:"courier_id"`
	AssignedAt      time.Time `json:"assigned_at"`
	DistanceKm      *float64  `json:"distance_km,omitempty"`
	DurationMin     *float64  `json:"duration_min,omitempty"`
	Price           *int64    `json:"price,omitempty"`
	AlreadyAssigned bool      `json:"already_assigned"`
}

type directionRequest struct {
	Direction domain.Direction `json:"direction"`
}

type directionResponse struct {
	OrderID   int64            `json:"order_id"`
	Direction domain.Direction `json:"direction"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type ratingRequest struct {
	Rating *int `json:"rating"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}
