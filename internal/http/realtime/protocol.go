package realtime

import (
	"encoding/json"

	"service-dispatch/internal/domain"
)

// MessageType names an inbound action or an outbound reply.
type MessageType string

// Inbound actions
const (
	MsgAccept          MessageType = "accept"
	MsgReject          MessageType = "reject"
	MsgLocationUpdate  MessageType = "location_update"
	MsgDirectionUpdate MessageType = "direction_update"
	MsgCancel          MessageType = "cancel"
	MsgComplete        MessageType = "complete"
	MsgHandOver        MessageType = "hand_over"
)

// Replies
const (
	MsgAck   MessageType = "ack"
	MsgError MessageType = "error"
)

// Envelope is one inbound frame.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// OrderPayload targets an order. Direction, Reason and Rating are read per action.
type OrderPayload struct {
	OrderID   int64            `json:"order_id"`
	Direction domain.Direction `json:"direction,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Rating    *int             `json:"rating,omitempty"`
}

// LocationPayload is a courier position.
type LocationPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Reply answers one inbound frame.
type Reply struct {
	Type    MessageType `json:"type"`
	Action  MessageType `json:"action"`
	OrderID int64       `json:"order_id,omitempty"`
	Result  any         `json:"result,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// AcceptResult is the ack payload of a successful accept.
type AcceptResult struct {
	CourierID       int64    `json:"courier_id"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
	DurationMin     *float64 `json:"duration_min,omitempty"`
	Price           *int64   `json:"price,omitempty"`
	AlreadyAssigned bool     `json:"already_assigned"`
}

func acceptResult(res domain.AssignResult) AcceptResult {
	out := AcceptResult{CourierID: res.CourierID, Price: res.Price, AlreadyAssigned: res.AlreadyAssigned}
	if res.Estimate != nil {
		km, mins := res.Estimate.DistanceKm, res.Estimate.DurationMin
		out.DistanceKm, out.DurationMin = &km, &mins
	}
	return out
}
