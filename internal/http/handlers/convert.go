package handlers

import "service-dispatch/internal/domain"

func assignToResponse(res domain.AssignResult) assignResponse {
	out := assignResponse{
		OrderID:         res.OrderID,
		CourierID:       res.CourierID,
		AssignedAt:      res.AssignedAt,
		Price:           res.Price,
		AlreadyAssigned: res.AlreadyAssigned,
	}
	if res.Estimate != nil {
		km, mins := res.Estimate.DistanceKm, res.Estimate.DurationMin
		out.DistanceKm, out.DurationMin = &km, &mins
	}
	return out
}

func (r locationRequest) toPoint() (domain.Point, bool) {
	if r.Lat == nil || r.Lon == nil {
		return domain.Point{}, false
	}
	return domain.Point{Lat: *r.Lat, Lon: *r.Lon}, true
}
