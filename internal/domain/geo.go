package domain

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid checks coordinate ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// HaversineKm returns the great-circle distance between a and b in kilometres.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// HaversineMeters is HaversineKm in metres.
func HaversineMeters(a, b Point) float64 {
	return HaversineKm(a, b) * 1000
}

// LiveLocation is the ephemeral position record of a courier.
type LiveLocation struct {
	CourierID  int64     `json:"courier_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	WorkActive bool      `json:"work_active"`
	IsBusy     bool      `json:"is_busy"`
	Timestamp  time.Time `json:"timestamp"`
}

// Point returns the coordinates of the record.
func (l LiveLocation) Point() Point { return Point{Lat: l.Lat, Lon: l.Lon} }

// LastKnownLocation is the durable fallback position of a courier.
type LastKnownLocation struct {
	CourierID int64
	Point     Point
	UpdatedAt time.Time
}
