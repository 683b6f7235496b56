package domain

import (
	"strings"
	"time"
)

// PricePolicy prices one distance bracket for one courier mode.
type PricePolicy struct {
	ID          int64
	Mode        CourierMode
	MinDistance float64
	MaxDistance float64
	BasePrice   int64
	PricePerKm  int64
}

// Covers reports whether km falls inside the bracket (inclusive on both ends).
func (p PricePolicy) Covers(km float64) bool {
	return km >= p.MinDistance && km <= p.MaxDistance
}

// WeatherSample is one stored weather observation.
type WeatherSample struct {
	City        string
	Condition   string
	Temperature float64
	WindSpeed   float64
	Humidity    float64
	ObservedAt  time.Time
}

var adverseConditions = map[string]struct{}{
	"rain":         {},
	"snow":         {},
	"thunderstorm": {},
}

// AdverseWeather reports whether the condition triggers the price uplift.
func AdverseWeather(condition string) bool {
	_, ok := adverseConditions[strings.ToLower(strings.TrimSpace(condition))]
	return ok
}
