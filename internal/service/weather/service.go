package weather

import (
	"context"
	"errors"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

type provider interface {
	Current(ctx context.Context, city string) (domain.WeatherSample, error)
}

type sampleStore interface {
	SaveWeather(ctx context.Context, w domain.WeatherSample) error
}

// Service keeps the latest weather sample used for price uplifts.
type Service struct {
	provider provider
	store    sampleStore
	city     string
	timeout  time.Duration
	logger   logx.Logger
}

// NewService creates a new weather Service.
func NewService(p provider, store sampleStore, city string, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{provider: p, store: store, city: city, timeout: timeout, logger: logger}
}

// Refresh fetches the current weather for the configured city and stores it.
func (s *Service) Refresh(ctx context.Context) (domain.WeatherSample, error) {
	if s.city == "" {
		return domain.WeatherSample{}, errors.New("weather city is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w, err := s.provider.Current(ctx, s.city)
	if err != nil {
		return domain.WeatherSample{}, err
	}
	if err := s.store.SaveWeather(ctx, w); err != nil {
		return domain.WeatherSample{}, err
	}

	s.logger.Info("weather refreshed",
		logx.String("event", "weather_refreshed"),
		logx.String("city", w.City),
		logx.String("condition", w.Condition),
		logx.Bool("adverse", domain.AdverseWeather(w.Condition)),
	)
	return w, nil
}
