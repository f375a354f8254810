package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long a reading is reused.
const DefaultTTL = 10 * time.Minute

type cacheKey struct{ lat, lon float64 }

// Service memoises current conditions per location.
type Service struct {
	client *Client
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[cacheKey]*Conditions
}

// NewService creates a new weather service
func NewService(client *Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: client,
		logger: logger,
		ttl:    DefaultTTL,
		now:    time.Now,
		cache:  make(map[cacheKey]*Conditions),
	}
}

// Current returns conditions at lat/lon, from the cache when fresh.
func (s *Service) Current(ctx context.Context, lat, lon float64) (*Conditions, error) {
	// Round coordinates to 2 decimal places (approx 1.1km precision)
	const precision = 100.0
	key := cacheKey{math.Round(lat*precision) / precision, math.Round(lon*precision) / precision}

	now := s.now()
	s.mu.Lock()
	if c, ok := s.cache[key]; ok && now.Before(c.ExpiresAt) {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	fc, err := s.client.GetCurrent(ctx, key.lat, key.lon)
	if err != nil {
		s.logger.Warn("weather fetch failed", zap.Float64("lat", key.lat), zap.Float64("lon", key.lon), zap.Error(err))
		return nil, fmt.Errorf("failed to get current conditions: %w", err)
	}

	c := &Conditions{
		Temperature: fc.Current.Temperature2m,
		Pressure:    fc.Current.SurfacePressure,
		Humidity:    fc.Current.RelativeHumidity,
		ObservedAt:  fc.Current.Time,
		CachedAt:    now,
		ExpiresAt:   now.Add(s.ttl),
	}
	s.mu.Lock()
	s.cache[key] = c
	s.mu.Unlock()
	return c, nil
}
