// Package store holds the in-memory price-history series the estimator
// reads from. The series are pushed in by the hosting application (or
// the scanner's Kafka feed); nothing here fetches data itself.
package store

import (
	"sync"
	"time"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// PriceHistoryStore is an in-memory, per-symbol close-price series store
type PriceHistoryStore struct {
	series  map[string][]models.PricePoint
	maxSize int
	mu      sync.RWMutex
	log     *logger.Logger
}

// NewPriceHistoryStore creates a store retaining at most maxSize points
// per symbol, defaulting to two trading years
func NewPriceHistoryStore(maxSize int) *PriceHistoryStore {
	if maxSize <= 0 {
		maxSize = 504
	}
	return &PriceHistoryStore{
		series:  make(map[string][]models.PricePoint),
		maxSize: maxSize,
		log:     logger.GetLogger("store.history"),
	}
}

// Append adds one close to a symbol's series, evicting the oldest point
// once the retention cap is reached
func (s *PriceHistoryStore) Append(symbol string, point models.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := append(s.series[symbol], point)
	if len(series) > s.maxSize {
		series = series[len(series)-s.maxSize:]
	}
	s.series[symbol] = series
}

// Replace swaps a symbol's entire series, keeping only the newest
// points when the input exceeds the retention cap
func (s *PriceHistoryStore) Replace(symbol string, points []models.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := make([]models.PricePoint, len(points))
	copy(series, points)
	if len(series) > s.maxSize {
		series = series[len(series)-s.maxSize:]
	}
	s.series[symbol] = series
}

// History returns a copy of a symbol's series
func (s *PriceHistoryStore) History(symbol string) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[symbol]
	if !ok || len(series) == 0 {
		return nil, errors.NotFound("no price history for symbol " + symbol)
	}

	out := make([]models.PricePoint, len(series))
	copy(out, series)
	return out, nil
}

// LatestClose returns the most recent close and its date for a symbol
func (s *PriceHistoryStore) LatestClose(symbol string) (float64, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[symbol]
	if !ok || len(series) == 0 {
		return 0, time.Time{}, errors.NotFound("no price history for symbol " + symbol)
	}
	last := series[len(series)-1]
	return last.Close, last.Date, nil
}

// Symbols lists the symbols with stored history
func (s *PriceHistoryStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.series))
	for symbol := range s.series {
		symbols = append(symbols, symbol)
	}
	return symbols
}
