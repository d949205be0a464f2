package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/vol-analytics-engine/pkg/models"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
)

func point(day int, close float64) models.PricePoint {
	return models.PricePoint{
		Date:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Close: close,
	}
}

func TestStoreAppendAndHistory(t *testing.T) {
	store := NewPriceHistoryStore(10)

	store.Append("TEST", point(0, 100))
	store.Append("TEST", point(1, 101))

	history, err := store.History("TEST")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 100.0, history[0].Close)
	assert.Equal(t, 101.0, history[1].Close)
}

func TestStoreEvictsOldestAtCapacity(t *testing.T) {
	store := NewPriceHistoryStore(3)

	for i := 0; i < 5; i++ {
		store.Append("TEST", point(i, 100+float64(i)))
	}

	history, err := store.History("TEST")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 102.0, history[0].Close)
	assert.Equal(t, 104.0, history[2].Close)
}

func TestStoreReplace(t *testing.T) {
	store := NewPriceHistoryStore(2)

	store.Append("TEST", point(0, 50))
	store.Replace("TEST", []models.PricePoint{point(1, 100), point(2, 101), point(3, 102)})

	history, err := store.History("TEST")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 101.0, history[0].Close)
}

func TestStoreHistoryIsACopy(t *testing.T) {
	store := NewPriceHistoryStore(10)
	store.Append("TEST", point(0, 100))

	history, err := store.History("TEST")
	require.NoError(t, err)
	history[0].Close = 1

	again, err := store.History("TEST")
	require.NoError(t, err)
	assert.Equal(t, 100.0, again[0].Close)
}

func TestStoreLatestClose(t *testing.T) {
	store := NewPriceHistoryStore(10)
	store.Append("TEST", point(0, 100))
	store.Append("TEST", point(1, 105))

	close, date, err := store.LatestClose("TEST")
	require.NoError(t, err)
	assert.Equal(t, 105.0, close)
	assert.Equal(t, point(1, 105).Date, date)
}

func TestStoreUnknownSymbol(t *testing.T) {
	store := NewPriceHistoryStore(10)

	_, err := store.History("MISSING")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	_, _, err = store.LatestClose("MISSING")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestStoreSymbols(t *testing.T) {
	store := NewPriceHistoryStore(10)
	store.Append("AAA", point(0, 1))
	store.Append("BBB", point(0, 2))

	assert.ElementsMatch(t, []string{"AAA", "BBB"}, store.Symbols())
}
