package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateAndDedupe(t *testing.T) {
	l := &Loader{}
	g := &Graph{DBIDToStopID: map[int]StopID{1: 0, 2: 1, 3: 2}}

	t.Run("translates and preserves order", func(t *testing.T) {
		stopIDs, kept := l.translateAndDedupe(g, []int{1, 2, 3})
		assert.Equal(t, []StopID{0, 1, 2}, stopIDs)
		assert.Equal(t, []int{1, 2, 3}, kept)
	})

	t.Run("drops unresolvable db ids", func(t *testing.T) {
		stopIDs, kept := l.translateAndDedupe(g, []int{1, 99, 2})
		assert.Equal(t, []StopID{0, 1}, stopIDs)
		assert.Equal(t, []int{1, 2}, kept)
	})

	t.Run("drops the whole pattern on a repeated stop", func(t *testing.T) {
		stopIDs, kept := l.translateAndDedupe(g, []int{1, 2, 1})
		assert.Nil(t, stopIDs)
		assert.Nil(t, kept)
	})
}

func TestFarePriceForType(t *testing.T) {
	assert.Equal(t, 8.0, farePriceForType("tram"))
	assert.Equal(t, 8.0, farePriceForType("busway"))
	assert.Equal(t, 5.0, farePriceForType("bus"))
	assert.Equal(t, 5.0, farePriceForType("train"))
}

func TestSortTripsByFirstDeparture(t *testing.T) {
	trips := []Trip{
		{ID: 0, StopTimes: []StopTime{{Departure: 500}}},
		{ID: 1, StopTimes: []StopTime{{Departure: 100}}},
		{ID: 2, StopTimes: []StopTime{{Departure: 300}}},
	}
	sortTripsByFirstDeparture(trips)

	departures := make([]int, len(trips))
	for i, tr := range trips {
		departures[i] = tr.StopTimes[0].Departure
	}
	assert.Equal(t, []int{100, 300, 500}, departures)
}

func TestTransferCount(t *testing.T) {
	m := map[StopID][]Transfer{
		0: {{ToStop: 1, TimeSeconds: 10}, {ToStop: 2, TimeSeconds: 20}},
		1: {{ToStop: 0, TimeSeconds: 10}},
	}
	assert.Equal(t, 3, transferCount(m))
}
