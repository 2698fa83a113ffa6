package shaper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transitway/transitd/internal/routing"
)

func TestShape_Nil(t *testing.T) {
	dto := Shape(nil)
	assert.Empty(t, dto.Legs)
}

func TestShape_TranslatesLegs(t *testing.T) {
	j := &routing.Journey{
		Legs: []routing.Leg{
			{
				Type:       "transit",
				FromStop:   routing.Stop{ID: 0, DBID: 101, Code: "A", Name: "Stop A", Lat: 1, Lon: 2},
				ToStop:     routing.Stop{ID: 1, DBID: 102, Code: "B", Name: "Stop B", Lat: 3, Lon: 4},
				StartTime:  8*3600 + 30*60,
				EndTime:    9 * 3600,
				RouteCode:  "T1",
				RouteColor: "#ff0000",
				Stops: []routing.Stop{
					{ID: 0, DBID: 101, Code: "A", Name: "Stop A", Lat: 1, Lon: 2},
					{ID: 1, DBID: 102, Code: "B", Name: "Stop B", Lat: 3, Lon: 4},
				},
				Geometry: [][2]float64{{2, 1}, {4, 3}},
			},
		},
	}

	dto := Shape(j)
	assert.Len(t, dto.Legs, 1)

	leg := dto.Legs[0]
	assert.Equal(t, "transit", leg.Type)
	assert.Equal(t, 101, leg.FromStop.ID)
	assert.Equal(t, 102, leg.ToStop.ID)
	assert.Equal(t, "08:30:00", leg.StartTime)
	assert.Equal(t, "09:00:00", leg.EndTime)
	assert.Equal(t, 1800, leg.Duration)
	assert.Equal(t, "T1", leg.RouteCode)
	assert.Equal(t, 0, leg.WaitTime)
	assert.Len(t, leg.Stops, 2)
	assert.Equal(t, 101, leg.Stops[0].ID)
}
