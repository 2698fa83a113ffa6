// Package shaper implements the Journey Shaper (spec.md §4.6): pure
// translation from the Routing Engine's reconstructed leg chain into
// the external leg schema (spec.md §6). It makes no semantic decisions.
package shaper

import (
	"github.com/transitway/transitd/internal/routing"
)

// StopDTO is the external stop shape shared with the /stops endpoints:
// {id, code, name, lat, lon}, using the persistent store's id, not the
// graph-local one.
type StopDTO struct {
	ID   int     `json:"id"`
	Code string  `json:"code"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type LegDTO struct {
	Type       string        `json:"type"`
	FromStop   StopDTO       `json:"fromStop"`
	ToStop     StopDTO       `json:"toStop"`
	StartTime  string        `json:"startTime"`
	EndTime    string        `json:"endTime"`
	Duration   int           `json:"duration"`
	RouteCode  string        `json:"routeCode"`
	RouteColor string        `json:"routeColor"`
	WaitTime   int           `json:"waitTime"`
	Stops      []StopDTO     `json:"stops"`
	Geometry   [][2]float64  `json:"geometry"`
}

type JourneyDTO struct {
	Legs []LegDTO `json:"legs"`
}

// Shape translates a reconstructed Journey into the external schema.
// waitTime is always 0 per spec.md §4.6; the boundary may recompute it
// from adjacent leg times if it chooses to.
func Shape(j *routing.Journey) JourneyDTO {
	if j == nil {
		return JourneyDTO{}
	}
	legs := make([]LegDTO, 0, len(j.Legs))
	for _, leg := range j.Legs {
		legs = append(legs, shapeLeg(leg))
	}
	return JourneyDTO{Legs: legs}
}

func shapeLeg(leg routing.Leg) LegDTO {
	return LegDTO{
		Type:       leg.Type,
		FromStop:   shapeStop(leg.FromStop),
		ToStop:     shapeStop(leg.ToStop),
		StartTime:  routing.SecondsToTime(leg.StartTime),
		EndTime:    routing.SecondsToTime(leg.EndTime),
		Duration:   leg.EndTime - leg.StartTime,
		RouteCode:  leg.RouteCode,
		RouteColor: leg.RouteColor,
		WaitTime:   0,
		Stops:      shapeStops(leg.Stops),
		Geometry:   leg.Geometry,
	}
}

func shapeStop(s routing.Stop) StopDTO {
	return StopDTO{ID: s.DBID, Code: s.Code, Name: s.Name, Lat: s.Lat, Lon: s.Lon}
}

func shapeStops(stops []routing.Stop) []StopDTO {
	out := make([]StopDTO, 0, len(stops))
	for _, s := range stops {
		out = append(out, shapeStop(s))
	}
	return out
}
