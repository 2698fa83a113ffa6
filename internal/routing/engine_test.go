package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLineGraph constructs a single straight route A-B-C-D with one
// weekday trip departing stop A at 08:00:00, 300s between stops, plus
// an optional transfer table and extra routes supplied by the caller.
func buildLineGraph(t *testing.T, extra func(g *Graph)) *Graph {
	t.Helper()
	g := &Graph{
		Transfers:    make(map[StopID][]Transfer),
		DBIDToStopID: make(map[int]StopID),
		StopIDToDBID: make(map[StopID]int),
	}
	names := []string{"A", "B", "C", "D"}
	for i, name := range names {
		s := Stop{ID: StopID(i), DBID: i + 1, Code: name, Name: name, Lat: float64(i), Lon: float64(i)}
		g.DBIDToStopID[s.DBID] = s.ID
		g.StopIDToDBID[s.ID] = s.DBID
		g.Stops = append(g.Stops, s)
	}

	trip := Trip{
		ID:      0,
		Service: Weekday,
		StopTimes: []StopTime{
			{Arrival: 28800, Departure: 28800},
			{Arrival: 29100, Departure: 29100},
			{Arrival: 29400, Departure: 29400},
			{Arrival: 29700, Departure: 29700},
		},
	}
	route := Route{
		ID:       0,
		Stops:    []StopID{0, 1, 2, 3},
		Trips:    []Trip{trip},
		LineCode: "L1",
	}
	g.Routes = append(g.Routes, route)

	if extra != nil {
		extra(g)
	}
	g.buildIndices()
	return g
}

func TestFindRoute_DirectTransit(t *testing.T) {
	g := buildLineGraph(t, nil)
	e := NewEngine(g, 6)

	sources := map[StopID]int{0: 0}
	targets := map[StopID]bool{3: true}

	j := e.FindRoute(sources, targets, 28000, Weekday)
	require.NotNil(t, j)
	require.Len(t, j.Legs, 1)
	leg := j.Legs[0]
	assert.Equal(t, "transit", leg.Type)
	assert.Equal(t, StopID(0), leg.FromStop.ID)
	assert.Equal(t, StopID(3), leg.ToStop.ID)
	assert.Equal(t, 28800, leg.StartTime)
	assert.Equal(t, 29700, leg.EndTime)
	assert.Equal(t, "L1", leg.RouteCode)
}

func TestFindRoute_NoServiceForTag(t *testing.T) {
	g := buildLineGraph(t, nil)
	e := NewEngine(g, 6)

	j := e.FindRoute(map[StopID]int{0: 0}, map[StopID]bool{3: true}, 28000, Saturday)
	assert.Nil(t, j)
}

func TestFindRoute_SameStopOriginDestination(t *testing.T) {
	g := buildLineGraph(t, nil)
	e := NewEngine(g, 6)

	j := e.FindRoute(map[StopID]int{0: 0}, map[StopID]bool{0: true}, 28000, Weekday)
	// Stop 0 is already the source at round 0 and never improves in any
	// later round, so there is no real journey to report.
	assert.Nil(t, j)
}

func TestFindRoute_NoTripDepartsBeforeDeadline(t *testing.T) {
	g := buildLineGraph(t, nil)
	e := NewEngine(g, 6)

	// Departure requested after the only trip has already left stop A.
	j := e.FindRoute(map[StopID]int{0: 0}, map[StopID]bool{3: true}, 30000, Weekday)
	assert.Nil(t, j)
}

func TestFindRoute_WalkOnlyTransfer(t *testing.T) {
	g := buildLineGraph(t, func(g *Graph) {
		g.Transfers[0] = append(g.Transfers[0], Transfer{ToStop: 1, TimeSeconds: 60})
	})
	e := NewEngine(g, 6)

	j := e.FindRoute(map[StopID]int{0: 0}, map[StopID]bool{1: true}, 0, Weekday)
	require.NotNil(t, j)
	require.Len(t, j.Legs, 1)
	assert.Equal(t, "walk", j.Legs[0].Type)
	assert.Equal(t, 60, j.Legs[0].EndTime-j.Legs[0].StartTime)
}

func TestFindRoute_TransitThenWalkSameRound(t *testing.T) {
	// Add stop E reachable only by a transfer from D, so the journey is
	// transit A->D followed immediately by a walk D->E in the same round.
	g := buildLineGraph(t, func(g *Graph) {
		e := Stop{ID: 4, DBID: 5, Code: "E", Name: "E", Lat: 4, Lon: 4}
		g.DBIDToStopID[e.DBID] = e.ID
		g.StopIDToDBID[e.ID] = e.DBID
		g.Stops = append(g.Stops, e)
		g.Transfers[3] = append(g.Transfers[3], Transfer{ToStop: 4, TimeSeconds: 120})
	})
	e := NewEngine(g, 6)

	j := e.FindRoute(map[StopID]int{0: 0}, map[StopID]bool{4: true}, 28000, Weekday)
	require.NotNil(t, j)
	require.Len(t, j.Legs, 2)
	assert.Equal(t, "transit", j.Legs[0].Type)
	assert.Equal(t, "walk", j.Legs[1].Type)
	assert.Equal(t, StopID(3), j.Legs[0].ToStop.ID)
	assert.Equal(t, StopID(3), j.Legs[1].FromStop.ID)
	assert.Equal(t, StopID(4), j.Legs[1].ToStop.ID)
}

func TestFindRoute_PrefersEarlierArrivalAcrossRoutes(t *testing.T) {
	// A second route reaching stop D directly and earlier than the
	// baseline line should win, regardless of route scan order.
	g := buildLineGraph(t, func(g *Graph) {
		direct := Route{
			ID:    1,
			Stops: []StopID{0, 3},
			Trips: []Trip{{
				ID:      0,
				Service: Weekday,
				StopTimes: []StopTime{
					{Arrival: 28800, Departure: 28800},
					{Arrival: 29000, Departure: 29000},
				},
			}},
			LineCode: "DIRECT",
		}
		g.Routes = append(g.Routes, direct)
	})
	e := NewEngine(g, 6)

	j := e.FindRoute(map[StopID]int{0: 0}, map[StopID]bool{3: true}, 28000, Weekday)
	require.NotNil(t, j)
	require.Len(t, j.Legs, 1)
	assert.Equal(t, "DIRECT", j.Legs[0].RouteCode)
	assert.Equal(t, 29000, j.Legs[0].EndTime)
}

func TestFindRoute_MonotonicArrivalAcrossRounds(t *testing.T) {
	g := buildLineGraph(t, func(g *Graph) {
		g.Transfers[0] = append(g.Transfers[0], Transfer{ToStop: 1, TimeSeconds: 60})
	})
	e := NewEngine(g, 6)
	n := len(g.Stops)
	K := e.maxRounds

	arr := make([][]int, K+1)
	for k := range arr {
		arr[k] = make([]int, n)
		for i := range arr[k] {
			arr[k][i] = Infinity
		}
	}
	arr[0][0] = 28000
	marked := map[StopID]bool{0: true}

	labels := make([][]label, K+1)
	for k := range labels {
		labels[k] = make([]label, n)
	}

	for k := 1; k <= K; k++ {
		copy(arr[k], arr[k-1])
		entry := e.accumulateRoutes(marked)
		marked = make(map[StopID]bool)
		e.scanRoutes(entry, arr, labels, k, Weekday, marked)
		e.relaxTransfers(arr, labels, k, marked)
		for s := 0; s < n; s++ {
			assert.LessOrEqualf(t, arr[k][s], arr[k-1][s], "round %d stop %d regressed", k, s)
		}
	}
}

func TestFindRoute_DeterministicRepeatedCalls(t *testing.T) {
	g := buildLineGraph(t, nil)
	e := NewEngine(g, 6)

	first := e.FindRoute(map[StopID]int{0: 0}, map[StopID]bool{3: true}, 28000, Weekday)
	second := e.FindRoute(map[StopID]int{0: 0}, map[StopID]bool{3: true}, 28000, Weekday)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
}

func TestGraph_IndexAndRoutesContaining(t *testing.T) {
	g := buildLineGraph(t, nil)

	assert.Equal(t, 0, g.Index(0, 0))
	assert.Equal(t, 3, g.Index(0, 3))
	assert.Equal(t, -1, g.Index(0, StopID(99)))

	routes := g.RoutesContaining(1)
	require.Len(t, routes, 1)
	assert.Equal(t, RouteID(0), routes[0])
}

func TestServiceTag_ParseAndString(t *testing.T) {
	tag, ok := ParseServiceTag("saturday")
	require.True(t, ok)
	assert.Equal(t, Saturday, tag)
	assert.Equal(t, "saturday", tag.String())

	_, ok = ParseServiceTag("weekend")
	assert.False(t, ok)
}

func TestSecondsToTime(t *testing.T) {
	assert.Equal(t, "08:30:00", SecondsToTime(8*3600+30*60))
	assert.Equal(t, "00:00:00", SecondsToTime(0))
}
