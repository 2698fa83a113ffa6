package routing

import (
	"math"
	"time"

	"github.com/transitway/transitd/internal/metrics"
)

// Infinity marks an unreached stop in the round tables.
const Infinity = math.MaxInt32

// walkSentinel marks a label produced by a foot transfer rather than a
// trip boarding. spec.md §9 notes a tagged Walk/Transit variant is the
// self-documenting alternative to this sentinel; both are acceptable,
// and the sentinel is what the teacher's array layout expects, so it is
// kept here and named rather than hidden.
const walkSentinel = RouteID(-1)

// Engine is the Routing Engine (spec.md §4.4-4.5): a round-based
// earliest-arrival search over an immutable Transit Graph. It holds no
// state across calls and performs no I/O.
type Engine struct {
	graph     *Graph
	maxRounds int
}

func NewEngine(graph *Graph, maxRounds int) *Engine {
	return &Engine{graph: graph, maxRounds: maxRounds}
}

type Journey struct {
	Legs []Leg
}

type Leg struct {
	Type       string // "transit" or "walk"
	FromStop   Stop
	ToStop     Stop
	StartTime  int // seconds since midnight
	EndTime    int
	RouteCode  string
	RouteColor string
	Stops      []Stop
	Geometry   [][2]float64
}

type label struct {
	fromStop  StopID
	routeID   RouteID
	tripIdx   int
	boardTime int
	set       bool
}

// FindRoute is the engine's public contract. sources maps stop-id to
// initial-walk-seconds; targets is the acceptable-destination set.
// Returns nil if no target is reached within maxRounds rounds.
func (e *Engine) FindRoute(sources map[StopID]int, targets map[StopID]bool, departureSeconds int, tag ServiceTag) *Journey {
	start := time.Now()
	journey := e.findRoute(sources, targets, departureSeconds, tag)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if journey != nil {
		metrics.SearchesFound.Inc()
	} else {
		metrics.SearchesNotFound.Inc()
	}
	return journey
}

func (e *Engine) findRoute(sources map[StopID]int, targets map[StopID]bool, departureSeconds int, tag ServiceTag) *Journey {
	n := len(e.graph.Stops)
	K := e.maxRounds

	arr := make([][]int, K+1)
	labels := make([][]label, K+1)
	for k := 0; k <= K; k++ {
		arr[k] = make([]int, n)
		labels[k] = make([]label, n)
		for i := range arr[k] {
			arr[k][i] = Infinity
		}
	}

	marked := make(map[StopID]bool)
	for sid, walk := range sources {
		arr[0][sid] = departureSeconds + walk
		marked[sid] = true
	}
	// Foot-paths out of the origin itself are relaxed once up front, at
	// round 0, so a walk-only journey (no trip boarded at all) is
	// reachable and round 1's route scan can also board from a stop the
	// traveler only reaches by walking from the true origin.
	e.relaxTransfers(arr, labels, 0, marked)

	lastRound := 0
	for k := 1; k <= K; k++ {
		lastRound = k
		copy(arr[k], arr[k-1])

		routeEntry := e.accumulateRoutes(marked)
		marked = make(map[StopID]bool)

		e.scanRoutes(routeEntry, arr, labels, k, tag, marked)
		e.relaxTransfers(arr, labels, k, marked)

		if len(marked) == 0 {
			break
		}
	}
	_ = lastRound

	bestK, bestStop, bestTime := e.selectTarget(arr, targets, K)
	if bestTime == Infinity {
		return nil
	}
	legs := e.reconstruct(arr, labels, bestK, bestStop)
	if len(legs) == 0 {
		// The target coincides with the origin and never improved in
		// any round: arr[bestK] just carried the origin's value
		// forward. That is not a journey (spec.md §8: a trivial
		// zero-leg result is never returned).
		return nil
	}
	return &Journey{Legs: legs}
}

// accumulateRoutes finds, for each route touched by a marked stop, the
// earliest index along that route reached through any marked stop
// (spec.md §4.5 step 1). Each route is scanned at most once per round.
func (e *Engine) accumulateRoutes(marked map[StopID]bool) map[RouteID]StopID {
	entry := make(map[RouteID]StopID)
	for sid := range marked {
		for _, rid := range e.graph.RoutesContaining(sid) {
			if existing, ok := entry[rid]; ok {
				if e.graph.Index(rid, sid) < e.graph.Index(rid, existing) {
					entry[rid] = sid
				}
			} else {
				entry[rid] = sid
			}
		}
	}
	return entry
}

// scanRoutes is spec.md §4.5 step 2: walk each touched route forward
// from its entry point, alighting improved arrivals and (re)boarding the
// earliest feasible trip.
func (e *Engine) scanRoutes(entry map[RouteID]StopID, arr [][]int, labels [][]label, k int, tag ServiceTag, marked map[StopID]bool) {
	for rid, startStop := range entry {
		route := &e.graph.Routes[rid]
		startIdx := e.graph.Index(rid, startStop)

		tripIdx := -1
		var boardStop StopID
		var boardTime int

		for i := startIdx; i < len(route.Stops); i++ {
			sid := route.Stops[i]

			if tripIdx >= 0 {
				t := route.Trips[tripIdx].StopTimes[i].Arrival
				if t < arr[k][sid] {
					arr[k][sid] = t
					labels[k][sid] = label{fromStop: boardStop, routeID: rid, tripIdx: tripIdx, boardTime: boardTime, set: true}
					marked[sid] = true
				}
			}

			prevArrival := arr[k-1][sid]
			if prevArrival < Infinity {
				if idx, dep, ok := earliestBoardableTrip(route, i, tag, prevArrival); ok {
					if tripIdx < 0 || dep < route.Trips[tripIdx].StopTimes[i].Departure {
						tripIdx = idx
						boardStop = sid
						boardTime = dep
					}
				}
			}
		}
	}
}

// earliestBoardableTrip returns the index of the earliest trip (of the
// requested service tag, scanned in ascending first-departure order)
// whose departure at stop index i is >= notBefore.
func earliestBoardableTrip(route *Route, stopIdx int, tag ServiceTag, notBefore int) (idx int, departure int, ok bool) {
	for i, trip := range route.Trips {
		if trip.Service != tag {
			continue
		}
		dep := trip.StopTimes[stopIdx].Departure
		if dep >= notBefore {
			return i, dep, true
		}
	}
	return 0, 0, false
}

// relaxTransfers is spec.md §4.5 step 3: walking transfers out of every
// stop improved by transit this round feed the next round's boarding
// step, without themselves consuming a round.
func (e *Engine) relaxTransfers(arr [][]int, labels [][]label, k int, marked map[StopID]bool) {
	transitMarked := make([]StopID, 0, len(marked))
	for sid := range marked {
		transitMarked = append(transitMarked, sid)
	}
	for _, sid := range transitMarked {
		arrival := arr[k][sid]
		for _, tr := range e.graph.Transfers[sid] {
			walkArr := arrival + tr.TimeSeconds
			if walkArr < arr[k][tr.ToStop] {
				arr[k][tr.ToStop] = walkArr
				labels[k][tr.ToStop] = label{fromStop: sid, routeID: walkSentinel, boardTime: arrival, set: true}
				marked[tr.ToStop] = true
			}
		}
	}
}

// selectTarget picks (k*, s*) minimizing arrival time over all targets
// and rounds, taking the smallest k achieving the minimum (spec.md
// §4.5 Target selection) so that equal-time journeys prefer fewer rides.
func (e *Engine) selectTarget(arr [][]int, targets map[StopID]bool, K int) (int, StopID, int) {
	bestTime := Infinity
	var bestStop StopID
	var bestK int
	for t := range targets {
		for k := 1; k <= K; k++ {
			if arr[k][t] < bestTime || (arr[k][t] == bestTime && k < bestK) {
				bestTime = arr[k][t]
				bestStop = t
				bestK = k
			}
		}
	}
	return bestK, bestStop, bestTime
}

// reconstruct walks backward from (k*, s*) per spec.md §4.5 Path
// reconstruction, emitting legs in reverse order before returning them
// forward.
func (e *Engine) reconstruct(arr [][]int, labels [][]label, bestK int, bestStop StopID) []Leg {
	var legs []Leg
	cur := bestStop

	for k := bestK; k > 0; k-- {
		if arr[k][cur] == arr[k-1][cur] {
			continue
		}

		lbl := labels[k][cur]
		from := lbl.fromStop

		if lbl.routeID == walkSentinel {
			leg := Leg{
				Type:      "walk",
				FromStop:  e.graph.Stops[from],
				ToStop:    e.graph.Stops[cur],
				StartTime: lbl.boardTime,
				EndTime:   arr[k][cur],
				Stops:     []Stop{e.graph.Stops[from], e.graph.Stops[cur]},
				Geometry: [][2]float64{
					{e.graph.Stops[from].Lon, e.graph.Stops[from].Lat},
					{e.graph.Stops[cur].Lon, e.graph.Stops[cur].Lat},
				},
			}
			legs = append([]Leg{leg}, legs...)
			cur = from

			// Per spec.md §4.5: if the same round also reached the walk's
			// origin by transit, consume that transit label immediately —
			// one round can produce a transit-then-walk pair.
			if arr[k][cur] < arr[k-1][cur] {
				lbl = labels[k][cur]
				from = lbl.fromStop
				route := &e.graph.Routes[lbl.routeID]
				stops, geom := e.buildLegPath(route, from, cur)
				legs = append([]Leg{{
					Type:       "transit",
					FromStop:   e.graph.Stops[from],
					ToStop:     e.graph.Stops[cur],
					StartTime:  lbl.boardTime,
					EndTime:    arr[k][cur],
					RouteCode:  route.LineCode,
					RouteColor: route.LineColor,
					Stops:      stops,
					Geometry:   geom,
				}}, legs...)
				cur = from
			}
		} else {
			route := &e.graph.Routes[lbl.routeID]
			stops, geom := e.buildLegPath(route, from, cur)
			legs = append([]Leg{{
				Type:       "transit",
				FromStop:   e.graph.Stops[from],
				ToStop:     e.graph.Stops[cur],
				StartTime:  lbl.boardTime,
				EndTime:    arr[k][cur],
				RouteCode:  route.LineCode,
				RouteColor: route.LineColor,
				Stops:      stops,
				Geometry:   geom,
			}}, legs...)
			cur = from
		}
	}

	// A foot-path taken directly from the true origin (before any trip
	// is boarded) lives in round 0's label table, which the k>0 loop
	// above never visits. Consume it here if present.
	if lbl := labels[0][cur]; lbl.set {
		from := lbl.fromStop
		legs = append([]Leg{{
			Type:      "walk",
			FromStop:  e.graph.Stops[from],
			ToStop:    e.graph.Stops[cur],
			StartTime: lbl.boardTime,
			EndTime:   arr[0][cur],
			Stops:     []Stop{e.graph.Stops[from], e.graph.Stops[cur]},
			Geometry: [][2]float64{
				{e.graph.Stops[from].Lon, e.graph.Stops[from].Lat},
				{e.graph.Stops[cur].Lon, e.graph.Stops[cur].Lat},
			},
		}}, legs...)
	}

	return legs
}

// buildLegPath returns the ordered stops and straight-line polyline
// between two stops along a route (spec.md §3 transit-leg invariant:
// indexOf(from) < indexOf(to)).
func (e *Engine) buildLegPath(route *Route, from, to StopID) ([]Stop, [][2]float64) {
	fromIdx := e.graph.Index(route.ID, from)
	toIdx := e.graph.Index(route.ID, to)
	if fromIdx == -1 || toIdx == -1 {
		return nil, nil
	}
	if fromIdx > toIdx {
		fromIdx, toIdx = toIdx, fromIdx
	}

	seq := route.Stops[fromIdx : toIdx+1]
	stops := make([]Stop, 0, len(seq))
	geom := make([][2]float64, 0, len(seq))
	for _, sid := range seq {
		st := e.graph.Stops[sid]
		stops = append(stops, st)
		geom = append(geom, [2]float64{st.Lon, st.Lat})
	}
	return stops, geom
}
