package routing

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/transitway/transitd/internal/models"
	"github.com/transitway/transitd/internal/store"
)

// LoaderConfig carries the policy knobs spec.md §9 calls out as
// load-time parameters rather than algorithm constants.
type LoaderConfig struct {
	TransferRadiusMeters float64
	InterStopSeconds     int
}

type Loader struct {
	store *store.Store
	cfg   LoaderConfig
}

func NewLoader(st *store.Store, cfg LoaderConfig) *Loader {
	return &Loader{store: st, cfg: cfg}
}

// LoadData runs the full sequence from spec.md §4.2 and returns the
// frozen, immutable Transit Graph. Any StoreUnavailable failure aborts
// and is returned to the caller, who treats it as fatal at startup.
func (l *Loader) LoadData(ctx context.Context) (*Graph, error) {
	log.Println("loading transit graph from store...")
	start := time.Now()

	g := &Graph{
		Transfers:    make(map[StopID][]Transfer),
		DBIDToStopID: make(map[int]StopID),
		StopIDToDBID: make(map[StopID]int),
	}

	if err := l.loadStops(ctx, g); err != nil {
		return nil, err
	}
	if err := l.loadRoutes(ctx, g); err != nil {
		return nil, err
	}
	if err := l.loadTransfers(ctx, g); err != nil {
		return nil, err
	}

	g.buildIndices()

	log.Printf("transit graph load complete: stops=%d routes=%d transfers=%d elapsed=%s",
		len(g.Stops), len(g.Routes), transferCount(g.Transfers), time.Since(start))
	return g, nil
}

func (l *Loader) loadStops(ctx context.Context, g *Graph) error {
	rows, err := l.store.ListStops(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		s := Stop{
			ID:   StopID(len(g.Stops)),
			DBID: row.ID,
			Code: row.Code,
			Name: row.Name,
			Lat:  row.Lat,
			Lon:  row.Lon,
		}
		g.DBIDToStopID[row.ID] = s.ID
		g.StopIDToDBID[s.ID] = row.ID
		g.Stops = append(g.Stops, s)
	}
	log.Printf("loaded %d stops", len(g.Stops))
	return nil
}

// loadRoutes derives one Route per (line, direction) pattern and one
// Trip per scheduled departure of each of the three service tags,
// following spec.md §4.2 steps 2-4.
func (l *Loader) loadRoutes(ctx context.Context, g *Graph) error {
	patterns, err := l.store.PatternList(ctx)
	if err != nil {
		return err
	}

	for _, p := range patterns {
		code, lineType, color, err := l.store.LineMeta(ctx, p.LineID)
		if err != nil {
			if store.IsNoRows(err) {
				log.Printf("skipping pattern line=%d dir=%d: missing line metadata", p.LineID, p.Direction)
				continue
			}
			return err
		}

		dbStopIDs, err := l.store.StopsOfPattern(ctx, p.LineID, p.Direction)
		if err != nil {
			return err
		}

		stopIDs, resolvedDBStopIDs := l.translateAndDedupe(g, dbStopIDs)
		if len(stopIDs) < 2 {
			log.Printf("skipping pattern line=%d dir=%d: fewer than 2 resolvable stops", p.LineID, p.Direction)
			continue
		}

		route := Route{
			ID:        RouteID(len(g.Routes)),
			Stops:     stopIDs,
			LineID:    p.LineID,
			LineCode:  code,
			LineType:  lineType,
			LineColor: color,
			Fare:      farePriceForType(lineType),
			FareClass: string(models.FareClassForLineType(lineType)),
		}

		for _, tag := range []ServiceTag{Weekday, Saturday, Sunday} {
			trips, err := l.tripsForPattern(ctx, p, resolvedDBStopIDs, stopIDs, tag)
			if err != nil {
				return err
			}
			route.Trips = append(route.Trips, trips...)
		}
		sortTripsByFirstDeparture(route.Trips)

		g.Routes = append(g.Routes, route)
	}
	log.Printf("loaded %d routes", len(g.Routes))
	return nil
}

// translateAndDedupe maps db stop ids to graph stop ids (dropping
// unresolvable ones) and drops the whole pattern, per spec.md §3's
// Route invariant, if any stop would appear twice.
func (l *Loader) translateAndDedupe(g *Graph, dbStopIDs []int) ([]StopID, []int) {
	var stopIDs []StopID
	var kept []int
	seen := make(map[StopID]bool)
	for _, dbID := range dbStopIDs {
		rid, ok := g.DBIDToStopID[dbID]
		if !ok {
			continue
		}
		if seen[rid] {
			// A repeated stop makes the sequence invalid for RAPTOR's
			// route-index lookups; drop the whole pattern rather than
			// half-build it.
			return nil, nil
		}
		seen[rid] = true
		stopIDs = append(stopIDs, rid)
		kept = append(kept, dbID)
	}
	return stopIDs, kept
}

func (l *Loader) tripsForPattern(ctx context.Context, p store.Pattern, dbStopIDs []int, stopIDs []StopID, tag ServiceTag) ([]Trip, error) {
	firstStopDBID := dbStopIDs[0]
	startTimes, err := l.store.SchedulesForFirstStop(ctx, p.LineID, p.Direction, firstStopDBID, tag.String())
	if err != nil {
		return nil, err
	}

	trips := make([]Trip, 0, len(startTimes))
	for _, st := range startTimes {
		startTime, err := time.Parse("15:04:05", st)
		if err != nil {
			continue
		}
		startSecs := TimeToSeconds(startTime)

		trip := Trip{
			ID:        TripID(len(trips)),
			Service:   tag,
			StopTimes: make([]StopTime, len(stopIDs)),
		}
		current := startSecs
		for i := range stopIDs {
			trip.StopTimes[i] = StopTime{Arrival: current, Departure: current}
			current += l.cfg.InterStopSeconds
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

// sortTripsByFirstDeparture orders a route's trips ascending by
// first-stop departure, the ordering §4.5's boarding rule requires for
// its linear scan. The corpus's transit repos keep a handful of daily
// trips per route, so an insertion sort is plenty.
func sortTripsByFirstDeparture(trips []Trip) {
	for i := 1; i < len(trips); i++ {
		j := i
		for j > 0 && trips[j-1].StopTimes[0].Departure > trips[j].StopTimes[0].Departure {
			trips[j-1], trips[j] = trips[j], trips[j-1]
			j--
		}
	}
}

func farePriceForType(lineType string) float64 {
	if lineType == "tram" || lineType == "busway" {
		return 8.0
	}
	return 5.0
}

func (l *Loader) loadTransfers(ctx context.Context, g *Graph) error {
	log.Println("generating transfers...")
	pairs, err := l.store.ProximityPairs(ctx, l.cfg.TransferRadiusMeters)
	if err != nil {
		return err
	}

	count := 0
	for _, pair := range pairs {
		fromID, ok1 := g.DBIDToStopID[pair.StopIDA]
		toID, ok2 := g.DBIDToStopID[pair.StopIDB]
		if !ok1 || !ok2 {
			continue
		}
		g.Transfers[fromID] = append(g.Transfers[fromID], Transfer{
			ToStop:      toID,
			TimeSeconds: int(math.Round(pair.Meters)), // 1 m/s nominal walking speed
		})
		count++
	}
	log.Printf("generated %d transfers", count)
	return nil
}

func transferCount(m map[StopID][]Transfer) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}
