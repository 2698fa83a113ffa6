package routing

import (
	"context"

	"github.com/transitway/transitd/internal/cache"
	"github.com/transitway/transitd/internal/metrics"
	"github.com/transitway/transitd/internal/models"
	"github.com/transitway/transitd/internal/store"
)

// Resolver is the Nearest-Stop Resolver (spec.md §4.3): given a
// coordinate, it returns the graph stop-ids within a configured box,
// each annotated with an initial walk duration.
type Resolver struct {
	graph      *Graph
	store      *store.Store
	cache      *cache.StopBoxCache // optional; nil disables caching
	boxDegrees float64
}

func NewResolver(graph *Graph, st *store.Store, c *cache.StopBoxCache, boxDegrees float64) *Resolver {
	return &Resolver{graph: graph, store: st, cache: c, boxDegrees: boxDegrees}
}

// Resolve returns a mapping from graph stop-id to initial-walk-seconds
// for every stop within the configured box around (lat, lon). An empty
// result means the caller should answer NoNearbyStops.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64, initialWalkSeconds int) (map[StopID]int, error) {
	minLat, minLon := lat-r.boxDegrees, lon-r.boxDegrees
	maxLat, maxLon := lat+r.boxDegrees, lon+r.boxDegrees

	stops, err := r.stopsInBox(ctx, minLat, minLon, maxLat, maxLon)
	if err != nil {
		return nil, err
	}

	result := make(map[StopID]int)
	for _, s := range stops {
		if id, ok := r.graph.DBIDToStopID[s.ID]; ok {
			result[id] = initialWalkSeconds
		}
	}
	return result, nil
}

func (r *Resolver) stopsInBox(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]models.Stop, error) {
	if r.cache != nil {
		if stops, hit := r.cache.Get(ctx, minLat, minLon, maxLat, maxLon); hit {
			metrics.CacheHits.WithLabelValues("stopbox").Inc()
			return stops, nil
		}
		metrics.CacheMisses.WithLabelValues("stopbox").Inc()
	}

	stops, err := r.store.StopsInBox(ctx, minLat, minLon, maxLat, maxLon)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(ctx, minLat, minLon, maxLat, maxLon, stops)
	}
	return stops, nil
}

// TargetSet narrows a stop-id -> walk-seconds mapping down to the bare
// set of stop-ids the engine treats as acceptable destinations.
func TargetSet(m map[StopID]int) map[StopID]bool {
	targets := make(map[StopID]bool, len(m))
	for id := range m {
		targets[id] = true
	}
	return targets
}
