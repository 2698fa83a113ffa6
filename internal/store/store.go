// Package store is the Store Gateway: the only component that talks to
// the persistent relational/geospatial store. Every query the Graph
// Loader and the Request Gateway need is named and typed here; nothing
// above this package issues raw SQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/transitway/transitd/internal/models"
)

// ErrStoreUnavailable wraps any connectivity or query failure against the
// persistent store. The Loader treats it as fatal; the request path
// treats it as a 5xx-class error.
var ErrStoreUnavailable = errors.New("store unavailable")

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// storeErr wraps a driver/query failure with the op that produced it and
// a stack trace (via pkg/errors), while still satisfying
// errors.Is(err, ErrStoreUnavailable) for callers that only care about
// the taxonomy kind.
type storeErr struct {
	op    string
	cause error
}

func (e *storeErr) Error() string { return fmt.Sprintf("%s: %s", e.op, e.cause) }
func (e *storeErr) Unwrap() error { return e.cause }
func (e *storeErr) Is(target error) bool { return target == ErrStoreUnavailable }

func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &storeErr{op: op, cause: pkgerrors.WithStack(err)}
}

// IsNoRows reports whether err is the store's "no such row" sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// --- Stop and line queries (ListStops feeds the Graph Loader; the rest
// serve the Request Gateway and the Nearest-Stop Resolver) ---

func (s *Store) ListStops(ctx context.Context) ([]models.Stop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, code, name_fr, ST_X(location::geometry), ST_Y(location::geometry), stop_type
		FROM stops
	`)
	if err != nil {
		return nil, wrap(err, "ListStops")
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var st models.Stop
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.Lon, &st.Lat, &st.Type); err != nil {
			return nil, wrap(err, "ListStops scan")
		}
		stops = append(stops, st)
	}
	return stops, nil
}

// StopsInBox is the shared primitive for viewport browsing and
// nearest-stop resolution. Capped at 200 results.
func (s *Store) StopsInBox(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]models.Stop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, code, name_fr, ST_X(location::geometry), ST_Y(location::geometry), stop_type
		FROM stops
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)::geography
		LIMIT 200
	`, minLon, minLat, maxLon, maxLat)
	if err != nil {
		return nil, wrap(err, "StopsInBox")
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var st models.Stop
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.Lon, &st.Lat, &st.Type); err != nil {
			return nil, wrap(err, "StopsInBox scan")
		}
		stops = append(stops, st)
	}
	return stops, nil
}

func (s *Store) StopByID(ctx context.Context, id int) (*models.Stop, error) {
	var st models.Stop
	err := s.db.QueryRow(ctx, `
		SELECT id, code, name_fr, ST_X(location::geometry), ST_Y(location::geometry), stop_type
		FROM stops WHERE id = $1
	`, id).Scan(&st.ID, &st.Code, &st.Name, &st.Lon, &st.Lat, &st.Type)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, wrap(err, "StopByID")
	}
	return &st, nil
}

func (s *Store) LineByID(ctx context.Context, id int) (*models.Line, error) {
	var l models.Line
	err := s.db.QueryRow(ctx, `
		SELECT id, code, name_fr, line_type, COALESCE(color, '#000000'), operator_id, origin_name, destination_name
		FROM lines WHERE id = $1
	`, id).Scan(&l.ID, &l.Code, &l.Name, &l.Type, &l.Color, &l.OperatorID, &l.Origin, &l.Destination)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, wrap(err, "LineByID")
	}
	return &l, nil
}

func (s *Store) StopsOnLine(ctx context.Context, lineID, direction int) ([]models.Stop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.code, s.name_fr, ST_X(s.location::geometry), ST_Y(s.location::geometry), s.stop_type, ls.stop_sequence
		FROM stops s
		JOIN line_stops ls ON s.id = ls.stop_id
		WHERE ls.line_id = $1 AND ls.direction = $2
		ORDER BY ls.stop_sequence ASC
	`, lineID, direction)
	if err != nil {
		return nil, wrap(err, "StopsOnLine")
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var st models.Stop
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.Lon, &st.Lat, &st.Type, &st.Sequence); err != nil {
			return nil, wrap(err, "StopsOnLine scan")
		}
		stops = append(stops, st)
	}
	return stops, nil
}

func (s *Store) LinesServingStop(ctx context.Context, stopID int) ([]models.Line, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT l.id, l.code, l.name_fr, l.line_type, COALESCE(l.color, '#000000'), l.operator_id,
		       l.origin_name, l.destination_name
		FROM lines l
		JOIN line_stops ls ON ls.line_id = l.id
		WHERE ls.stop_id = $1
		ORDER BY l.code ASC
	`, stopID)
	if err != nil {
		return nil, wrap(err, "LinesServingStop")
	}
	defer rows.Close()

	var lines []models.Line
	for rows.Next() {
		var l models.Line
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &l.Type, &l.Color, &l.OperatorID, &l.Origin, &l.Destination); err != nil {
			return nil, wrap(err, "LinesServingStop scan")
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func (s *Store) AllLines(ctx context.Context) ([]models.Line, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.id, l.code, l.name_fr, l.line_type, COALESCE(l.color, '#000000'), l.operator_id,
		       l.origin_name, l.destination_name,
		       (SELECT COUNT(*) FROM line_stops WHERE line_id = l.id) as stop_count
		FROM lines l
		ORDER BY
			CASE
				WHEN line_type = 'tram' THEN 1
				WHEN line_type = 'busway' THEN 2
				WHEN line_type = 'train' THEN 3
				ELSE 4
			END,
			l.code ASC
	`)
	if err != nil {
		return nil, wrap(err, "AllLines")
	}
	defer rows.Close()

	var lines []models.Line
	for rows.Next() {
		var l models.Line
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &l.Type, &l.Color, &l.OperatorID, &l.Origin, &l.Destination, &l.StopCount); err != nil {
			return nil, wrap(err, "AllLines scan")
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// --- Queries used only by the Graph Loader ---

// Pattern is a (line, direction) pair — the source-data term for the
// unique path a route derives from.
type Pattern struct {
	LineID    int
	Direction int
}

func (s *Store) PatternList(ctx context.Context) ([]Pattern, error) {
	rows, err := s.db.Query(ctx, "SELECT DISTINCT line_id, direction FROM line_stops")
	if err != nil {
		return nil, wrap(err, "PatternList")
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(&p.LineID, &p.Direction); err != nil {
			return nil, wrap(err, "PatternList scan")
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func (s *Store) StopsOfPattern(ctx context.Context, lineID, direction int) ([]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT stop_id FROM line_stops WHERE line_id=$1 AND direction=$2 ORDER BY stop_sequence
	`, lineID, direction)
	if err != nil {
		return nil, wrap(err, "StopsOfPattern")
	}
	defer rows.Close()

	var stopIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err, "StopsOfPattern scan")
		}
		stopIDs = append(stopIDs, id)
	}
	return stopIDs, nil
}

// LineMeta returns code, type and display color, or pgx.ErrNoRows if the
// line is missing.
func (s *Store) LineMeta(ctx context.Context, lineID int) (code, lineType, color string, err error) {
	err = s.db.QueryRow(ctx, "SELECT code, line_type, COALESCE(color, '#000000') FROM lines WHERE id=$1", lineID).
		Scan(&code, &lineType, &color)
	if err != nil && !IsNoRows(err) {
		err = wrap(err, "LineMeta")
	}
	return
}

func (s *Store) SchedulesForFirstStop(ctx context.Context, lineID, direction, firstStopDBID int, serviceTag string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT departure_time FROM schedules
		WHERE line_id=$1 AND direction=$2 AND stop_id=$3 AND day_type=$4
		ORDER BY departure_time
	`, lineID, direction, firstStopDBID, serviceTag)
	if err != nil {
		return nil, wrap(err, "SchedulesForFirstStop")
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, wrap(err, "SchedulesForFirstStop scan")
		}
		times = append(times, t)
	}
	return times, nil
}

// ProximityPair is a candidate walking transfer between two stops.
type ProximityPair struct {
	StopIDA int
	StopIDB int
	Meters  float64
}

// ProximityPairs scans every ordered pair of distinct stops within
// radiusMeters of each other, using PostGIS's geography distance.
func (s *Store) ProximityPairs(ctx context.Context, radiusMeters float64) ([]ProximityPair, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s1.id, s2.id, ST_Distance(s1.location::geography, s2.location::geography)
		FROM stops s1
		JOIN stops s2 ON ST_DWithin(s1.location::geography, s2.location::geography, $1)
		WHERE s1.id != s2.id
	`, radiusMeters)
	if err != nil {
		return nil, wrap(err, "ProximityPairs")
	}
	defer rows.Close()

	var pairs []ProximityPair
	for rows.Next() {
		var p ProximityPair
		if err := rows.Scan(&p.StopIDA, &p.StopIDB, &p.Meters); err != nil {
			return nil, wrap(err, "ProximityPairs scan")
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}
