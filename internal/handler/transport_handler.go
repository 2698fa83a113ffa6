// Package handler is the Request Gateway (spec.md §4.7): a thin
// controller that parses query parameters, resolves nearest stops,
// invokes the Routing Engine, and serializes the result.
package handler

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/transitway/transitd/internal/middleware"
	"github.com/transitway/transitd/internal/routing"
	"github.com/transitway/transitd/internal/shaper"
	"github.com/transitway/transitd/internal/store"
)

type TransportHandler struct {
	Store    *store.Store
	Engine   *routing.Engine
	Resolver *routing.Resolver
}

func NewTransportHandler(st *store.Store, engine *routing.Engine, resolver *routing.Resolver) *TransportHandler {
	return &TransportHandler{Store: st, Engine: engine, Resolver: resolver}
}

func (h *TransportHandler) GetAllLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Store.AllLines(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, lines)
}

func (h *TransportHandler) GetLineDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid line ID", http.StatusBadRequest)
		return
	}

	line, err := h.Store.LineByID(r.Context(), id)
	if err != nil {
		if store.IsNoRows(err) {
			http.Error(w, "Line not found", http.StatusNotFound)
			return
		}
		h.serverError(w, r, err)
		return
	}
	stops, err := h.Store.StopsOnLine(r.Context(), id, 0)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"line": line, "stops": stops})
}

// GetRoute implements spec.md §4.7's query-parameter rules and the
// Request Gateway's nearest-stop -> engine -> shaper pipeline.
func (h *TransportHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	fromLat, okFromLat := parseFloat(r, "from_lat")
	fromLon, okFromLon := parseFloat(r, "from_lon")
	toLat, okToLat := parseFloat(r, "to_lat")
	toLon, okToLon := parseFloat(r, "to_lon")
	if !okFromLat || !okFromLon || !okToLat || !okToLon {
		http.Error(w, "Missing or invalid source/destination coordinates", http.StatusBadRequest)
		return
	}

	departureTime := 8*3600 + 30*60 // default 08:30:00
	if raw := r.URL.Query().Get("time"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 && parsed < 86400 {
			departureTime = parsed
		}
	}

	dayParam := strings.ToLower(r.URL.Query().Get("day"))
	dayOptions := resolveDayOptions(dayParam)

	sources, err := h.Resolver.Resolve(r.Context(), fromLat, fromLon, 0)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	targetWalk, err := h.Resolver.Resolve(r.Context(), toLat, toLon, 0)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	targets := routing.TargetSet(targetWalk)

	if len(sources) == 0 || len(targets) == 0 {
		http.Error(w, "No nearby stops found", http.StatusNotFound)
		return
	}

	var journey *routing.Journey
	for _, tag := range dayOptions {
		journey = h.Engine.FindRoute(sources, targets, departureTime, tag)
		if journey != nil {
			break
		}
	}

	if journey == nil {
		http.Error(w, "No route found", http.StatusNotFound)
		return
	}

	writeJSON(w, shaper.Shape(journey))
}

// resolveDayOptions normalizes the day query parameter and fans
// "weekend" out to saturday-then-sunday, per spec.md §4.7. An unknown
// or empty value defaults to weekday.
func resolveDayOptions(day string) []routing.ServiceTag {
	if day == "weekend" {
		return []routing.ServiceTag{routing.Saturday, routing.Sunday}
	}
	if tag, ok := routing.ParseServiceTag(day); ok {
		return []routing.ServiceTag{tag}
	}
	return []routing.ServiceTag{routing.Weekday}
}

func (h *TransportHandler) GetStops(w http.ResponseWriter, r *http.Request) {
	minLat, okMinLat := parseFloat(r, "min_lat")
	minLon, okMinLon := parseFloat(r, "min_lon")
	maxLat, okMaxLat := parseFloat(r, "max_lat")
	maxLon, okMaxLon := parseFloat(r, "max_lon")
	if !okMinLat || !okMinLon || !okMaxLat || !okMaxLon {
		http.Error(w, "Missing viewport coordinates", http.StatusBadRequest)
		return
	}

	stops, err := h.Store.StopsInBox(r.Context(), minLat, minLon, maxLat, maxLon)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, stops)
}

func (h *TransportHandler) GetStopDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid stop ID", http.StatusBadRequest)
		return
	}

	stop, err := h.Store.StopByID(r.Context(), id)
	if err != nil {
		if store.IsNoRows(err) {
			http.Error(w, "Stop not found", http.StatusNotFound)
			return
		}
		h.serverError(w, r, err)
		return
	}
	lines, err := h.Store.LinesServingStop(r.Context(), id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"stop": stop, "lines": lines})
}

func (h *TransportHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("request_id=%s store error: %v", middleware.FromContext(r.Context()), err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// parseFloat reads a required query parameter, rejecting missing,
// unparseable, or non-finite values per spec.md §6's parameter rules.
func parseFloat(r *http.Request, key string) (float64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
