// internal/models/network.go

package models

import (
	"sort"
	"time"
)

// Entity status constants
const (
	EntityRunning        = "RUNNING"
	EntityStopped        = "STOPPED"
	EntityDelayed        = "DELAYED"
	EntityConnectionLost = "CONNECTION_LOST"
)

// Signal aspect constants
const (
	AspectRed    = "RED"
	AspectYellow = "YELLOW"
	AspectGreen  = "GREEN"
)

// EntityState is the last known state of one vehicle in the fleet.
type EntityState struct {
	EntityID     string    `json:"entity_id"`
	SegmentID    string    `json:"segment_id"`
	PositionM    float64   `json:"position_m"` // offset along the current segment, metres
	SpeedKmh     float64   `json:"speed_kmh"`
	HeadingDeg   float64   `json:"heading_deg"`
	RouteID      string    `json:"route_id"`
	Status       string    `json:"status"`
	LastUpdateAt time.Time `json:"last_update_at"`
}

// SignalState describes a trackside signal protecting entry into its segment.
type SignalState struct {
	SignalID          string    `json:"signal_id"`
	SegmentID         string    `json:"segment_id"` // segment whose entry this signal guards
	Aspect            string    `json:"aspect"`
	AffectedEntityIDs []string  `json:"affected_entity_ids"`
	LastUpdateAt      time.Time `json:"last_update_at"`
}

// Segment is one block of track between two junction endpoints.
type Segment struct {
	SegmentID   string  `json:"segment_id"`
	Name        string  `json:"name"`
	FromNode    string  `json:"from_node"`
	ToNode      string  `json:"to_node"`
	LengthM     float64 `json:"length_m"`
	MaxSpeedKmh float64 `json:"max_speed_kmh"`
	Capacity    int     `json:"capacity"`
	Occupancy   int     `json:"occupancy"` // filled in at snapshot assembly
}

// Junction connects segments; SwitchTo is the segment id the points are
// currently set towards.
type Junction struct {
	JunctionID string   `json:"junction_id"`
	SegmentIDs []string `json:"segment_ids"`
	SwitchTo   string   `json:"switch_to"`
}

// StationStop is one scheduled call of a route at a station, expressed as
// offsets from the route's start.
type StationStop struct {
	StationID      string        `json:"station_id"`
	ArrivalOffset  time.Duration `json:"arrival_offset"`
	DwellTime      time.Duration `json:"dwell_time"`
}

// Station is a stopping point attached to a segment.
type Station struct {
	StationID string `json:"station_id"`
	Name      string `json:"name"`
	SegmentID string `json:"segment_id"`
	Platforms int    `json:"platforms"`
}

// Route is an ordered path of segments with its scheduled station calls.
type Route struct {
	RouteID    string        `json:"route_id"`
	SegmentIDs []string      `json:"segment_ids"`
	Stops      []StationStop `json:"stops"`
}

// ScheduledMovement is a planned arrival/departure on a segment, used by
// the congestion forecast.
type ScheduledMovement struct {
	EntityID    string    `json:"entity_id"`
	SegmentID   string    `json:"segment_id"`
	ArrivalAt   time.Time `json:"arrival_at"`
	DepartureAt time.Time `json:"departure_at"`
}

// RouteTopology is the static description of the track network.
type RouteTopology struct {
	Segments  map[string]Segment  `json:"segments"`
	Junctions map[string]Junction `json:"junctions"`
	Stations  map[string]Station  `json:"stations"`
	Routes    map[string]Route    `json:"routes"`
}

// NetworkSnapshot is the immutable view of the fleet used by one
// evaluation cycle. It is built once by the feed assembler and never
// mutated afterwards; all consumers may read it concurrently.
type NetworkSnapshot struct {
	SnapshotID uint64        `json:"snapshot_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Entities   []EntityState `json:"entities"`
	Signals    []SignalState `json:"signals"`
	Topology   RouteTopology `json:"topology"`
}

// EntitiesOnSegment returns the entities currently assigned to a segment,
// ordered by entity id so rule output is stable across runs.
func (s *NetworkSnapshot) EntitiesOnSegment(segmentID string) []EntityState {
	var out []EntityState
	for _, e := range s.Entities {
		if e.SegmentID == segmentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// SignalsForSegment returns the signals guarding entry into a segment,
// ordered by signal id.
func (s *NetworkSnapshot) SignalsForSegment(segmentID string) []SignalState {
	var out []SignalState
	for _, sig := range s.Signals {
		if sig.SegmentID == segmentID {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignalID < out[j].SignalID })
	return out
}

// Entity looks up one entity by id.
func (s *NetworkSnapshot) Entity(entityID string) (EntityState, bool) {
	for _, e := range s.Entities {
		if e.EntityID == entityID {
			return e, true
		}
	}
	return EntityState{}, false
}

// Segment looks up one segment of the topology.
func (s *NetworkSnapshot) Segment(segmentID string) (Segment, bool) {
	seg, ok := s.Topology.Segments[segmentID]
	return seg, ok
}

// ActiveRoutes returns the routes referenced by at least one entity,
// ordered by route id.
func (s *NetworkSnapshot) ActiveRoutes() []Route {
	seen := make(map[string]bool)
	var out []Route
	for _, e := range s.Entities {
		if e.RouteID == "" || seen[e.RouteID] {
			continue
		}
		if r, ok := s.Topology.Routes[e.RouteID]; ok {
			seen[e.RouteID] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out
}

// AdjacentSegments reports whether two segments share a junction endpoint.
func (t *RouteTopology) AdjacentSegments(a, b string) bool {
	segA, okA := t.Segments[a]
	segB, okB := t.Segments[b]
	if !okA || !okB {
		return false
	}
	return segA.FromNode == segB.FromNode || segA.FromNode == segB.ToNode ||
		segA.ToNode == segB.FromNode || segA.ToNode == segB.ToNode
}

// NextSegmentOnRoute returns the segment following current on the given
// route, or "" when current is the last segment or not on the route.
func (t *RouteTopology) NextSegmentOnRoute(routeID, current string) string {
	route, ok := t.Routes[routeID]
	if !ok {
		return ""
	}
	for i, seg := range route.SegmentIDs {
		if seg == current && i+1 < len(route.SegmentIDs) {
			return route.SegmentIDs[i+1]
		}
	}
	return ""
}
