// internal/ingest/topology.go

package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"RailSentinelAPI/internal/models"
)

// LoadTopology reads the static track network from a JSON file and
// cross-checks its references so a typo in the file surfaces at startup
// instead of as a silent hole in rule coverage.
func LoadTopology(path string) (models.RouteTopology, error) {
	var topo models.RouteTopology

	data, err := os.ReadFile(path)
	if err != nil {
		return topo, fmt.Errorf("failed to read topology file: %w", err)
	}

	if err := json.Unmarshal(data, &topo); err != nil {
		return topo, fmt.Errorf("failed to parse topology file %s: %w", path, err)
	}

	if err := validateTopology(&topo); err != nil {
		return topo, fmt.Errorf("invalid topology in %s: %w", path, err)
	}

	return topo, nil
}

func validateTopology(t *models.RouteTopology) error {
	if len(t.Segments) == 0 {
		return fmt.Errorf("no segments defined")
	}
	if t.Junctions == nil {
		t.Junctions = map[string]models.Junction{}
	}
	if t.Stations == nil {
		t.Stations = map[string]models.Station{}
	}
	if t.Routes == nil {
		t.Routes = map[string]models.Route{}
	}

	for id, seg := range t.Segments {
		if seg.SegmentID != id {
			return fmt.Errorf("segment %q keyed as %q", seg.SegmentID, id)
		}
		if seg.LengthM <= 0 {
			return fmt.Errorf("segment %s has non-positive length", id)
		}
		if seg.MaxSpeedKmh <= 0 {
			return fmt.Errorf("segment %s has non-positive speed limit", id)
		}
		if seg.Capacity < 0 {
			return fmt.Errorf("segment %s has negative capacity", id)
		}
	}

	for id, j := range t.Junctions {
		for _, segID := range j.SegmentIDs {
			if _, ok := t.Segments[segID]; !ok {
				return fmt.Errorf("junction %s references unknown segment %s", id, segID)
			}
		}
	}

	for id, st := range t.Stations {
		if _, ok := t.Segments[st.SegmentID]; !ok {
			return fmt.Errorf("station %s references unknown segment %s", id, st.SegmentID)
		}
	}

	for id, route := range t.Routes {
		if len(route.SegmentIDs) == 0 {
			return fmt.Errorf("route %s has no segments", id)
		}
		for _, segID := range route.SegmentIDs {
			if _, ok := t.Segments[segID]; !ok {
				return fmt.Errorf("route %s references unknown segment %s", id, segID)
			}
		}
		for _, stop := range route.Stops {
			if _, ok := t.Stations[stop.StationID]; !ok {
				return fmt.Errorf("route %s calls at unknown station %s", id, stop.StationID)
			}
		}
	}

	return nil
}
