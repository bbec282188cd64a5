package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validTopologyJSON = `{
	"segments": {
		"S1": {"segment_id": "S1", "from_node": "N1", "to_node": "N2", "length_m": 5000, "max_speed_kmh": 120, "capacity": 3},
		"S2": {"segment_id": "S2", "from_node": "N2", "to_node": "N3", "length_m": 3000, "max_speed_kmh": 80, "capacity": 2}
	},
	"junctions": {
		"J1": {"junction_id": "J1", "segment_ids": ["S1", "S2"], "switch_to": "S2"}
	},
	"stations": {
		"ST1": {"station_id": "ST1", "name": "Central", "segment_id": "S2", "platforms": 2}
	},
	"routes": {
		"R1": {"route_id": "R1", "segment_ids": ["S1", "S2"], "stops": [{"station_id": "ST1"}]}
	}
}`

func writeTopology(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.json")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadTopology(t *testing.T) {
	topo, err := LoadTopology(writeTopology(t, validTopologyJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(topo.Segments) != 2 {
		t.Errorf("segments = %d, want 2", len(topo.Segments))
	}
	if topo.Segments["S1"].MaxSpeedKmh != 120 {
		t.Errorf("S1 speed limit = %v, want 120", topo.Segments["S1"].MaxSpeedKmh)
	}
	if len(topo.Routes["R1"].SegmentIDs) != 2 {
		t.Errorf("route R1 = %+v", topo.Routes["R1"])
	}
}

func TestLoadTopologyMissingFile(t *testing.T) {
	if _, err := LoadTopology(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTopologyRejectsBadReferences(t *testing.T) {
	cases := []struct {
		name string
		json string
		want string
	}{
		{
			"no segments",
			`{"segments": {}}`,
			"no segments",
		},
		{
			"junction unknown segment",
			`{"segments": {"S1": {"segment_id": "S1", "length_m": 100, "max_speed_kmh": 50}},
			  "junctions": {"J1": {"junction_id": "J1", "segment_ids": ["S9"]}}}`,
			"unknown segment S9",
		},
		{
			"route unknown station",
			`{"segments": {"S1": {"segment_id": "S1", "length_m": 100, "max_speed_kmh": 50}},
			  "routes": {"R1": {"route_id": "R1", "segment_ids": ["S1"], "stops": [{"station_id": "ST9"}]}}}`,
			"unknown station ST9",
		},
		{
			"non-positive length",
			`{"segments": {"S1": {"segment_id": "S1", "length_m": 0, "max_speed_kmh": 50}}}`,
			"non-positive length",
		},
		{
			"mismatched key",
			`{"segments": {"S1": {"segment_id": "S2", "length_m": 100, "max_speed_kmh": 50}}}`,
			"keyed as",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadTopology(writeTopology(t, tc.json))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
