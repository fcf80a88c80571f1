package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Waypoint is a world coordinate target for the coordinate strategy
type Waypoint struct {
	X, Y, Z int
}

// MinimapRoute is a recorded list of minimap crops for the visual strategy
type MinimapRoute struct {
	Name      string   `json:"name"`
	Waypoints []string `json:"waypoints"`
}

type coordinateFile struct {
	Name      string  `json:"name,omitempty"`
	Waypoints [][]int `json:"waypoints"`
}

func waypointFromSlice(raw []int) (Waypoint, error) {
	if len(raw) != 3 {
		return Waypoint{}, fmt.Errorf("expected [x, y, z], got %d values", len(raw))
	}
	return Waypoint{X: raw[0], Y: raw[1], Z: raw[2]}, nil
}

// LoadCoordinateWaypoints reads {"waypoints": [[x,y,z], ...]} or a bare [[x,y,z], ...]
func LoadCoordinateWaypoints(path string) ([]Waypoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw [][]int
	var doc coordinateFile
	if err := json.Unmarshal(data, &doc); err == nil {
		raw = doc.Waypoints
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	wps := make([]Waypoint, 0, len(raw))
	for i, r := range raw {
		wp, err := waypointFromSlice(r)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		wps = append(wps, wp)
	}
	return wps, nil
}

// SaveCoordinateWaypoints writes a coordinate route in the recorder format
func SaveCoordinateWaypoints(path, name string, wps []Waypoint) error {
	doc := coordinateFile{Name: name, Waypoints: make([][]int, 0, len(wps))}
	for _, wp := range wps {
		doc.Waypoints = append(doc.Waypoints, []int{wp.X, wp.Y, wp.Z})
	}
	return writeJSON(path, doc)
}

// LoadMinimapRoute reads {"name": str, "waypoints": [imagePath, ...]}
func LoadMinimapRoute(path string) (MinimapRoute, error) {
	var route MinimapRoute
	data, err := os.ReadFile(path)
	if err != nil {
		return route, err
	}
	if err := json.Unmarshal(data, &route); err != nil {
		return route, fmt.Errorf("decode %s: %w", path, err)
	}
	return route, nil
}

// SaveMinimapRoute writes a minimap route
func SaveMinimapRoute(path string, route MinimapRoute) error {
	if route.Waypoints == nil {
		route.Waypoints = []string{}
	}
	return writeJSON(path, route)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
