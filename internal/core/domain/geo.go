package domain

import "fmt"

// Location represents a geographic coordinate (WGS 84).
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate reports whether the coordinate lies inside the WGS 84 ranges.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", l.Longitude)
	}
	return nil
}

// CircularRegion is a circle on the earth surface, radius in meters.
type CircularRegion struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"`
}

// Center returns the region center.
func (r CircularRegion) Center() Location {
	return Location{Latitude: r.Latitude, Longitude: r.Longitude}
}

// Validate checks the center coordinate and that the radius is positive.
func (r CircularRegion) Validate() error {
	if err := r.Center().Validate(); err != nil {
		return err
	}
	if r.Radius <= 0 {
		return fmt.Errorf("radius must be positive, got %v", r.Radius)
	}
	return nil
}
