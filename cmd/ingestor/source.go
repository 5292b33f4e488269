package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

// Manifest lists the POI datasets to load.
type Manifest struct {
	Source   string        `json:"source"`
	Datasets []DatasetSpec `json:"datasets"`
}

// DatasetSpec points at one dataset. Exactly one of URL and Path is set;
// Format is "json" or "csv" and defaults to the file extension.
type DatasetSpec struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

func (d DatasetSpec) location() string {
	if d.URL != "" {
		return d.URL
	}
	return d.Path
}

func (d DatasetSpec) format() string {
	if d.Format != "" {
		return strings.ToLower(d.Format)
	}
	if strings.HasSuffix(strings.ToLower(d.location()), ".csv") {
		return "csv"
	}
	return "json"
}

// poiRecord is the JSON dataset shape.
type poiRecord struct {
	Identifier string         `json:"identifier"`
	Name       string         `json:"name"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Radius     float64        `json:"radius"`
	Weight     int            `json:"weight"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// parseDataset reads POIs in the given format. Rows with invalid coordinates
// are skipped and counted; POIs without an identifier get a random one.
func parseDataset(r io.Reader, format string) ([]domain.POI, int, error) {
	switch format {
	case "json":
		return parseJSON(r)
	case "csv":
		return parseCSV(r)
	default:
		return nil, 0, fmt.Errorf("unknown dataset format %q", format)
	}
}

func parseJSON(r io.Reader) ([]domain.POI, int, error) {
	var records []poiRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, 0, fmt.Errorf("decode json: %w", err)
	}

	pois := make([]domain.POI, 0, len(records))
	skipped := 0
	for _, rec := range records {
		p := domain.POI{
			Identifier: rec.Identifier,
			Name:       rec.Name,
			Latitude:   rec.Latitude,
			Longitude:  rec.Longitude,
			Radius:     rec.Radius,
			Weight:     rec.Weight,
			Metadata:   rec.Metadata,
		}
		if !accept(&p) {
			skipped++
			continue
		}
		pois = append(pois, p)
	}
	return pois, skipped, nil
}

// parseCSV reads a header row naming at least identifier, name, latitude and
// longitude; radius and weight are optional.
func parseCSV(r io.Reader) ([]domain.POI, int, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"name", "latitude", "longitude"} {
		if _, ok := cols[required]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", required)
		}
	}

	var pois []domain.POI
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		lat, latErr := strconv.ParseFloat(getField(record, cols, "latitude"), 64)
		lon, lonErr := strconv.ParseFloat(getField(record, cols, "longitude"), 64)
		if latErr != nil || lonErr != nil {
			skipped++
			continue
		}
		radius, _ := strconv.ParseFloat(getField(record, cols, "radius"), 64)
		weight, _ := strconv.Atoi(getField(record, cols, "weight"))

		p := domain.POI{
			Identifier: getField(record, cols, "identifier"),
			Name:       getField(record, cols, "name"),
			Latitude:   lat,
			Longitude:  lon,
			Radius:     radius,
			Weight:     weight,
		}
		if !accept(&p) {
			skipped++
			continue
		}
		pois = append(pois, p)
	}
	return pois, skipped, nil
}

// accept validates p and fills in a missing identifier.
func accept(p *domain.POI) bool {
	if err := (domain.Location{Latitude: p.Latitude, Longitude: p.Longitude}).Validate(); err != nil {
		return false
	}
	if p.Latitude == 0 && p.Longitude == 0 {
		return false
	}
	if p.Radius < 0 {
		p.Radius = 0
	}
	if p.Identifier == "" {
		p.Identifier = uuid.NewString()
	}
	return true
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		// Strip BOM from first column
		h = strings.TrimPrefix(h, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	if idx, ok := cols[name]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
