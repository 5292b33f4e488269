package usecases

import (
	"encoding/json"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

// POIPayload is the wire shape of a POI handed back to the script layer.
// Field order is part of the contract.
type POIPayload struct {
	Name       string  `json:"POI"`
	Latitude   float64 `json:"Latitude"`
	Longitude  float64 `json:"Longitude"`
	Identifier string  `json:"Identifier"`
}

// LocationPayload is the wire shape of a location fix.
type LocationPayload struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
}

// EncodePOIs serializes pois in order. An empty or nil list encodes as "[]".
func EncodePOIs(pois []domain.POI) (string, error) {
	out := make([]POIPayload, 0, len(pois))
	for _, p := range pois {
		out = append(out, POIPayload{
			Name:       p.Name,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Identifier: p.Identifier,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeLocation serializes a location fix.
func EncodeLocation(loc domain.Location) (string, error) {
	b, err := json.Marshal(LocationPayload{Latitude: loc.Latitude, Longitude: loc.Longitude})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
