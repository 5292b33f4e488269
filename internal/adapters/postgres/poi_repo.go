package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

const upsertPOISQL = `
	INSERT INTO pois (identifier, name, location, radius, weight, metadata)
	VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7)
	ON CONFLICT (identifier) DO UPDATE
	SET name = EXCLUDED.name, location = EXCLUDED.location,
	    radius = EXCLUDED.radius, weight = EXCLUDED.weight,
	    metadata = EXCLUDED.metadata
`

// POIRepo implements ports.POIRepository with pgx.
type POIRepo struct {
	db *DB
}

// NewPOIRepo creates a new POIRepo.
func NewPOIRepo(db *DB) *POIRepo {
	return &POIRepo{db: db}
}

// Upsert inserts or updates a single POI.
func (r *POIRepo) Upsert(ctx context.Context, p *domain.POI) error {
	_, err := r.db.Pool.Exec(ctx, upsertPOISQL,
		p.Identifier, p.Name, p.Longitude, p.Latitude, p.Radius, p.Weight, metadataOrEmpty(p.Metadata))
	return err
}

// UpsertBatch inserts many POIs using pgx.Batch.
func (r *POIRepo) UpsertBatch(ctx context.Context, pois []domain.POI) error {
	if len(pois) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pois {
		batch.Queue(upsertPOISQL,
			p.Identifier, p.Name, p.Longitude, p.Latitude, p.Radius, p.Weight, metadataOrEmpty(p.Metadata))
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pois {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// FindNearby returns the limit POIs closest to (lat, lon). A POI whose own
// radius contains the point is flagged UserIsWithin.
func (r *POIRepo) FindNearby(ctx context.Context, lat, lon float64, limit int) ([]domain.POI, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT identifier, name,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       radius, weight, COALESCE(metadata, '{}'),
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance,
		       ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, radius) as within,
		       created_at
		FROM pois
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $3
	`, lon, lat, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pois := make([]domain.POI, 0, limit)
	for rows.Next() {
		var p domain.POI
		var dist float64
		if err := rows.Scan(
			&p.Identifier, &p.Name,
			&p.Latitude, &p.Longitude,
			&p.Radius, &p.Weight, &p.Metadata,
			&dist, &p.UserIsWithin, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.Distance = &dist
		pois = append(pois, p)
	}
	return pois, rows.Err()
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
