package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/samirrijal/placesbridge/internal/adapters/postgres"
	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/core/ports"
	"github.com/samirrijal/placesbridge/internal/pkg/config"
	"github.com/samirrijal/placesbridge/internal/pkg/logging"
)

const batchSize = 500

func main() {
	cfg, err := config.Load("placesbridge-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 8)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("POI ingestion starting", "datasets", len(manifest.Datasets), "source", manifest.Source)

	// Filter datasets (optional CLI arg: name list)
	nameFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			nameFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}
	repo := postgres.NewPOIRepo(db)

	p := pool.New().WithErrors().WithMaxGoroutines(4)
	for _, ds := range manifest.Datasets {
		if len(nameFilter) > 0 && !nameFilter[ds.Name] {
			continue
		}
		p.Go(func() error {
			if err := ingestDataset(ctx, repo, client, ds); err != nil {
				slog.Error("dataset failed", "dataset", ds.Name, "error", err)
				return fmt.Errorf("%s: %w", ds.Name, err)
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		log.Fatalf("ingestion finished with errors: %v", err)
	}
	slog.Info("ingestion complete")
}

func ingestDataset(ctx context.Context, repo ports.POIRepository, client *http.Client, ds DatasetSpec) error {
	logger := slog.With("dataset", ds.Name)
	logger.Info("loading dataset", "from", ds.location())

	r, err := openDataset(ctx, client, ds)
	if err != nil {
		return err
	}
	defer r.Close()

	pois, skipped, err := parseDataset(r, ds.format())
	if err != nil {
		return err
	}
	if skipped > 0 {
		logger.Warn("skipped invalid rows", "count", skipped)
	}

	if err := upsertInBatches(ctx, repo, pois); err != nil {
		return err
	}

	logger.Info("dataset done", "pois", len(pois))
	return nil
}

func openDataset(ctx context.Context, client *http.Client, ds DatasetSpec) (io.ReadCloser, error) {
	switch {
	case ds.URL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ds.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, ds.URL)
		}
		return resp.Body, nil
	case ds.Path != "":
		f, err := os.Open(ds.Path)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("dataset has neither url nor path")
	}
}

func upsertInBatches(ctx context.Context, repo ports.POIRepository, pois []domain.POI) error {
	for start := 0; start < len(pois); start += batchSize {
		end := min(start+batchSize, len(pois))
		if err := repo.UpsertBatch(ctx, pois[start:end]); err != nil {
			return fmt.Errorf("upsert rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}
