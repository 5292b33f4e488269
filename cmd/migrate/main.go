package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/samirrijal/placesbridge/internal/adapters/postgres"
	"github.com/samirrijal/placesbridge/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	cfg, err := config.Load("placesbridge-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if _, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, db)
	case "down":
		dropTables(ctx, db)
	case "status":
		printStatus(ctx, db)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func migrationFiles() []string {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	sort.Strings(files)
	return files
}

func applied(ctx context.Context, db *postgres.DB) map[string]bool {
	rows, err := db.Pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			log.Fatalf("scan schema_migrations: %v", err)
		}
		done[name] = true
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}
	return done
}

func runMigrations(ctx context.Context, db *postgres.DB) {
	done := applied(ctx, db)

	for _, f := range migrationFiles() {
		name := filepath.Base(f)
		if done[name] {
			fmt.Printf("--  %s (already applied)\n", name)
			continue
		}

		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			log.Fatalf("begin %s: %v", name, err)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			_ = tx.Rollback(ctx)
			log.Fatalf("exec %s: %v", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			log.Fatalf("record %s: %v", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			log.Fatalf("commit %s: %v", name, err)
		}

		fmt.Printf("OK  %s\n", name)
	}

	log.Println("all migrations applied")
}

// dropTables removes the places tables. Extensions are left installed.
func dropTables(ctx context.Context, db *postgres.DB) {
	if _, err := db.Pool.Exec(ctx, `
		DROP TABLE IF EXISTS geofences;
		DROP TABLE IF EXISTS pois;
		DELETE FROM schema_migrations WHERE name <> '001_init_extensions.sql';
	`); err != nil {
		log.Fatalf("down: %v", err)
	}
	log.Println("places tables dropped")
}

func printStatus(ctx context.Context, db *postgres.DB) {
	done := applied(ctx, db)
	for _, f := range migrationFiles() {
		name := filepath.Base(f)
		state := "pending"
		if done[name] {
			state = "applied"
		}
		fmt.Printf("%-8s %s\n", state, name)
	}
}
