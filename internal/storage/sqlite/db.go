// Package sqlite persists completed matches and final per-tank statistics.
// Persistence is optional and best-effort: a server started without a
// configured database path runs with it disabled, and a failure to record
// a match is logged, never fatal to the tick loop.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	_ "modernc.org/sqlite"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB wraps a *sql.DB with the match-history schema.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates it to the latest schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrationsFS() (fs.FS, error) {
	return fs.Sub(migrationFiles, "migrations")
}

func (db *DB) migrateUp() error {
	sub, err := db.migrationsFS()
	if err != nil {
		return fmt.Errorf("sqlite: migrations fs: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("sqlite: source driver: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite: driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sqlite: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("sqlite: migrate up: %w", err)
	}
	return nil
}

// TankResult is one tank's final statistics in a concluded match.
type TankResult struct {
	TankID        string
	Team          int
	FinalHP       int
	TicksAlive    uint64
	DirectHits    uint64
	Hits          uint64
	GotDirectHits uint64
	GotHits       uint64
}

// RecordMatch inserts one match row and its per-tank result rows in a
// single transaction.
func (db *DB) RecordMatch(start, end time.Time, ticks uint64, winnerTankID string, results []TankResult) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO matches (started_at, ended_at, ticks, winner_tank_id) VALUES (?, ?, ?, ?)`,
		start.Unix(), end.Unix(), ticks, nullableString(winnerTankID),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert match: %w", err)
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: match id: %w", err)
	}

	for _, r := range results {
		_, err := tx.Exec(
			`INSERT INTO match_tanks
			 (match_id, tank_id, team, final_hp, ticks_alive, direct_hits, hits, got_direct_hits, got_hits)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			matchID, r.TankID, r.Team, r.FinalHP, r.TicksAlive, r.DirectHits, r.Hits, r.GotDirectHits, r.GotHits,
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert match_tanks: %w", err)
		}
	}

	return tx.Commit()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// MatchRecord is one row returned by RecentMatches.
type MatchRecord struct {
	ID           int64
	StartedAt    time.Time
	EndedAt      time.Time
	Ticks        uint64
	WinnerTankID string
}

// RecentMatches returns up to limit of the most recently concluded
// matches, most recent first.
func (db *DB) RecentMatches(limit int) ([]MatchRecord, error) {
	rows, err := db.Query(
		`SELECT id, started_at, ended_at, ticks, COALESCE(winner_tank_id, '') FROM matches ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var m MatchRecord
		var startUnix, endUnix int64
		if err := rows.Scan(&m.ID, &startUnix, &endUnix, &m.Ticks, &m.WinnerTankID); err != nil {
			return nil, fmt.Errorf("sqlite: scan match: %w", err)
		}
		m.StartedAt = time.Unix(startUnix, 0)
		m.EndedAt = time.Unix(endUnix, 0)
		out = append(out, m)
	}
	return out, rows.Err()
}
