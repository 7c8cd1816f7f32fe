package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"zephuris/divarworker/internal/ad"
	"zephuris/divarworker/internal/normalize"
	"zephuris/divarworker/logger"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// SQLiteStore keeps ads in a SQLite table keyed by their composite key
type SQLiteStore struct {
	db    *sql.DB
	runID string
}

// NewSQLiteStore opens or creates the database at dbPath
func NewSQLiteStore(dbPath, runID string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, scrapeerrors.NewStorage("sqlite", "failed to open "+dbPath, err)
	}

	store := &SQLiteStore{db: db, runID: runID}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, scrapeerrors.NewStorage("sqlite", "failed to migrate "+dbPath, err)
	}

	return store, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ads (
		id INTEGER PRIMARY KEY,
		main_key TEXT NOT NULL UNIQUE,
		link TEXT NOT NULL,
		area INTEGER,
		year INTEGER,
		rooms INTEGER,
		price_total INTEGER,
		price_per_m INTEGER,
		floor INTEGER,
		has_parking BOOLEAN,
		has_storage BOOLEAN,
		has_elevator BOOLEAN,
		district TEXT,
		lat REAL,
		lng REAL,
		data JSON,
		run_id TEXT,
		scraped_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_ads_link ON ads(link);
	CREATE INDEX IF NOT EXISTS idx_ads_run ON ads(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns every stored record in insertion order
func (s *SQLiteStore) Load(ctx context.Context) ([]ad.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM ads ORDER BY id`)
	if err != nil {
		return nil, scrapeerrors.NewStorage("sqlite", "failed to query ads", err)
	}
	defer rows.Close()

	var records []ad.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, scrapeerrors.NewStorage("sqlite", "failed to scan ad", err)
		}
		var rec ad.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, scrapeerrors.NewStorage("sqlite", "malformed ad row", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, scrapeerrors.NewStorage("sqlite", "failed to read ads", err)
	}

	return records, nil
}

// Append inserts rec. A record whose key is already stored is ignored.
func (s *SQLiteStore) Append(ctx context.Context, rec ad.Record) error {
	key := rec.Key()
	if rec.MainKey == "" {
		rec.MainKey = key
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return scrapeerrors.NewStorage("sqlite", "failed to encode record", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ads (
			main_key, link, area, year, rooms, price_total, price_per_m, floor,
			has_parking, has_storage, has_elevator, district, lat, lng, data, run_id, scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, rec.Link,
		numeric(rec.Area), numeric(rec.Year), numeric(rec.Rooms),
		numeric(rec.PriceTotal), numeric(rec.PricePerM), numeric(rec.Floor),
		rec.HasParking, rec.HasStorage, rec.HasElevator,
		rec.District, rec.Lat, rec.Lng, string(data), s.runID, time.Now().UTC(),
	)
	if err != nil {
		return scrapeerrors.NewStorage("sqlite", "failed to insert ad", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		logger.ForStore().Debug().Str("key", key).Msg("Ad already stored")
	}
	return nil
}

// Count returns the number of stored ads
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ads`).Scan(&n); err != nil {
		return 0, scrapeerrors.NewStorage("sqlite", "failed to count ads", err)
	}
	return n, nil
}

func numeric(s *string) *int64 {
	if s == nil {
		return nil
	}
	return normalize.ParseNumber(*s)
}
