package rating

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// SQLiteStore persists ratings in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at dsn and ensures the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS ratings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        season TEXT NOT NULL,
        month INTEGER NOT NULL,
        rating INTEGER NOT NULL,
        created_at INTEGER NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, r model.Rating) error {
	if err := r.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (season, month, rating, created_at) VALUES (?, ?, ?, ?)`,
		r.Season.String(), int(r.Month), r.Rating, time.Now().Unix())
	return err
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Rating, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT season, month, rating FROM ratings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Rating
	for rows.Next() {
		var season string
		var month, score int
		if err := rows.Scan(&season, &month, &score); err != nil {
			return nil, err
		}
		sn, err := model.ParseSeason(season)
		if err != nil {
			return nil, fmt.Errorf("stored rating: %w", err)
		}
		res = append(res, model.Rating{Season: sn, Month: time.Month(month), Rating: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
