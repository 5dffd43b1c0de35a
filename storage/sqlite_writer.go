package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"security-reviews/models"
)

// SQLiteWriter persists cleaned reviews to an embedded SQLite file. Dates are
// stored as text so the file reads the same from any SQLite client.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the database file at path and runs the
// schema migration.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	sw := &SQLiteWriter{db: db}
	if err := sw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return sw, nil
}

func (sw *SQLiteWriter) migrate() error {
	_, err := sw.db.Exec(`
	CREATE TABLE IF NOT EXISTS clean_reviews (
		"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"clean_id" INTEGER NOT NULL,
		"product_name" TEXT NOT NULL,
		"review_text" TEXT NOT NULL,
		"rating_unified" REAL,
		"rating_standardized" REAL,
		"data_source" TEXT NOT NULL,
		"original_source" TEXT NOT NULL DEFAULT '',
		"reviewer_name" TEXT NOT NULL DEFAULT '',
		"date_unified" TEXT,
		"year" INTEGER NOT NULL DEFAULT 0,
		"month" INTEGER NOT NULL DEFAULT 0,
		"quarter" INTEGER NOT NULL DEFAULT 0,
		"days_old" INTEGER,
		"text_length" INTEGER NOT NULL DEFAULT 0,
		"word_count" INTEGER NOT NULL DEFAULT 0,
		"positive_words" INTEGER NOT NULL DEFAULT 0,
		"negative_words" INTEGER NOT NULL DEFAULT 0,
		"sentiment_score" REAL NOT NULL DEFAULT 0,
		"has_rating" BOOLEAN NOT NULL DEFAULT 0,
		"has_reviewer_name" BOOLEAN NOT NULL DEFAULT 0,
		"reddit_engagement" REAL,
		"cleaned_at" TEXT NOT NULL,
		UNIQUE ("product_name", "review_text")
	);
	CREATE INDEX IF NOT EXISTS idx_clean_reviews_product ON clean_reviews(product_name);`)
	return err
}

// Write replaces the stored reviews with the given set in one transaction.
func (sw *SQLiteWriter) Write(reviews []*models.CleanReview) error {
	if len(reviews) == 0 {
		return nil
	}

	tx, err := sw.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM clean_reviews"); err != nil {
		return fmt.Errorf("sqlite: clear: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(reviewColumns)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO clean_reviews (%s) VALUES (%s) ON CONFLICT(product_name, review_text) DO NOTHING",
		strings.Join(reviewColumns, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range reviews {
		var date sql.NullString
		if r.DateUnified != nil {
			date = sql.NullString{String: r.DateUnified.Format(models.DateLayout), Valid: true}
		}
		if _, err := stmt.Exec(reviewArgs(r, date, r.CleanedAt.UTC().Format(time.RFC3339Nano))...); err != nil {
			return fmt.Errorf("sqlite: insert clean_id %d: %w", r.CleanID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// FetchAll retrieves all stored reviews in clean_id order.
func (sw *SQLiteWriter) FetchAll() ([]*models.CleanReview, error) {
	rows, err := sw.db.Query(fmt.Sprintf(
		"SELECT %s FROM clean_reviews ORDER BY clean_id, id", strings.Join(reviewColumns, ", ")))
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch all: %w", err)
	}
	defer rows.Close()

	var reviews []*models.CleanReview
	for rows.Next() {
		r := &models.CleanReview{}
		var date sql.NullString
		var daysOld sql.NullInt64
		var cleanedAt string
		if err := rows.Scan(scanTargets(r, &date, &daysOld, &cleanedAt)...); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		if date.Valid {
			if d, err := time.Parse(models.DateLayout, date.String); err == nil {
				r.DateUnified = &d
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, cleanedAt); err == nil {
			r.CleanedAt = t
		}
		setDaysOld(r, daysOld)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}
