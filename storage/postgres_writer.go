package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"security-reviews/models"
)

// reviewColumns is the insert column order shared by the SQL backends.
var reviewColumns = []string{
	"clean_id", "product_name", "review_text", "rating_unified", "rating_standardized",
	"data_source", "original_source", "reviewer_name", "date_unified", "year", "month", "quarter",
	"days_old", "text_length", "word_count", "positive_words", "negative_words", "sentiment_score",
	"has_rating", "has_reviewer_name", "reddit_engagement", "cleaned_at",
}

// PostgresWriter persists cleaned reviews to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS clean_reviews (
			id                  SERIAL PRIMARY KEY,
			clean_id            INTEGER          NOT NULL,
			product_name        TEXT             NOT NULL,
			review_text         TEXT             NOT NULL,
			rating_unified      DOUBLE PRECISION,
			rating_standardized DOUBLE PRECISION,
			data_source         VARCHAR(50)      NOT NULL,
			original_source     TEXT             NOT NULL DEFAULT '',
			reviewer_name       TEXT             NOT NULL DEFAULT '',
			date_unified        DATE,
			year                SMALLINT         NOT NULL DEFAULT 0,
			month               SMALLINT         NOT NULL DEFAULT 0,
			quarter             SMALLINT         NOT NULL DEFAULT 0,
			days_old            INTEGER,
			text_length         INTEGER          NOT NULL DEFAULT 0,
			word_count          INTEGER          NOT NULL DEFAULT 0,
			positive_words      INTEGER          NOT NULL DEFAULT 0,
			negative_words      INTEGER          NOT NULL DEFAULT 0,
			sentiment_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
			has_rating          BOOLEAN          NOT NULL DEFAULT FALSE,
			has_reviewer_name   BOOLEAN          NOT NULL DEFAULT FALSE,
			reddit_engagement   DOUBLE PRECISION,
			cleaned_at          TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			UNIQUE (product_name, review_text)
		);

		CREATE INDEX IF NOT EXISTS idx_clean_reviews_product ON clean_reviews(product_name);
		CREATE INDEX IF NOT EXISTS idx_clean_reviews_source  ON clean_reviews(data_source);
		CREATE INDEX IF NOT EXISTS idx_clean_reviews_date    ON clean_reviews(date_unified);
	`)
	return err
}

// Clear deletes all existing reviews from the table.
func (pw *PostgresWriter) Clear() error {
	_, err := pw.db.Exec("DELETE FROM clean_reviews")
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Write batch-inserts ALL cleaned reviews, clearing old data first.
func (pw *PostgresWriter) Write(reviews []*models.CleanReview) error {
	if len(reviews) == 0 {
		return nil
	}

	if err := pw.Clear(); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(reviews); i += batchSize {
		end := i + batchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		if err := pw.insertBatch(reviews[i:end]); err != nil {
			return fmt.Errorf("postgres: insert: %w", err)
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []*models.CleanReview) error {
	n := len(reviewColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*n)

	for idx, r := range batch {
		placeholders := make([]string, n)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", idx*n+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs, reviewArgs(r, nullTime(r.DateUnified), r.CleanedAt)...)
	}

	query := fmt.Sprintf(`
		INSERT INTO clean_reviews (%s)
		VALUES %s
		ON CONFLICT (product_name, review_text) DO NOTHING
	`, strings.Join(reviewColumns, ", "), strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored reviews in clean_id order.
func (pw *PostgresWriter) FetchAll() ([]*models.CleanReview, error) {
	rows, err := pw.db.Query(fmt.Sprintf(`
		SELECT %s
		FROM clean_reviews
		ORDER BY clean_id, id
	`, strings.Join(reviewColumns, ", ")))
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var reviews []*models.CleanReview
	for rows.Next() {
		r := &models.CleanReview{}
		var date sql.NullTime
		var daysOld sql.NullInt64
		if err := rows.Scan(scanTargets(r, &date, &daysOld, &r.CleanedAt)...); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if date.Valid {
			d := date.Time.UTC()
			r.DateUnified = &d
		}
		setDaysOld(r, daysOld)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// reviewArgs returns the insert arguments in reviewColumns order. The date
// and cleaned_at values are passed in since each backend encodes them
// differently.
func reviewArgs(r *models.CleanReview, date, cleanedAt interface{}) []interface{} {
	var daysOld sql.NullInt64
	if r.DaysOld != nil {
		daysOld = sql.NullInt64{Int64: int64(*r.DaysOld), Valid: true}
	}
	return []interface{}{
		r.CleanID, r.ProductName, r.ReviewTextUnified, r.RatingUnified, r.RatingStandardized,
		r.DataSource, r.OriginalSource, r.ReviewerName, date, r.Year, r.Month, r.Quarter,
		daysOld, r.TextLength, r.WordCount, r.PositiveWords, r.NegativeWords, r.SentimentScore,
		r.HasRating, r.HasReviewerName, r.RedditEngagement, cleanedAt,
	}
}

// scanTargets returns Scan destinations in reviewColumns order.
func scanTargets(r *models.CleanReview, date, daysOld, cleanedAt interface{}) []interface{} {
	return []interface{}{
		&r.CleanID, &r.ProductName, &r.ReviewTextUnified, &r.RatingUnified, &r.RatingStandardized,
		&r.DataSource, &r.OriginalSource, &r.ReviewerName, date, &r.Year, &r.Month, &r.Quarter,
		daysOld, &r.TextLength, &r.WordCount, &r.PositiveWords, &r.NegativeWords, &r.SentimentScore,
		&r.HasRating, &r.HasReviewerName, &r.RedditEngagement, cleanedAt,
	}
}

func setDaysOld(r *models.CleanReview, v sql.NullInt64) {
	if v.Valid {
		d := int(v.Int64)
		r.DaysOld = &d
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
