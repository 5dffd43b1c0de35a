package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"security-reviews/models"
)

var rawCSVHeader = []string{
	models.ColProductName, models.ColReviewText, models.ColTitle, models.ColSelftext,
	models.ColRating, models.ColDate, models.ColSource, models.ColCollectionSource,
	models.ColReviewerName, models.ColScrapedAt, models.ColCreatedUTC, models.ColScore,
	models.ColNumComments, models.ColHelpfulVotes, "subreddit", "url",
}

var cleanCSVHeader = []string{
	"clean_id", "product_name", "review_text_unified", "rating_unified", "rating_standardized",
	"data_source", "original_source", "reviewer_name", "date_unified", "year", "month", "quarter",
	"days_old", "text_length", "word_count", "positive_words", "negative_words", "sentiment_score",
	"has_rating", "has_reviewer_name", "reddit_engagement", "cleaned_at",
}

// CSVWriter writes raw (uncleaned) reviews to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(rawCSVHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends raw reviews to the CSV file.
func (c *CSVWriter) WriteRaw(reviews []*models.RawReview) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range reviews {
		row := []string{
			r.ProductName, r.ReviewText, r.Title, r.Selftext,
			r.Rating.String(), r.Date, r.Source, r.CollectionSource,
			r.ReviewerName, r.ScrapedAt, r.CreatedUTC.String(), r.Score.String(),
			r.NumComments.String(), r.HelpfulVotes.String(), r.Subreddit, r.URL,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// writeCleanCSV writes cleaned reviews with a header row.
func writeCleanCSV(out io.Writer, reviews []*models.CleanReview) error {
	w := csv.NewWriter(out)
	if err := w.Write(cleanCSVHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, r := range reviews {
		date, daysOld := "", ""
		if r.DateUnified != nil {
			date = r.DateUnified.Format(models.DateLayout)
		}
		if r.DaysOld != nil {
			daysOld = strconv.Itoa(*r.DaysOld)
		}
		row := []string{
			strconv.Itoa(r.CleanID), r.ProductName, r.ReviewTextUnified,
			r.RatingUnified.String(), r.RatingStandardized.String(),
			r.DataSource, r.OriginalSource, r.ReviewerName, date,
			optionalInt(r.Year), optionalInt(r.Month), optionalInt(r.Quarter), daysOld,
			strconv.Itoa(r.TextLength), strconv.Itoa(r.WordCount),
			strconv.Itoa(r.PositiveWords), strconv.Itoa(r.NegativeWords),
			strconv.FormatFloat(r.SentimentScore, 'f', -1, 64),
			strconv.FormatBool(r.HasRating), strconv.FormatBool(r.HasReviewerName),
			r.RedditEngagement.String(), r.CleanedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func optionalInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
