package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"security-reviews/models"
	"security-reviews/utils"
)

// ErrMissingColumns is wrapped by every SchemaError.
var ErrMissingColumns = errors.New("missing required columns")

// SchemaError reports required columns that are absent from the whole record
// set. It is the only error that aborts a cleaning run.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("cleaner: %v: %s", ErrMissingColumns, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrMissingColumns }

var requiredColumns = []string{
	models.ColProductName,
	models.ColReviewTextUnified,
	models.ColDataSource,
}

// row is the pipeline's working record. It is created fresh in the column
// standardization stage; the caller's raw reviews are never written to.
type row struct {
	models.CleanReview
	rawDate      string
	rawScrapedAt string
	dateFromUTC  *time.Time
}

// Cleaner turns a batch of raw reviews into clean, schema-unified reviews.
type Cleaner struct {
	cfg    models.CleaningConfig
	logger *utils.Logger
	now    func() time.Time
}

// Option customizes a Cleaner.
type Option func(*Cleaner)

// WithClock sets the clock used to stamp CleanedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cleaner) { c.now = now }
}

// NewCleaner creates a Cleaner with the given configuration and logger.
func NewCleaner(cfg models.CleaningConfig, logger *utils.Logger, opts ...Option) *Cleaner {
	c := &Cleaner{cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean runs the nine pipeline stages in order and returns the cleaned
// reviews together with a report of how many records each stage removed.
// An empty batch is not an error.
func (c *Cleaner) Clean(batch *models.Batch) ([]*models.CleanReview, *models.CleaningReport, error) {
	report := &models.CleaningReport{}
	if batch == nil || len(batch.Records) == 0 {
		c.logger.Info("[cleaner] Empty input, nothing to clean")
		return []*models.CleanReview{}, report, nil
	}

	report.OriginalCount = len(batch.Records)
	var cols models.ColumnSet
	if batch.Columns != nil {
		cols = batch.Columns.Clone()
	} else {
		cols = models.NewBatch(batch.Records).Columns
	}

	c.logger.Info("[cleaner] Starting cleaning pipeline for %d records", report.OriginalCount)

	raws, removed := c.removeEmptyRecords(batch.Records)
	report.Steps.EmptyRecordsRemoved = removed

	rows := c.standardizeColumns(raws, cols)

	rows, removed = c.cleanReviewText(rows)
	report.Steps.TextLengthFiltered = removed

	rows = c.standardizeRatings(rows)
	rows = c.normalizeDates(rows)

	rows, removed = c.removeDuplicates(rows, cols)
	report.Steps.DuplicatesRemoved = removed

	rows, removed = c.filterByQuality(rows)
	report.Steps.QualityFiltered = removed

	rows = c.addDerivedFeatures(rows, cols)

	out, err := c.finalValidation(rows, cols)
	if err != nil {
		return nil, nil, err
	}

	c.finishReport(report, len(out))
	return out, report, nil
}

// removeEmptyRecords keeps records that have some text (review_text or title)
// and a product name.
func (c *Cleaner) removeEmptyRecords(in []*models.RawReview) ([]*models.RawReview, int) {
	out := make([]*models.RawReview, 0, len(in))
	for _, r := range in {
		if r == nil {
			continue
		}
		hasText := !models.IsBlank(r.ReviewText) || !models.IsBlank(r.Title)
		if !hasText || models.IsBlank(r.ProductName) {
			continue
		}
		out = append(out, r)
	}
	removed := len(in) - len(out)
	if removed > 0 {
		c.logger.Info("[cleaner] Removed %d empty records", removed)
	}
	return out, removed
}

func (c *Cleaner) standardizeColumns(in []*models.RawReview, cols models.ColumnSet) []*row {
	titler := cases.Title(language.Und)
	out := make([]*row, 0, len(in))

	for _, r := range in {
		w := &row{
			rawDate:      strings.TrimSpace(r.Date),
			rawScrapedAt: strings.TrimSpace(r.ScrapedAt),
		}
		w.ReviewTextUnified = unifyText(r.Title, r.ReviewText, r.Selftext)
		w.ProductName = titler.String(strings.TrimSpace(r.ProductName))
		w.RatingUnified = r.Rating
		w.DataSource = orUnknown(r.CollectionSource)
		w.OriginalSource = orUnknown(r.Source)
		w.ReviewerName = r.ReviewerName
		w.CreatedUTC = r.CreatedUTC
		w.Score = r.Score
		w.NumComments = r.NumComments
		if r.CreatedUTC.Valid {
			if t, ok := fromUnixSeconds(r.CreatedUTC.Float64); ok {
				w.dateFromUTC = &t
			}
		}
		out = append(out, w)
	}

	cols.Add(models.ColReviewTextUnified)
	cols.Add(models.ColRatingUnified)
	cols.Add(models.ColDataSource)
	cols.Add(models.ColOriginalSource)

	c.logger.Info("[cleaner] Standardized columns and data types")
	return out
}

// unifyText joins the non-empty title, body and selftext with single spaces.
// Selftext is skipped when it repeats a part verbatim.
func unifyText(title, body, selftext string) string {
	parts := make([]string, 0, 3)
	if t := strings.TrimSpace(title); t != "" {
		parts = append(parts, t)
	}
	if b := strings.TrimSpace(body); b != "" {
		parts = append(parts, b)
	}
	if s := strings.TrimSpace(selftext); s != "" && !containsString(parts, s) {
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}

func (c *Cleaner) cleanReviewText(in []*row) ([]*row, int) {
	if !c.cfg.CleanText {
		return in, 0
	}

	out := make([]*row, 0, len(in))
	for _, w := range in {
		w.ReviewTextUnified = cleanText(w.ReviewTextUnified)
		n := utf8.RuneCountInString(w.ReviewTextUnified)
		if n < c.cfg.MinReviewLength || n > c.cfg.MaxReviewLength {
			continue
		}
		out = append(out, w)
	}

	removed := len(in) - len(out)
	if removed > 0 {
		c.logger.Info("[cleaner] Removed %d records during text cleaning", removed)
	}
	return out, removed
}

func (c *Cleaner) standardizeRatings(in []*row) []*row {
	if !c.cfg.StandardizeRatings {
		return in
	}
	for _, w := range in {
		w.RatingStandardized = standardizeRating(w.RatingUnified, w.DataSource, w.OriginalSource)
	}
	c.logger.Info("[cleaner] Standardized ratings to 1-5 scale")
	return in
}

func (c *Cleaner) normalizeDates(in []*row) []*row {
	if !c.cfg.NormalizeDates {
		return in
	}

	for _, w := range in {
		var unified *time.Time
		if t, ok := parseTimestamp(w.rawDate); ok {
			d := calendarDate(t)
			unified = &d
		} else if w.dateFromUTC != nil {
			d := calendarDate(*w.dateFromUTC)
			unified = &d
		}

		w.DateUnified = unified
		if unified != nil {
			w.Year = unified.Year()
			w.Month = int(unified.Month())
			w.Quarter = (w.Month-1)/3 + 1
		}

		if scraped, ok := parseTimestamp(w.rawScrapedAt); ok {
			w.ScrapedAt = &scraped
			if unified != nil {
				days := daysBetween(*unified, scraped)
				w.DaysOld = &days
			}
		}
	}

	c.logger.Info("[cleaner] Normalized dates and added temporal features")
	return in
}

func (c *Cleaner) removeDuplicates(in []*row, cols models.ColumnSet) ([]*row, int) {
	if !c.cfg.RemoveDuplicates {
		return in, 0
	}

	out := dropExactDuplicates(in)
	if cols.Has(models.ColReviewerName) {
		out = keepLatestPerReviewer(out)
	} else {
		c.logger.Debug("[cleaner] No reviewer_name column, skipping near-duplicate detection")
	}

	removed := len(in) - len(out)
	if removed > 0 {
		c.logger.Info("[cleaner] Removed %d duplicate reviews", removed)
	}
	return out, removed
}

func (c *Cleaner) filterByQuality(in []*row) ([]*row, int) {
	if !c.cfg.RemoveSpam {
		return in, 0
	}

	out := make([]*row, 0, len(in))
	for _, w := range in {
		if isSpam(w.ReviewTextUnified) {
			continue
		}
		out = append(out, w)
	}

	removed := len(in) - len(out)
	if removed > 0 {
		c.logger.Info("[cleaner] Removed %d low-quality/spam reviews", removed)
	}
	return out, removed
}

func (c *Cleaner) addDerivedFeatures(in []*row, cols models.ColumnSet) []*row {
	hasScore := cols.Has(models.ColScore)

	for _, w := range in {
		lower := strings.ToLower(w.ReviewTextUnified)
		w.TextLength = utf8.RuneCountInString(w.ReviewTextUnified)
		w.WordCount = len(strings.Fields(w.ReviewTextUnified))
		w.PositiveWords = countKeywords(lower, positiveWords)
		w.NegativeWords = countKeywords(lower, negativeWords)
		w.SentimentScore = float64(w.PositiveWords-w.NegativeWords) / float64(w.WordCount+1)
		w.HasRating = w.RatingUnified.Valid
		w.HasReviewerName = !models.IsBlank(w.ReviewerName)
		if hasScore {
			w.RedditEngagement = models.Float(w.Score.OrZero() + w.NumComments.OrZero())
		}
	}

	c.logger.Info("[cleaner] Added derived features for analysis")
	return in
}

func (c *Cleaner) finalValidation(in []*row, cols models.ColumnSet) ([]*models.CleanReview, error) {
	var missing []string
	for _, col := range requiredColumns {
		if !cols.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	cleanedAt := c.now()
	out := make([]*models.CleanReview, len(in))
	for i, w := range in {
		rec := w.CleanReview
		rec.CleanID = i
		rec.CleanedAt = cleanedAt
		out[i] = &rec
	}

	c.logger.Info("[cleaner] Completed final validation")
	return out, nil
}

func (c *Cleaner) finishReport(r *models.CleaningReport, final int) {
	r.FinalCount = final
	r.TotalRemoved = r.OriginalCount - final
	if r.OriginalCount > 0 {
		r.RetentionRate = float64(final) / float64(r.OriginalCount) * 100
	}

	c.logger.Info("[cleaner] Cleaned %d → %d reviews (removed %d, retention %.1f%%)",
		r.OriginalCount, r.FinalCount, r.TotalRemoved, r.RetentionRate)
	c.logger.Debug("[cleaner] Stage counts: empty: %d | length: %d | duplicates: %d | quality: %d",
		r.Steps.EmptyRecordsRemoved, r.Steps.TextLengthFiltered, r.Steps.DuplicatesRemoved, r.Steps.QualityFiltered)
}
