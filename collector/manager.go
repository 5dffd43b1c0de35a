// Package collector runs every configured source against every target
// company and writes the combined raw dataset.
package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"security-reviews/models"
	"security-reviews/scraper"
	"security-reviews/storage"
	"security-reviews/utils"
)

// FileTimestamp is the layout used in output file names.
const FileTimestamp = "20060102_150405"

// Options configures a Manager.
type Options struct {
	Companies      []string
	MaxPerSource   int
	MinPerSource   int
	MaxConcurrency int
	RateLimitMs    int
	OutputDir      string
}

// CompanyStats summarizes one company within one source.
type CompanyStats struct {
	ReviewsCollected int    `json:"reviews_collected"`
	MeetsMinimum     bool   `json:"meets_minimum"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
}

// SourceStats summarizes one source across all companies.
type SourceStats struct {
	CompaniesProcessed int                      `json:"companies_processed"`
	CompaniesFailed    int                      `json:"companies_failed"`
	ReviewsCollected   int                      `json:"reviews_collected"`
	Companies          map[string]*CompanyStats `json:"collection_stats"`
}

// DateRange is the earliest and latest review date seen.
type DateRange struct {
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

// Metadata is written next to the combined dataset.
type Metadata struct {
	CollectedAt     time.Time               `json:"collected_at"`
	TotalReviews    int                     `json:"total_reviews"`
	Sources         map[string]int          `json:"sources"`
	Companies       map[string]int          `json:"companies"`
	DateRange       DateRange               `json:"date_range"`
	CollectionStats map[string]*SourceStats `json:"collection_stats"`
}

// Result is the outcome of one collection run.
type Result struct {
	Reviews    []*models.RawReview
	Stats      map[string]*SourceStats
	Duplicates int
}

// Manager fans collection out over a worker pool.
type Manager struct {
	sources []scraper.Source
	opts    Options
	logger  *utils.Logger
	now     func() time.Time
}

// NewManager creates a Manager over sources.
func NewManager(sources []scraper.Source, opts Options, logger *utils.Logger) *Manager {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Manager{sources: sources, opts: opts, logger: logger, now: time.Now}
}

type job struct {
	source  string
	company string
	reviews []*models.RawReview
	err     error
}

// Collect scrapes every (source, company) pair. Reviews come back in source
// then company order regardless of which job finished first, with repeats
// across pairs dropped.
func (m *Manager) Collect(ctx context.Context) (*Result, error) {
	pool := utils.NewWorkerPool(m.opts.MaxConcurrency, m.opts.RateLimitMs)

	jobs := make([]*job, 0, len(m.sources)*len(m.opts.Companies))
	for _, src := range m.sources {
		for _, company := range m.opts.Companies {
			j := &job{source: src.Name(), company: company}
			jobs = append(jobs, j)

			src := src
			pool.Submit(func() {
				if ctx.Err() != nil {
					j.err = ctx.Err()
					return
				}
				m.logger.Info("[collector] %s: collecting %s", j.source, j.company)
				j.reviews, j.err = src.ScrapeReviews(ctx, j.company, m.opts.MaxPerSource)
			})
		}
	}
	pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collection cancelled: %w", err)
	}

	res := &Result{Stats: make(map[string]*SourceStats, len(m.sources))}
	seen := utils.NewKeySet()
	for _, j := range jobs {
		st := res.Stats[j.source]
		if st == nil {
			st = &SourceStats{Companies: make(map[string]*CompanyStats)}
			res.Stats[j.source] = st
		}

		if j.err != nil {
			m.logger.Error("[collector] %s: %s failed: %v", j.source, j.company, j.err)
			st.CompaniesFailed++
			st.Companies[j.company] = &CompanyStats{Status: "failed", Error: j.err.Error()}
			continue
		}

		kept := 0
		for _, r := range j.reviews {
			r.CollectionSource = j.source
			if r.ProductName == "" {
				r.ProductName = j.company
			}
			if !seen.Add(reviewKey(r)) {
				res.Duplicates++
				continue
			}
			res.Reviews = append(res.Reviews, r)
			kept++
		}

		st.CompaniesProcessed++
		st.ReviewsCollected += kept
		st.Companies[j.company] = &CompanyStats{
			ReviewsCollected: kept,
			MeetsMinimum:     kept >= m.opts.MinPerSource,
			Status:           "success",
		}
		if kept < m.opts.MinPerSource {
			m.logger.Warn("[collector] %s: %s has %d reviews, below minimum %d",
				j.source, j.company, kept, m.opts.MinPerSource)
		}
	}

	m.logger.Info("[collector] Collected %d reviews (%d duplicates dropped)", len(res.Reviews), res.Duplicates)
	return res, nil
}

// reviewKey identifies a review across sources. Platform IDs are preferred;
// otherwise the product and text stand in.
func reviewKey(r *models.RawReview) string {
	if r.ID != "" {
		return r.CollectionSource + ":" + r.ID
	}
	text := strings.TrimSpace(strings.Join([]string{r.Title, r.Selftext, r.ReviewText}, " "))
	if text == "" {
		return ""
	}
	return r.CollectionSource + "|" + strings.ToLower(r.ProductName) + "|" + text
}

// Save writes one JSON file per source, the combined dataset as JSON and CSV,
// and the collection metadata. It returns the path of the combined JSON file.
func (m *Manager) Save(res *Result) (string, error) {
	now := m.now().UTC()
	ts := now.Format(FileTimestamp)

	bySource := make(map[string][]*models.RawReview)
	for _, r := range res.Reviews {
		bySource[r.CollectionSource] = append(bySource[r.CollectionSource], r)
	}
	for _, src := range m.sources {
		name := src.Name()
		path := filepath.Join(m.opts.OutputDir, fmt.Sprintf("%s_reviews_%s.json", name, ts))
		reviews := bySource[name]
		if reviews == nil {
			reviews = []*models.RawReview{}
		}
		if err := storage.WriteJSON(path, reviews); err != nil {
			return "", err
		}
	}

	all := res.Reviews
	if all == nil {
		all = []*models.RawReview{}
	}
	combined := filepath.Join(m.opts.OutputDir, "combined_reviews_"+ts+".json")
	if err := storage.WriteJSON(combined, all); err != nil {
		return "", err
	}

	csvPath := filepath.Join(m.opts.OutputDir, "combined_reviews_"+ts+".csv")
	w, err := storage.NewCSVWriter(csvPath)
	if err != nil {
		return "", err
	}
	if err := w.WriteRaw(res.Reviews); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	meta := buildMetadata(res, now)
	metaPath := filepath.Join(m.opts.OutputDir, "collection_metadata_"+ts+".json")
	if err := storage.WriteJSON(metaPath, meta); err != nil {
		return "", err
	}

	m.logger.Info("[collector] Saved %d reviews to %s", len(res.Reviews), combined)
	return combined, nil
}

func buildMetadata(res *Result, now time.Time) *Metadata {
	meta := &Metadata{
		CollectedAt:     now,
		TotalReviews:    len(res.Reviews),
		Sources:         make(map[string]int),
		Companies:       make(map[string]int),
		CollectionStats: res.Stats,
	}
	for _, r := range res.Reviews {
		meta.Sources[r.CollectionSource]++
		meta.Companies[r.ProductName]++

		d, ok := dayOf(r.Date)
		if !ok {
			continue
		}
		if meta.DateRange.Earliest == "" || d < meta.DateRange.Earliest {
			meta.DateRange.Earliest = d
		}
		if d > meta.DateRange.Latest {
			meta.DateRange.Latest = d
		}
	}
	return meta
}

// dayOf returns the YYYY-MM-DD prefix of an ISO-like date.
func dayOf(s string) (string, bool) {
	if len(s) < len(models.DateLayout) {
		return "", false
	}
	d := s[:len(models.DateLayout)]
	if _, err := time.Parse(models.DateLayout, d); err != nil {
		return "", false
	}
	return d, true
}
