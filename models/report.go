package models

import "time"

// StageCounts holds how many records each filtering stage removed.
type StageCounts struct {
	EmptyRecordsRemoved int `json:"empty_records_removed"`
	TextLengthFiltered  int `json:"text_length_filtered"`
	DuplicatesRemoved   int `json:"duplicates_removed"`
	QualityFiltered     int `json:"quality_filtered"`
}

// Total returns the sum of all stage counters.
func (s StageCounts) Total() int {
	return s.EmptyRecordsRemoved + s.TextLengthFiltered + s.DuplicatesRemoved + s.QualityFiltered
}

// CleaningReport summarizes one pipeline run.
type CleaningReport struct {
	OriginalCount int         `json:"original_count"`
	FinalCount    int         `json:"final_count"`
	TotalRemoved  int         `json:"total_removed"`
	RetentionRate float64     `json:"retention_rate"`
	Steps         StageCounts `json:"cleaning_steps"`
}

// ValidationReport describes the completeness of a cleaned dataset.
type ValidationReport struct {
	TotalRecords           int      `json:"total_records"`
	RequiredColumnsPresent bool     `json:"required_columns_present"`
	Issues                 []string `json:"data_quality_issues"`
	Products               int      `json:"products"`
	Sources                int      `json:"sources"`
	AvgTextLength          float64  `json:"avg_text_length"`
}

// ProductStats aggregates the cleaned reviews of one product.
type ProductStats struct {
	ProductName   string
	Reviews       int
	RatedReviews  int
	AverageRating float64
	AvgSentiment  float64
	PositiveShare float64
	NegativeShare float64
}

// InsightReport holds the computed analytics over the cleaned dataset.
type InsightReport struct {
	TotalReviews    int
	Products        []*ProductStats
	ReviewsBySource map[string]int
	EarliestDate    *time.Time
	LatestDate      *time.Time
	AvgTextLength   float64
	AvgWordCount    float64
	MostPositive    *CleanReview
	MostNegative    *CleanReview
}
