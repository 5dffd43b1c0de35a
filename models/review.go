package models

import (
	"time"
)

// RawReview holds one as-scraped review or forum post. Every field except
// ProductName is optional and which ones are filled depends on the platform
// it came from. Raw reviews are read once and never mutated by the cleaner.
type RawReview struct {
	ID               string    `json:"id,omitempty"`
	ProductName      string    `json:"product_name"`
	ReviewText       string    `json:"review_text,omitempty"`
	Title            string    `json:"title,omitempty"`
	Selftext         string    `json:"selftext,omitempty"`
	Rating           NullFloat `json:"rating"`
	Date             string    `json:"date,omitempty"`
	Source           string    `json:"source,omitempty"`
	CollectionSource string    `json:"collection_source,omitempty"`
	ReviewerName     string    `json:"reviewer_name,omitempty"`
	ScrapedAt        string    `json:"scraped_at,omitempty"`
	CreatedUTC       NullFloat `json:"created_utc"`
	Score            NullFloat `json:"score"`
	NumComments      NullFloat `json:"num_comments"`
	HelpfulVotes     NullFloat `json:"helpful_votes"`
	Subreddit        string    `json:"subreddit,omitempty"`
	URL              string    `json:"url,omitempty"`
}

// CleanReview is the normalized, deduplicated and quality-filtered review
// handed to storage and downstream analysis.
type CleanReview struct {
	CleanID            int        `json:"clean_id"`
	ProductName        string     `json:"product_name"`
	ReviewTextUnified  string     `json:"review_text_unified"`
	RatingUnified      NullFloat  `json:"rating_unified"`
	RatingStandardized NullFloat  `json:"rating_standardized"`
	DataSource         string     `json:"data_source"`
	OriginalSource     string     `json:"original_source"`
	ReviewerName       string     `json:"reviewer_name,omitempty"`
	DateUnified        *time.Time `json:"date_unified"`
	Year               int        `json:"year,omitempty"`
	Month              int        `json:"month,omitempty"`
	Quarter            int        `json:"quarter,omitempty"`
	DaysOld            *int       `json:"days_old,omitempty"`
	ScrapedAt          *time.Time `json:"scraped_at,omitempty"`
	CreatedUTC         NullFloat  `json:"created_utc"`
	TextLength         int        `json:"text_length"`
	WordCount          int        `json:"word_count"`
	PositiveWords      int        `json:"positive_words"`
	NegativeWords      int        `json:"negative_words"`
	SentimentScore     float64    `json:"sentiment_score"`
	HasRating          bool       `json:"has_rating"`
	HasReviewerName    bool       `json:"has_reviewer_name"`
	Score              NullFloat  `json:"score"`
	NumComments        NullFloat  `json:"num_comments"`
	RedditEngagement   NullFloat  `json:"reddit_engagement"`
	CleanedAt          time.Time  `json:"cleaned_at"`
}

// ToRaw converts a clean review back into raw form so a cleaned dataset can be
// fed through the pipeline again.
func (c *CleanReview) ToRaw() *RawReview {
	r := &RawReview{
		ProductName:      c.ProductName,
		ReviewText:       c.ReviewTextUnified,
		Rating:           c.RatingUnified,
		Source:           c.OriginalSource,
		CollectionSource: c.DataSource,
		ReviewerName:     c.ReviewerName,
		CreatedUTC:       c.CreatedUTC,
		Score:            c.Score,
		NumComments:      c.NumComments,
	}
	if c.DateUnified != nil {
		r.Date = c.DateUnified.Format(DateLayout)
	}
	if c.ScrapedAt != nil {
		r.ScrapedAt = c.ScrapedAt.Format(time.RFC3339)
	}
	return r
}

// DateLayout is the calendar-date format used for unified dates.
const DateLayout = "2006-01-02"

// CleaningConfig controls which pipeline stages run.
type CleaningConfig struct {
	MinReviewLength    int  `yaml:"min_review_length"`
	MaxReviewLength    int  `yaml:"max_review_length"`
	RemoveDuplicates   bool `yaml:"remove_duplicates"`
	StandardizeRatings bool `yaml:"standardize_ratings"`
	CleanText          bool `yaml:"clean_text"`
	RemoveSpam         bool `yaml:"remove_spam"`
	NormalizeDates     bool `yaml:"normalize_dates"`
}

// DefaultCleaningConfig returns the default pipeline configuration.
func DefaultCleaningConfig() CleaningConfig {
	return CleaningConfig{
		MinReviewLength:    10,
		MaxReviewLength:    10000,
		RemoveDuplicates:   true,
		StandardizeRatings: true,
		CleanText:          true,
		RemoveSpam:         true,
		NormalizeDates:     true,
	}
}
