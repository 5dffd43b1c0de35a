package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Column names shared by raw input files and the cleaning pipeline.
const (
	ColProductName       = "product_name"
	ColReviewText        = "review_text"
	ColTitle             = "title"
	ColSelftext          = "selftext"
	ColRating            = "rating"
	ColDate              = "date"
	ColSource            = "source"
	ColCollectionSource  = "collection_source"
	ColReviewerName      = "reviewer_name"
	ColScrapedAt         = "scraped_at"
	ColCreatedUTC        = "created_utc"
	ColScore             = "score"
	ColNumComments       = "num_comments"
	ColHelpfulVotes      = "helpful_votes"
	ColReviewTextUnified = "review_text_unified"
	ColDataSource        = "data_source"
	ColOriginalSource    = "original_source"
	ColRatingUnified     = "rating_unified"
	ColDateUnified       = "date_unified"
)

// ColumnSet records which named columns exist anywhere in a batch. A column
// that exists but is empty for a given row is a missing value; a column that
// is absent from the set is missing structurally.
type ColumnSet map[string]struct{}

// NewColumnSet returns a set holding the given names.
func NewColumnSet(names ...string) ColumnSet {
	s := make(ColumnSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts a column name.
func (s ColumnSet) Add(name string) { s[name] = struct{}{} }

// Has reports whether the column exists.
func (s ColumnSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Clone returns an independent copy.
func (s ColumnSet) Clone() ColumnSet {
	out := make(ColumnSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Names returns the column names in sorted order.
func (s ColumnSet) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Batch is an ordered set of raw reviews plus the columns they carry.
type Batch struct {
	Records []*RawReview
	Columns ColumnSet
}

// NewBatch builds a batch from typed records, inferring the column set from
// the fields that are filled on at least one record.
func NewBatch(records []*RawReview) *Batch {
	cols := make(ColumnSet)
	for _, r := range records {
		for _, c := range r.filledColumns() {
			cols.Add(c)
		}
	}
	return &Batch{Records: records, Columns: cols}
}

func (r *RawReview) filledColumns() []string {
	var out []string
	add := func(name string, ok bool) {
		if ok {
			out = append(out, name)
		}
	}
	add(ColProductName, r.ProductName != "")
	add(ColReviewText, r.ReviewText != "")
	add(ColTitle, r.Title != "")
	add(ColSelftext, r.Selftext != "")
	add(ColRating, r.Rating.Valid)
	add(ColDate, r.Date != "")
	add(ColSource, r.Source != "")
	add(ColCollectionSource, r.CollectionSource != "")
	add(ColReviewerName, r.ReviewerName != "")
	add(ColScrapedAt, r.ScrapedAt != "")
	add(ColCreatedUTC, r.CreatedUTC.Valid)
	add(ColScore, r.Score.Valid)
	add(ColNumComments, r.NumComments.Valid)
	add(ColHelpfulVotes, r.HelpfulVotes.Valid)
	return out
}

// NewBatchFromMaps converts loosely typed rows (decoded JSON objects or CSV
// rows keyed by header) into a batch. Every key seen on any row becomes a
// column, even when its value is null.
func NewBatchFromMaps(rows []map[string]any) *Batch {
	b := &Batch{
		Records: make([]*RawReview, 0, len(rows)),
		Columns: make(ColumnSet),
	}
	for _, row := range rows {
		for k := range row {
			b.Columns.Add(k)
		}
		b.Records = append(b.Records, RawReviewFromMap(row))
	}
	return b
}

// RawReviewFromMap converts one loosely typed row. Values of the wrong type
// are treated as absent. Rows written by the cleaner are accepted too: a
// missing raw column is read from its unified counterpart.
func RawReviewFromMap(m map[string]any) *RawReview {
	return &RawReview{
		ID:               stringField(m["id"]),
		ProductName:      stringField(m[ColProductName]),
		ReviewText:       stringField(firstValue(m, ColReviewText, ColReviewTextUnified)),
		Title:            stringField(m[ColTitle]),
		Selftext:         stringField(m[ColSelftext]),
		Rating:           ParseNullFloat(firstValue(m, ColRating, ColRatingUnified)),
		Date:             stringField(firstValue(m, ColDate, ColDateUnified)),
		Source:           stringField(firstValue(m, ColSource, ColOriginalSource)),
		CollectionSource: stringField(firstValue(m, ColCollectionSource, ColDataSource)),
		ReviewerName:     stringField(m[ColReviewerName]),
		ScrapedAt:        stringField(m[ColScrapedAt]),
		CreatedUTC:       ParseNullFloat(m[ColCreatedUTC]),
		Score:            ParseNullFloat(m[ColScore]),
		NumComments:      ParseNullFloat(m[ColNumComments]),
		HelpfulVotes:     ParseNullFloat(m[ColHelpfulVotes]),
		Subreddit:        stringField(m["subreddit"]),
		URL:              stringField(m["url"]),
	}
}

// firstValue returns the value of the first key that is present and not null.
func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
