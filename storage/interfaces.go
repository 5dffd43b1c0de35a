package storage

import "security-reviews/models"

// ReviewWriter is the interface any storage backend for cleaned reviews must satisfy.
type ReviewWriter interface {
	Write(reviews []*models.CleanReview) error
	FetchAll() ([]*models.CleanReview, error)
	Close() error
}

// RawReviewWriter is the interface for persisting unprocessed scraped reviews.
type RawReviewWriter interface {
	WriteRaw(reviews []*models.RawReview) error
	Close() error
}
