// Package scraper defines the contract shared by the review sources and the
// helpers they use to talk to remote platforms.
package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"security-reviews/models"
	"security-reviews/utils"
)

// UserAgent is sent by every HTTP and browser source.
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Source collects reviews of one product from one platform.
type Source interface {
	// Name is the collection_source tag stamped on every record, e.g. "reddit".
	Name() string
	// ScrapeReviews returns at most max reviews. A source that cannot reach its
	// platform returns its sample reviews rather than an error.
	ScrapeReviews(ctx context.Context, product string, max int) ([]*models.RawReview, error)
}

// Options configures a Source.
type Options struct {
	Logger    *utils.Logger
	Retry     *utils.RetryConfig
	Timeout   time.Duration
	BaseURL   string
	ChromeBin string
	Now       func() time.Time
}

// WithDefaults fills unset options.
func (o Options) WithDefaults(baseURL string) Options {
	if o.Logger == nil {
		o.Logger = utils.NewNopLogger()
	}
	if o.Retry == nil {
		o.Retry = &utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, Logger: o.Logger}
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Timestamp returns the scraped_at value for the current instant.
func (o Options) Timestamp() string {
	return o.Now().UTC().Format(time.RFC3339)
}

// NewHTTPClient returns a resty client with the shared headers and timeout.
func NewHTTPClient(o Options) *resty.Client {
	client := resty.New()
	client.SetBaseURL(o.BaseURL)
	client.SetHeader("User-Agent", UserAgent)
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	client.SetTimeout(o.Timeout)
	return client
}

// Limit returns at most max reviews; max <= 0 means no limit.
func Limit(reviews []*models.RawReview, max int) []*models.RawReview {
	if max > 0 && len(reviews) > max {
		return reviews[:max]
	}
	return reviews
}

// Mentions reports whether text mentions any word of product.
func Mentions(text, product string) bool {
	lower := strings.ToLower(text)
	for _, kw := range strings.Fields(strings.ToLower(product)) {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
