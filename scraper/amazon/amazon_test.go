package amazon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"security-reviews/models"
	"security-reviews/scraper"
	"security-reviews/utils"
)

const searchPage = `<html><body>
<div data-component-type="s-search-result" data-asin="B0NORTON1"><h2><span>Norton 360 Deluxe Antivirus Software 2024</span></h2></div>
<div data-component-type="s-search-result" data-asin="B0ROUTER1"><h2><span>Norton Core Security Router</span></h2></div>
<div data-component-type="s-search-result" data-asin="B0CABLE01"><h2><span>USB-C Cable 6ft</span></h2></div>
<div data-component-type="s-search-result" data-asin=""><h2><span>Internet Security Suite</span></h2></div>
</body></html>`

const reviewsPage = `<html><body>
<div id="R1ABC" data-hook="review">
  <span class="a-profile-name">Dana</span>
  <a data-hook="review-title" href="#">
    <i data-hook="review-star-rating"><span class="a-icon-alt">4.0 out of 5 stars</span></i>
    <span class="a-letter-space"></span>
    <span>Does the job</span>
  </a>
  <span data-hook="review-date">Reviewed in the United States on January 15, 2024</span>
  <span data-hook="review-body"><span> Install was painless and it stays out of the way. </span></span>
  <span data-hook="helpful-vote-statement">1,204 people found this helpful</span>
</div>
<div id="R2DEF" data-hook="review">
  <span class="a-profile-name">Ravi</span>
  <i data-hook="review-star-rating"><span class="a-icon-alt">1.0 out of 5 stars</span></i>
  <span data-hook="review-date">Reviewed in Canada on 3 March 2024</span>
  <span data-hook="review-body">Auto renewal charged me twice.</span>
  <span data-hook="helpful-vote-statement">One person found this helpful</span>
</div>
<div id="R3GHI" data-hook="review">
  <span data-hook="review-body">   </span>
</div>
</body></html>`

func TestParseSearch(t *testing.T) {
	listings, err := ParseSearch(strings.NewReader(searchPage))
	require.NoError(t, err)
	require.Equal(t, []Listing{{ASIN: "B0NORTON1", Title: "Norton 360 Deluxe Antivirus Software 2024"}}, listings)
}

func TestParseReviews(t *testing.T) {
	reviews, err := ParseReviews(strings.NewReader(reviewsPage))
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	first := reviews[0]
	require.Equal(t, "R1ABC", first.ID)
	require.Equal(t, "Does the job", first.Title)
	require.Equal(t, "Install was painless and it stays out of the way.", first.ReviewText)
	require.Equal(t, models.Float(4), first.Rating)
	require.Equal(t, "2024-01-15", first.Date)
	require.Equal(t, "Dana", first.ReviewerName)
	require.Equal(t, models.Float(1204), first.HelpfulVotes)

	second := reviews[1]
	require.Equal(t, "", second.Title)
	require.Equal(t, models.Float(1), second.Rating)
	require.Equal(t, "3 March 2024", second.Date)
	require.Equal(t, models.Float(1), second.HelpfulVotes)
}

func TestScrapeReviews(t *testing.T) {
	var reviewPaths []string
	mux := http.NewServeMux()
	mux.HandleFunc("/s", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/product-reviews/", func(w http.ResponseWriter, r *http.Request) {
		reviewPaths = append(reviewPaths, r.URL.Path)
		_, _ = w.Write([]byte(reviewsPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := utils.NewNopLogger()
	s := New(scraper.Options{
		Logger:  logger,
		Retry:   &utils.RetryConfig{MaxAttempts: 1, Logger: logger},
		BaseURL: srv.URL,
		Now:     func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
	reviews, err := s.ScrapeReviews(context.Background(), "Norton", 10)
	require.NoError(t, err)

	require.Equal(t, []string{"/product-reviews/B0NORTON1"}, reviewPaths)
	require.Len(t, reviews, 2)
	for _, r := range reviews {
		require.Equal(t, "Norton", r.ProductName)
		require.Equal(t, "Amazon", r.Source)
		require.Equal(t, srv.URL+"/dp/B0NORTON1", r.URL)
		require.Equal(t, "2024-06-01T00:00:00Z", r.ScrapedAt)
	}
}

func TestScrapeReviewsRobotCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Robot Check</title></head></html>`))
	}))
	defer srv.Close()

	logger := utils.NewNopLogger()
	s := New(scraper.Options{Logger: logger, Retry: &utils.RetryConfig{MaxAttempts: 1, Logger: logger}, BaseURL: srv.URL})
	reviews, err := s.ScrapeReviews(context.Background(), "McAfee", 5)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	require.Equal(t, "Had some issues with McAfee slowing down my system.", reviews[1].ReviewText)
	require.Equal(t, models.Float(3), reviews[1].HelpfulVotes)
}
