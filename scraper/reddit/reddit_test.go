package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"security-reviews/scraper"
	"security-reviews/utils"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testOptions(baseURL string) scraper.Options {
	logger := utils.NewNopLogger()
	return scraper.Options{
		Logger:  logger,
		Retry:   &utils.RetryConfig{MaxAttempts: 1, Logger: logger},
		BaseURL: baseURL,
		Now:     func() time.Time { return fixedNow },
	}
}

const searchResponse = `{"data":{"children":[
	{"data":{"id":"a1","title":"Norton review after six months","selftext":"Norton has been quiet, light on resources and caught a phishing link last week.","score":130,"num_comments":22,"created_utc":1704067200,"permalink":"/r/antivirus/comments/a1/"}},
	{"data":{"id":"a2","title":"Which VPN?","selftext":"Looking for something cheap and fast for streaming, any ideas from you all?","score":3,"num_comments":1,"created_utc":1704067300,"permalink":"/r/antivirus/comments/a2/"}},
	{"data":{"id":"a3","title":"Norton","selftext":"meh","score":1,"num_comments":0,"created_utc":1704067400,"permalink":"/r/antivirus/comments/a3/"}}
]}}`

func TestScrapeReviews(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponse))
	}))
	defer srv.Close()

	s := New(testOptions(srv.URL), []string{"antivirus"})
	reviews, err := s.ScrapeReviews(context.Background(), "Norton", 10)
	require.NoError(t, err)

	require.Equal(t, "/r/antivirus/search.json", gotPath)
	require.Equal(t, "Norton", gotQuery)
	require.Len(t, reviews, 1)
	r := reviews[0]
	require.Equal(t, "a1", r.ID)
	require.Equal(t, "Norton", r.ProductName)
	require.Equal(t, 130.0, r.Rating.Float64)
	require.Equal(t, 22.0, r.NumComments.Float64)
	require.Equal(t, "2024-01-01", r.Date)
	require.Equal(t, "Reddit", r.Source)
	require.Equal(t, srv.URL+"/r/antivirus/comments/a1/", r.URL)
	require.Equal(t, "2024-06-01T12:00:00Z", r.ScrapedAt)
}

func TestScrapeReviewsFallsBackToSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	s := New(testOptions(srv.URL), []string{"antivirus", "privacy"})
	reviews, err := s.ScrapeReviews(context.Background(), "Avast", 2)
	require.NoError(t, err)

	require.Len(t, reviews, 2)
	for _, r := range reviews {
		require.Equal(t, "Avast", r.ProductName)
		require.True(t, r.Score.Valid)
		require.True(t, r.CreatedUTC.Valid)
		require.Contains(t, r.Title+" "+r.Selftext, "Avast")
	}
}

func TestName(t *testing.T) {
	require.Equal(t, "reddit", New(scraper.Options{}, nil).Name())
}
