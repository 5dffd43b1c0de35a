package services

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"security-reviews/models"
	"security-reviews/storage"
	"security-reviews/utils"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCleaner(cfg models.CleaningConfig) *Cleaner {
	return NewCleaner(cfg, utils.NewNopLogger(), WithClock(func() time.Time { return fixedNow }))
}

func cleanBatch(t *testing.T, cfg models.CleaningConfig, records ...*models.RawReview) ([]*models.CleanReview, *models.CleaningReport) {
	t.Helper()
	out, report, err := newTestCleaner(cfg).Clean(models.NewBatch(records))
	require.NoError(t, err)
	return out, report
}

func TestCleanerRedditScenario(t *testing.T) {
	cfg := models.DefaultCleaningConfig()
	cfg.RemoveSpam = false

	out, report := cleanBatch(t, cfg, &models.RawReview{
		ProductName: "mcafee",
		ReviewText:  "Great antivirus! works well.",
		Rating:      models.Float(90),
		Source:      "reddit",
	})

	require.Len(t, out, 1)
	got := out[0]
	require.Equal(t, "Mcafee", got.ProductName)
	require.Equal(t, "Great antivirus! works well.", got.ReviewTextUnified)
	require.True(t, got.RatingStandardized.Valid)
	require.Equal(t, 4.0, got.RatingStandardized.Float64)
	require.Equal(t, 90.0, got.RatingUnified.Float64)
	require.Equal(t, "unknown", got.DataSource)
	require.Equal(t, "reddit", got.OriginalSource)
	require.Equal(t, 0, got.CleanID)
	require.Equal(t, fixedNow, got.CleanedAt)
	require.Equal(t, 1, report.FinalCount)
}

func TestCleanerFourWordReviewIsSpamByDefault(t *testing.T) {
	out, report := cleanBatch(t, models.DefaultCleaningConfig(), &models.RawReview{
		ProductName: "mcafee",
		ReviewText:  "Great antivirus! works well.",
		Rating:      models.Float(90),
		Source:      "reddit",
	})

	require.Empty(t, out)
	require.Equal(t, 1, report.Steps.QualityFiltered)
}

func TestCleanerRemovesEmptyRecords(t *testing.T) {
	out, report := cleanBatch(t, models.DefaultCleaningConfig(), &models.RawReview{
		ProductName: "Norton",
		ReviewText:  "",
		Title:       "",
	})

	require.Empty(t, out)
	require.Equal(t, 1, report.OriginalCount)
	require.Equal(t, 1, report.Steps.EmptyRecordsRemoved)
	require.Equal(t, 1, report.TotalRemoved)
	require.Equal(t, 0.0, report.RetentionRate)
}

func TestCleanerRemovesRecordWithoutProduct(t *testing.T) {
	out, report := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{ProductName: "Norton", ReviewText: "Norton keeps my laptop safe from every threat."},
		&models.RawReview{ProductName: "   ", ReviewText: "Nobody knows which product this review is about."},
	)

	require.Len(t, out, 1)
	require.Equal(t, 1, report.Steps.EmptyRecordsRemoved)
}

func TestCleanerExactDuplicateKeepsFirst(t *testing.T) {
	text := "Norton blocked every threat I threw at it this month."
	out, report := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{ProductName: "Norton", ReviewText: text, ReviewerName: "alice"},
		&models.RawReview{ProductName: "Norton", ReviewText: text, ReviewerName: "bob"},
	)

	require.Len(t, out, 1)
	require.Equal(t, "alice", out[0].ReviewerName)
	require.Equal(t, 1, report.Steps.DuplicatesRemoved)
}

func TestCleanerSameTextDifferentProductsKept(t *testing.T) {
	text := "The scanner found two trojans the first time I ran it."
	out, _ := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{ProductName: "Norton", ReviewText: text},
		&models.RawReview{ProductName: "Avast", ReviewText: text},
	)

	require.Len(t, out, 2)
}

func TestCleanerNearDuplicateKeepsMostRecent(t *testing.T) {
	out, report := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{ProductName: "Avast", ReviewText: "First impression: the free tier nags me constantly.", ReviewerName: "carol", Date: "2024-01-01"},
		&models.RawReview{ProductName: "Avast", ReviewText: "Update after two months, the popups finally calmed down.", ReviewerName: "carol", Date: "2024-03-01"},
		&models.RawReview{ProductName: "Avast", ReviewText: "Solid firewall and the scans do not slow my games down.", ReviewerName: "dave", Date: "2024-02-01"},
	)

	require.Len(t, out, 2)
	require.Equal(t, "Update after two months, the popups finally calmed down.", out[0].ReviewTextUnified)
	require.Equal(t, "dave", out[1].ReviewerName)
	require.Equal(t, 1, report.Steps.DuplicatesRemoved)
}

func TestCleanerNearDuplicateUndatedRanksOldest(t *testing.T) {
	out, _ := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{ProductName: "Eset", ReviewText: "Dated review that should win the near duplicate check.", ReviewerName: "erin", Date: "2023-05-05"},
		&models.RawReview{ProductName: "Eset", ReviewText: "Undated review that should lose the near duplicate check.", ReviewerName: "erin", Date: "not a date"},
	)

	require.Len(t, out, 1)
	require.Equal(t, "Dated review that should win the near duplicate check.", out[0].ReviewTextUnified)
}

func TestCleanerNearDuplicateSkippedWithoutReviewerColumn(t *testing.T) {
	records := []*models.RawReview{
		{ProductName: "Avast", ReviewText: "First impression: the free tier nags me constantly.", Date: "2024-01-01"},
		{ProductName: "Avast", ReviewText: "Update after two months, the popups finally calmed down.", Date: "2024-03-01"},
	}
	batch := models.NewBatch(records)
	require.False(t, batch.Columns.Has(models.ColReviewerName))

	out, report, err := newTestCleaner(models.DefaultCleaningConfig()).Clean(batch)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, 0, report.Steps.DuplicatesRemoved)
}

func TestCleanerSpamFilter(t *testing.T) {
	tests := []struct {
		name string
		text string
		spam bool
	}{
		{"repetitive", "aaa aaa aaa aaa aaa", true},
		{"too few words", "Decent antivirus overall.", true},
		{"too short", "ok ok ok ok ok ok", true},
		{"low unique ratio", "buy now buy now buy now buy now buy now buy now", true},
		{"normal review", "Kaspersky caught a phishing page my browser missed.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.spam, isSpam(tt.text))
		})
	}
}

func TestCleanerSpamScenario(t *testing.T) {
	out, report := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{ProductName: "Avg", ReviewText: "aaa aaa aaa aaa aaa"},
	)

	require.Empty(t, out)
	require.Equal(t, 1, report.Steps.QualityFiltered)
}

func TestCleanerTextLengthBounds(t *testing.T) {
	cfg := models.DefaultCleaningConfig()
	cfg.MaxReviewLength = 60
	cfg.RemoveSpam = false

	out, report := cleanBatch(t, cfg,
		&models.RawReview{ProductName: "Norton", ReviewText: "Too short"},
		&models.RawReview{ProductName: "Norton", ReviewText: "This one is long enough to keep around."},
		&models.RawReview{ProductName: "Norton", ReviewText: "This one rambles on and on well past the sixty character ceiling."},
	)

	require.Len(t, out, 1)
	require.Equal(t, 2, report.Steps.TextLengthFiltered)
}

func TestCleanerCombinesTitleBodyAndSelftext(t *testing.T) {
	out, _ := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{
			ProductName: "bitdefender",
			Title:       "Switched from Norton",
			ReviewText:  "Bitdefender is lighter on resources.",
			Selftext:    "Bitdefender is lighter on resources.",
		},
	)

	require.Len(t, out, 1)
	require.Equal(t, "Switched from Norton Bitdefender is lighter on resources.", out[0].ReviewTextUnified)
	require.Equal(t, "Bitdefender", out[0].ProductName)
}

func TestCleanerDates(t *testing.T) {
	out, _ := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{
			ProductName: "McAfee", ReviewText: "Installed it on three machines without a single issue.",
			Date: "2024-01-15", ScrapedAt: "2024-01-20T12:00:00",
		},
		&models.RawReview{
			ProductName: "McAfee", ReviewText: "Reddit post whose date field could not be parsed at all.",
			Date: "yesterday-ish", CreatedUTC: models.Float(1704067200),
		},
		&models.RawReview{
			ProductName: "McAfee", ReviewText: "A review with no date information whatsoever in it.",
		},
	)

	require.Len(t, out, 3)

	first := out[0]
	require.NotNil(t, first.DateUnified)
	require.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *first.DateUnified)
	require.Equal(t, 2024, first.Year)
	require.Equal(t, 1, first.Month)
	require.Equal(t, 1, first.Quarter)
	require.NotNil(t, first.DaysOld)
	require.Equal(t, 5, *first.DaysOld)

	second := out[1]
	require.NotNil(t, second.DateUnified)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *second.DateUnified)
	require.Nil(t, second.DaysOld)

	third := out[2]
	require.Nil(t, third.DateUnified)
	require.Zero(t, third.Year)
	require.Zero(t, third.Quarter)
}

func TestCleanerDerivedFeatures(t *testing.T) {
	out, _ := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{
			ProductName:      "Norton",
			ReviewText:       "This is a great product, the best I have used.",
			Rating:           models.Float(5),
			ReviewerName:     "frank",
			CollectionSource: "playstore",
		},
		&models.RawReview{
			ProductName:      "Norton",
			Title:            "Worst update ever",
			Selftext:         "The new version is useless and crashes on boot.",
			Score:            models.Float(12),
			CollectionSource: "reddit",
		},
	)

	require.Len(t, out, 2)

	pos := out[0]
	require.Equal(t, 10, pos.WordCount)
	require.Equal(t, utf8.RuneCountInString(pos.ReviewTextUnified), pos.TextLength)
	require.Equal(t, 2, pos.PositiveWords)
	require.Equal(t, 0, pos.NegativeWords)
	require.InDelta(t, 2.0/11.0, pos.SentimentScore, 1e-9)
	require.True(t, pos.HasRating)
	require.True(t, pos.HasReviewerName)
	require.True(t, pos.RedditEngagement.Valid)
	require.Equal(t, 0.0, pos.RedditEngagement.Float64)

	neg := out[1]
	require.Equal(t, 0, neg.PositiveWords)
	require.Equal(t, 2, neg.NegativeWords)
	require.Less(t, neg.SentimentScore, 0.0)
	require.False(t, neg.HasRating)
	require.False(t, neg.HasReviewerName)
	require.Equal(t, 12.0, neg.RedditEngagement.Float64)
}

func TestCleanerNoEngagementWithoutScoreColumn(t *testing.T) {
	out, _ := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{ProductName: "Avast", ReviewText: "Solid firewall and the scans do not slow my games down."},
	)

	require.Len(t, out, 1)
	require.False(t, out[0].RedditEngagement.Valid)
}

func TestCleanerDisabledStages(t *testing.T) {
	cfg := models.CleaningConfig{MinReviewLength: 10, MaxReviewLength: 10000}

	text := "Great!!!   visit https://spam.example/x now"
	out, report := cleanBatch(t, cfg,
		&models.RawReview{ProductName: "Avg", ReviewText: text, Rating: models.Float(9), Date: "2024-01-01"},
		&models.RawReview{ProductName: "Avg", ReviewText: text},
		&models.RawReview{ProductName: "Avg", ReviewText: "tiny"},
	)

	require.Len(t, out, 3)
	require.Equal(t, text, out[0].ReviewTextUnified)
	require.False(t, out[0].RatingStandardized.Valid)
	require.True(t, out[0].HasRating)
	require.Nil(t, out[0].DateUnified)
	require.Zero(t, report.TotalRemoved)
}

func TestCleanerNearDuplicateTrimsReviewerName(t *testing.T) {
	out, report := cleanBatch(t, models.DefaultCleaningConfig(),
		&models.RawReview{ProductName: "Avast", ReviewText: "First impression: the free tier nags me constantly.", ReviewerName: "alice", Date: "2024-01-01"},
		&models.RawReview{ProductName: "Avast", ReviewText: "Update after two months, the popups finally calmed down.", ReviewerName: "alice ", Date: "2024-03-01"},
		&models.RawReview{ProductName: "Avast", ReviewText: "Solid firewall and the scans do not slow my games down.", ReviewerName: "   ", Date: "2024-02-01"},
		&models.RawReview{ProductName: "Avast", ReviewText: "Quarantined a dodgy download before I even opened it.", ReviewerName: " ", Date: "2024-04-01"},
	)

	require.Len(t, out, 3)
	require.Equal(t, "Update after two months, the popups finally calmed down.", out[0].ReviewTextUnified)
	require.Equal(t, "Solid firewall and the scans do not slow my games down.", out[1].ReviewTextUnified)
	require.Equal(t, "Quarantined a dodgy download before I even opened it.", out[2].ReviewTextUnified)
	require.Equal(t, 1, report.Steps.DuplicatesRemoved)
}

func TestCleanerSchemaError(t *testing.T) {
	batch := models.NewBatchFromMaps([]map[string]any{
		{"review_text": "A review that never says which product it is about.", "rating": 4},
	})

	out, report, err := newTestCleaner(models.DefaultCleaningConfig()).Clean(batch)

	require.Nil(t, out)
	require.Nil(t, report)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Equal(t, []string{models.ColProductName}, schemaErr.Missing)
	require.ErrorIs(t, err, ErrMissingColumns)
}

func TestCleanerInfersColumnsWhenUnset(t *testing.T) {
	batch := &models.Batch{Records: []*models.RawReview{
		{ProductName: "norton", ReviewText: "Blocked a nasty phishing page and stayed quiet otherwise.", Rating: models.Float(5), CollectionSource: "playstore"},
		{ProductName: "avast", ReviewText: "Renewal price doubled and support never answered my ticket.", Rating: models.Float(1), CollectionSource: "amazon", ReviewerName: "kim"},
	}}

	out, report, err := newTestCleaner(models.DefaultCleaningConfig()).Clean(batch)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, 2, report.FinalCount)
	require.Equal(t, "Norton", out[0].ProductName)
	require.Equal(t, "kim", out[1].ReviewerName)
	require.Nil(t, batch.Columns)
}

func TestCleanerEmptyInput(t *testing.T) {
	for _, batch := range []*models.Batch{nil, models.NewBatch(nil), models.NewBatchFromMaps(nil)} {
		out, report, err := newTestCleaner(models.DefaultCleaningConfig()).Clean(batch)
		require.NoError(t, err)
		require.Empty(t, out)
		require.Equal(t, models.CleaningReport{}, *report)
	}
}

func TestCleanerDoesNotMutateInput(t *testing.T) {
	records := []*models.RawReview{
		{ProductName: "  norton ", ReviewText: "Great!!! Works   fine on https://x.io my laptop", Rating: models.Float(150), Source: "reddit"},
		{ProductName: "norton", ReviewText: "Great!!! Works   fine on https://x.io my laptop"},
	}
	before := make([]models.RawReview, len(records))
	for i, r := range records {
		before[i] = *r
	}

	_, _ = cleanBatch(t, models.DefaultCleaningConfig(), records...)

	for i, r := range records {
		if diff := cmp.Diff(before[i], *r); diff != "" {
			t.Errorf("record %d mutated (-before +after):\n%s", i, diff)
		}
	}
}

func mixedBatch() []*models.RawReview {
	return []*models.RawReview{
		{ProductName: "mcafee", ReviewText: "Great antivirus! It works really well on my desktop.", Rating: models.Float(90), CollectionSource: "reddit", Source: "Reddit", CreatedUTC: models.Float(1704067200), Score: models.Float(90), NumComments: models.Float(14)},
		{ProductName: "MCAFEE", ReviewText: "Great antivirus! It works really well on my desktop.", Rating: models.Float(3), CollectionSource: "playstore"},
		{ProductName: "norton", ReviewText: "", Title: ""},
		{ProductName: "norton", Title: "Battery drain", ReviewText: "Had some battery drain issues. Otherwise decent security app.", Rating: models.Float(3), Date: "2024-02-20", ReviewerName: "MobileTech456", CollectionSource: "playstore", ScrapedAt: "2024-05-01T10:00:00"},
		{ProductName: "norton", ReviewText: "Second review from the same person, written a month later.", Rating: models.Float(11), Date: "2024-03-20", ReviewerName: "MobileTech456", CollectionSource: "playstore"},
		{ProductName: "avast", ReviewText: "aaa aaa aaa aaa aaa", CollectionSource: "amazon"},
		{ProductName: "avast", ReviewText: "short", CollectionSource: "amazon"},
		{ProductName: "avast", ReviewText: "Useless garbage, it flagged my own thesis as malware twice!!!", Rating: models.Float(-2), Date: "Jan 5, 2024", CollectionSource: "amazon"},
		{ProductName: "kaspersky", Title: "Worth it?", Selftext: "Looking at Kaspersky vs Bitdefender, which one is lighter???", Score: models.Float(-4), CollectionSource: "reddit", Rating: models.Float(-4)},
		{ProductName: "bitdefender", ReviewText: "Excellent protection. Really helps protect my iPhone from threats.", Rating: models.Float(5), Date: "2024-01-20", ReviewerName: "iPhoneUser123", CollectionSource: "appstore"},
		{ProductName: "bitdefender", ReviewText: "Check https://example.com/deal for the best price ... on Bitdefender", Rating: models.Float(4.5), Date: "garbage-date"},
	}
}

func TestCleanerProperties(t *testing.T) {
	cfg := models.DefaultCleaningConfig()
	records := mixedBatch()

	out, report := cleanBatch(t, cfg, records...)

	require.Equal(t, len(records), report.OriginalCount)
	require.LessOrEqual(t, report.FinalCount, report.OriginalCount)
	require.Equal(t, len(out), report.FinalCount)
	require.Equal(t, report.OriginalCount-report.FinalCount, report.TotalRemoved)
	require.Equal(t, report.TotalRemoved, report.Steps.Total())

	seen := make(map[[2]string]bool)
	for i, r := range out {
		require.Equal(t, i, r.CleanID)

		key := [2]string{r.ProductName, r.ReviewTextUnified}
		require.False(t, seen[key], "duplicate pair %v", key)
		seen[key] = true

		if r.RatingStandardized.Valid {
			require.GreaterOrEqual(t, r.RatingStandardized.Float64, 1.0)
			require.LessOrEqual(t, r.RatingStandardized.Float64, 5.0)
		}

		n := utf8.RuneCountInString(r.ReviewTextUnified)
		require.GreaterOrEqual(t, n, cfg.MinReviewLength)
		require.LessOrEqual(t, n, cfg.MaxReviewLength)
		require.NotEmpty(t, r.ProductName)
		require.NotEmpty(t, r.DataSource)
	}

	products := make([]string, len(out))
	for i, r := range out {
		products[i] = r.ProductName
	}
	want := []string{"Mcafee", "Norton", "Avast", "Kaspersky", "Bitdefender", "Bitdefender"}
	if diff := cmp.Diff(want, products); diff != "" {
		t.Errorf("surviving products mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, models.StageCounts{
		EmptyRecordsRemoved: 1,
		TextLengthFiltered:  1,
		DuplicatesRemoved:   2,
		QualityFiltered:     1,
	}, report.Steps)
}

func TestCleanerIdempotent(t *testing.T) {
	cfg := models.DefaultCleaningConfig()
	first, firstReport := cleanBatch(t, cfg, mixedBatch()...)

	again := make([]*models.RawReview, len(first))
	for i, r := range first {
		again[i] = r.ToRaw()
	}
	second, secondReport := cleanBatch(t, cfg, again...)

	require.Equal(t, firstReport.FinalCount, secondReport.FinalCount)
	require.Zero(t, secondReport.TotalRemoved)

	for i := range first {
		require.Equal(t, first[i].ProductName, second[i].ProductName)
		require.Equal(t, first[i].ReviewTextUnified, second[i].ReviewTextUnified)
		require.Equal(t, first[i].RatingStandardized, second[i].RatingStandardized)
	}
}

func TestCleanerRecleansSavedOutput(t *testing.T) {
	cfg := models.DefaultCleaningConfig()
	first, firstReport := cleanBatch(t, cfg, mixedBatch()...)
	require.NotZero(t, firstReport.FinalCount)

	for _, ext := range []string{".json", ".csv"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cleaned"+ext)
			require.NoError(t, storage.SaveClean(path, first, firstReport))

			batch, err := storage.LoadRaw(path)
			require.NoError(t, err)

			second, secondReport, err := newTestCleaner(cfg).Clean(batch)
			require.NoError(t, err)
			require.Zero(t, secondReport.Steps.EmptyRecordsRemoved)
			require.Equal(t, firstReport.FinalCount, secondReport.FinalCount)

			for i := range first {
				require.Equal(t, first[i].ProductName, second[i].ProductName)
				require.Equal(t, first[i].ReviewTextUnified, second[i].ReviewTextUnified)
				require.Equal(t, first[i].DataSource, second[i].DataSource)
				require.Equal(t, first[i].RatingStandardized, second[i].RatingStandardized)
			}
		})
	}
}
