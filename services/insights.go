package services

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"

	"security-reviews/models"
	"security-reviews/utils"
)

type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

// WithOutput redirects printed reports to w.
func (s *InsightService) WithOutput(w io.Writer) *InsightService {
	s.out = w
	return s
}

func (s *InsightService) Generate(reviews []*models.CleanReview) *models.InsightReport {
	report := &models.InsightReport{
		ReviewsBySource: make(map[string]int),
	}

	if len(reviews) == 0 {
		return report
	}

	report.TotalReviews = len(reviews)

	type acc struct {
		stats        *models.ProductStats
		ratingSum    float64
		sentimentSum float64
		positive     int
		negative     int
	}
	byProduct := make(map[string]*acc)
	var textSum, wordSum int

	for _, r := range reviews {
		a, ok := byProduct[r.ProductName]
		if !ok {
			a = &acc{stats: &models.ProductStats{ProductName: r.ProductName}}
			byProduct[r.ProductName] = a
		}
		a.stats.Reviews++
		a.sentimentSum += r.SentimentScore
		if r.RatingStandardized.Valid {
			a.stats.RatedReviews++
			a.ratingSum += r.RatingStandardized.Float64
		}
		switch {
		case r.PositiveWords > r.NegativeWords:
			a.positive++
		case r.NegativeWords > r.PositiveWords:
			a.negative++
		}

		report.ReviewsBySource[r.DataSource]++
		textSum += r.TextLength
		wordSum += r.WordCount

		if r.DateUnified != nil {
			if report.EarliestDate == nil || r.DateUnified.Before(*report.EarliestDate) {
				report.EarliestDate = r.DateUnified
			}
			if report.LatestDate == nil || r.DateUnified.After(*report.LatestDate) {
				report.LatestDate = r.DateUnified
			}
		}

		if report.MostPositive == nil || r.SentimentScore > report.MostPositive.SentimentScore {
			report.MostPositive = r
		}
		if report.MostNegative == nil || r.SentimentScore < report.MostNegative.SentimentScore {
			report.MostNegative = r
		}
	}

	for _, a := range byProduct {
		st := a.stats
		if st.RatedReviews > 0 {
			st.AverageRating = round2(a.ratingSum / float64(st.RatedReviews))
		}
		st.AvgSentiment = round4(a.sentimentSum / float64(st.Reviews))
		st.PositiveShare = round2(float64(a.positive) / float64(st.Reviews) * 100)
		st.NegativeShare = round2(float64(a.negative) / float64(st.Reviews) * 100)
		report.Products = append(report.Products, st)
	}

	// Most reviewed first
	sort.Slice(report.Products, func(i, j int) bool {
		if report.Products[i].Reviews != report.Products[j].Reviews {
			return report.Products[i].Reviews > report.Products[j].Reviews
		}
		return report.Products[i].ProductName < report.Products[j].ProductName
	})

	report.AvgTextLength = round2(float64(textSum) / float64(len(reviews)))
	report.AvgWordCount = round2(float64(wordSum) / float64(len(reviews)))

	s.logger.Debug("[insights] %d reviews across %d products", report.TotalReviews, len(report.Products))
	return report
}

// PrintCleaningReport prints the per-stage summary of a cleaning run.
func (s *InsightService) PrintCleaningReport(r *models.CleaningReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;36m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;36m  🧹 DATA CLEANING REPORT\033[0m\n")
	fmt.Fprintf(w, "\033[1;36m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "  Original records : \033[1m%d\033[0m\n", r.OriginalCount)
	fmt.Fprintf(w, "  Final records    : \033[1m%d\033[0m\n", r.FinalCount)
	fmt.Fprintf(w, "  Total removed    : \033[1m%d\033[0m\n", r.TotalRemoved)
	fmt.Fprintf(w, "  Retention rate   : \033[1;32m%.1f%%\033[0m\n\n", r.RetentionRate)

	fmt.Fprintf(w, "\033[1;33m  Removed per stage\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Empty records     : %d\n", r.Steps.EmptyRecordsRemoved)
	fmt.Fprintf(w, "  Text length       : %d\n", r.Steps.TextLengthFiltered)
	fmt.Fprintf(w, "  Duplicates        : %d\n", r.Steps.DuplicatesRemoved)
	fmt.Fprintf(w, "  Low quality/spam  : %d\n", r.Steps.QualityFiltered)
	fmt.Fprintf(w, "\n\033[1;36m%s\033[0m\n\n", sep)
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 SECURITY PRODUCT REVIEW INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total reviews     : \033[1m%d\033[0m\n", r.TotalReviews)
	fmt.Fprintf(w, "  Products          : \033[1m%d\033[0m\n", len(r.Products))
	fmt.Fprintf(w, "  Avg length/words  : %.1f chars / %.1f words\n", r.AvgTextLength, r.AvgWordCount)
	if r.EarliestDate != nil && r.LatestDate != nil {
		fmt.Fprintf(w, "  Date range        : %s → %s\n",
			r.EarliestDate.Format(models.DateLayout), r.LatestDate.Format(models.DateLayout))
	}
	fmt.Fprintln(w)

	// Products
	fmt.Fprintf(w, "\033[1;33m  Reviews by Product\033[0m\n")
	if len(r.Products) == 0 {
		fmt.Fprintf(w, "  %s\n  No reviews found\n\n", thin)
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Product", "Reviews", "Avg ★", "Sentiment", "Positive %", "Negative %"})
		for _, p := range r.Products {
			rating := "-"
			if p.RatedReviews > 0 {
				rating = fmt.Sprintf("%.2f", p.AverageRating)
			}
			t.AppendRow(table.Row{
				truncate(p.ProductName, 28), p.Reviews, rating,
				fmt.Sprintf("%+.4f", p.AvgSentiment),
				fmt.Sprintf("%.1f", p.PositiveShare),
				fmt.Sprintf("%.1f", p.NegativeShare),
			})
		}
		t.Render()
		fmt.Fprintln(w)
	}

	// Sources
	fmt.Fprintf(w, "\033[1;33m  Reviews by Source\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	type srcCount struct {
		src   string
		count int
	}
	var srcs []srcCount
	for src, cnt := range r.ReviewsBySource {
		srcs = append(srcs, srcCount{src, cnt})
	}
	sort.Slice(srcs, func(i, j int) bool {
		if srcs[i].count != srcs[j].count {
			return srcs[i].count > srcs[j].count
		}
		return srcs[i].src < srcs[j].src
	})
	for _, sc := range srcs {
		bar := strings.Repeat("█", min(sc.count, 40))
		fmt.Fprintf(w, "  %-14s %s (%d)\n", truncate(sc.src, 14), bar, sc.count)
	}
	fmt.Fprintln(w)

	if r.MostPositive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Positive Review\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  [%s] %s\n\n", r.MostPositive.ProductName, truncate(r.MostPositive.ReviewTextUnified, 70))
	}
	if r.MostNegative != nil && r.MostNegative != r.MostPositive {
		fmt.Fprintf(w, "\033[1;33m  Most Negative Review\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  [%s] %s\n\n", r.MostNegative.ProductName, truncate(r.MostNegative.ReviewTextUnified, 70))
	}

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// truncate shortens s to max display columns.
func truncate(s string, max int) string {
	return runewidth.Truncate(s, max, "...")
}
