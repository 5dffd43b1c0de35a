package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"security-reviews/models"
)

// ValidateDataset checks a cleaned dataset for completeness and returns a
// summary. It never fails; problems are listed in the report's Issues.
func ValidateDataset(reviews []*models.CleanReview) *models.ValidationReport {
	report := &models.ValidationReport{
		TotalRecords:           len(reviews),
		RequiredColumnsPresent: true,
		Issues:                 []string{},
	}

	products := make(map[string]struct{})
	sources := make(map[string]struct{})
	emptyText, missingProduct, missingSource := 0, 0, 0
	totalLen := 0

	for _, r := range reviews {
		if strings.TrimSpace(r.ReviewTextUnified) == "" {
			emptyText++
		}
		if r.ProductName == "" {
			missingProduct++
		} else {
			products[r.ProductName] = struct{}{}
		}
		if r.DataSource == "" {
			missingSource++
		} else {
			sources[r.DataSource] = struct{}{}
		}
		totalLen += utf8.RuneCountInString(r.ReviewTextUnified)
	}

	if missingProduct > 0 || missingSource > 0 {
		report.RequiredColumnsPresent = false
	}
	if emptyText > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d records with empty text", emptyText))
	}
	if missingProduct > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d records without product_name", missingProduct))
	}
	if missingSource > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d records without data_source", missingSource))
	}

	report.Products = len(products)
	report.Sources = len(sources)
	if len(reviews) > 0 {
		report.AvgTextLength = float64(totalLen) / float64(len(reviews))
	}
	return report
}
