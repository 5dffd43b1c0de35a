package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"security-reviews/models"
)

// ErrUnsupportedFormat is returned for files that are neither .json nor .csv.
var ErrUnsupportedFormat = errors.New("unsupported file format, use .json or .csv")

// CleanMetadata is written next to a saved clean dataset.
type CleanMetadata struct {
	SavedAt      time.Time              `json:"saved_at"`
	TotalRecords int                    `json:"total_records"`
	Report       *models.CleaningReport `json:"cleaning_report,omitempty"`
}

// LoadRaw reads raw reviews from a JSON array of objects or a CSV file with a
// header row. Every key or header becomes a column of the returned batch.
func LoadRaw(path string) (*models.Batch, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".csv":
		return loadCSV(path)
	}
	return nil, fmt.Errorf("storage: load %q: %w", path, ErrUnsupportedFormat)
}

func loadJSON(path string) (*models.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("storage: decode %q: %w", path, err)
	}
	return models.NewBatchFromMaps(rows), nil
}

func loadCSV(path string) (*models.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return models.NewBatchFromMaps(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read header %q: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]any
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: read %q: %w", path, err)
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) && rec[i] != "" {
				row[col] = rec[i]
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return models.NewBatchFromMaps(rows), nil
}

// SaveClean writes cleaned reviews to path (.json or .csv) and the metadata
// to <name>_metadata.json in the same directory.
func SaveClean(path string, reviews []*models.CleanReview, report *models.CleaningReport) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".csv" {
		return fmt.Errorf("storage: save %q: %w", path, ErrUnsupportedFormat)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("storage: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: create %q: %w", path, err)
	}
	defer f.Close()

	if ext == ".json" {
		if reviews == nil {
			reviews = []*models.CleanReview{}
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		err = enc.Encode(reviews)
	} else {
		err = writeCleanCSV(f, reviews)
	}
	if err != nil {
		return fmt.Errorf("storage: write %q: %w", path, err)
	}

	meta := CleanMetadata{
		SavedAt:      time.Now().UTC(),
		TotalRecords: len(reviews),
		Report:       report,
	}
	return WriteJSON(MetadataPath(path), meta)
}

// MetadataPath returns the metadata file name for a dataset path.
func MetadataPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_metadata.json"
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("storage: create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("storage: write %q: %w", path, err)
	}
	return nil
}
