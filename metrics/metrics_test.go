package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"security-reviews/models"
)

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveCleaning(&models.CleaningReport{
		OriginalCount: 11,
		FinalCount:    6,
		RetentionRate: 54.55,
		Steps:         models.StageCounts{EmptyRecordsRemoved: 1, TextLengthFiltered: 1, DuplicatesRemoved: 2, QualityFiltered: 1},
	})
	r.ObserveCollection(map[string]int{"reddit": 15, "amazon": 4})
	r.ObserveRun("clean", 250*time.Millisecond, time.Unix(1717243200, 0))

	path := filepath.Join(t.TempDir(), "textfile", "reviews.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	for _, line := range []string{
		`security_reviews_stage_removed_total{stage="duplicates"} 2`,
		`security_reviews_stage_removed_total{stage="quality"} 1`,
		`security_reviews_records{phase="original"} 11`,
		`security_reviews_records{phase="final"} 6`,
		`security_reviews_retention_percent 54.55`,
		`security_reviews_collected_reviews{source="reddit"} 15`,
		`security_reviews_run_duration_seconds_count{command="clean"} 1`,
		`security_reviews_last_success_timestamp_seconds 1.7172432e+09`,
	} {
		require.Contains(t, out, line)
	}
}

func TestObserveCleaningNil(t *testing.T) {
	r := New()
	r.ObserveCleaning(nil)
	require.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "empty.prom")))
}
