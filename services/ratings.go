package services

import (
	"strings"

	"security-reviews/models"
)

// Platform identifies the review platform a record came from.
type Platform string

const (
	PlatformReddit    Platform = "reddit"
	PlatformPlayStore Platform = "playstore"
	PlatformAppStore  Platform = "appstore"
	PlatformAmazon    Platform = "amazon"
	PlatformOther     Platform = "other"
)

var platformAliases = map[string]Platform{
	"reddit":            PlatformReddit,
	"playstore":         PlatformPlayStore,
	"play store":        PlatformPlayStore,
	"google play":       PlatformPlayStore,
	"google play store": PlatformPlayStore,
	"appstore":          PlatformAppStore,
	"app store":         PlatformAppStore,
	"apple app store":   PlatformAppStore,
	"amazon":            PlatformAmazon,
}

// ParsePlatform maps a source tag such as "reddit" or "Google Play Store" to a
// Platform. Unknown tags map to PlatformOther.
func ParsePlatform(tag string) Platform {
	if p, ok := platformAliases[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return p
	}
	return PlatformOther
}

type ratingRule func(float64) float64

// ratingRules maps each platform to its 1-5 conversion. Platforms without an
// entry are clamped.
var ratingRules = map[Platform]ratingRule{
	PlatformReddit:    redditScoreToRating,
	PlatformPlayStore: clampRating,
	PlatformAppStore:  clampRating,
}

// standardizeRating converts a raw rating to the 1-5 scale. The platform is
// taken from the collection source, or from the original source tag when the
// collection source is not a known platform.
func standardizeRating(rating models.NullFloat, dataSource, originalSource string) models.NullFloat {
	if !rating.Valid {
		return models.NullFloat{}
	}

	p := ParsePlatform(dataSource)
	if p == PlatformOther {
		p = ParsePlatform(originalSource)
	}

	rule, ok := ratingRules[p]
	if !ok {
		rule = clampRating
	}
	return models.Float(rule(rating.Float64))
}

// redditScoreToRating buckets a community score into a star rating.
func redditScoreToRating(score float64) float64 {
	switch {
	case score >= 100:
		return 5
	case score >= 50:
		return 4
	case score >= 10:
		return 3
	case score >= 0:
		return 2
	default:
		return 1
	}
}

func clampRating(r float64) float64 {
	if r < 1 {
		return 1
	}
	if r > 5 {
		return 5
	}
	return r
}
