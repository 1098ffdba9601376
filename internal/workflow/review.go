package workflow

import (
	"fmt"

	"github.com/wardenhq/warden/internal/category"
)

// Review thresholds. The draft confidence here is the learner-adjusted
// primary confidence, not the settled verdict.
const (
	reviewConfidenceFloor = 0.75
	sensitiveConfidence   = 0.90
)

// assessReview decides whether a human must look at the result and why.
// Rules are checked in order; the first that fires supplies the reason.
func assessReview(
	primary draft,
	secondary *category.Category,
	consensus *bool,
	segments []Segment,
	images []ImageAnalysis,
) (bool, string) {
	if !primary.Safety.IsSafe {
		return true, "Unsafe content detected - mandatory review"
	}

	sensitiveVisuals := 0
	for _, img := range images {
		if img.SensitiveVisual {
			sensitiveVisuals++
		}
	}
	if sensitiveVisuals > 0 {
		return true, fmt.Sprintf(
			"Detected %d images with sensitive visual elements (seals, stamps, signatures)",
			sensitiveVisuals,
		)
	}

	if distinctClassifications(segments) >= 3 {
		return true, "High variation in segment classifications - manual review recommended"
	}

	if primary.Confidence < reviewConfidenceFloor {
		return true, fmt.Sprintf("Low confidence score: %.2f", primary.Confidence)
	}

	if secondary != nil && consensus != nil && !*consensus {
		return true, fmt.Sprintf(
			"Model disagreement: primary=%s, secondary=%s",
			primary.Classification, *secondary,
		)
	}

	if primary.Classification == category.HighlySensitive && primary.Confidence < sensitiveConfidence {
		return true, "Highly Sensitive classification requires very high confidence"
	}

	return false, ""
}

func distinctClassifications(segments []Segment) int {
	seen := map[category.Category]bool{}
	for _, seg := range segments {
		seen[seg.Classification] = true
	}
	return len(seen)
}
