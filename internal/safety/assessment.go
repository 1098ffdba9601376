package safety

import (
	"log/slog"
	"slices"
	"strings"
)

// Assessment is a normalized safety verdict. The invariant after Validate:
// IsSafe holds exactly when Flags == [Safe].
type Assessment struct {
	IsSafe     bool    `json:"is_safe"`
	Flags      []Flag  `json:"flags"`
	Details    string  `json:"details"`
	Confidence float64 `json:"confidence"`
}

// Safe returns the assessment used when no harmful content is present.
func Safe(details string, confidence float64) Assessment {
	return Assessment{
		IsSafe:     true,
		Flags:      []Flag{FlagSafe},
		Details:    details,
		Confidence: confidence,
	}
}

// PII vocabulary that models misreport as safety concerns. Personal data
// is a sensitivity question, never a safety one.
var piiVocabulary = []string{
	"identity theft",
	"data breach",
	"personal information disclosure",
	"pii",
	"ssn",
	"credit card",
	"personally identifiable",
}

// Validate repairs contradictory assessments in a fixed order:
//
//  1. PII vocabulary in details forces a safe verdict.
//  2. IsSafe with flags other than [Safe] resets the flags.
//  3. Unsafe with only the Safe flag flips the verdict to safe.
//  4. Unsafe with Safe among real flags drops Safe.
//
// Validate is idempotent: validating a valid assessment returns it
// unchanged.
func Validate(a Assessment, logger *slog.Logger) Assessment {
	if len(a.Flags) == 0 {
		a.Flags = []Flag{FlagSafe}
	}

	details := strings.ToLower(a.Details)
	for _, keyword := range piiVocabulary {
		if strings.Contains(details, keyword) {
			if logger != nil {
				logger.Warn("correcting PII reported as safety concern",
					"flags", a.Flags,
				)
			}
			a.IsSafe = true
			a.Flags = []Flag{FlagSafe}
			a.Details = "No harmful content detected"
			return a
		}
	}

	onlySafe := len(a.Flags) == 1 && a.Flags[0] == FlagSafe

	switch {
	case a.IsSafe && !onlySafe:
		a.Flags = []Flag{FlagSafe}
	case !a.IsSafe && onlySafe:
		a.IsSafe = true
	case !a.IsSafe && slices.Contains(a.Flags, FlagSafe):
		a.Flags = slices.DeleteFunc(slices.Clone(a.Flags), func(f Flag) bool {
			return f == FlagSafe
		})
	}

	return a
}
