// Package safety normalizes and validates the safety assessments produced
// by model replies. Model output is treated as untrusted: flag spellings
// vary, multiple flags arrive pipe-joined in one string, and the boolean
// verdict regularly contradicts the flag list.
package safety

import (
	"log/slog"
	"strings"
)

// Flag is a canonical safety concern.
type Flag string

// The closed set of canonical safety flags.
const (
	FlagSafe         Flag = "Safe"
	FlagChildSafety  Flag = "Child Safety Violation"
	FlagHateSpeech   Flag = "Hate Speech"
	FlagViolence     Flag = "Violence"
	FlagExploitative Flag = "Exploitative Content"
	FlagCriminal     Flag = "Criminal Activity"
	FlagPolitical    Flag = "Political News"
	FlagCyberThreat  Flag = "Cyber Threat"
	FlagThreats      Flag = "Threats"
	FlagHarassment   Flag = "Harassment"
	FlagProfanity    Flag = "Profanity"
)

// Synonyms and variant spellings observed in model replies, keyed by the
// collapsed form (lowercase, spaces/hyphens/underscores stripped).
var flagSynonyms = map[string]Flag{
	"safe":                     FlagSafe,
	"none":                     FlagSafe,
	"noconcerns":               FlagSafe,
	"childsafetyviolation":     FlagChildSafety,
	"childsafety":              FlagChildSafety,
	"childexploitation":        FlagChildSafety,
	"hatespeech":               FlagHateSpeech,
	"hate":                     FlagHateSpeech,
	"hateful":                  FlagHateSpeech,
	"violence":                 FlagViolence,
	"violent":                  FlagViolence,
	"exploitativecontent":      FlagExploitative,
	"exploitative":             FlagExploitative,
	"exploitation":             FlagExploitative,
	"criminalactivity":         FlagCriminal,
	"criminal":                 FlagCriminal,
	"crime":                    FlagCriminal,
	"illegal":                  FlagCriminal,
	"potentialcriminalcontent": FlagCriminal,
	"politicalnews":            FlagPolitical,
	"political":                FlagPolitical,
	"cyberthreat":              FlagCyberThreat,
	"cyber":                    FlagCyberThreat,
	"hacking":                  FlagCyberThreat,
	"threats":                  FlagThreats,
	"threat":                   FlagThreats,
	"threatening":              FlagThreats,
	"harassment":               FlagHarassment,
	"harassing":                FlagHarassment,
	"profanity":                FlagProfanity,
	"profane":                  FlagProfanity,
	"cursing":                  FlagProfanity,
	"obscene":                  FlagProfanity,
}

func collapse(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

// NormalizeFlag maps a single raw flag string to its canonical flag.
// Unknown values map to Safe so one unrecognized spelling cannot poison a
// whole assessment.
func NormalizeFlag(raw string, logger *slog.Logger) Flag {
	if flag, ok := flagSynonyms[collapse(raw)]; ok {
		return flag
	}
	if logger != nil {
		logger.Warn("unknown safety flag, defaulting to Safe", "flag", raw)
	}
	return FlagSafe
}

// NormalizeFlags maps raw flag strings to canonical flags: pipe-joined
// values are split, duplicates removed preserving first occurrence, and an
// empty input becomes [Safe].
func NormalizeFlags(raw []string, logger *slog.Logger) []Flag {
	normalized := make([]Flag, 0, len(raw))
	for _, value := range raw {
		for part := range strings.SplitSeq(value, "|") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			normalized = append(normalized, NormalizeFlag(part, logger))
		}
	}

	seen := make(map[Flag]bool, len(normalized))
	result := make([]Flag, 0, len(normalized))
	for _, flag := range normalized {
		if !seen[flag] {
			seen[flag] = true
			result = append(result, flag)
		}
	}

	if len(result) == 0 {
		return []Flag{FlagSafe}
	}
	return result
}
