package learning

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wardenhq/warden/internal/category"
)

// Patterns is everything the analyzer derives from the correction ledger in
// one pass. All slices are deterministically ordered so review reasons and
// prompt enhancements are stable across restarts.
type Patterns struct {
	TotalFeedback      int                                    `json:"total_feedback_count"`
	CorrectionRate     float64                                `json:"correction_rate"`
	Misclassifications []Misclassification                    `json:"frequent_misclassifications"`
	KeywordAdjustments map[string]KeywordAdjustment           `json:"keyword_confidence_adjustments"`
	ContextPatterns    []ContextPattern                       `json:"context_patterns"`
	AccuracyByCategory map[category.Category]CategoryAccuracy `json:"accuracy_by_category"`
	Examples           map[category.Category][]Example        `json:"learned_examples"`
}

// Misclassification is a recurring correction from one category to another.
type Misclassification struct {
	From       category.Category `json:"from"`
	To         category.Category `json:"to"`
	Count      int               `json:"count"`
	Percentage float64           `json:"percentage"`
}

// KeywordAdjustment penalizes confidence for documents whose filename or
// content carries a word that has repeatedly appeared in corrections.
type KeywordAdjustment struct {
	CorrectionCount int               `json:"correction_count"`
	Multiplier      float64           `json:"confidence_multiplier"`
	CommonFrom      category.Category `json:"common_from"`
	CommonTo        category.Category `json:"common_to"`
}

// ContextPattern captures a misclassification group with the reasoning words
// its corrections share.
type ContextPattern struct {
	From       category.Category `json:"from"`
	To         category.Category `json:"to"`
	Frequency  int               `json:"frequency"`
	Indicators []string          `json:"common_indicators"`
	Rule       string            `json:"rule"`
}

// CategoryAccuracy is the review outcome history for one category.
type CategoryAccuracy struct {
	Accuracy     float64 `json:"accuracy"`
	TotalReviews int     `json:"total_reviews"`
	Correct      int     `json:"correct"`
	Corrections  int     `json:"corrections"`
}

// Example is a reviewer-settled classification usable as a few-shot prompt
// example. Confidence is "high" when the reviewer approved the model and
// "corrected" when they overruled it.
type Example struct {
	Filename       string            `json:"filename"`
	Classification category.Category `json:"classification"`
	Reasoning      string            `json:"reasoning"`
	Confidence     string            `json:"confidence"`
}

const (
	// A filename word must recur in this many corrections before it earns
	// a confidence penalty.
	minKeywordCorrections = 2
	// A correction group must recur this often before it becomes a
	// context pattern.
	minPatternFrequency = 2

	maxMisclassifications = 10
	maxPatternIndicators  = 5
	maxExamplesPerCat     = 3
)

var wordPattern = regexp.MustCompile(`\w+`)

type correction struct {
	from      category.Category
	to        category.Category
	filename  string
	reasoning string
}

// Analyze derives patterns from the full ledger. Entries must be ordered by
// creation time; example selection keeps the earliest entries per category.
func Analyze(entries []Entry) *Patterns {
	p := &Patterns{
		Misclassifications: []Misclassification{},
		KeywordAdjustments: map[string]KeywordAdjustment{},
		ContextPatterns:    []ContextPattern{},
		AccuracyByCategory: map[category.Category]CategoryAccuracy{},
		Examples:           map[category.Category][]Example{},
	}

	if len(entries) == 0 {
		return p
	}

	p.TotalFeedback = len(entries)

	var corrections []correction
	for _, e := range entries {
		stats := p.AccuracyByCategory[e.OriginalClassification]
		stats.TotalReviews++

		if e.IsCorrection() {
			stats.Corrections++
			corrections = append(corrections, correction{
				from:      e.OriginalClassification,
				to:        *e.CorrectedClassification,
				filename:  e.Context.Filename,
				reasoning: reasoningOf(e),
			})
		} else {
			stats.Correct++
		}
		p.AccuracyByCategory[e.OriginalClassification] = stats

		verdict := e.Verdict()
		if len(p.Examples[verdict]) < maxExamplesPerCat {
			confidence := "high"
			if e.IsCorrection() {
				confidence = "corrected"
			}
			p.Examples[verdict] = append(p.Examples[verdict], Example{
				Filename:       e.Context.Filename,
				Classification: verdict,
				Reasoning:      reasoningOf(e),
				Confidence:     confidence,
			})
		}
	}

	for cat, stats := range p.AccuracyByCategory {
		if stats.TotalReviews > 0 {
			stats.Accuracy = float64(stats.Correct) / float64(stats.TotalReviews) * 100
		}
		p.AccuracyByCategory[cat] = stats
	}

	p.CorrectionRate = float64(len(corrections)) / float64(len(entries))
	p.Misclassifications = rankMisclassifications(corrections, len(entries))
	p.KeywordAdjustments = extractKeywordAdjustments(corrections)
	p.ContextPatterns = extractContextPatterns(corrections)

	return p
}

func reasoningOf(e Entry) string {
	if e.ReasoningForCorrection != "" {
		return e.ReasoningForCorrection
	}
	return e.FeedbackNotes
}

func rankMisclassifications(corrections []correction, total int) []Misclassification {
	counts := map[[2]category.Category]int{}
	for _, c := range corrections {
		counts[[2]category.Category{c.from, c.to}]++
	}

	ranked := make([]Misclassification, 0, len(counts))
	for pair, count := range counts {
		ranked = append(ranked, Misclassification{
			From:       pair[0],
			To:         pair[1],
			Count:      count,
			Percentage: float64(count) / float64(total) * 100,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		if ranked[i].From != ranked[j].From {
			return ranked[i].From < ranked[j].From
		}
		return ranked[i].To < ranked[j].To
	})

	if len(ranked) > maxMisclassifications {
		ranked = ranked[:maxMisclassifications]
	}
	return ranked
}

func extractKeywordAdjustments(corrections []correction) map[string]KeywordAdjustment {
	byKeyword := map[string][]correction{}

	for _, c := range corrections {
		for _, word := range wordPattern.FindAllString(strings.ToLower(c.filename), -1) {
			if len(word) > 3 {
				byKeyword[word] = append(byKeyword[word], c)
			}
		}
	}

	adjustments := map[string]KeywordAdjustment{}
	for keyword, group := range byKeyword {
		if len(group) < minKeywordCorrections {
			continue
		}

		from, to := commonPair(group)
		adjustments[keyword] = KeywordAdjustment{
			CorrectionCount: len(group),
			Multiplier:      max(0.5, 1.0-float64(len(group))*0.1),
			CommonFrom:      from,
			CommonTo:        to,
		}
	}

	return adjustments
}

func commonPair(group []correction) (category.Category, category.Category) {
	counts := map[[2]category.Category]int{}
	for _, c := range group {
		counts[[2]category.Category{c.from, c.to}]++
	}

	var best [2]category.Category
	bestCount := -1
	for pair, count := range counts {
		if count > bestCount ||
			(count == bestCount && (pair[0] < best[0] || (pair[0] == best[0] && pair[1] < best[1]))) {
			best = pair
			bestCount = count
		}
	}
	return best[0], best[1]
}

func extractContextPatterns(corrections []correction) []ContextPattern {
	groups := map[[2]category.Category][]correction{}
	for _, c := range corrections {
		key := [2]category.Category{c.from, c.to}
		groups[key] = append(groups[key], c)
	}

	keys := make([][2]category.Category, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	var patterns []ContextPattern
	for _, key := range keys {
		group := groups[key]
		if len(group) < minPatternFrequency {
			continue
		}

		texts := make([]string, len(group))
		for i, c := range group {
			texts[i] = c.reasoning
		}

		common := commonWords(texts)
		indicators := common
		if len(indicators) > maxPatternIndicators {
			indicators = indicators[:maxPatternIndicators]
		}

		ruleWords := common
		if len(ruleWords) > 3 {
			ruleWords = ruleWords[:3]
		}

		patterns = append(patterns, ContextPattern{
			From:       key[0],
			To:         key[1],
			Frequency:  len(group),
			Indicators: indicators,
			Rule: fmt.Sprintf(
				"Documents with '%s' are often %s, not %s",
				strings.Join(ruleWords, ", "), key[1], key[0],
			),
		})
	}

	return patterns
}

// commonWords returns words longer than four characters that appear at least
// twice across the texts, most frequent first, capped at ten.
func commonWords(texts []string) []string {
	counts := map[string]int{}
	for _, text := range texts {
		for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
			if len(word) > 4 {
				counts[word]++
			}
		}
	}

	words := make([]string, 0, len(counts))
	for word, count := range counts {
		if count >= 2 {
			words = append(words, word)
		}
	}

	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > 10 {
		words = words[:10]
	}
	return words
}
