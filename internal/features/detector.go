package features

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// DocumentType is the inferred shape of a document, used to pick prompt
// branches and reported back in adaptive insights.
type DocumentType string

const (
	TypeGeneral          DocumentType = "general"
	TypeMarketing        DocumentType = "marketing"
	TypeFormWithPII      DocumentType = "form_with_pii"
	TypeTechnicalDefense DocumentType = "technical_defense"
	TypeGovernment       DocumentType = "government"
	TypeInternalMemo     DocumentType = "internal_memo"
)

// Vector is the detected feature set for one document.
type Vector struct {
	PII              bool
	Defense          bool
	Government       bool
	Marketing        bool
	Technical        bool
	MultiLabel       bool
	Visual           bool
	DocumentType     DocumentType
	SensitivityScore float64
}

// Detector evaluates rule tables against a document's filename and content
// preview. Results are memoized by input, so repeated detection for the same
// document is free; the Detector is safe for concurrent use.
type Detector struct {
	rules    Rules
	patterns map[string]*regexp.Regexp

	mu    sync.Mutex
	cache map[string]Vector
}

// NewDetector compiles the rule patterns once for reuse across stages.
func NewDetector(rules Rules) (*Detector, error) {
	patterns := make(map[string]*regexp.Regexp, len(rules.PIIPatterns))
	for name, pattern := range rules.PIIPatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pii pattern %q: %w", name, err)
		}
		patterns[name] = compiled
	}

	return &Detector{
		rules:    rules,
		patterns: patterns,
		cache:    make(map[string]Vector),
	}, nil
}

// PreviewLength is how much of the document text feature detection reads.
const PreviewLength = 1000

// maxCacheEntries bounds the memoization map; the whole cache resets when
// it fills.
const maxCacheEntries = 1024

// Preview returns the detection window of the full text.
func Preview(fullText string) string {
	if len(fullText) <= PreviewLength {
		return fullText
	}
	return fullText[:PreviewLength]
}

// Detect analyzes the filename and content preview. The cache key covers
// all inputs so a re-uploaded document with new content is re-analyzed.
func (d *Detector) Detect(filename, preview string, imageCount int) Vector {
	key := fmt.Sprintf("%s\x00%s\x00%d", filename, preview, imageCount)

	d.mu.Lock()
	if cached, ok := d.cache[key]; ok {
		d.mu.Unlock()
		return cached
	}
	d.mu.Unlock()

	v := d.analyze(filename, preview, imageCount)

	d.mu.Lock()
	if len(d.cache) >= maxCacheEntries {
		d.cache = make(map[string]Vector)
	}
	d.cache[key] = v
	d.mu.Unlock()

	return v
}

func (d *Detector) analyze(filename, preview string, imageCount int) Vector {
	v := Vector{DocumentType: TypeGeneral}

	filenameLower := strings.ToLower(filename)
	for _, hint := range d.rules.FilenamePIIHints {
		if strings.Contains(filenameLower, hint) {
			v.PII = true
			break
		}
	}

	if preview != "" {
		contentLower := strings.ToLower(preview)

		piiData := false
		for _, pattern := range d.patterns {
			if pattern.MatchString(preview) {
				piiData = true
				break
			}
		}

		formCount := countTerms(contentLower, d.rules.FormIndicators)
		if piiData || formCount >= d.rules.Thresholds.FormIndicators {
			v.PII = true
			v.SensitivityScore += d.rules.Weights.PII
		}

		if countTerms(contentLower, d.rules.DefenseTerms) >= d.rules.Thresholds.Defense {
			v.Defense = true
			v.SensitivityScore += d.rules.Weights.Defense
		}

		if countTerms(contentLower, d.rules.GovernmentTerms) >= d.rules.Thresholds.Government {
			v.Government = true
			v.SensitivityScore += d.rules.Weights.Government
		}

		if countTerms(contentLower, d.rules.MarketingTerms) >= d.rules.Thresholds.Marketing {
			v.Marketing = true
			v.SensitivityScore += d.rules.Weights.Marketing
		}

		if countTerms(contentLower, d.rules.TechnicalTerms) >= d.rules.Thresholds.Technical {
			v.Technical = true
			v.SensitivityScore += d.rules.Weights.Technical
		}

		if v.Defense && v.Marketing {
			v.MultiLabel = true
		}
		if v.PII && (v.Defense || v.Government) {
			v.MultiLabel = true
		}
	}

	v.Visual = imageCount > d.rules.Thresholds.VisualImageCount

	switch {
	case v.Marketing && !v.PII:
		v.DocumentType = TypeMarketing
	case v.PII && strings.Contains(filenameLower, "application"):
		v.DocumentType = TypeFormWithPII
	case v.Defense && v.Technical:
		v.DocumentType = TypeTechnicalDefense
	case v.Government:
		v.DocumentType = TypeGovernment
	case strings.Contains(filenameLower, "memo") || strings.Contains(filenameLower, "internal"):
		v.DocumentType = TypeInternalMemo
	}

	return v
}

// countTerms counts how many distinct terms from the table appear in the
// content. Each term contributes at most once regardless of repetition.
func countTerms(contentLower string, terms []string) int {
	count := 0
	for _, term := range terms {
		if strings.Contains(contentLower, term) {
			count++
		}
	}
	return count
}
