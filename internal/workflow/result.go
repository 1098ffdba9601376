package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/safety"
)

// Result is the complete output of one pipeline run, ready to persist.
type Result struct {
	DocumentID       uuid.UUID         `json:"document_id"`
	Filename         string            `json:"filename"`
	Classification   category.Category `json:"classification"`
	AdditionalLabels []string          `json:"additional_labels"`
	Confidence       float64           `json:"confidence"`
	Summary          string            `json:"summary"`
	Reasoning        string            `json:"reasoning"`
	Evidence         []Evidence        `json:"evidence"`
	Safety           safety.Assessment `json:"safety_assessment"`
	PageCount        int               `json:"page_count"`
	ImageCount       int               `json:"image_count"`

	Segments          []Segment          `json:"text_segments,omitempty"`
	Images            []ImageAnalysis    `json:"image_analyses,omitempty"`
	Context           *DocumentContext   `json:"document_context,omitempty"`
	KeywordRelevances []KeywordRelevance `json:"keyword_relevances,omitempty"`
	Keywords          []string           `json:"all_keywords,omitempty"`

	Secondary           *category.Category `json:"secondary_classification,omitempty"`
	SecondaryConfidence *float64           `json:"secondary_confidence,omitempty"`
	Consensus           *bool              `json:"consensus,omitempty"`
	VerificationNotes   string             `json:"verification_notes,omitempty"`

	Steps []string `json:"progress_steps,omitempty"`

	RequiresReview bool   `json:"requires_review"`
	ReviewReason   string `json:"review_reason,omitempty"`

	Model          string        `json:"model"`
	ProcessingTime time.Duration `json:"processing_time"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// Evidence is one citation supporting a classification.
type Evidence struct {
	Page             *int     `json:"page"`
	Region           string   `json:"region"`
	Quote            string   `json:"quote"`
	Reasoning        string   `json:"reasoning"`
	SensitivityLevel string   `json:"sensitivity_level,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
}

// Segment is a classified slice of document text.
type Segment struct {
	Text           string            `json:"text"`
	Classification category.Category `json:"classification"`
	Confidence     float64           `json:"confidence"`
	Page           int               `json:"page"`
	StartChar      int               `json:"start_char"`
	EndChar        int               `json:"end_char"`
	Keywords       []string          `json:"keywords,omitempty"`
	Reasoning      string            `json:"reasoning,omitempty"`
}

// ImageAnalysis is the per-image verdict from the visual stage.
type ImageAnalysis struct {
	Index           int               `json:"image_index"`
	Page            int               `json:"page"`
	OCRText         string            `json:"ocr_text,omitempty"`
	Classification  category.Category `json:"classification"`
	Confidence      float64           `json:"confidence"`
	SensitiveVisual bool              `json:"contains_sensitive_visual"`
	VisualElements  []string          `json:"visual_elements,omitempty"`
	Reasoning       string            `json:"reasoning,omitempty"`
	Keywords        []string          `json:"keywords,omitempty"`
}

// DocumentContext distinguishes proprietary content from public discussion
// of the same topics.
type DocumentContext struct {
	ContextType      string  `json:"context_type"`
	IntendedAudience string  `json:"intended_audience"`
	ContentPurpose   string  `json:"content_purpose"`
	IsProprietary    bool    `json:"is_proprietary"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// KeywordRelevance scores how strongly a sensitive keyword relates to the
// document rather than being mentioned in passing.
type KeywordRelevance struct {
	Keyword          string  `json:"keyword"`
	RelevanceScore   float64 `json:"relevance_score"`
	ContextWindow    string  `json:"context_window,omitempty"`
	RelationshipType string  `json:"relationship_type"`
	Page             int     `json:"page"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// SegmentSignal aggregates per-segment classifications into the sensitivity
// signal the decision stage weighs.
type SegmentSignal struct {
	Confidential      int
	HighlySensitive   int
	Highest           category.Category
	HighestConfidence float64
	SuggestsSensitive bool
}

// aggregateSegments counts segment classifications. Two or more
// Confidential segments, or any Highly Sensitive segment, suggests the
// document is more sensitive than its surface appearance.
func aggregateSegments(segments []Segment) SegmentSignal {
	var signal SegmentSignal

	for _, seg := range segments {
		switch seg.Classification {
		case category.Confidential:
			signal.Confidential++
		case category.HighlySensitive:
			signal.HighlySensitive++
		}

		if seg.Confidence > signal.HighestConfidence {
			signal.HighestConfidence = seg.Confidence
			signal.Highest = seg.Classification
		}
	}

	signal.SuggestsSensitive = signal.Confidential >= 2 || signal.HighlySensitive >= 1
	return signal
}

// Describe renders the signal as a prompt section, or empty when segments
// do not suggest elevated sensitivity.
func (s SegmentSignal) Describe() string {
	if !s.SuggestsSensitive {
		return ""
	}

	return fmt.Sprintf(
		"Segment-level analysis classified %d segments as Confidential and %d as Highly Sensitive "+
			"(highest: %s at %.0f%% confidence). If multiple segments contain confidential or sensitive "+
			"information, the overall classification should reflect that sensitivity. Do NOT classify "+
			"as Public when segments contain confidential business information.",
		s.Confidential, s.HighlySensitive, s.Highest, s.HighestConfidence*100,
	)
}

func collectKeywords(segments []Segment, images []ImageAnalysis, evidence []Evidence) []string {
	seen := map[string]bool{}
	var keywords []string

	add := func(values []string) {
		for _, v := range values {
			if v != "" && !seen[v] {
				seen[v] = true
				keywords = append(keywords, v)
			}
		}
	}

	for _, seg := range segments {
		add(seg.Keywords)
	}
	for _, img := range images {
		add(img.Keywords)
	}
	for _, ev := range evidence {
		add(ev.Keywords)
	}

	return keywords
}
