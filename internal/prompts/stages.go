// Package prompts plans and renders the adaptive system prompt for a
// classification run. The plan is a staged instruction sequence: a fixed
// backbone every document gets, plus conditional branches selected from the
// detected feature vector. Rendering is deterministic so identical inputs
// produce identical prompts.
package prompts

import (
	"encoding/json"
	"slices"
)

// Stage is one instruction block in the planned prompt sequence.
type Stage string

// Mandatory stages, present in every plan.
const (
	StagePreAnalysis    Stage = "pre_classification_analysis"
	StageQuickSafety    Stage = "quick_safety_check"
	StageClassification Stage = "classification_decision"
	StageEvidence       Stage = "evidence_extraction"
	StageConfidence     Stage = "confidence_assessment"
)

// Conditional stages, selected by detected features.
const (
	StagePIIDetection     Stage = "pii_detection"
	StagePIISensitivity   Stage = "pii_sensitivity_assessment"
	StageProprietary      Stage = "proprietary_detection"
	StageKeywordRelevance Stage = "keyword_relevance_scoring"
	StageTechnicalSpec    Stage = "technical_specification_analysis"
	StageDocumentContext  Stage = "document_context_classification"
	StageGovernmentSource Stage = "government_source_verification"
	StageMarketing        Stage = "marketing_content_analysis"
	StageVisual           Stage = "visual_content_analysis"
	StageMultiLabel       Stage = "multi_label_detection"
)

var stages = []Stage{
	StagePreAnalysis,
	StageQuickSafety,
	StagePIIDetection,
	StagePIISensitivity,
	StageProprietary,
	StageKeywordRelevance,
	StageTechnicalSpec,
	StageDocumentContext,
	StageGovernmentSource,
	StageMarketing,
	StageVisual,
	StageClassification,
	StageEvidence,
	StageMultiLabel,
	StageConfidence,
}

// Stages returns every valid stage in canonical order.
func Stages() []Stage {
	return stages
}

// ParseStage validates a string as a known stage.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}

// UnmarshalJSON validates that the decoded string is a known stage.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
