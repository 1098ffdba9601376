package prompts

import "github.com/wardenhq/warden/internal/features"

// Plan is an ordered stage sequence for one document.
type Plan struct {
	Stages []Stage
}

// BuildPlan selects stages from the detected feature vector. The backbone
// (pre-analysis, quick safety, classification, evidence, confidence) is
// always present; branches are appended between safety screening and the
// classification decision.
func BuildPlan(v features.Vector) Plan {
	sequence := []Stage{
		StagePreAnalysis,
		StageQuickSafety,
	}

	if v.PII {
		sequence = append(sequence, StagePIIDetection, StagePIISensitivity)
	}

	if v.Defense {
		sequence = append(sequence, StageProprietary, StageKeywordRelevance)
		if v.Technical {
			sequence = append(sequence, StageTechnicalSpec)
		}
	}

	if v.Government {
		sequence = append(sequence, StageDocumentContext, StageGovernmentSource)
	}

	if v.Marketing {
		sequence = append(sequence, StageMarketing)
	}

	if v.Visual {
		sequence = append(sequence, StageVisual)
	}

	sequence = append(sequence, StageClassification, StageEvidence)

	if v.MultiLabel {
		sequence = append(sequence, StageMultiLabel)
	}

	sequence = append(sequence, StageConfidence)

	return Plan{Stages: sequence}
}

// Contains reports whether the plan includes the given stage.
func (p Plan) Contains(stage Stage) bool {
	for _, s := range p.Stages {
		if s == stage {
			return true
		}
	}
	return false
}
