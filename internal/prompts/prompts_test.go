package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/features"
)

func TestBuildPlanBackbone(t *testing.T) {
	plan := BuildPlan(features.Vector{})

	require.Equal(t, []Stage{
		StagePreAnalysis,
		StageQuickSafety,
		StageClassification,
		StageEvidence,
		StageConfidence,
	}, plan.Stages)
}

func TestBuildPlanBranches(t *testing.T) {
	tests := []struct {
		name    string
		vector  features.Vector
		include []Stage
		exclude []Stage
	}{
		{
			name:    "pii branch",
			vector:  features.Vector{PII: true},
			include: []Stage{StagePIIDetection, StagePIISensitivity},
			exclude: []Stage{StageProprietary, StageVisual},
		},
		{
			name:    "defense without technical",
			vector:  features.Vector{Defense: true},
			include: []Stage{StageProprietary, StageKeywordRelevance},
			exclude: []Stage{StageTechnicalSpec},
		},
		{
			name:    "defense with technical",
			vector:  features.Vector{Defense: true, Technical: true},
			include: []Stage{StageProprietary, StageKeywordRelevance, StageTechnicalSpec},
		},
		{
			name:    "government branch",
			vector:  features.Vector{Government: true},
			include: []Stage{StageDocumentContext, StageGovernmentSource},
		},
		{
			name:    "marketing branch",
			vector:  features.Vector{Marketing: true},
			include: []Stage{StageMarketing},
		},
		{
			name:    "visual branch",
			vector:  features.Vector{Visual: true},
			include: []Stage{StageVisual},
		},
		{
			name:    "multi label",
			vector:  features.Vector{MultiLabel: true},
			include: []Stage{StageMultiLabel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := BuildPlan(tt.vector)
			for _, stage := range tt.include {
				assert.True(t, plan.Contains(stage), "missing %s", stage)
			}
			for _, stage := range tt.exclude {
				assert.False(t, plan.Contains(stage), "unexpected %s", stage)
			}
			// Backbone always survives branching.
			for _, stage := range []Stage{StagePreAnalysis, StageQuickSafety, StageClassification, StageEvidence, StageConfidence} {
				assert.True(t, plan.Contains(stage))
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	vector := features.Vector{PII: true, Government: true, MultiLabel: true, DocumentType: features.TypeGovernment}
	plan := BuildPlan(vector)
	in := RenderInput{
		Filename:   "roster.pdf",
		PageCount:  3,
		ImageCount: 1,
		Vector:     vector,
		Examples: []Example{
			{Category: category.Confidential, Summary: "employee roster", Indicators: []string{"employee id"}},
		},
		Enhancements: []string{"Documents with agency letterheads trend Confidential"},
	}

	first := plan.Render(in)
	second := plan.Render(in)
	assert.Equal(t, first, second)
}

func TestRenderSections(t *testing.T) {
	vector := features.Vector{Defense: true, Technical: true, DocumentType: features.TypeTechnicalDefense}
	plan := BuildPlan(vector)

	rendered := plan.Render(RenderInput{
		Filename:      "spec.pdf",
		PageCount:     10,
		ImageCount:    2,
		Vector:        vector,
		SegmentSignal: "Segment analysis found 2 Confidential segments",
		Enhancements:  []string{"Part numbers with export markings trend Highly Sensitive"},
	})

	assert.Contains(t, rendered, "Filename: spec.pdf")
	assert.Contains(t, rendered, "**DETECTED FEATURES:**")
	assert.Contains(t, rendered, "defense/military keywords")
	assert.Contains(t, rendered, "**SEGMENT ANALYSIS SIGNAL:**")
	assert.Contains(t, rendered, "**LEARNED CLASSIFICATION PATTERNS:**")
	assert.Contains(t, rendered, "ONLY valid JSON")

	for _, field := range RequiredReplyFields {
		assert.Contains(t, rendered, field)
	}

	// Steps appear in plan order.
	safetyIdx := strings.Index(rendered, "Quick Safety Check")
	decisionIdx := strings.Index(rendered, "Classification Decision")
	require.Greater(t, safetyIdx, 0)
	assert.Greater(t, decisionIdx, safetyIdx)
}

func TestParseStage(t *testing.T) {
	for _, s := range Stages() {
		got, err := ParseStage(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStage("mystery")
	assert.ErrorIs(t, err, ErrInvalidStage)
}
