package workflow

import (
	"context"
	"fmt"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/pkg/llm"
)

// verifierTemperature adds a little diversity to the secondary pass so it
// is not a carbon copy of the primary.
const verifierTemperature = 0.1

const verificationPreamble = `You are performing an independent verification pass. Analyze the document from scratch without assuming any prior classification is correct.`

// verify runs the secondary classification and settles the verdict: matching
// categories reach consensus, a disagreement is arbitrated, and a failed
// arbitration falls back to the more severe of the two drafts.
func verify(
	ctx context.Context,
	rt *Runtime,
	prompt string,
	in Input,
	primary draft,
	segments []Segment,
	images []ImageAnalysis,
	report func(string),
) verdict {
	secondary, err := classify(ctx, rt, rt.Verifier, verificationPreamble+"\n\n"+prompt, in, verifierTemperature)
	if err != nil {
		// A contract-violating secondary reply is not worth aborting a
		// completed primary pass; proceed without verification.
		rt.Logger.Warn("secondary classification unusable",
			"document_id", in.DocumentID,
			"error", err,
		)
		return verdict{
			Classification: primary.Classification,
			Confidence:     primary.Confidence,
			Notes:          "Secondary classification unusable, primary result stands",
		}
	}

	report(fmt.Sprintf(
		"Secondary classification: %s (%.0f%% confidence)",
		secondary.Classification, secondary.Confidence*100,
	))

	consensus := primary.Classification == secondary.Classification
	out := verdict{
		Classification:      primary.Classification,
		Confidence:          primary.Confidence,
		Secondary:           &secondary.Classification,
		SecondaryConfidence: &secondary.Confidence,
		Consensus:           &consensus,
	}

	if consensus {
		report("Consensus reached between both models")
		return out
	}

	report("Consensus not reached, running verification agent")
	arbitrated := arbitrate(ctx, rt, primary, secondary, segments, images)
	out.Classification = arbitrated.Classification
	out.Confidence = arbitrated.Confidence
	out.Notes = arbitrated.Notes

	report(fmt.Sprintf(
		"Verification: %s (%.0f%% confidence)",
		out.Classification, out.Confidence*100,
	))
	return out
}

type arbitration struct {
	Classification category.Category `json:"final_classification"`
	Confidence     float64           `json:"final_confidence"`
	Notes          string            `json:"notes"`
}

// arbitrate asks a verification agent to settle a disagreement between the
// two classifiers. When the agent itself cannot answer, the more severe of
// the two drafts wins at the lower confidence.
func arbitrate(
	ctx context.Context,
	rt *Runtime,
	primary, secondary draft,
	segments []Segment,
	images []ImageAnalysis,
) arbitration {
	prompt := arbitrationPrompt(primary, secondary, segments, images)

	reply, err := rt.Verifier.Complete(ctx, llm.Request{
		Messages:  llm.UserText(prompt),
		MaxTokens: 1024,
	})
	if err != nil {
		rt.Logger.Warn("verification agent failed, using conservative fallback", "error", err)
		return severityFallback(primary, secondary)
	}

	result, err := decode[arbitration](reply)
	if err != nil {
		rt.Logger.Warn("verification agent reply unparsable, using conservative fallback", "error", err)
		return severityFallback(primary, secondary)
	}
	return result
}

func arbitrationPrompt(primary, secondary draft, segments []Segment, images []ImageAnalysis) string {
	highlySensitive := 0
	confidential := 0
	for _, seg := range segments {
		switch seg.Classification {
		case category.HighlySensitive:
			highlySensitive++
		case category.Confidential:
			confidential++
		}
	}

	sensitiveVisuals := 0
	for _, img := range images {
		if img.SensitiveVisual {
			sensitiveVisuals++
		}
	}

	return fmt.Sprintf(`You are a verification agent. Two independent classifiers analyzed a document and disagreed.

Primary classification: %s (confidence: %.2f)
Secondary classification: %s (confidence: %.2f)

Additional context:
- Text segments classified: %d
- Highly Sensitive segments: %d
- Confidential segments: %d
- Images analyzed: %d
- Images with sensitive visuals: %d

Primary reasoning: %s
Secondary reasoning: %s

Review the evidence and make a final determination. Be scrutinizing and conservative.

Provide JSON:
{"final_classification": "Public|Confidential|Highly Sensitive|Unsafe", "final_confidence": 0.95, "notes": "Explanation of the final decision"}`,
		primary.Classification, primary.Confidence,
		secondary.Classification, secondary.Confidence,
		len(segments), highlySensitive, confidential,
		len(images), sensitiveVisuals,
		primary.Reasoning, secondary.Reasoning,
	)
}

// severityFallback picks the first category present among the two drafts in
// severity order and the lower of the two confidences.
func severityFallback(primary, secondary draft) arbitration {
	final := primary.Classification
	for _, cat := range category.BySeverity {
		if primary.Classification == cat || secondary.Classification == cat {
			final = cat
			break
		}
	}

	return arbitration{
		Classification: final,
		Confidence:     min(primary.Confidence, secondary.Confidence),
		Notes:          "Used conservative approach due to disagreement",
	}
}
