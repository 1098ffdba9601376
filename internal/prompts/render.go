package prompts

import (
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/features"
)

// RequiredReplyFields are the top-level fields every classification reply
// must carry. A reply missing any of them violates the output contract.
var RequiredReplyFields = []string{
	"classification",
	"confidence",
	"summary",
	"reasoning",
	"evidence",
	"safety_assessment",
}

// Example is a few-shot correction example surfaced from reviewer feedback.
type Example struct {
	Category    category.Category
	Summary     string
	Indicators  []string
	Instruction string
}

// RenderInput carries everything prompt assembly needs for one document.
type RenderInput struct {
	Filename   string
	PageCount  int
	ImageCount int
	Vector     features.Vector

	// SegmentSignal is set when per-segment analysis suggests sensitive
	// content and the decision stage should weigh it.
	SegmentSignal string
	// Examples are few-shot corrections, at most a couple per category.
	Examples []Example
	// Enhancements are learned-pattern hints from the correction ledger.
	Enhancements []string
}

var stageInstructions = map[Stage]string{
	StagePreAnalysis:      "Survey the document: identify its type, structure, intended audience, and overall subject before judging sensitivity.",
	StageQuickSafety:      "Screen for harmful content: violence, threats, hate speech, harassment, child safety violations, exploitative or criminal material. Personal data is NOT a safety concern.",
	StagePIIDetection:     "Locate personally identifiable information: names paired with identifiers, SSNs, contact details, financial or medical records.",
	StagePIISensitivity:   "Assess the sensitivity level of each piece of detected PII.",
	StageProprietary:      "Determine whether the document contains proprietary, defense-related, or export-controlled material.",
	StageKeywordRelevance: "For each sensitive keyword, score its relevance: 1.0 when the document IS that content, 0.5 when it works with the topic, 0.0 for passing mention.",
	StageTechnicalSpec:    "Analyze technical specifications, part numbers, and schematics for sensitivity.",
	StageDocumentContext:  "Classify the document context: internal, external, proprietary, public discussion, business, or news.",
	StageGovernmentSource: "Verify whether content originates from government sources (.gov domains, agency letterheads, official markings).",
	StageMarketing:        "Determine whether this is primarily marketing or promotional content intended for public distribution.",
	StageVisual:           "Analyze visual elements (seals, stamps, diagrams, photographs) for sensitive information.",
	StageClassification:   "Decide the single best classification: Public, Confidential, Highly Sensitive, or Unsafe.",
	StageEvidence:         "Extract supporting evidence with page citations and quotes for the classification.",
	StageMultiLabel:       "The document shows conflicting indicators. Record secondary characteristics as additional labels rather than forcing one dimension.",
	StageConfidence:       "Provide a confidence score between 0.0 and 1.0 for the classification.",
}

// Render assembles the complete system prompt: document context, detected
// features, the staged pipeline, few-shot examples, learned enhancements,
// and the strict JSON output contract.
func (p Plan) Render(in RenderInput) string {
	var b strings.Builder

	b.WriteString("**DOCUMENT ANALYSIS REQUEST**\n")
	fmt.Fprintf(&b, "Filename: %s\n", in.Filename)
	fmt.Fprintf(&b, "Pages: %d\n", in.PageCount)
	fmt.Fprintf(&b, "Images: %d\n\n", in.ImageCount)

	renderFeatures(&b, in.Vector)

	b.WriteString("**ANALYSIS PIPELINE:**\n")
	b.WriteString("Execute the following analysis steps in order:\n\n")

	for i, stage := range p.Stages {
		fmt.Fprintf(&b, "**Step %d: %s**\n", i+1, stageTitle(stage))
		b.WriteString(stageInstructions[stage])
		b.WriteString("\n\n")
	}

	if in.SegmentSignal != "" {
		fmt.Fprintf(&b, "**SEGMENT ANALYSIS SIGNAL:**\n%s\n\n", in.SegmentSignal)
	}

	renderExamples(&b, in.Examples)
	renderEnhancements(&b, in.Enhancements)
	renderContract(&b)

	return b.String()
}

func renderFeatures(b *strings.Builder, v features.Vector) {
	b.WriteString("**DETECTED FEATURES:**\n")
	if v.PII {
		b.WriteString("- Contains PII indicators (forms, personal data)\n")
	}
	if v.Defense {
		b.WriteString("- Contains defense/military keywords\n")
	}
	if v.Government {
		b.WriteString("- Contains government content markers\n")
	}
	if v.Technical {
		b.WriteString("- Contains technical specifications\n")
	}
	if v.Marketing {
		b.WriteString("- Contains marketing/promotional indicators\n")
	}
	fmt.Fprintf(b, "- Document type: %s\n", v.DocumentType)
	fmt.Fprintf(b, "- Sensitivity score: %.0f\n\n", v.SensitivityScore)
}

func renderExamples(b *strings.Builder, examples []Example) {
	if len(examples) == 0 {
		return
	}

	b.WriteString("**REVIEWED EXAMPLES FROM HUMAN CORRECTIONS:**\n")
	for _, ex := range examples {
		fmt.Fprintf(b, "- Correct classification: %s\n", ex.Category)
		if ex.Summary != "" {
			fmt.Fprintf(b, "  Document: %s\n", ex.Summary)
		}
		if len(ex.Indicators) > 0 {
			fmt.Fprintf(b, "  Key indicators: %s\n", strings.Join(ex.Indicators, ", "))
		}
		if ex.Instruction != "" {
			fmt.Fprintf(b, "  Guidance: %s\n", ex.Instruction)
		}
	}
	b.WriteString("\n")
}

func renderEnhancements(b *strings.Builder, enhancements []string) {
	if len(enhancements) == 0 {
		return
	}

	b.WriteString("**LEARNED CLASSIFICATION PATTERNS:**\n")
	for _, e := range enhancements {
		fmt.Fprintf(b, "- %s\n", e)
	}
	b.WriteString("\n")
}

func renderContract(b *strings.Builder) {
	divider := strings.Repeat("=", 80)

	b.WriteString(divider + "\n")
	b.WriteString("**CRITICAL OUTPUT REQUIREMENT**\n")
	b.WriteString(divider + "\n\n")
	b.WriteString("You MUST respond with ONLY valid JSON. No additional text before or after.\n")
	b.WriteString("Do NOT include explanations, analysis steps, or commentary outside the JSON.\n\n")
	b.WriteString("**REQUIRED JSON FORMAT:**\n")
	b.WriteString(`{
  "classification": "Public|Confidential|Highly Sensitive|Unsafe",
  "additional_labels": ["Optional tags such as 'Government Content'"],
  "confidence": 0.95,
  "summary": "Brief 2-3 sentence summary",
  "reasoning": "Detailed explanation referencing specific findings",
  "evidence": [
    {
      "page": 1,
      "region": "Description of location",
      "quote": "Relevant quote",
      "reasoning": "Why this supports the classification"
    }
  ],
  "safety_assessment": {
    "is_safe": true,
    "flags": ["Safe"],
    "details": "Safety assessment explanation",
    "confidence": 0.98
  }
}
`)
	fmt.Fprintf(b, "\nEvery field of %s is required.\n", strings.Join(RequiredReplyFields, ", "))
	b.WriteString("START YOUR RESPONSE WITH THE OPENING BRACE { AND END WITH THE CLOSING BRACE }\n")
	b.WriteString(divider + "\n")
}

func stageTitle(stage Stage) string {
	words := strings.Split(string(stage), "_")
	for i, w := range words {
		if w == "pii" {
			words[i] = "PII"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
