package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/prompts"
	"github.com/wardenhq/warden/pkg/llm"
)

// Supporting analysis stages. Each tolerates failure: a stage that cannot
// complete returns its zero value and the pipeline continues without it.

const quickSafetyPrompt = `Perform a QUICK safety scan of this document for CRITICAL violations ONLY:

Check ONLY for:
1. Child safety violations (any content harmful to minors)
2. Explicit hate speech (slurs, hate group content)
3. Graphic violence or gore
4. Explicit illegal activity instructions

Important:
- This is a BASIC scan - only flag OBVIOUS critical violations
- DO NOT flag business documents, contracts, or forms
- DO NOT flag technical content or industry jargon
- DO NOT flag documents just because they contain sensitive data (SSN, etc.)
- Classified government or defense documents are NOT unsafe - they are sensitive

Return JSON:
{"is_unsafe": false, "note": "No critical safety violations found"}

OR if unsafe:
{"is_unsafe": true, "quick_flag": "Child Safety Violation|Hate Speech|Violence|Criminal Activity", "severity": "Critical", "evidence": "Brief description"}`

const segmentPrompt = `Analyze the following text and identify segments with different sensitivity levels.
Break the text into meaningful segments (sentences, paragraphs, or sections) and classify each.

For each segment provide the exact text, a classification (Public, Confidential, Highly Sensitive, or Unsafe), a confidence between 0.0 and 1.0, the keywords that triggered the classification, and brief reasoning.

Provide output as a JSON array:
[{"text": "segment text", "classification": "Public|Confidential|Highly Sensitive|Unsafe", "confidence": 0.95, "keywords": ["ssn"], "reasoning": "Contains SSN"}]`

const imagePrompt = `Analyze this image for sensitive content:

1. OCR: extract any visible text
2. Visual elements: identify seals, logos, stamps, signatures, official marks
3. Classification: Public, Confidential, Highly Sensitive, or Unsafe
4. Reasoning: explain why

Look for:
- Government seals or logos: Highly Sensitive
- Official stamps: Highly Sensitive
- Signatures: Confidential
- Personal photos: Confidential
- Charts or graphs with sensitive data: Confidential
- Public information: Public

Provide JSON output:
{"ocr_text": "extracted text or null", "classification": "Public|Confidential|Highly Sensitive|Unsafe", "confidence": 0.95, "contains_sensitive_visual": true, "visual_elements": ["government seal"], "reasoning": "explanation", "keywords": ["keyword"]}`

const contextPrompt = `Determine whether this document IS proprietary content or merely DISCUSSES such topics publicly.

Classify the context as one of: INTERNAL_DOCUMENT, EXTERNAL_COMMUNICATION, PROPRIETARY_CONTENT, PUBLIC_DISCUSSION, BUSINESS_DOCUMENT, NEWS_EDUCATIONAL.

Provide JSON output:
{"context_type": "PUBLIC_DISCUSSION", "intended_audience": "general public", "content_purpose": "educational", "is_proprietary": false, "confidence": 0.9, "reasoning": "explanation"}`

const keywordPrompt = `For each sensitive, defense-related, or government keyword in the document, score how strongly the document relates to it: 1.0 when the document IS that content, around 0.5 when the document works with the topic, 0.0 for a passing mention.

Provide output as a JSON array:
[{"keyword": "term", "relevance_score": 0.9, "context_window": "surrounding text", "relationship_type": "IS|WORKS_WITH|MENTIONS", "page": 1, "reasoning": "explanation"}]`

type quickFlag struct {
	Unsafe   bool   `json:"is_unsafe"`
	Flag     string `json:"quick_flag"`
	Severity string `json:"severity"`
	Evidence string `json:"evidence"`
}

// quickSafety scans the opening of the document for obvious critical
// violations. Returns nil when the document is safe to classify, and also
// on any stage failure: a broken scan never blocks classification.
func quickSafety(ctx context.Context, rt *Runtime, text string) *quickFlag {
	prompt := fmt.Sprintf("%s\n\nDocument text:\n%s", quickSafetyPrompt, truncate(text, quickScanLimit))

	reply, err := rt.Primary.Complete(ctx, llm.Request{
		Messages:  llm.UserText(prompt),
		MaxTokens: 512,
	})
	if err != nil {
		rt.Logger.Warn("quick safety check failed, continuing", "error", err)
		return nil
	}

	flag, err := decode[quickFlag](reply)
	if err != nil {
		rt.Logger.Warn("quick safety reply unparsable, continuing", "error", err)
		return nil
	}

	if !flag.Unsafe {
		return nil
	}
	return &flag
}

func analyzeSegments(ctx context.Context, rt *Runtime, text string) []Segment {
	if text == "" {
		return nil
	}

	prompt := fmt.Sprintf("%s\n\nText to analyze:\n%s", segmentPrompt, truncate(text, segmentTextLimit))

	reply, err := rt.Primary.Complete(ctx, llm.Request{Messages: llm.UserText(prompt)})
	if err != nil {
		rt.Logger.Warn("segment analysis failed, continuing", "error", err)
		return nil
	}

	parsed, err := decodeArray[Segment](reply)
	if err != nil {
		rt.Logger.Warn("segment reply unparsable, continuing", "error", err)
		return nil
	}

	if len(parsed) > maxSegments {
		parsed = parsed[:maxSegments]
	}

	segments := make([]Segment, 0, len(parsed))
	for i, seg := range parsed {
		locateSegment(&seg, text, i)
		segments = append(segments, seg)
	}
	return segments
}

// locateSegment fills position fields by finding the segment text in the
// document. Pages are estimated at roughly 2000 characters each.
func locateSegment(seg *Segment, text string, index int) {
	pos := -1
	if seg.Text != "" {
		pos = strings.Index(text, seg.Text)
	}
	if pos == -1 {
		seg.StartChar = index * 100
		seg.EndChar = index*100 + 50
		seg.Page = 1
		return
	}

	seg.StartChar = pos
	seg.EndChar = pos + len(seg.Text)
	seg.Page = min(pos/2000+1, 100)
}

func analyzeImages(ctx context.Context, rt *Runtime, images []Image) []ImageAnalysis {
	if len(images) > maxImageAnalyses {
		images = images[:maxImageAnalyses]
	}

	analyses := make([]ImageAnalysis, 0, len(images))
	for i, img := range images {
		analysis, err := analyzeImage(ctx, rt, img)
		if err != nil {
			rt.Logger.Warn("image analysis failed", "image", i, "error", err)
			analysis = ImageAnalysis{
				Classification: category.Public,
				Confidence:     0.5,
				Reasoning:      "Image analysis failed",
			}
		}

		analysis.Index = i
		analysis.Page = i + 1
		analyses = append(analyses, analysis)
	}
	return analyses
}

func analyzeImage(ctx context.Context, rt *Runtime, img Image) (ImageAnalysis, error) {
	reply, err := rt.Primary.Complete(ctx, llm.Request{
		Messages: []llm.Message{{
			Role: "user",
			Content: []llm.Content{
				llm.ImageContent(img.MediaType, img.Data),
				llm.TextContent(imagePrompt),
			},
		}},
		MaxTokens: 2048,
	})
	if err != nil {
		return ImageAnalysis{}, err
	}

	return decode[ImageAnalysis](reply)
}

// analyzeContext never returns nil: when the call fails the document is
// treated as public discussion at low confidence.
func analyzeContext(ctx context.Context, rt *Runtime, text string) *DocumentContext {
	fallback := &DocumentContext{
		ContextType:      "PUBLIC_DISCUSSION",
		IntendedAudience: "Unknown",
		ContentPurpose:   "educational",
		Confidence:       0.3,
		Reasoning:        "Context analysis failed, defaulting to public discussion",
	}

	prompt := fmt.Sprintf("%s\n\nDocument to analyze:\n%s", contextPrompt, truncate(text, contextTextLimit))

	reply, err := rt.Primary.Complete(ctx, llm.Request{Messages: llm.UserText(prompt), MaxTokens: 2048})
	if err != nil {
		rt.Logger.Warn("document context analysis failed, continuing", "error", err)
		return fallback
	}

	docContext, err := decode[DocumentContext](reply)
	if err != nil {
		rt.Logger.Warn("document context reply unparsable, continuing", "error", err)
		return fallback
	}
	return &docContext
}

func scoreKeywords(ctx context.Context, rt *Runtime, text string) []KeywordRelevance {
	if text == "" {
		return nil
	}

	prompt := fmt.Sprintf("%s\n\nDocument text to analyze:\n%s", keywordPrompt, truncate(text, keywordTextLimit))

	reply, err := rt.Primary.Complete(ctx, llm.Request{Messages: llm.UserText(prompt)})
	if err != nil {
		rt.Logger.Warn("keyword relevance scoring failed, continuing", "error", err)
		return nil
	}

	scored, err := decodeArray[KeywordRelevance](reply)
	if err != nil {
		rt.Logger.Warn("keyword relevance reply unparsable, continuing", "error", err)
		return nil
	}

	if len(scored) > maxKeywordScores {
		scored = scored[:maxKeywordScores]
	}
	return scored
}

// fewShotExamples gathers reviewer-settled examples for every category and
// converts them to prompt examples.
func fewShotExamples(ctx context.Context, rt *Runtime) ([]prompts.Example, error) {
	var examples []prompts.Example

	for _, cat := range category.Categories() {
		learned, err := rt.Learner.FewShot(ctx, cat, examplesPerCat)
		if err != nil {
			return nil, err
		}

		for _, ex := range learned {
			examples = append(examples, prompts.Example{
				Category:    ex.Classification,
				Summary:     ex.Filename,
				Instruction: ex.Reasoning,
			})
		}
	}

	return examples, nil
}
