// Package workflow orchestrates the classification pipeline for one
// document: quick safety scan, granular segment and image analysis, adaptive
// prompt assembly, primary classification, dual verification with consensus
// arbitration, learned-rule overrides, and the human-review assessment.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/features"
	"github.com/wardenhq/warden/internal/learning"
	"github.com/wardenhq/warden/internal/progress"
	"github.com/wardenhq/warden/internal/prompts"
	"github.com/wardenhq/warden/pkg/llm"
)

// fastPathThreshold is the adjusted primary confidence above which the
// verification stages are skipped entirely.
const fastPathThreshold = 0.98

// quickScanConfidence is reported on the quick-exit path; the scan only
// flags obvious critical violations, so the confidence is fixed and high.
const quickScanConfidence = 0.95

const (
	quickScanLimit   = 5000
	segmentTextLimit = 15000
	contextTextLimit = 10000
	keywordTextLimit = 15000
	overridePreview  = 2000
	maxSegments      = 50
	maxImageAnalyses = 10
	maxKeywordScores = 20
	examplesPerCat   = 2
)

// Runtime bundles the dependencies the pipeline stages require. It is
// constructed by higher-level composition code from infrastructure and
// domain systems.
type Runtime struct {
	Primary  llm.Client
	Verifier llm.Client
	Detector *features.Detector
	Learner  learning.System
	Logger   *slog.Logger
}

// Input is one document prepared for classification: extracted text, page
// images, and intake metadata.
type Input struct {
	DocumentID uuid.UUID
	Filename   string
	Text       string
	Images     []Image
	PageCount  int
	ImageCount int

	// DualVerification enables the secondary classification pass. The
	// fast path still skips it when the primary confidence is very high.
	DualVerification bool
}

// Image is a base64-encoded page or embedded image.
type Image struct {
	MediaType string
	Data      string
}

// Execute runs the full pipeline for one document. Progress updates are
// published to session when one is provided; a nil session is valid. LLM
// transport failures degrade to a conservative fallback draft; a reply that
// violates the output contract aborts the run.
func Execute(ctx context.Context, rt *Runtime, in Input, session *progress.Session) (*Result, error) {
	start := time.Now()
	publish := reporter(session)

	// Every reported step is also retained on the result.
	var steps []string
	report := func(message string) {
		steps = append(steps, message)
		publish(message)
	}

	report("Starting comprehensive safety scan")
	if quick := quickSafety(ctx, rt, in.Text); quick != nil {
		report(fmt.Sprintf("Unsafe content detected: %s", quick.Flag))
		report("Early exit, classification complete")
		return quickExitResult(rt, in, quick, steps, start), nil
	}
	report("Safety scan complete, no critical violations")

	preview := features.Preview(in.Text)
	vector := rt.Detector.Detect(in.Filename, preview, in.ImageCount)
	plan := prompts.BuildPlan(vector)

	report("Analyzing text segments")
	segments := analyzeSegments(ctx, rt, in.Text)
	report(fmt.Sprintf("Analyzed %d text segments", len(segments)))

	// Every embedded image is analyzed; the visual prompt branch is gated
	// separately by the detected feature vector.
	var images []ImageAnalysis
	if len(in.Images) > 0 {
		report("Analyzing images")
		images = analyzeImages(ctx, rt, in.Images)
		report(fmt.Sprintf("Analyzed %d images", len(images)))
	}

	signal := aggregateSegments(segments)
	if signal.SuggestsSensitive {
		report(fmt.Sprintf(
			"Sensitive segments detected: %d Confidential, %d Highly Sensitive",
			signal.Confidential, signal.HighlySensitive,
		))
	}

	report("Classifying document context")
	docContext := analyzeContext(ctx, rt, in.Text)

	report("Scoring keyword relevance")
	relevances := scoreKeywords(ctx, rt, in.Text)
	report(fmt.Sprintf("Scored %d keywords", len(relevances)))

	report("Checking learned patterns from reviewer feedback")
	examples, err := fewShotExamples(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("load few-shot examples: %w", err)
	}

	enhancements, err := rt.Learner.Enhancements(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prompt enhancements: %w", err)
	}

	prompt := plan.Render(prompts.RenderInput{
		Filename:      in.Filename,
		PageCount:     in.PageCount,
		ImageCount:    in.ImageCount,
		Vector:        vector,
		SegmentSignal: signal.Describe(),
		Examples:      examples,
		Enhancements:  enhancements,
	})

	report("Running primary classification")
	primary, err := classify(ctx, rt, rt.Primary, prompt, in, 0)
	if err != nil {
		return nil, err
	}

	adj, err := rt.Learner.AdjustConfidence(
		ctx,
		learning.Subject{Filename: in.Filename, Preview: preview},
		primary.Classification, primary.Confidence,
	)
	if err != nil {
		return nil, fmt.Errorf("adjust confidence: %w", err)
	}
	if adj.Confidence != primary.Confidence {
		rt.Logger.Info("confidence adjusted from feedback history",
			"document_id", in.DocumentID,
			"from", primary.Confidence,
			"to", adj.Confidence,
			"reason", adj.ReviewReason,
		)
	}
	primary.Confidence = adj.Confidence
	report(fmt.Sprintf(
		"Primary classification: %s (%.0f%% confidence)",
		primary.Classification, primary.Confidence*100,
	))

	final := verdict{
		Classification: primary.Classification,
		Confidence:     primary.Confidence,
	}

	switch {
	case primary.Confidence > fastPathThreshold:
		report("Very high confidence, skipping verification")
		final.Notes = fmt.Sprintf(
			"Skipped verification due to very high primary confidence (%.0f%%)",
			primary.Confidence*100,
		)

	case !in.DualVerification:
		final.Notes = "Dual verification disabled for this run"

	default:
		report("Running dual verification")
		final = verify(ctx, rt, prompt, in, primary, segments, images, report)
	}

	report("Extracting keywords")
	keywords := collectKeywords(segments, images, primary.Evidence)

	override, err := rt.Learner.ApplyOverride(
		ctx,
		learning.Subject{
			Filename: in.Filename,
			Preview:  truncate(in.Text, overridePreview),
			Keywords: keywords,
		},
		final.Classification, final.Confidence,
	)
	if err != nil {
		return nil, fmt.Errorf("apply learned override: %w", err)
	}
	if override != nil {
		report(fmt.Sprintf(
			"Learned rule applied: %s -> %s",
			final.Classification, override.Classification,
		))
		final.Classification = override.Classification
		final.Confidence = override.Confidence
		final.Notes = joinNotes(final.Notes, "Learned rule applied: "+override.Reason)
	}

	report("Assessing human review requirements")
	requiresReview, reviewReason := assessReview(primary, final.Secondary, final.Consensus, segments, images)
	if adj.NeedsReview {
		requiresReview = true
		reviewReason = joinNotes(reviewReason, adj.ReviewReason)
	}
	if requiresReview {
		report("Requires human review: " + reviewReason)
	} else {
		report("No human review required")
	}

	result := assemble(rt, in, primary, final, resultDetail{
		Segments:   segments,
		Images:     images,
		Context:    docContext,
		Relevances: relevances,
		Keywords:   keywords,
	}, requiresReview, reviewReason, start)

	report(fmt.Sprintf("Classification complete in %.2fs", result.ProcessingTime.Seconds()))
	result.Steps = steps
	return result, nil
}

type resultDetail struct {
	Segments   []Segment
	Images     []ImageAnalysis
	Context    *DocumentContext
	Relevances []KeywordRelevance
	Keywords   []string
}

// assemble builds the final result, applying the safety override last: an
// unsafe assessment forces the Unsafe category and preserves the model's
// category as an additional label.
func assemble(
	rt *Runtime,
	in Input,
	primary draft,
	final verdict,
	detail resultDetail,
	requiresReview bool,
	reviewReason string,
	start time.Time,
) *Result {
	classification := final.Classification
	confidence := final.Confidence
	labels := primary.AdditionalLabels

	if !primary.Safety.IsSafe {
		label := "Content Type: " + string(classification)
		if !slices.Contains(labels, label) {
			labels = append(labels, label)
		}
		classification = category.Unsafe
		confidence = primary.Safety.Confidence
	}

	return &Result{
		DocumentID:          in.DocumentID,
		Filename:            in.Filename,
		Classification:      classification,
		AdditionalLabels:    labels,
		Confidence:          confidence,
		Summary:             primary.Summary,
		Reasoning:           primary.Reasoning,
		Evidence:            primary.Evidence,
		Safety:              primary.Safety,
		PageCount:           in.PageCount,
		ImageCount:          in.ImageCount,
		Segments:            detail.Segments,
		Images:              detail.Images,
		Context:             detail.Context,
		KeywordRelevances:   detail.Relevances,
		Keywords:            detail.Keywords,
		Secondary:           final.Secondary,
		SecondaryConfidence: final.SecondaryConfidence,
		Consensus:           final.Consensus,
		VerificationNotes:   final.Notes,
		RequiresReview:      requiresReview,
		ReviewReason:        reviewReason,
		Model:               rt.Primary.Model(),
		ProcessingTime:      time.Since(start),
		CompletedAt:         time.Now(),
	}
}

func quickExitResult(rt *Runtime, in Input, quick *quickFlag, steps []string, start time.Time) *Result {
	flags := []string{quick.Flag}
	if quick.Flag == "" {
		flags = []string{"Violence"}
	}

	return &Result{
		DocumentID:       in.DocumentID,
		Filename:         in.Filename,
		Classification:   category.Unsafe,
		AdditionalLabels: []string{"Safety Violation"},
		Confidence:       quickScanConfidence,
		Summary:          "Document flagged as unsafe: " + quick.Flag,
		Reasoning: fmt.Sprintf(
			"Quick safety scan detected: %s. Severity: %s",
			quick.Evidence, quick.Severity,
		),
		Evidence: []Evidence{{
			Region:    "Preliminary scan",
			Quote:     truncate(quick.Evidence, 100),
			Reasoning: "Flagged by quick safety check as " + quick.Flag,
		}},
		Safety: safetyVerdict(flags, fmt.Sprintf(
			"Quick preliminary scan detected %s. %s", quick.Flag, quick.Evidence,
		), rt.Logger),
		PageCount:      in.PageCount,
		ImageCount:     in.ImageCount,
		Steps:          steps,
		RequiresReview: true,
		ReviewReason:   "Quick safety check flagged: " + quick.Flag,
		Model:          rt.Primary.Model(),
		ProcessingTime: time.Since(start),
		CompletedAt:    time.Now(),
	}
}

func reporter(session *progress.Session) func(string) {
	if session == nil {
		return func(string) {}
	}
	return session.Publish
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

func joinNotes(existing, addition string) string {
	if existing == "" {
		return addition
	}
	if addition == "" {
		return existing
	}
	return existing + "; " + addition
}
