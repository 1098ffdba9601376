package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/prompts"
	"github.com/wardenhq/warden/internal/safety"
	"github.com/wardenhq/warden/pkg/formatting"
	"github.com/wardenhq/warden/pkg/llm"
)

// draft is one model's parsed classification reply, before consensus and
// overrides settle the final verdict.
type draft struct {
	Classification   category.Category
	Confidence       float64
	Summary          string
	Reasoning        string
	Evidence         []Evidence
	Safety           safety.Assessment
	AdditionalLabels []string
}

// verdict is the settled classification after the verification stages.
type verdict struct {
	Classification      category.Category
	Confidence          float64
	Secondary           *category.Category
	SecondaryConfidence *float64
	Consensus           *bool
	Notes               string
}

// wireDraft matches the reply contract. Safety flags arrive as free-form
// strings and the confidence may be absent, so both decode loosely before
// normalization.
type wireDraft struct {
	Classification    category.Category `json:"classification"`
	Confidence        float64           `json:"confidence"`
	Summary           string            `json:"summary"`
	Reasoning         string            `json:"reasoning"`
	Evidence          []Evidence        `json:"evidence"`
	Safety            wireAssessment    `json:"safety_assessment"`
	AdditionalLabels  []string          `json:"additional_labels"`
	GovernmentContent bool              `json:"government_content_detected"`
}

type wireAssessment struct {
	IsSafe     bool     `json:"is_safe"`
	Flags      []string `json:"flags"`
	Details    string   `json:"details"`
	Confidence *float64 `json:"confidence"`
}

// classify sends one classification request and parses the reply. Transport
// failures degrade to the conservative fallback draft; a reply violating
// the output contract is a fatal error.
func classify(
	ctx context.Context,
	rt *Runtime,
	client llm.Client,
	prompt string,
	in Input,
	temperature float64,
) (draft, error) {
	content := []llm.Content{
		llm.TextContent("DOCUMENT CONTENT:\n\n" + in.Text),
	}
	for _, img := range in.Images {
		content = append(content, llm.ImageContent(img.MediaType, img.Data))
	}

	reply, err := client.Complete(ctx, llm.Request{
		System:      prompt,
		Messages:    []llm.Message{{Role: "user", Content: content}},
		Temperature: temperature,
	})
	if err != nil {
		rt.Logger.Warn("classification call failed, using fallback draft",
			"document_id", in.DocumentID,
			"error", err,
		)
		return fallbackDraft(err), nil
	}

	return parseDraft(reply, rt.Logger)
}

// parseDraft decodes a classification reply and enforces the output
// contract: every required field present, a parsable category, and a
// normalized, contradiction-free safety assessment.
func parseDraft(reply string, logger *slog.Logger) (draft, error) {
	raw, err := extractObject(reply)
	if err != nil {
		return draft{}, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return draft{}, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	for _, field := range prompts.RequiredReplyFields {
		if _, ok := fields[field]; !ok {
			return draft{}, fmt.Errorf("%w: missing required field %q", ErrContractViolation, field)
		}
	}

	var wire wireDraft
	if err := json.Unmarshal(raw, &wire); err != nil {
		return draft{}, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}

	labels := wire.AdditionalLabels
	if wire.GovernmentContent && !slices.Contains(labels, "Government Content") {
		labels = append(labels, "Government Content")
	}

	confidence := 0.95
	if wire.Safety.Confidence != nil {
		confidence = *wire.Safety.Confidence
	}

	assessment := safety.Validate(safety.Assessment{
		IsSafe:     wire.Safety.IsSafe,
		Flags:      safety.NormalizeFlags(wire.Safety.Flags, logger),
		Details:    wire.Safety.Details,
		Confidence: confidence,
	}, logger)

	return draft{
		Classification:   wire.Classification,
		Confidence:       wire.Confidence,
		Summary:          wire.Summary,
		Reasoning:        wire.Reasoning,
		Evidence:         wire.Evidence,
		Safety:           assessment,
		AdditionalLabels: labels,
	}, nil
}

// fallbackDraft is the conservative result used when a model call cannot be
// completed: Confidential at zero confidence, flagged for manual review by
// the assessment stage, with a safe assessment at half confidence.
func fallbackDraft(cause error) draft {
	return draft{
		Classification: category.Confidential,
		Confidence:     0.0,
		Summary:        "Classification failed - manual review required",
		Reasoning:      fmt.Sprintf("Error during classification: %v", cause),
		Evidence: []Evidence{{
			Region:    "N/A",
			Quote:     "Classification error",
			Reasoning: "Automated classification failed, defaulting to Confidential",
		}},
		Safety: safety.Assessment{
			IsSafe:     true,
			Flags:      []safety.Flag{safety.FlagSafe},
			Details:    "Could not complete safety assessment due to error - defaulting to safe",
			Confidence: 0.5,
		},
	}
}

// safetyVerdict builds the assessment for a quick-exit result. The verdict
// passes through Validate so an unrecognized raw flag, which normalizes to
// Safe, cannot produce an unsafe assessment carrying only the Safe flag.
func safetyVerdict(flags []string, details string, logger *slog.Logger) safety.Assessment {
	return safety.Validate(safety.Assessment{
		IsSafe:     false,
		Flags:      safety.NormalizeFlags(flags, logger),
		Details:    details,
		Confidence: quickScanConfidence,
	}, logger)
}

// extractObject returns the JSON object in reply: the whole trimmed reply
// when it is bare JSON, the fenced block when markdown-wrapped, otherwise
// the outermost brace-delimited span.
func extractObject(reply string) ([]byte, error) {
	return extractSpan(reply, '{', '}')
}

// extractArray behaves like extractObject for JSON arrays.
func extractArray(reply string) ([]byte, error) {
	return extractSpan(reply, '[', ']')
}

func extractSpan(reply string, open, closing byte) ([]byte, error) {
	if raw, err := formatting.Parse[json.RawMessage](reply); err == nil {
		return raw, nil
	}

	start := strings.IndexByte(reply, open)
	end := strings.LastIndexByte(reply, closing)
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON found in reply")
	}

	return []byte(reply[start : end+1]), nil
}

// decode extracts and unmarshals the JSON object in reply.
func decode[T any](reply string) (T, error) {
	var out T

	raw, err := extractObject(reply)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

// decodeArray extracts and unmarshals the JSON array in reply.
func decodeArray[T any](reply string) ([]T, error) {
	raw, err := extractArray(reply)
	if err != nil {
		return nil, err
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
