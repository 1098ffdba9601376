package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/features"
	"github.com/wardenhq/warden/internal/learning"
	"github.com/wardenhq/warden/internal/safety"
	"github.com/wardenhq/warden/pkg/llm"
)

const primaryReply = `{
	"classification": "Confidential",
	"confidence": 0.9,
	"summary": "Internal vendor contract",
	"reasoning": "Contains pricing terms",
	"evidence": [{"page": 1, "region": "body", "quote": "pricing", "reasoning": "terms", "keywords": ["pricing"]}],
	"safety_assessment": {"is_safe": true, "flags": ["Safe"], "details": "No harmful content", "confidence": 0.97}
}`

const segmentsReply = `[
	{"text": "alpha section", "classification": "Confidential", "confidence": 0.9, "keywords": ["alpha"], "reasoning": "internal"},
	{"text": "beta section", "classification": "Confidential", "confidence": 0.8, "keywords": ["beta"], "reasoning": "internal"}
]`

const contextReply = `{"context_type": "BUSINESS_DOCUMENT", "intended_audience": "internal", "content_purpose": "operations", "is_proprietary": true, "confidence": 0.8, "reasoning": "contract"}`

type fakeClient struct {
	model string
	calls []llm.Request
	route func(req llm.Request) (string, error)
}

func (f *fakeClient) Model() string { return f.model }

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls = append(f.calls, req)
	return f.route(req)
}

func requestText(req llm.Request) string {
	var b strings.Builder
	for _, msg := range req.Messages {
		for _, c := range msg.Content {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// script answers the supporting stages with fixed replies and dispatches
// the classification passes to the supplied handlers.
func script(primary, secondary func() (string, error)) func(llm.Request) (string, error) {
	return func(req llm.Request) (string, error) {
		text := requestText(req)
		switch {
		case strings.Contains(text, "QUICK safety scan"):
			return `{"is_unsafe": false, "note": "No critical safety violations found"}`, nil
		case strings.Contains(text, "identify segments"):
			return segmentsReply, nil
		case strings.Contains(text, "IS proprietary content"):
			return contextReply, nil
		case strings.Contains(text, "relevance_score"):
			return `[]`, nil
		case strings.Contains(text, "verification agent"):
			return "", fmt.Errorf("no arbitration scripted")
		case strings.Contains(req.System, "independent verification pass"):
			return secondary()
		case strings.Contains(req.System, "DOCUMENT ANALYSIS REQUEST"):
			return primary()
		}
		return "", fmt.Errorf("unscripted request")
	}
}

func reply(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

type stubLearner struct {
	adjust         func(cat category.Category, confidence float64) learning.Adjustment
	overrideResult *learning.Override
}

func (s *stubLearner) Bind(learning.ReviewSink) {}

func (s *stubLearner) Record(context.Context, learning.Review) (*learning.Entry, error) {
	return nil, nil
}

func (s *stubLearner) Entries(context.Context) ([]learning.Entry, error) { return nil, nil }

func (s *stubLearner) Queue(context.Context) ([]learning.QueueItem, error) { return nil, nil }

func (s *stubLearner) Stats(context.Context) (*learning.Stats, error) { return nil, nil }

func (s *stubLearner) Patterns(context.Context) (*learning.Patterns, error) { return nil, nil }

func (s *stubLearner) AdjustConfidence(
	_ context.Context,
	_ learning.Subject,
	cat category.Category,
	confidence float64,
) (learning.Adjustment, error) {
	if s.adjust != nil {
		return s.adjust(cat, confidence), nil
	}
	return learning.Adjustment{Confidence: confidence}, nil
}

func (s *stubLearner) ApplyOverride(
	context.Context, learning.Subject, category.Category, float64,
) (*learning.Override, error) {
	return s.overrideResult, nil
}

func (s *stubLearner) FewShot(context.Context, category.Category, int) ([]learning.Example, error) {
	return nil, nil
}

func (s *stubLearner) Enhancements(context.Context) ([]string, error) { return nil, nil }

func (s *stubLearner) Handler() *learning.Handler { return nil }

func newRuntime(t *testing.T, client llm.Client, learner learning.System) *Runtime {
	t.Helper()

	detector, err := features.NewDetector(features.Default())
	require.NoError(t, err)

	return &Runtime{
		Primary:  client,
		Verifier: client,
		Detector: detector,
		Learner:  learner,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func testInput() Input {
	return Input{
		DocumentID:       uuid.New(),
		Filename:         "vendor-contract.pdf",
		Text:             "alpha section beta section with pricing terms",
		PageCount:        2,
		DualVerification: true,
	}
}

func TestExecuteConsensus(t *testing.T) {
	client := &fakeClient{
		model: "primary-model",
		route: script(reply(primaryReply), reply(primaryReply)),
	}
	rt := newRuntime(t, client, &stubLearner{})

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, category.Confidential, result.Classification)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	require.NotNil(t, result.Consensus)
	assert.True(t, *result.Consensus)
	require.NotNil(t, result.Secondary)
	assert.Equal(t, category.Confidential, *result.Secondary)
	assert.False(t, result.RequiresReview)
	assert.Equal(t, "primary-model", result.Model)

	// Keywords gathered from segments and evidence, deduplicated.
	assert.ElementsMatch(t, []string{"alpha", "beta", "pricing"}, result.Keywords)

	require.NotNil(t, result.Context)
	assert.Equal(t, "BUSINESS_DOCUMENT", result.Context.ContextType)
	assert.Len(t, result.Segments, 2)

	// Progress steps are retained on the result in publish order.
	require.NotEmpty(t, result.Steps)
	assert.Equal(t, "Starting comprehensive safety scan", result.Steps[0])
	assert.Contains(t, result.Steps, "Consensus reached between both models")
}

func TestExecuteQuickSafetyExit(t *testing.T) {
	client := &fakeClient{route: func(req llm.Request) (string, error) {
		if strings.Contains(requestText(req), "QUICK safety scan") {
			return `{"is_unsafe": true, "quick_flag": "Hate Speech", "severity": "Critical", "evidence": "slur in opening paragraph"}`, nil
		}
		return "", fmt.Errorf("no further calls expected")
	}}
	rt := newRuntime(t, client, &stubLearner{})

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, category.Unsafe, result.Classification)
	assert.InDelta(t, quickScanConfidence, result.Confidence, 1e-9)
	assert.Contains(t, result.AdditionalLabels, "Safety Violation")
	assert.True(t, result.RequiresReview)
	assert.Contains(t, result.ReviewReason, "Hate Speech")
	assert.False(t, result.Safety.IsSafe)
	assert.Equal(t, []safety.Flag{safety.FlagHateSpeech}, result.Safety.Flags)

	// Everything after the scan is skipped.
	assert.Len(t, client.calls, 1)
}

func TestExecuteQuickSafetyExitUnknownFlag(t *testing.T) {
	client := &fakeClient{route: func(req llm.Request) (string, error) {
		if strings.Contains(requestText(req), "QUICK safety scan") {
			return `{"is_unsafe": true, "quick_flag": "Questionable Vibes", "severity": "Critical", "evidence": "odd content"}`, nil
		}
		return "", fmt.Errorf("no further calls expected")
	}}
	rt := newRuntime(t, client, &stubLearner{})

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	// The unrecognized flag normalizes to Safe and validation repairs the
	// verdict: never unsafe with only the Safe flag.
	assert.True(t, result.Safety.IsSafe)
	assert.Equal(t, []safety.Flag{safety.FlagSafe}, result.Safety.Flags)

	// The early exit itself stays conservative.
	assert.Equal(t, category.Unsafe, result.Classification)
	assert.True(t, result.RequiresReview)
}

func TestExecuteAnalyzesEveryImage(t *testing.T) {
	imageReply := `{"ocr_text": "DEPARTMENT SEAL", "classification": "Highly Sensitive", "confidence": 0.9, "contains_sensitive_visual": true, "visual_elements": ["government seal"], "reasoning": "official seal", "keywords": ["seal"]}`

	var imageCalls int
	client := &fakeClient{route: func(req llm.Request) (string, error) {
		if strings.Contains(requestText(req), "Analyze this image") {
			imageCalls++
			return imageReply, nil
		}
		return script(reply(primaryReply), reply(primaryReply))(req)
	}}
	rt := newRuntime(t, client, &stubLearner{})

	// Three images sit below the visual-feature threshold; they are still
	// analyzed individually.
	in := testInput()
	in.ImageCount = 3
	in.Images = []Image{
		{MediaType: "image/png", Data: "aGVsbG8="},
		{MediaType: "image/png", Data: "d29ybGQ="},
		{MediaType: "image/jpeg", Data: "c2VhbA=="},
	}

	result, err := Execute(context.Background(), rt, in, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, imageCalls)
	require.Len(t, result.Images, 3)
	assert.Equal(t, category.HighlySensitive, result.Images[0].Classification)
	assert.Contains(t, result.Steps, "Analyzed 3 images")
	assert.Contains(t, result.Keywords, "seal")
}

func TestExecuteFastPath(t *testing.T) {
	client := &fakeClient{route: script(reply(primaryReply), reply(primaryReply))}
	learner := &stubLearner{
		adjust: func(_ category.Category, _ float64) learning.Adjustment {
			return learning.Adjustment{Confidence: 0.99}
		},
	}
	rt := newRuntime(t, client, learner)

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	assert.Nil(t, result.Secondary)
	assert.Nil(t, result.Consensus)
	assert.Contains(t, result.VerificationNotes, "Skipped verification")

	for _, call := range client.calls {
		assert.NotContains(t, call.System, "independent verification pass")
	}
}

func TestExecuteDisagreementArbitrated(t *testing.T) {
	secondaryReply := strings.Replace(primaryReply, `"Confidential"`, `"Highly Sensitive"`, 1)
	arbitrationReply := `{"final_classification": "Highly Sensitive", "final_confidence": 0.88, "notes": "segments support the stricter reading"}`

	client := &fakeClient{route: func(req llm.Request) (string, error) {
		if strings.Contains(requestText(req), "verification agent") {
			return arbitrationReply, nil
		}
		return script(reply(primaryReply), reply(secondaryReply))(req)
	}}
	rt := newRuntime(t, client, &stubLearner{})

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, category.HighlySensitive, result.Classification)
	assert.InDelta(t, 0.88, result.Confidence, 1e-9)
	require.NotNil(t, result.Consensus)
	assert.False(t, *result.Consensus)
	assert.Contains(t, result.VerificationNotes, "stricter reading")

	assert.True(t, result.RequiresReview)
	assert.Contains(t, result.ReviewReason, "disagreement")
}

func TestExecuteArbitrationFallback(t *testing.T) {
	secondaryReply := strings.NewReplacer(
		`"Confidential"`, `"Highly Sensitive"`,
		`"confidence": 0.9,`, `"confidence": 0.8,`,
	).Replace(primaryReply)

	client := &fakeClient{route: script(reply(primaryReply), reply(secondaryReply))}
	rt := newRuntime(t, client, &stubLearner{})

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	// Arbitration is unscripted and fails; the more severe draft wins at
	// the lower confidence.
	assert.Equal(t, category.HighlySensitive, result.Classification)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Contains(t, result.VerificationNotes, "conservative")
}

func TestExecuteTransportFailureFallsBack(t *testing.T) {
	client := &fakeClient{route: func(req llm.Request) (string, error) {
		text := requestText(req)
		switch {
		case strings.Contains(text, "QUICK safety scan"):
			return `{"is_unsafe": false}`, nil
		case strings.Contains(text, "verification agent"):
			return "", fmt.Errorf("api down")
		case strings.Contains(req.System, "DOCUMENT ANALYSIS REQUEST"):
			return "", fmt.Errorf("api down")
		}
		return "", fmt.Errorf("api down")
	}}
	rt := newRuntime(t, client, &stubLearner{})

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, category.Confidential, result.Classification)
	assert.Zero(t, result.Confidence)
	assert.True(t, result.RequiresReview)
	assert.Contains(t, result.ReviewReason, "Low confidence")
}

func TestExecuteContractViolationAborts(t *testing.T) {
	broken := `{"classification": "Confidential", "summary": "s", "reasoning": "r", "evidence": [], "safety_assessment": {"is_safe": true, "flags": ["Safe"], "details": "d", "confidence": 0.9}}`

	client := &fakeClient{route: script(reply(broken), reply(broken))}
	rt := newRuntime(t, client, &stubLearner{})

	_, err := Execute(context.Background(), rt, testInput(), nil)
	require.ErrorIs(t, err, ErrContractViolation)
	assert.Contains(t, err.Error(), "confidence")
}

func TestExecuteSafetyOverride(t *testing.T) {
	unsafeReply := `{
		"classification": "Confidential",
		"confidence": 0.9,
		"summary": "s",
		"reasoning": "r",
		"evidence": [],
		"safety_assessment": {"is_safe": false, "flags": ["Violence"], "details": "graphic descriptions", "confidence": 0.93}
	}`

	client := &fakeClient{route: script(reply(unsafeReply), reply(unsafeReply))}
	rt := newRuntime(t, client, &stubLearner{})

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, category.Unsafe, result.Classification)
	assert.InDelta(t, 0.93, result.Confidence, 1e-9)
	assert.Contains(t, result.AdditionalLabels, "Content Type: Confidential")
	assert.True(t, result.RequiresReview)
	assert.Contains(t, result.ReviewReason, "mandatory review")
}

func TestExecuteLearnedOverride(t *testing.T) {
	client := &fakeClient{route: script(reply(primaryReply), reply(primaryReply))}
	learner := &stubLearner{
		overrideResult: &learning.Override{
			Classification: category.HighlySensitive,
			Confidence:     0.95,
			Reason:         "matched indicators from previous correction",
		},
	}
	rt := newRuntime(t, client, learner)

	result, err := Execute(context.Background(), rt, testInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, category.HighlySensitive, result.Classification)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.Contains(t, result.VerificationNotes, "Learned rule applied")
}

func TestExecuteDualVerificationDisabled(t *testing.T) {
	client := &fakeClient{route: script(reply(primaryReply), reply(primaryReply))}
	rt := newRuntime(t, client, &stubLearner{})

	in := testInput()
	in.DualVerification = false

	result, err := Execute(context.Background(), rt, in, nil)
	require.NoError(t, err)

	assert.Nil(t, result.Secondary)
	assert.Contains(t, result.VerificationNotes, "disabled")
}

func TestParseDraft(t *testing.T) {
	t.Run("fenced reply", func(t *testing.T) {
		fenced := "```json\n" + primaryReply + "\n```"
		d, err := parseDraft(fenced, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.Equal(t, category.Confidential, d.Classification)
	})

	t.Run("prose around object", func(t *testing.T) {
		d, err := parseDraft("Here is my analysis:\n"+primaryReply+"\nLet me know.", slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.Equal(t, category.Confidential, d.Classification)
	})

	t.Run("unknown safety flags normalize", func(t *testing.T) {
		raw := strings.Replace(primaryReply, `["Safe"]`, `["no concerns"]`, 1)
		d, err := parseDraft(raw, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.True(t, d.Safety.IsSafe)
		assert.Equal(t, []safety.Flag{safety.FlagSafe}, d.Safety.Flags)
	})

	t.Run("government content label", func(t *testing.T) {
		raw := strings.Replace(primaryReply,
			`"classification": "Confidential",`,
			`"classification": "Confidential", "government_content_detected": true,`, 1)
		d, err := parseDraft(raw, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.Contains(t, d.AdditionalLabels, "Government Content")
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := parseDraft(`{"classification": "Public"}`, slog.New(slog.DiscardHandler))
		assert.ErrorIs(t, err, ErrContractViolation)
	})
}

func TestAggregateSegments(t *testing.T) {
	segments := []Segment{
		{Classification: category.Public, Confidence: 0.9},
		{Classification: category.Confidential, Confidence: 0.7},
		{Classification: category.HighlySensitive, Confidence: 0.95},
	}

	signal := aggregateSegments(segments)
	assert.Equal(t, 1, signal.Confidential)
	assert.Equal(t, 1, signal.HighlySensitive)
	assert.True(t, signal.SuggestsSensitive)
	assert.Equal(t, category.HighlySensitive, signal.Highest)
	assert.Contains(t, signal.Describe(), "1 segments as Confidential")

	quiet := aggregateSegments([]Segment{
		{Classification: category.Public, Confidence: 0.9},
		{Classification: category.Confidential, Confidence: 0.8},
	})
	assert.False(t, quiet.SuggestsSensitive)
	assert.Empty(t, quiet.Describe())
}

func TestSeverityFallback(t *testing.T) {
	primary := draft{Classification: category.Confidential, Confidence: 0.9}
	secondary := draft{Classification: category.Unsafe, Confidence: 0.7}

	out := severityFallback(primary, secondary)
	assert.Equal(t, category.Unsafe, out.Classification)
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)
}
