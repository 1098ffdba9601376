package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/category"
)

type fakeStore struct {
	entries  []Entry
	allCalls int
}

func (f *fakeStore) Upsert(_ context.Context, entry Entry) (*Entry, error) {
	now := time.Now()
	entry.UpdatedAt = now

	for i, existing := range f.entries {
		if existing.DocumentID == entry.DocumentID {
			entry.CreatedAt = existing.CreatedAt
			f.entries[i] = entry
			return &entry, nil
		}
	}

	entry.CreatedAt = now
	f.entries = append(f.entries, entry)
	return &entry, nil
}

func (f *fakeStore) All(_ context.Context) ([]Entry, error) {
	f.allCalls++
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

type fakeSink struct {
	original category.Category
	context  EntryContext
	applied  []Review
	pending  []QueueItem
}

func (f *fakeSink) ApplyReview(_ context.Context, review Review) (*ReviewOutcome, error) {
	if review.CorrectedClassification != nil && *review.CorrectedClassification == f.original {
		return nil, fmt.Errorf("%w: corrected classification matches the original", ErrInvalidFeedback)
	}
	f.applied = append(f.applied, review)
	return &ReviewOutcome{Original: f.original, Context: f.context}, nil
}

func (f *fakeSink) PendingReview(_ context.Context) ([]QueueItem, error) {
	return f.pending, nil
}

func catPtr(c category.Category) *category.Category {
	return &c
}

func approvedEntry(original category.Category, filename string) Entry {
	return Entry{
		DocumentID:             uuid.New(),
		ReviewerID:             "reviewer",
		Approved:               true,
		OriginalClassification: original,
		Context:                EntryContext{Filename: filename},
	}
}

func correctedEntry(from, to category.Category, filename, reasoning string) Entry {
	return Entry{
		DocumentID:              uuid.New(),
		ReviewerID:              "reviewer",
		Approved:                false,
		OriginalClassification:  from,
		CorrectedClassification: catPtr(to),
		ReasoningForCorrection:  reasoning,
		Context:                 EntryContext{Filename: filename},
	}
}

func newTestLearner(entries ...Entry) (System, *fakeStore) {
	store := &fakeStore{entries: entries}
	return New(store, slog.New(slog.DiscardHandler)), store
}

func TestAnalyzeEmptyLedger(t *testing.T) {
	p := Analyze(nil)

	assert.Zero(t, p.TotalFeedback)
	assert.Zero(t, p.CorrectionRate)
	assert.Empty(t, p.Misclassifications)
	assert.Empty(t, p.KeywordAdjustments)
	assert.Empty(t, p.ContextPatterns)
}

func TestAnalyzeAccuracyAndCorrectionRate(t *testing.T) {
	var entries []Entry
	for range 6 {
		entries = append(entries, approvedEntry(category.Public, "memo.txt"))
	}
	for i := range 4 {
		entries = append(entries, correctedEntry(
			category.Public, category.Confidential,
			fmt.Sprintf("a%d.txt", i), "",
		))
	}

	p := Analyze(entries)

	assert.Equal(t, 10, p.TotalFeedback)
	assert.InDelta(t, 0.4, p.CorrectionRate, 1e-9)

	stats := p.AccuracyByCategory[category.Public]
	assert.Equal(t, 10, stats.TotalReviews)
	assert.Equal(t, 6, stats.Correct)
	assert.Equal(t, 4, stats.Corrections)
	assert.InDelta(t, 60.0, stats.Accuracy, 1e-9)

	require.Len(t, p.Misclassifications, 1)
	assert.Equal(t, category.Public, p.Misclassifications[0].From)
	assert.Equal(t, category.Confidential, p.Misclassifications[0].To)
	assert.Equal(t, 4, p.Misclassifications[0].Count)
	assert.InDelta(t, 40.0, p.Misclassifications[0].Percentage, 1e-9)
}

func TestAnalyzeKeywordAdjustments(t *testing.T) {
	entries := []Entry{
		correctedEntry(category.Confidential, category.Public, "marketing-brief-one.pdf", ""),
		correctedEntry(category.Confidential, category.Public, "marketing-brief-two.pdf", ""),
		correctedEntry(category.Confidential, category.Public, "marketing-notes.pdf", ""),
	}

	p := Analyze(entries)

	marketing, ok := p.KeywordAdjustments["marketing"]
	require.True(t, ok)
	assert.Equal(t, 3, marketing.CorrectionCount)
	assert.InDelta(t, 0.7, marketing.Multiplier, 1e-9)
	assert.Equal(t, category.Confidential, marketing.CommonFrom)
	assert.Equal(t, category.Public, marketing.CommonTo)

	brief, ok := p.KeywordAdjustments["brief"]
	require.True(t, ok)
	assert.Equal(t, 2, brief.CorrectionCount)
	assert.InDelta(t, 0.8, brief.Multiplier, 1e-9)

	// A single occurrence is noise, not a pattern.
	_, ok = p.KeywordAdjustments["notes"]
	assert.False(t, ok)
}

func TestAnalyzeKeywordMultiplierFloor(t *testing.T) {
	var entries []Entry
	for i := range 7 {
		entries = append(entries, correctedEntry(
			category.Public, category.Confidential,
			fmt.Sprintf("quarterly-%c.pdf", 'a'+i), "",
		))
	}

	p := Analyze(entries)

	quarterly, ok := p.KeywordAdjustments["quarterly"]
	require.True(t, ok)
	assert.Equal(t, 7, quarterly.CorrectionCount)
	assert.InDelta(t, 0.5, quarterly.Multiplier, 1e-9)
}

func TestAnalyzeContextPatterns(t *testing.T) {
	entries := []Entry{
		correctedEntry(category.Confidential, category.HighlySensitive,
			"one.doc", "contains personnel records"),
		correctedEntry(category.Confidential, category.HighlySensitive,
			"two.doc", "contains personnel records"),
	}

	p := Analyze(entries)

	require.Len(t, p.ContextPatterns, 1)
	pattern := p.ContextPatterns[0]
	assert.Equal(t, category.Confidential, pattern.From)
	assert.Equal(t, category.HighlySensitive, pattern.To)
	assert.Equal(t, 2, pattern.Frequency)
	assert.ElementsMatch(t, []string{"contains", "personnel", "records"}, pattern.Indicators)
	assert.Contains(t, pattern.Rule, "are often Highly Sensitive, not Confidential")
}

func TestAnalyzeExamples(t *testing.T) {
	entries := []Entry{
		approvedEntry(category.Public, "brochure-one.pdf"),
		approvedEntry(category.Public, "brochure-two.pdf"),
		approvedEntry(category.Public, "brochure-three.pdf"),
		approvedEntry(category.Public, "brochure-four.pdf"),
		correctedEntry(category.Public, category.Unsafe, "threat.txt", "explicit threats"),
	}

	p := Analyze(entries)

	// Capped at three per category, earliest first.
	require.Len(t, p.Examples[category.Public], 3)
	assert.Equal(t, "brochure-one.pdf", p.Examples[category.Public][0].Filename)
	assert.Equal(t, "high", p.Examples[category.Public][0].Confidence)

	// A correction becomes an example under the reviewer's verdict.
	require.Len(t, p.Examples[category.Unsafe], 1)
	assert.Equal(t, "corrected", p.Examples[category.Unsafe][0].Confidence)
	assert.Equal(t, category.Unsafe, p.Examples[category.Unsafe][0].Classification)
}

func TestAdjustConfidenceLowAccuracy(t *testing.T) {
	var entries []Entry
	for range 6 {
		entries = append(entries, approvedEntry(category.Public, "ok.txt"))
	}
	for i := range 4 {
		entries = append(entries, correctedEntry(
			category.Public, category.Confidential,
			fmt.Sprintf("m%d.txt", i), "",
		))
	}

	sys, _ := newTestLearner(entries...)

	adj, err := sys.AdjustConfidence(
		context.Background(),
		Subject{Filename: "other.txt"},
		category.Public, 0.90,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.765, adj.Confidence, 1e-9)
	assert.True(t, adj.NeedsReview)
	assert.Contains(t, adj.ReviewReason, "60.0%")
}

func TestAdjustConfidenceKeywordPenalty(t *testing.T) {
	entries := []Entry{
		correctedEntry(category.Confidential, category.Public, "marketing-brief-one.pdf", ""),
		correctedEntry(category.Confidential, category.Public, "marketing-brief-two.pdf", ""),
		correctedEntry(category.Confidential, category.Public, "marketing-notes.pdf", ""),
	}

	sys, _ := newTestLearner(entries...)

	adj, err := sys.AdjustConfidence(
		context.Background(),
		Subject{Filename: "marketing-flyer.pdf"},
		category.Public, 1.0,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.7, adj.Confidence, 1e-9)
	assert.True(t, adj.NeedsReview)
	assert.Contains(t, adj.ReviewReason, "'marketing'")
	assert.Contains(t, adj.ReviewReason, "3 times")
}

func TestAdjustConfidenceKeywordAboveReviewThreshold(t *testing.T) {
	entries := []Entry{
		correctedEntry(category.Confidential, category.Public, "marketing-one.pdf", ""),
		correctedEntry(category.Confidential, category.Public, "marketing-two.pdf", ""),
	}

	sys, _ := newTestLearner(entries...)

	adj, err := sys.AdjustConfidence(
		context.Background(),
		Subject{Filename: "marketing-flyer.pdf"},
		category.Public, 1.0,
	)
	require.NoError(t, err)

	// Multiplier 0.8 lowers confidence without forcing review.
	assert.InDelta(t, 0.8, adj.Confidence, 1e-9)
	assert.False(t, adj.NeedsReview)
}

func TestAdjustConfidenceContextPattern(t *testing.T) {
	entries := []Entry{
		correctedEntry(category.Confidential, category.HighlySensitive,
			"one.doc", "contains personnel records"),
		correctedEntry(category.Confidential, category.HighlySensitive,
			"two.doc", "contains personnel records"),
	}
	for range 5 {
		entries = append(entries, approvedEntry(category.Confidential, "fine.doc"))
	}

	sys, _ := newTestLearner(entries...)

	adj, err := sys.AdjustConfidence(
		context.Background(),
		Subject{
			Filename: "roster.doc",
			Preview:  "employee personnel records on file",
		},
		category.Confidential, 0.8,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, adj.Confidence, 1e-9)
	assert.True(t, adj.NeedsReview)
	assert.Contains(t, adj.ReviewReason, "reclassified as Highly Sensitive")
}

func TestAdjustConfidenceClamped(t *testing.T) {
	var entries []Entry
	for i := range 7 {
		entries = append(entries, correctedEntry(
			category.Public, category.Confidential,
			fmt.Sprintf("quarterly-%c.pdf", 'a'+i), "",
		))
	}

	sys, _ := newTestLearner(entries...)

	adj, err := sys.AdjustConfidence(
		context.Background(),
		Subject{Filename: "quarterly-report.pdf"},
		category.Confidential, 0.15,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, adj.Confidence, 1e-9)
}

func TestApplyOverride(t *testing.T) {
	entry := correctedEntry(category.Public, category.HighlySensitive, "roster.xlsx", "")
	entry.KeyIndicators = []string{"ssn", "salary", "address", "bank"}

	sys, _ := newTestLearner(entry)

	override, err := sys.ApplyOverride(
		context.Background(),
		Subject{Preview: "employee ssn and salary with home address"},
		category.Public, 0.80,
	)
	require.NoError(t, err)
	require.NotNil(t, override)

	assert.Equal(t, category.HighlySensitive, override.Classification)
	assert.InDelta(t, 0.90, override.Confidence, 1e-9)
	assert.Contains(t, override.Reason, "3/4 indicators")
}

func TestApplyOverrideBelowThreshold(t *testing.T) {
	entry := correctedEntry(category.Public, category.HighlySensitive, "roster.xlsx", "")
	entry.KeyIndicators = []string{"ssn", "salary", "address", "bank"}

	sys, _ := newTestLearner(entry)

	override, err := sys.ApplyOverride(
		context.Background(),
		Subject{Preview: "employee ssn and salary"},
		category.Public, 0.80,
	)
	require.NoError(t, err)
	assert.Nil(t, override)
}

func TestApplyOverrideHalfIndicatorThreshold(t *testing.T) {
	entry := correctedEntry(category.Public, category.HighlySensitive, "roster.xlsx", "")
	entry.KeyIndicators = []string{
		"ssn", "salary", "address", "bank",
		"phone", "email", "passport", "license",
	}

	sys, _ := newTestLearner(entry)

	// Three matches fall short of half of eight indicators.
	override, err := sys.ApplyOverride(
		context.Background(),
		Subject{Preview: "ssn salary address"},
		category.Public, 0.80,
	)
	require.NoError(t, err)
	assert.Nil(t, override)

	override, err = sys.ApplyOverride(
		context.Background(),
		Subject{Preview: "ssn salary address bank"},
		category.Public, 0.80,
	)
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.Contains(t, override.Reason, "4/8 indicators")
}

func TestApplyOverrideConfidenceCeiling(t *testing.T) {
	entry := correctedEntry(category.Public, category.HighlySensitive, "roster.xlsx", "")
	entry.KeyIndicators = []string{"ssn", "salary", "address"}

	sys, _ := newTestLearner(entry)

	override, err := sys.ApplyOverride(
		context.Background(),
		Subject{Preview: "ssn salary address"},
		category.Public, 0.95,
	)
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.InDelta(t, 0.98, override.Confidence, 1e-9)
}

func TestApplyOverrideIgnoresApprovedAndOtherCategories(t *testing.T) {
	matched := approvedEntry(category.Public, "roster.xlsx")
	matched.KeyIndicators = []string{"ssn", "salary", "address"}

	other := correctedEntry(category.Confidential, category.HighlySensitive, "roster.xlsx", "")
	other.KeyIndicators = []string{"ssn", "salary", "address"}

	sys, _ := newTestLearner(matched, other)

	override, err := sys.ApplyOverride(
		context.Background(),
		Subject{Preview: "ssn salary address"},
		category.Public, 0.80,
	)
	require.NoError(t, err)
	assert.Nil(t, override)
}

func TestApplyOverrideFirstMatchWins(t *testing.T) {
	first := correctedEntry(category.Public, category.Confidential, "a.pdf", "")
	first.KeyIndicators = []string{"contract", "vendor", "pricing"}

	second := correctedEntry(category.Public, category.HighlySensitive, "b.pdf", "")
	second.KeyIndicators = []string{"contract", "vendor", "pricing"}

	sys, _ := newTestLearner(first, second)

	override, err := sys.ApplyOverride(
		context.Background(),
		Subject{Preview: "contract with vendor pricing terms"},
		category.Public, 0.80,
	)
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.Equal(t, category.Confidential, override.Classification)
}

func TestFewShotLimit(t *testing.T) {
	sys, _ := newTestLearner(
		approvedEntry(category.Public, "one.pdf"),
		approvedEntry(category.Public, "two.pdf"),
		approvedEntry(category.Public, "three.pdf"),
	)

	examples, err := sys.FewShot(context.Background(), category.Public, 2)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, "one.pdf", examples[0].Filename)
	assert.Equal(t, "two.pdf", examples[1].Filename)
}

func TestEnhancements(t *testing.T) {
	var entries []Entry
	for i := range 4 {
		entries = append(entries, correctedEntry(
			category.Public, category.Confidential,
			fmt.Sprintf("n%d.txt", i), "internal budget figures",
		))
	}

	sys, _ := newTestLearner(entries...)

	lines, err := sys.Enhancements(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], "LEARNED PATTERN")
	assert.Contains(t, lines[0], "'Public'")
	assert.Contains(t, lines[0], "'Confidential'")
	assert.Contains(t, lines[0], "4 times")
	assert.Contains(t, lines[1], "are often Confidential, not Public")
}

func TestRecordValidation(t *testing.T) {
	sys, _ := newTestLearner()
	sink := &fakeSink{original: category.Public}
	sys.Bind(sink)

	_, err := sys.Record(context.Background(), Review{
		DocumentID: uuid.New(),
		Approved:   true,
	})
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	_, err = sys.Record(context.Background(), Review{
		DocumentID: uuid.New(),
		ReviewerID: "alex",
		Approved:   false,
	})
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	_, err = sys.Record(context.Background(), Review{
		DocumentID:              uuid.New(),
		ReviewerID:              "alex",
		Approved:                false,
		CorrectedClassification: catPtr(category.Public),
	})
	assert.ErrorIs(t, err, ErrInvalidFeedback)
}

func TestRecordRejectedCorrectionMutatesNothing(t *testing.T) {
	sys, store := newTestLearner()
	sink := &fakeSink{original: category.Confidential}
	sys.Bind(sink)

	_, err := sys.Record(context.Background(), Review{
		DocumentID:              uuid.New(),
		ReviewerID:              "alex",
		Approved:                false,
		CorrectedClassification: catPtr(category.Confidential),
	})
	require.ErrorIs(t, err, ErrInvalidFeedback)

	// The result row was never settled and the ledger never written.
	assert.Empty(t, sink.applied)
	assert.Empty(t, store.entries)
}

func TestRecordWithoutSink(t *testing.T) {
	sys, _ := newTestLearner()

	_, err := sys.Record(context.Background(), Review{
		DocumentID: uuid.New(),
		ReviewerID: "alex",
		Approved:   true,
	})
	assert.ErrorIs(t, err, ErrNoSink)
}

func TestRecordPersistsOutcome(t *testing.T) {
	sys, store := newTestLearner()
	sink := &fakeSink{
		original: category.Confidential,
		context:  EntryContext{Filename: "contract.pdf", Summary: "vendor contract"},
	}
	sys.Bind(sink)

	entry, err := sys.Record(context.Background(), Review{
		DocumentID:              uuid.New(),
		ReviewerID:              "alex",
		Approved:                false,
		CorrectedClassification: catPtr(category.HighlySensitive),
		ReasoningForCorrection:  "contains personnel data",
		KeyIndicators:           []string{"ssn", "salary"},
	})
	require.NoError(t, err)

	require.Len(t, sink.applied, 1)
	assert.Equal(t, category.Confidential, entry.OriginalClassification)
	assert.Equal(t, category.HighlySensitive, *entry.CorrectedClassification)
	assert.Equal(t, "contract.pdf", entry.Context.Filename)
	assert.Len(t, store.entries, 1)
}

func TestPatternsMemoized(t *testing.T) {
	sys, store := newTestLearner(approvedEntry(category.Public, "a.pdf"))

	_, err := sys.Patterns(context.Background())
	require.NoError(t, err)
	_, err = sys.Patterns(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, store.allCalls)
}

func TestRecordInvalidatesPatterns(t *testing.T) {
	sys, _ := newTestLearner()
	sink := &fakeSink{original: category.Public}
	sys.Bind(sink)

	stats, err := sys.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFeedback)

	_, err = sys.Record(context.Background(), Review{
		DocumentID: uuid.New(),
		ReviewerID: "alex",
		Approved:   true,
	})
	require.NoError(t, err)

	stats, err = sys.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFeedback)
}

func TestExamplesEndpoint(t *testing.T) {
	sys, _ := newTestLearner(
		approvedEntry(category.Public, "one.pdf"),
		approvedEntry(category.Public, "two.pdf"),
	)
	h := NewHandler(sys, slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	h.Examples(rec, httptest.NewRequest(http.MethodGet, "/learning/examples?category=Public&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var examples []Example
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &examples))
	require.Len(t, examples, 1)
	assert.Equal(t, "one.pdf", examples[0].Filename)

	rec = httptest.NewRecorder()
	h.Examples(rec, httptest.NewRequest(http.MethodGet, "/learning/examples?category=Nonsense", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Examples(rec, httptest.NewRequest(http.MethodGet, "/learning/examples?category=Public&limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueDelegatesToSink(t *testing.T) {
	sys, _ := newTestLearner()
	sink := &fakeSink{
		pending: []QueueItem{{Filename: "pending.pdf", Classification: category.Unsafe}},
	}
	sys.Bind(sink)

	items, err := sys.Queue(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "pending.pdf", items[0].Filename)
}
