package learning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/wardenhq/warden/internal/category"
)

// Confidence adjustment constants. Multipliers compound when several rules
// fire; the final score is clamped to [0.1, 1.0].
const (
	accuracyThreshold  = 70.0
	accuracyPenalty    = 0.85
	keywordReviewBelow = 0.8
	contextPenalty     = 0.75
	minIndicatorHits   = 2

	minConfidence = 0.1
	maxConfidence = 1.0

	overrideBonus   = 0.10
	overrideCeiling = 0.98
)

type learner struct {
	store  Store
	logger *slog.Logger

	mu     sync.Mutex
	sink   ReviewSink
	cached *Patterns
	ledger []Entry
}

// New creates the learning system over a ledger store. Bind attaches the
// review sink once the classification results system exists.
func New(store Store, logger *slog.Logger) System {
	return &learner{
		store:  store,
		logger: logger.With("system", "learning"),
	}
}

func (l *learner) Handler() *Handler {
	return NewHandler(l, l.logger)
}

// Bind attaches the review sink. Must be called during assembly, before the
// feedback and queue endpoints serve traffic.
func (l *learner) Bind(sink ReviewSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

func (l *learner) Record(ctx context.Context, review Review) (*Entry, error) {
	if review.ReviewerID == "" {
		return nil, fmt.Errorf("%w: reviewer_id is required", ErrInvalidFeedback)
	}
	if !review.Approved && review.CorrectedClassification == nil {
		return nil, fmt.Errorf("%w: corrections require corrected_classification", ErrInvalidFeedback)
	}

	sink := l.boundSink()
	if sink == nil {
		return nil, ErrNoSink
	}

	// The sink validates the correction against the stored result and
	// rejects without mutating; the ledger is only written once the row
	// settles.
	outcome, err := sink.ApplyReview(ctx, review)
	if err != nil {
		return nil, fmt.Errorf("apply review: %w", err)
	}

	entry, err := l.store.Upsert(ctx, Entry{
		DocumentID:              review.DocumentID,
		ReviewerID:              review.ReviewerID,
		Approved:                review.Approved,
		OriginalClassification:  outcome.Original,
		CorrectedClassification: review.CorrectedClassification,
		FeedbackNotes:           review.FeedbackNotes,
		ReasoningForCorrection:  review.ReasoningForCorrection,
		KeyIndicators:           review.KeyIndicators,
		SimilarPatterns:         review.SimilarPatterns,
		LearningInstruction:     review.LearningInstruction,
		Context:                 outcome.Context,
	})
	if err != nil {
		return nil, err
	}

	l.invalidate()

	l.logger.Info("feedback recorded",
		"document_id", entry.DocumentID,
		"reviewer_id", entry.ReviewerID,
		"approved", entry.Approved,
	)
	return entry, nil
}

func (l *learner) Entries(ctx context.Context) ([]Entry, error) {
	return l.store.All(ctx)
}

func (l *learner) Queue(ctx context.Context) ([]QueueItem, error) {
	sink := l.boundSink()
	if sink == nil {
		return nil, ErrNoSink
	}
	return sink.PendingReview(ctx)
}

func (l *learner) Patterns(ctx context.Context) (*Patterns, error) {
	p, _, err := l.snapshot(ctx)
	return p, err
}

func (l *learner) Stats(ctx context.Context) (*Stats, error) {
	p, _, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	examples := 0
	for _, group := range p.Examples {
		examples += len(group)
	}

	return &Stats{
		TotalFeedback:      p.TotalFeedback,
		CorrectionRate:     fmt.Sprintf("%.1f%%", p.CorrectionRate*100),
		AccuracyByCategory: p.AccuracyByCategory,
		PatternsLearned:    len(p.ContextPatterns),
		KeywordsTracked:    len(p.KeywordAdjustments),
		ExamplesAvailable:  examples,
	}, nil
}

// AdjustConfidence compounds every matching penalty; the last rule that
// fires supplies the review reason.
func (l *learner) AdjustConfidence(
	ctx context.Context,
	subject Subject,
	cat category.Category,
	confidence float64,
) (Adjustment, error) {
	p, _, err := l.snapshot(ctx)
	if err != nil {
		return Adjustment{}, err
	}

	adj := Adjustment{Confidence: confidence}

	if stats, ok := p.AccuracyByCategory[cat]; ok && stats.Accuracy < accuracyThreshold {
		adj.Confidence *= accuracyPenalty
		adj.NeedsReview = true
		adj.ReviewReason = fmt.Sprintf(
			"Historical accuracy for %s is %.1f%% (below threshold)", cat, stats.Accuracy,
		)
	}

	filename := strings.ToLower(subject.Filename)
	preview := strings.ToLower(subject.Preview)

	for _, keyword := range sortedKeys(p.KeywordAdjustments) {
		if !strings.Contains(filename, keyword) && !strings.Contains(preview, keyword) {
			continue
		}

		adjustment := p.KeywordAdjustments[keyword]
		adj.Confidence *= adjustment.Multiplier

		if adjustment.Multiplier < keywordReviewBelow {
			adj.NeedsReview = true
			adj.ReviewReason = fmt.Sprintf(
				"Documents with '%s' have been corrected %d times",
				keyword, adjustment.CorrectionCount,
			)
		}
	}

	for _, pattern := range p.ContextPatterns {
		if pattern.From != cat {
			continue
		}

		matches := 0
		for _, indicator := range pattern.Indicators {
			if strings.Contains(preview, indicator) {
				matches++
			}
		}

		if matches >= minIndicatorHits {
			adj.Confidence *= contextPenalty
			adj.NeedsReview = true
			adj.ReviewReason = fmt.Sprintf(
				"Similar documents have been reclassified as %s", pattern.To,
			)
		}
	}

	adj.Confidence = max(minConfidence, min(maxConfidence, adj.Confidence))
	return adj, nil
}

// ApplyOverride checks the ledger's corrections for one whose indicators
// match this document strongly enough to replace the classification. The
// earliest matching correction wins. Returns nil when no rule applies.
func (l *learner) ApplyOverride(
	ctx context.Context,
	subject Subject,
	cat category.Category,
	confidence float64,
) (*Override, error) {
	_, entries, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	preview := strings.ToLower(subject.Preview)
	filename := strings.ToLower(subject.Filename)
	keywords := map[string]bool{}
	for _, k := range subject.Keywords {
		keywords[strings.ToLower(k)] = true
	}

	for _, entry := range entries {
		if !entry.IsCorrection() || entry.OriginalClassification != cat {
			continue
		}

		matches := 0
		for _, indicator := range entry.KeyIndicators {
			ind := strings.ToLower(indicator)
			if strings.Contains(preview, ind) || strings.Contains(filename, ind) || keywords[ind] {
				matches++
			}
		}

		threshold := max(3.0, float64(len(entry.KeyIndicators))*0.5)
		if float64(matches) < threshold {
			continue
		}

		notes := entry.FeedbackNotes
		if notes == "" {
			notes = "Rule from previous correction"
		}
		if len(notes) > 100 {
			notes = notes[:100]
		}

		override := &Override{
			Classification: *entry.CorrectedClassification,
			Confidence:     min(overrideCeiling, confidence+overrideBonus),
			Reason: fmt.Sprintf(
				"Learned rule applied: '%s' -> '%s'. Matched %d/%d indicators. Human feedback: %s",
				cat, *entry.CorrectedClassification, matches, len(entry.KeyIndicators), notes,
			),
		}

		l.logger.Info("learned override applied",
			"from", cat,
			"to", override.Classification,
			"matches", matches,
			"indicators", len(entry.KeyIndicators),
		)
		return override, nil
	}

	return nil, nil
}

func (l *learner) FewShot(ctx context.Context, cat category.Category, limit int) ([]Example, error) {
	p, _, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	examples := p.Examples[cat]
	if limit > 0 && len(examples) > limit {
		examples = examples[:limit]
	}
	return examples, nil
}

// Enhancements renders learned patterns as prompt instructions: warnings for
// the most frequent misclassifications followed by context rules, three of
// each at most.
func (l *learner) Enhancements(ctx context.Context) ([]string, error) {
	p, _, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var lines []string

	misclass := p.Misclassifications
	if len(misclass) > 3 {
		misclass = misclass[:3]
	}
	for _, m := range misclass {
		lines = append(lines, fmt.Sprintf(
			"LEARNED PATTERN: Documents initially classified as '%s' have been corrected to '%s' %d times (%.1f%% of feedback). Carefully verify this classification.",
			m.From, m.To, m.Count, m.Percentage,
		))
	}

	patterns := p.ContextPatterns
	if len(patterns) > 3 {
		patterns = patterns[:3]
	}
	for _, pattern := range patterns {
		lines = append(lines, pattern.Rule)
	}

	return lines, nil
}

func (l *learner) boundSink() ReviewSink {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink
}

// snapshot returns the memoized patterns and ledger, loading and analyzing
// on first use after an invalidation.
func (l *learner) snapshot(ctx context.Context) (*Patterns, []Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached, l.ledger, nil
	}

	entries, err := l.store.All(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load learning ledger: %w", err)
	}

	l.ledger = entries
	l.cached = Analyze(entries)
	return l.cached, l.ledger, nil
}

func (l *learner) invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
	l.ledger = nil
}

func sortedKeys(m map[string]KeywordAdjustment) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
