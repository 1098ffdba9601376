package learning

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/category"
)

// Store persists the correction ledger. Entries are upserted by document and
// only ever read back in full; nothing deletes from the ledger.
type Store interface {
	Upsert(ctx context.Context, entry Entry) (*Entry, error)
	All(ctx context.Context) ([]Entry, error)
}

// System exposes the learning subsystem: recording reviewer feedback and the
// statistics, confidence adjustments, and overrides derived from it.
type System interface {
	Bind(sink ReviewSink)
	Record(ctx context.Context, review Review) (*Entry, error)
	Entries(ctx context.Context) ([]Entry, error)
	Queue(ctx context.Context) ([]QueueItem, error)
	Stats(ctx context.Context) (*Stats, error)
	Patterns(ctx context.Context) (*Patterns, error)
	AdjustConfidence(ctx context.Context, subject Subject, cat category.Category, confidence float64) (Adjustment, error)
	ApplyOverride(ctx context.Context, subject Subject, cat category.Category, confidence float64) (*Override, error)
	FewShot(ctx context.Context, cat category.Category, limit int) ([]Example, error)
	Enhancements(ctx context.Context) ([]string, error)
	Handler() *Handler
}

// Review is a reviewer's verdict on a classification result as submitted
// through the feedback endpoint.
type Review struct {
	DocumentID              uuid.UUID          `json:"document_id"`
	ReviewerID              string             `json:"reviewer_id"`
	Approved                bool               `json:"approved"`
	CorrectedClassification *category.Category `json:"corrected_classification,omitempty"`
	FeedbackNotes           string             `json:"feedback_notes"`
	ReasoningForCorrection  string             `json:"reasoning_for_correction,omitempty"`
	KeyIndicators           []string           `json:"key_indicators,omitempty"`
	SimilarPatterns         []string           `json:"similar_document_patterns,omitempty"`
	LearningInstruction     string             `json:"learning_instruction,omitempty"`
}

// ReviewOutcome is what the classification side reports back after a review
// is applied to its result: the classification the model originally produced
// and the document snapshot the ledger preserves.
type ReviewOutcome struct {
	Original category.Category
	Context  EntryContext
}

// ReviewSink is implemented by the classification results system. It marks a
// result as human-reviewed and surfaces the results still awaiting review.
// ApplyReview validates the review against the stored result first: a
// correction matching the original is rejected with ErrInvalidFeedback
// before the row is mutated. Defining the interface here keeps the
// dependency one-way: results depend on learning, never the reverse.
type ReviewSink interface {
	ApplyReview(ctx context.Context, review Review) (*ReviewOutcome, error)
	PendingReview(ctx context.Context) ([]QueueItem, error)
}

// QueueItem is one classification result awaiting human review.
type QueueItem struct {
	DocumentID     uuid.UUID         `json:"document_id"`
	Filename       string            `json:"filename"`
	Classification category.Category `json:"classification"`
	Confidence     float64           `json:"confidence"`
	ReviewReason   string            `json:"review_reason,omitempty"`
	ClassifiedAt   time.Time         `json:"classified_at"`
}

// Subject carries the document attributes learned patterns are matched
// against.
type Subject struct {
	Filename string
	Preview  string
	Keywords []string
}

// Adjustment is the result of applying historical feedback to a confidence
// score.
type Adjustment struct {
	Confidence   float64 `json:"confidence"`
	NeedsReview  bool    `json:"needs_review"`
	ReviewReason string  `json:"review_reason,omitempty"`
}

// Override replaces a classification with one a reviewer previously
// corrected it to.
type Override struct {
	Classification category.Category `json:"classification"`
	Confidence     float64           `json:"confidence"`
	Reason         string            `json:"reason"`
}

// Stats summarizes the learning system for operators.
type Stats struct {
	TotalFeedback      int                                    `json:"total_feedback"`
	CorrectionRate     string                                 `json:"correction_rate"`
	AccuracyByCategory map[category.Category]CategoryAccuracy `json:"accuracy_by_category"`
	PatternsLearned    int                                    `json:"patterns_learned"`
	KeywordsTracked    int                                    `json:"keywords_tracked"`
	ExamplesAvailable  int                                    `json:"examples_available"`
}
