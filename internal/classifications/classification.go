// Package classifications implements the classification results domain for
// Warden: persistence and querying of pipeline results, synchronous and
// batch classification endpoints, SSE progress streaming, and the review
// sink the learning subsystem records feedback through.
package classifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/safety"
	"github.com/wardenhq/warden/internal/workflow"
)

// Classification is a stored pipeline result for one document. A document
// has at most one row; reclassification replaces it and clears the
// human-review fields.
type Classification struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`

	Classification   category.Category `json:"classification"`
	AdditionalLabels []string          `json:"additional_labels"`
	Confidence       float64           `json:"confidence"`
	Summary          string            `json:"summary"`
	Reasoning        string            `json:"reasoning"`

	Evidence []workflow.Evidence `json:"evidence"`
	Safety   safety.Assessment   `json:"safety_assessment"`

	PageCount  int `json:"page_count"`
	ImageCount int `json:"image_count"`

	Segments          []workflow.Segment          `json:"text_segments,omitempty"`
	Images            []workflow.ImageAnalysis    `json:"image_analyses,omitempty"`
	Context           *workflow.DocumentContext   `json:"document_context,omitempty"`
	KeywordRelevances []workflow.KeywordRelevance `json:"keyword_relevances,omitempty"`
	Keywords          []string                    `json:"all_keywords,omitempty"`

	Secondary           *category.Category `json:"secondary_classification,omitempty"`
	SecondaryConfidence *float64           `json:"secondary_confidence,omitempty"`
	Consensus           *bool              `json:"consensus,omitempty"`
	VerificationNotes   string             `json:"verification_notes,omitempty"`

	Steps []string `json:"progress_steps,omitempty"`

	RequiresReview bool   `json:"requires_review"`
	ReviewReason   string `json:"review_reason,omitempty"`

	HumanReviewed  bool               `json:"human_reviewed"`
	ReviewedBy     *string            `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time         `json:"reviewed_at,omitempty"`
	HumanCorrected *category.Category `json:"human_corrected,omitempty"`
	// Original preserves the model's classification once a reviewer
	// corrects the row.
	Original *category.Category `json:"original_classification,omitempty"`

	ProcessingMS int64     `json:"processing_ms"`
	Model        string    `json:"model"`
	CompletedAt  time.Time `json:"completed_at"`
}

// ClassifyCommand requests a synchronous classification run.
type ClassifyCommand struct {
	DocumentID             uuid.UUID `json:"document_id"`
	EnableDualVerification bool      `json:"enable_dual_verification"`
}

// BatchCommand requests classification of several documents over a bounded
// worker pool.
type BatchCommand struct {
	DocumentIDs            []uuid.UUID `json:"document_ids"`
	EnableDualVerification bool        `json:"enable_dual_verification"`
}

// BatchItem reports the outcome of one document within a batch. Failures
// never abort the batch.
type BatchItem struct {
	DocumentID     uuid.UUID       `json:"document_id"`
	Classification *Classification `json:"classification,omitempty"`
	Error          string          `json:"error,omitempty"`
}
