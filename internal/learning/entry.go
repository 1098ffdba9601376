// Package learning implements the human-in-the-loop subsystem: a permanent
// correction ledger keyed by document, statistics derived from it, and the
// confidence adjustments and classification overrides those statistics
// drive. Ledger entries are never deleted; removing a classification result
// must not erase what reviewers taught the system.
package learning

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/category"
)

// Entry is one reviewer verdict in the correction ledger. An entry either
// approves the model's classification or corrects it; corrections carry the
// indicators future documents should be matched against.
type Entry struct {
	DocumentID              uuid.UUID          `json:"document_id"`
	ReviewerID              string             `json:"reviewer_id"`
	Approved                bool               `json:"approved"`
	OriginalClassification  category.Category  `json:"original_classification"`
	CorrectedClassification *category.Category `json:"corrected_classification,omitempty"`
	FeedbackNotes           string             `json:"feedback_notes"`
	ReasoningForCorrection  string             `json:"reasoning_for_correction,omitempty"`
	KeyIndicators           []string           `json:"key_indicators,omitempty"`
	SimilarPatterns         []string           `json:"similar_document_patterns,omitempty"`
	LearningInstruction     string             `json:"learning_instruction,omitempty"`
	Context                 EntryContext       `json:"document_context"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
}

// EntryContext is the document snapshot captured with the feedback, kept so
// learning survives deletion of the result and the document.
type EntryContext struct {
	Filename string   `json:"filename"`
	Summary  string   `json:"summary,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// IsCorrection reports whether the reviewer changed the classification.
func (e Entry) IsCorrection() bool {
	return !e.Approved && e.CorrectedClassification != nil
}

// Verdict is the category the reviewer settled on: the correction when one
// exists, otherwise the approved original.
func (e Entry) Verdict() category.Category {
	if e.IsCorrection() {
		return *e.CorrectedClassification
	}
	return e.OriginalClassification
}
