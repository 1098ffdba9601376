package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/wardenhq/warden/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates the Postgres-backed correction ledger.
func NewStore(db *sql.DB, logger *slog.Logger) Store {
	return &repo{
		db:     db,
		logger: logger.With("store", "learning"),
	}
}

const entryColumns = `document_id, reviewer_id, approved, original_classification,
		corrected_classification, feedback_notes, reasoning_for_correction,
		key_indicators, similar_patterns, learning_instruction, document_context,
		created_at, updated_at`

func (r *repo) Upsert(ctx context.Context, entry Entry) (*Entry, error) {
	indicators, err := json.Marshal(orEmpty(entry.KeyIndicators))
	if err != nil {
		return nil, fmt.Errorf("marshal key_indicators: %w", err)
	}

	patterns, err := json.Marshal(orEmpty(entry.SimilarPatterns))
	if err != nil {
		return nil, fmt.Errorf("marshal similar_patterns: %w", err)
	}

	docContext, err := json.Marshal(entry.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal document_context: %w", err)
	}

	var corrected any
	if entry.CorrectedClassification != nil {
		corrected = entry.CorrectedClassification.String()
	}

	upsertQ := `
		INSERT INTO learning_entries(
			document_id, reviewer_id, approved, original_classification,
			corrected_classification, feedback_notes, reasoning_for_correction,
			key_indicators, similar_patterns, learning_instruction, document_context
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (document_id) DO UPDATE SET
			reviewer_id = EXCLUDED.reviewer_id,
			approved = EXCLUDED.approved,
			original_classification = EXCLUDED.original_classification,
			corrected_classification = EXCLUDED.corrected_classification,
			feedback_notes = EXCLUDED.feedback_notes,
			reasoning_for_correction = EXCLUDED.reasoning_for_correction,
			key_indicators = EXCLUDED.key_indicators,
			similar_patterns = EXCLUDED.similar_patterns,
			learning_instruction = EXCLUDED.learning_instruction,
			document_context = EXCLUDED.document_context,
			updated_at = NOW()
		RETURNING ` + entryColumns

	upsertArgs := []any{
		entry.DocumentID,
		entry.ReviewerID,
		entry.Approved,
		entry.OriginalClassification.String(),
		corrected,
		entry.FeedbackNotes,
		entry.ReasoningForCorrection,
		indicators,
		patterns,
		entry.LearningInstruction,
		docContext,
	}

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Entry, error) {
		return repository.QueryOne(ctx, tx, upsertQ, upsertArgs, scanEntry)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	return &saved, nil
}

// All returns the full ledger ordered by creation time, oldest first. The
// analyzer depends on this ordering for stable example and override
// selection.
func (r *repo) All(ctx context.Context) ([]Entry, error) {
	q := `SELECT ` + entryColumns + `
		FROM learning_entries
		ORDER BY created_at, document_id`

	entries, err := repository.QueryMany(ctx, r.db, q, nil, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query learning entries: %w", err)
	}

	return entries, nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
