package learning

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/pkg/repository"
)

func scanEntry(s repository.Scanner) (Entry, error) {
	var e Entry
	var original string
	var corrected sql.NullString
	var indicatorsRaw, patternsRaw, contextRaw []byte

	err := s.Scan(
		&e.DocumentID,
		&e.ReviewerID,
		&e.Approved,
		&original,
		&corrected,
		&e.FeedbackNotes,
		&e.ReasoningForCorrection,
		&indicatorsRaw,
		&patternsRaw,
		&e.LearningInstruction,
		&contextRaw,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return e, err
	}

	cat, err := category.Parse(original)
	if err != nil {
		return e, fmt.Errorf("original_classification: %w", err)
	}
	e.OriginalClassification = cat

	if corrected.Valid {
		cat, err := category.Parse(corrected.String)
		if err != nil {
			return e, fmt.Errorf("corrected_classification: %w", err)
		}
		e.CorrectedClassification = &cat
	}

	if len(indicatorsRaw) > 0 {
		if err := json.Unmarshal(indicatorsRaw, &e.KeyIndicators); err != nil {
			return e, fmt.Errorf("unmarshal key_indicators: %w", err)
		}
	}

	if len(patternsRaw) > 0 {
		if err := json.Unmarshal(patternsRaw, &e.SimilarPatterns); err != nil {
			return e, fmt.Errorf("unmarshal similar_patterns: %w", err)
		}
	}

	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &e.Context); err != nil {
			return e, fmt.Errorf("unmarshal document_context: %w", err)
		}
	}

	return e, nil
}
