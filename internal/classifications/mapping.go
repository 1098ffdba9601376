package classifications

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/workflow"
	"github.com/wardenhq/warden/pkg/query"
	"github.com/wardenhq/warden/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "classifications", "c").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("filename", "Filename").
	Project("classification", "Classification").
	Project("additional_labels", "AdditionalLabels").
	Project("confidence", "Confidence").
	Project("summary", "Summary").
	Project("reasoning", "Reasoning").
	Project("evidence", "Evidence").
	Project("safety_assessment", "Safety").
	Project("page_count", "PageCount").
	Project("image_count", "ImageCount").
	Project("text_segments", "Segments").
	Project("image_analyses", "Images").
	Project("document_context", "Context").
	Project("keyword_relevances", "KeywordRelevances").
	Project("all_keywords", "Keywords").
	Project("secondary_classification", "Secondary").
	Project("secondary_confidence", "SecondaryConfidence").
	Project("consensus", "Consensus").
	Project("verification_notes", "VerificationNotes").
	Project("progress_steps", "Steps").
	Project("requires_review", "RequiresReview").
	Project("review_reason", "ReviewReason").
	Project("human_reviewed", "HumanReviewed").
	Project("reviewed_by", "ReviewedBy").
	Project("reviewed_at", "ReviewedAt").
	Project("human_corrected", "HumanCorrected").
	Project("original_classification", "Original").
	Project("processing_ms", "ProcessingMS").
	Project("model", "Model").
	Project("completed_at", "CompletedAt")

var defaultSort = query.SortField{
	Field:      "CompletedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for result queries. Nil
// fields are ignored; all filters use exact matching.
type Filters struct {
	Classification *string    `json:"classification,omitempty"`
	RequiresReview *bool      `json:"requires_review,omitempty"`
	HumanReviewed  *bool      `json:"human_reviewed,omitempty"`
	DocumentID     *uuid.UUID `json:"document_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Classification", f.Classification).
		WhereEquals("RequiresReview", f.RequiresReview).
		WhereEquals("HumanReviewed", f.HumanReviewed).
		WhereEquals("DocumentID", f.DocumentID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if cl := values.Get("classification"); cl != "" {
		f.Classification = &cl
	}

	if rr := values.Get("requires_review"); rr != "" {
		if v, err := strconv.ParseBool(rr); err == nil {
			f.RequiresReview = &v
		}
	}

	if hr := values.Get("human_reviewed"); hr != "" {
		if v, err := strconv.ParseBool(hr); err == nil {
			f.HumanReviewed = &v
		}
	}

	if id := values.Get("document_id"); id != "" {
		if v, err := uuid.Parse(id); err == nil {
			f.DocumentID = &v
		}
	}

	return f
}

// resultColumns is the column list the RETURNING clauses share with
// scanClassification.
const resultColumns = `id, document_id, filename, classification, additional_labels, confidence,
	summary, reasoning, evidence, safety_assessment, page_count, image_count,
	text_segments, image_analyses, document_context, keyword_relevances, all_keywords,
	secondary_classification, secondary_confidence, consensus, verification_notes,
	progress_steps, requires_review, review_reason, human_reviewed, reviewed_by,
	reviewed_at, human_corrected, original_classification, processing_ms, model, completed_at`

func scanClassification(s repository.Scanner) (Classification, error) {
	var (
		c              Classification
		classification string
		secondary      sql.NullString
		corrected      sql.NullString
		original       sql.NullString

		labelsRaw     []byte
		evidenceRaw   []byte
		safetyRaw     []byte
		segmentsRaw   []byte
		imagesRaw     []byte
		contextRaw    []byte
		relevancesRaw []byte
		keywordsRaw   []byte
		stepsRaw      []byte
	)

	err := s.Scan(
		&c.ID,
		&c.DocumentID,
		&c.Filename,
		&classification,
		&labelsRaw,
		&c.Confidence,
		&c.Summary,
		&c.Reasoning,
		&evidenceRaw,
		&safetyRaw,
		&c.PageCount,
		&c.ImageCount,
		&segmentsRaw,
		&imagesRaw,
		&contextRaw,
		&relevancesRaw,
		&keywordsRaw,
		&secondary,
		&c.SecondaryConfidence,
		&c.Consensus,
		&c.VerificationNotes,
		&stepsRaw,
		&c.RequiresReview,
		&c.ReviewReason,
		&c.HumanReviewed,
		&c.ReviewedBy,
		&c.ReviewedAt,
		&corrected,
		&original,
		&c.ProcessingMS,
		&c.Model,
		&c.CompletedAt,
	)
	if err != nil {
		return c, err
	}

	cat, err := category.Parse(classification)
	if err != nil {
		return c, fmt.Errorf("classification: %w", err)
	}
	c.Classification = cat

	if c.Secondary, err = parseNullable(secondary, "secondary_classification"); err != nil {
		return c, err
	}
	if c.HumanCorrected, err = parseNullable(corrected, "human_corrected"); err != nil {
		return c, err
	}
	if c.Original, err = parseNullable(original, "original_classification"); err != nil {
		return c, err
	}

	jsonb := []struct {
		raw  []byte
		dest any
		name string
	}{
		{labelsRaw, &c.AdditionalLabels, "additional_labels"},
		{evidenceRaw, &c.Evidence, "evidence"},
		{safetyRaw, &c.Safety, "safety_assessment"},
		{segmentsRaw, &c.Segments, "text_segments"},
		{imagesRaw, &c.Images, "image_analyses"},
		{contextRaw, &c.Context, "document_context"},
		{relevancesRaw, &c.KeywordRelevances, "keyword_relevances"},
		{keywordsRaw, &c.Keywords, "all_keywords"},
		{stepsRaw, &c.Steps, "progress_steps"},
	}
	for _, field := range jsonb {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return c, fmt.Errorf("unmarshal %s: %w", field.name, err)
		}
	}

	if c.AdditionalLabels == nil {
		c.AdditionalLabels = []string{}
	}
	if c.Evidence == nil {
		c.Evidence = []workflow.Evidence{}
	}

	return c, nil
}

func parseNullable(v sql.NullString, field string) (*category.Category, error) {
	if !v.Valid {
		return nil, nil
	}
	cat, err := category.Parse(v.String)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &cat, nil
}
