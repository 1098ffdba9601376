package classifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wardenhq/warden/internal/category"
	"github.com/wardenhq/warden/internal/documents"
	"github.com/wardenhq/warden/internal/learning"
	"github.com/wardenhq/warden/internal/progress"
	"github.com/wardenhq/warden/internal/workflow"
	"github.com/wardenhq/warden/pkg/pagination"
	"github.com/wardenhq/warden/pkg/query"
	"github.com/wardenhq/warden/pkg/repository"
)

// defaultBatchWorkers bounds concurrent pipeline runs in a batch request.
const defaultBatchWorkers = 3

type repo struct {
	db           *sql.DB
	rt           *workflow.Runtime
	docs         documents.System
	broker       *progress.Broker
	logger       *slog.Logger
	pagination   pagination.Config
	batchWorkers int
}

// New creates a classification repository implementing the System
// interface. batchWorkers bounds batch concurrency; values below one fall
// back to the default.
func New(
	db *sql.DB,
	rt *workflow.Runtime,
	docs documents.System,
	broker *progress.Broker,
	logger *slog.Logger,
	pagination pagination.Config,
	batchWorkers int,
) System {
	if batchWorkers < 1 {
		batchWorkers = defaultBatchWorkers
	}

	return &repo{
		db:           db,
		rt:           rt,
		docs:         docs,
		broker:       broker,
		logger:       logger.With("system", "classifications"),
		pagination:   pagination,
		batchWorkers: batchWorkers,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.broker, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Classification], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "Summary")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count classifications: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanClassification)
	if err != nil {
		return nil, fmt.Errorf("query classifications: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Classification, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanClassification)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) FindByDocument(ctx context.Context, documentID uuid.UUID) (*Classification, error) {
	q, args := query.NewBuilder(projection).BuildSingle("DocumentID", documentID)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanClassification)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

// Classify runs the pipeline for one document and stores the result. The
// progress session is opened before the run and released when the run
// settles, after the terminal event.
func (r *repo) Classify(ctx context.Context, cmd ClassifyCommand) (*Classification, error) {
	if cmd.DocumentID == uuid.Nil {
		return nil, fmt.Errorf("%w: document_id is required", ErrInvalidRequest)
	}

	doc, err := r.docs.Find(ctx, cmd.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}

	content, err := r.docs.Content(ctx, cmd.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("extract document content: %w", err)
	}

	session := r.broker.Open(cmd.DocumentID)
	defer r.broker.Release(cmd.DocumentID)

	input := workflow.Input{
		DocumentID:       doc.ID,
		Filename:         doc.Filename,
		Text:             content.Text,
		Images:           contentImages(content),
		PageCount:        doc.PageCount,
		ImageCount:       doc.ImageCount,
		DualVerification: cmd.EnableDualVerification,
	}

	result, err := workflow.Execute(ctx, r.rt, input, session)
	if err != nil {
		session.Fail(err.Error())
		return nil, fmt.Errorf("classify document %s: %w", cmd.DocumentID, err)
	}

	c, err := r.store(ctx, result)
	if err != nil {
		session.Fail(err.Error())
		return nil, err
	}

	session.Complete()

	r.logger.Info("document classified",
		"id", c.ID,
		"document_id", c.DocumentID,
		"classification", c.Classification,
		"confidence", c.Confidence,
		"requires_review", c.RequiresReview,
	)
	return c, nil
}

// ClassifyBatch runs independent classifications over a bounded worker
// pool. Per-document failures are recorded on the item, never propagated.
func (r *repo) ClassifyBatch(ctx context.Context, cmd BatchCommand) ([]BatchItem, error) {
	if len(cmd.DocumentIDs) == 0 {
		return nil, fmt.Errorf("%w: document_ids is required", ErrInvalidRequest)
	}

	items := make([]BatchItem, len(cmd.DocumentIDs))

	var g errgroup.Group
	g.SetLimit(r.batchWorkers)

	for i, id := range cmd.DocumentIDs {
		g.Go(func() error {
			items[i] = BatchItem{DocumentID: id}

			c, err := r.Classify(ctx, ClassifyCommand{
				DocumentID:             id,
				EnableDualVerification: cmd.EnableDualVerification,
			})
			if err != nil {
				r.logger.Warn("batch item failed", "document_id", id, "error", err)
				items[i].Error = err.Error()
				return nil
			}

			items[i].Classification = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a result row. The learning ledger keeps whatever feedback
// was recorded for the document.
func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM classifications WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("classification deleted", "id", id)
	return nil
}

// ApplyReview settles a result row with a reviewer's verdict: review flags
// cleared, reviewer recorded, the model's classification preserved before a
// correction replaces it.
func (r *repo) ApplyReview(ctx context.Context, review learning.Review) (*learning.ReviewOutcome, error) {
	row, err := r.FindByDocument(ctx, review.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: no classification for document %s", learning.ErrNotFound, review.DocumentID)
	}

	original := row.Classification
	if row.Original != nil {
		original = *row.Original
	}

	// Reject before any mutation: invalid feedback must leave the row
	// unsettled and in the review queue.
	if err := validateCorrection(original, review.CorrectedClassification); err != nil {
		return nil, err
	}

	corrected := review.CorrectedClassification
	changed := corrected != nil && *corrected != row.Classification

	q := `
		UPDATE classifications
		SET requires_review = FALSE,
			review_reason = '',
			human_reviewed = TRUE,
			reviewed_by = $1,
			reviewed_at = NOW(),
			classification = COALESCE($2, classification),
			human_corrected = $2,
			original_classification = COALESCE(original_classification, classification)
		WHERE document_id = $3
		RETURNING ` + resultColumns

	var correctedArg any
	if changed {
		correctedArg = string(*corrected)
	}

	updated, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Classification, error) {
		return repository.QueryOne(ctx, tx, q, []any{review.ReviewerID, correctedArg, review.DocumentID}, scanClassification)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("review applied",
		"document_id", review.DocumentID,
		"reviewer", review.ReviewerID,
		"approved", review.Approved,
		"corrected", changed,
	)

	return &learning.ReviewOutcome{
		Original: original,
		Context: learning.EntryContext{
			Filename: updated.Filename,
			Summary:  updated.Summary,
			Keywords: updated.Keywords,
		},
	}, nil
}

// validateCorrection rejects a correction that matches the classification
// the model originally produced.
func validateCorrection(original category.Category, corrected *category.Category) error {
	if corrected != nil && *corrected == original {
		return fmt.Errorf("%w: corrected classification matches the original", learning.ErrInvalidFeedback)
	}
	return nil
}

// PendingReview lists results flagged for review and not yet settled,
// oldest first.
func (r *repo) PendingReview(ctx context.Context) ([]learning.QueueItem, error) {
	q := `
		SELECT document_id, filename, classification, confidence, review_reason, completed_at
		FROM classifications
		WHERE requires_review AND NOT human_reviewed
		ORDER BY completed_at, document_id`

	items, err := repository.QueryMany(ctx, r.db, q, nil, scanQueueItem)
	if err != nil {
		return nil, fmt.Errorf("query review queue: %w", err)
	}
	return items, nil
}

// store upserts the pipeline result by document, clearing any prior human
// review: a reclassified document goes back through the review process.
func (r *repo) store(ctx context.Context, result *workflow.Result) (*Classification, error) {
	marshaled := map[string]any{}
	jsonb := []struct {
		name  string
		value any
	}{
		{"additional_labels", orEmptyStrings(result.AdditionalLabels)},
		{"evidence", orEmptyEvidence(result.Evidence)},
		{"safety_assessment", result.Safety},
		{"text_segments", result.Segments},
		{"image_analyses", result.Images},
		{"document_context", result.Context},
		{"keyword_relevances", result.KeywordRelevances},
		{"all_keywords", orEmptyStrings(result.Keywords)},
		{"progress_steps", orEmptyStrings(result.Steps)},
	}
	for _, field := range jsonb {
		data, err := json.Marshal(field.value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", field.name, err)
		}
		marshaled[field.name] = data
	}

	q := `
		INSERT INTO classifications(
			document_id, filename, classification, additional_labels, confidence,
			summary, reasoning, evidence, safety_assessment, page_count, image_count,
			text_segments, image_analyses, document_context, keyword_relevances,
			all_keywords, secondary_classification, secondary_confidence, consensus,
			verification_notes, progress_steps, requires_review, review_reason,
			processing_ms, model, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		ON CONFLICT (document_id) DO UPDATE SET
			filename = EXCLUDED.filename,
			classification = EXCLUDED.classification,
			additional_labels = EXCLUDED.additional_labels,
			confidence = EXCLUDED.confidence,
			summary = EXCLUDED.summary,
			reasoning = EXCLUDED.reasoning,
			evidence = EXCLUDED.evidence,
			safety_assessment = EXCLUDED.safety_assessment,
			page_count = EXCLUDED.page_count,
			image_count = EXCLUDED.image_count,
			text_segments = EXCLUDED.text_segments,
			image_analyses = EXCLUDED.image_analyses,
			document_context = EXCLUDED.document_context,
			keyword_relevances = EXCLUDED.keyword_relevances,
			all_keywords = EXCLUDED.all_keywords,
			secondary_classification = EXCLUDED.secondary_classification,
			secondary_confidence = EXCLUDED.secondary_confidence,
			consensus = EXCLUDED.consensus,
			verification_notes = EXCLUDED.verification_notes,
			progress_steps = EXCLUDED.progress_steps,
			requires_review = EXCLUDED.requires_review,
			review_reason = EXCLUDED.review_reason,
			human_reviewed = FALSE,
			reviewed_by = NULL,
			reviewed_at = NULL,
			human_corrected = NULL,
			original_classification = NULL,
			processing_ms = EXCLUDED.processing_ms,
			model = EXCLUDED.model,
			completed_at = EXCLUDED.completed_at
		RETURNING ` + resultColumns

	var secondary any
	if result.Secondary != nil {
		secondary = string(*result.Secondary)
	}

	args := []any{
		result.DocumentID,
		result.Filename,
		string(result.Classification),
		marshaled["additional_labels"],
		result.Confidence,
		result.Summary,
		result.Reasoning,
		marshaled["evidence"],
		marshaled["safety_assessment"],
		result.PageCount,
		result.ImageCount,
		marshaled["text_segments"],
		marshaled["image_analyses"],
		marshaled["document_context"],
		marshaled["keyword_relevances"],
		marshaled["all_keywords"],
		secondary,
		result.SecondaryConfidence,
		result.Consensus,
		result.VerificationNotes,
		marshaled["progress_steps"],
		result.RequiresReview,
		result.ReviewReason,
		result.ProcessingTime.Milliseconds(),
		result.Model,
		result.CompletedAt,
	}

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Classification, error) {
		return repository.QueryOne(ctx, tx, q, args, scanClassification)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func scanQueueItem(s repository.Scanner) (learning.QueueItem, error) {
	var item learning.QueueItem
	err := s.Scan(
		&item.DocumentID,
		&item.Filename,
		&item.Classification,
		&item.Confidence,
		&item.ReviewReason,
		&item.ClassifiedAt,
	)
	return item, err
}

func contentImages(content *documents.Content) []workflow.Image {
	var images []workflow.Image
	for _, block := range content.Blocks {
		if block.Type == documents.BlockImage {
			images = append(images, workflow.Image{
				MediaType: block.MediaType,
				Data:      block.Data,
			})
		}
	}
	return images
}

func orEmptyStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyEvidence(values []workflow.Evidence) []workflow.Evidence {
	if values == nil {
		return []workflow.Evidence{}
	}
	return values
}
