package documents

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/wardenhq/warden/pkg/query"
	"github.com/wardenhq/warden/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("filename", "Filename").
	Project("format", "Format").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("image_count", "ImageCount").
	Project("is_legible", "IsLegible").
	Project("legibility_score", "LegibilityScore").
	Project("warnings", "Warnings").
	Project("storage_key", "StorageKey").
	Project("uploaded_at", "UploadedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "classifications", "c", "LEFT JOIN", "d.id = c.document_id").
	Project("classification", "Classification").
	Project("confidence", "Confidence").
	Project("completed_at", "ClassifiedAt")

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries. Nil
// fields are ignored. Format, IsLegible, and Classification use exact
// matching; Filename uses case-insensitive contains matching.
type Filters struct {
	Filename       *string `json:"filename,omitempty"`
	Format         *string `json:"format,omitempty"`
	IsLegible      *bool   `json:"is_legible,omitempty"`
	Classification *string `json:"classification,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Filename", f.Filename).
		WhereEquals("Format", f.Format).
		WhereEquals("IsLegible", f.IsLegible).
		WhereEquals("Classification", f.Classification)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if format := values.Get("format"); format != "" {
		f.Format = &format
	}

	if legible := values.Get("is_legible"); legible != "" {
		if v, err := strconv.ParseBool(legible); err == nil {
			f.IsLegible = &v
		}
	}

	if cl := values.Get("classification"); cl != "" {
		f.Classification = &cl
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var (
		d        Document
		warnings []byte
	)

	err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.Format,
		&d.SizeBytes,
		&d.PageCount,
		&d.ImageCount,
		&d.IsLegible,
		&d.LegibilityScore,
		&warnings,
		&d.StorageKey,
		&d.UploadedAt,
		&d.UpdatedAt,
		&d.Classification,
		&d.Confidence,
		&d.ClassifiedAt,
	)
	if err != nil {
		return d, err
	}

	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &d.Warnings); err != nil {
			return d, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}
	if d.Warnings == nil {
		d.Warnings = []string{}
	}

	return d, nil
}
