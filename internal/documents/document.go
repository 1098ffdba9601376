// Package documents implements document intake for Warden: upload and
// registration of files to classify, metadata persistence, blob storage
// integration, and content extraction for the classification pipeline.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document is a registered document with its intake metadata and blob
// storage reference. Classification fields are populated from a left join
// and remain nil until the document has been classified.
type Document struct {
	ID              uuid.UUID `json:"id"`
	Filename        string    `json:"filename"`
	Format          string    `json:"format"`
	SizeBytes       int64     `json:"size_bytes"`
	PageCount       int       `json:"page_count"`
	ImageCount      int       `json:"image_count"`
	IsLegible       bool      `json:"is_legible"`
	LegibilityScore float64   `json:"legibility_score"`
	Warnings        []string  `json:"warnings"`
	StorageKey      string    `json:"storage_key"`
	UploadedAt      time.Time `json:"uploaded_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Classification *string    `json:"classification,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty"`
	ClassifiedAt   *time.Time `json:"classified_at,omitempty"`
}

// CreateCommand carries the data needed to upload and register a new
// document. Data holds the raw file bytes. Metadata supplied by the uploader
// is trusted as-is; extraction and legibility scoring happen upstream.
type CreateCommand struct {
	Data            []byte
	Filename        string
	ContentType     string
	Format          string
	PageCount       int
	ImageCount      int
	IsLegible       bool
	LegibilityScore float64
	Warnings        []string
}
