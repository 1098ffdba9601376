package documents

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// BlockType discriminates content blocks.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// ContentBlock is one ordered unit of extracted document content. Text
// blocks carry page and character offsets; image blocks carry the encoded
// image and its position.
type ContentBlock struct {
	Type      BlockType `json:"type"`
	Text      string    `json:"text,omitempty"`
	Page      int       `json:"page"`
	StartChar int       `json:"start_char,omitempty"`
	EndChar   int       `json:"end_char,omitempty"`

	ImageIndex int    `json:"image_index,omitempty"`
	MediaType  string `json:"media_type,omitempty"`
	Data       string `json:"data,omitempty"`
}

// Content is the extracted form of a stored document, ready for the
// classification pipeline.
type Content struct {
	Blocks     []ContentBlock `json:"blocks"`
	Text       string         `json:"text"`
	PageCount  int            `json:"page_count"`
	ImageCount int            `json:"image_count"`
}

// Extractor turns stored document bytes into ordered content blocks.
// Richer formats (PDF, Office documents, OCR) are provided by external
// collaborators implementing this interface.
type Extractor interface {
	// Supports reports whether the extractor handles the given format.
	Supports(format string) bool
	// Extract reads the full document and produces its content.
	Extract(ctx context.Context, reader io.Reader) (*Content, error)
}

// pageSize is the character window treated as one page for formats that
// carry no pagination of their own.
const pageSize = 2000

// PlainText extracts text-native formats, paginating on a fixed character
// window.
type PlainText struct{}

var plainTextFormats = map[string]bool{
	"txt":  true,
	"text": true,
	"md":   true,
	"csv":  true,
	"log":  true,
}

func (PlainText) Supports(format string) bool {
	return plainTextFormats[strings.ToLower(format)]
}

func (PlainText) Extract(_ context.Context, reader io.Reader) (*Content, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	text := string(data)
	content := &Content{Text: text}

	for start := 0; start < len(text); start += pageSize {
		end := min(start+pageSize, len(text))
		content.Blocks = append(content.Blocks, ContentBlock{
			Type:      BlockText,
			Text:      text[start:end],
			Page:      start/pageSize + 1,
			StartChar: start,
			EndChar:   end,
		})
	}

	content.PageCount = len(content.Blocks)
	if content.PageCount == 0 {
		content.PageCount = 1
	}
	return content, nil
}
