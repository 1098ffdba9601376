package documents

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainTextExtract(t *testing.T) {
	text := strings.Repeat("a", pageSize) + strings.Repeat("b", 500)

	content, err := PlainText{}.Extract(context.Background(), strings.NewReader(text))
	require.NoError(t, err)

	assert.Equal(t, text, content.Text)
	assert.Equal(t, 2, content.PageCount)
	require.Len(t, content.Blocks, 2)

	first := content.Blocks[0]
	assert.Equal(t, BlockText, first.Type)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 0, first.StartChar)
	assert.Equal(t, pageSize, first.EndChar)

	second := content.Blocks[1]
	assert.Equal(t, 2, second.Page)
	assert.Equal(t, pageSize, second.StartChar)
	assert.Equal(t, pageSize+500, second.EndChar)
	assert.Equal(t, strings.Repeat("b", 500), second.Text)
}

func TestPlainTextExtractEmpty(t *testing.T) {
	content, err := PlainText{}.Extract(context.Background(), strings.NewReader(""))
	require.NoError(t, err)

	assert.Empty(t, content.Blocks)
	assert.Equal(t, 1, content.PageCount)
}

func TestPlainTextSupports(t *testing.T) {
	assert.True(t, PlainText{}.Supports("txt"))
	assert.True(t, PlainText{}.Supports("MD"))
	assert.False(t, PlainText{}.Supports("pdf"))
	assert.False(t, PlainText{}.Supports(""))
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "pdf", formatOf("Quarterly Report.PDF"))
	assert.Equal(t, "txt", formatOf("notes.txt"))
	assert.Equal(t, "bin", formatOf("README"))
}

func TestFiltersFromQuery(t *testing.T) {
	values := url.Values{
		"filename":       {"report"},
		"format":         {"pdf"},
		"is_legible":     {"false"},
		"classification": {"Confidential"},
	}

	f := FiltersFromQuery(values)
	require.NotNil(t, f.Filename)
	assert.Equal(t, "report", *f.Filename)
	require.NotNil(t, f.Format)
	assert.Equal(t, "pdf", *f.Format)
	require.NotNil(t, f.IsLegible)
	assert.False(t, *f.IsLegible)
	require.NotNil(t, f.Classification)
	assert.Equal(t, "Confidential", *f.Classification)

	empty := FiltersFromQuery(url.Values{})
	assert.Nil(t, empty.Filename)
	assert.Nil(t, empty.Format)
	assert.Nil(t, empty.IsLegible)
	assert.Nil(t, empty.Classification)
}

func TestMapHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, MapHTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusConflict, MapHTTPStatus(ErrDuplicate))
	assert.Equal(t, http.StatusRequestEntityTooLarge, MapHTTPStatus(ErrFileTooLarge))
	assert.Equal(t, http.StatusBadRequest, MapHTTPStatus(ErrInvalidFile))
	assert.Equal(t, http.StatusUnsupportedMediaType, MapHTTPStatus(ErrUnsupportedFormat))
	assert.Equal(t, http.StatusInternalServerError, MapHTTPStatus(assert.AnError))
}
