package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(Default())
	require.NoError(t, err)
	return d
}

func TestDetectPIIDataShapes(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		name    string
		preview string
		wantPII bool
	}{
		{"ssn", "Applicant SSN: 123-45-6789 on file", true},
		{"email", "Contact jane.doe@example.com for details", true},
		{"phone", "Call (555) 123-4567 to confirm", true},
		{"credit card", "Card 4111 1111 1111 1111 expires soon", true},
		{"no data shapes", "Quarterly update on the garden project", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := d.Detect("report-"+tt.name+".pdf", tt.preview, 0)
			assert.Equal(t, tt.wantPII, v.PII)
			if tt.wantPII {
				assert.Equal(t, Default().Weights.PII, v.SensitivityScore)
			}
		})
	}
}

func TestDetectFormIndicators(t *testing.T) {
	d := newDetector(t)

	// Two form field labels flag PII even without matched data shapes.
	v := d.Detect("intake.pdf", "Employee ID: ____  Case Number: ____", 0)
	assert.True(t, v.PII)

	v = d.Detect("single.pdf", "Reference number pending", 0)
	assert.False(t, v.PII)
}

func TestDetectFilenameHints(t *testing.T) {
	d := newDetector(t)

	v := d.Detect("employment-application.pdf", "", 0)
	assert.True(t, v.PII)
	// Filename-only detection adds no score without content evidence.
	assert.Zero(t, v.SensitivityScore)
}

func TestDetectDefenseThreshold(t *testing.T) {
	d := newDetector(t)

	// Two defense terms stay below the threshold of three.
	v := d.Detect("a.pdf", "radar and missile research summary", 0)
	assert.False(t, v.Defense)

	v = d.Detect("b.pdf", "stealth fighter radar specification and schematic for tactical use", 0)
	assert.True(t, v.Defense)
	assert.True(t, v.Technical)
}

func TestDetectGovernmentSingleMarker(t *testing.T) {
	d := newDetector(t)

	v := d.Detect("c.pdf", "published at example.gov yesterday", 0)
	assert.True(t, v.Government)
	assert.Equal(t, TypeGovernment, v.DocumentType)
}

func TestDetectMarketingLowersScore(t *testing.T) {
	d := newDetector(t)

	v := d.Detect("d.pdf", "new product launch campaign to promote the brand", 0)
	assert.True(t, v.Marketing)
	assert.Equal(t, TypeMarketing, v.DocumentType)
	assert.Negative(t, v.SensitivityScore)
}

func TestDetectMultiLabel(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		name    string
		file    string
		preview string
		want    bool
	}{
		{
			name:    "defense plus marketing",
			file:    "brochure.pdf",
			preview: "campaign to promote and launch our new product: a stealth fighter with advanced radar and missile systems",
			want:    true,
		},
		{
			name:    "pii plus government",
			file:    "roster.pdf",
			preview: "federal agency roster, contact jane@agency.gov",
			want:    true,
		},
		{
			name:    "pii alone",
			file:    "roster.pdf",
			preview: "contact jane.doe@example.com",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := d.Detect(tt.file+tt.name, tt.preview, 0)
			assert.Equal(t, tt.want, v.MultiLabel)
		})
	}
}

func TestDetectDocumentTypes(t *testing.T) {
	d := newDetector(t)

	v := d.Detect("loan-application.pdf", "Employee ID: 1  Case Number: 2", 0)
	assert.Equal(t, TypeFormWithPII, v.DocumentType)

	v = d.Detect("internal-memo.pdf", "weekly notes", 0)
	assert.Equal(t, TypeInternalMemo, v.DocumentType)

	v = d.Detect("notes.pdf", "weekly notes", 0)
	assert.Equal(t, TypeGeneral, v.DocumentType)
}

func TestDetectVisualStage(t *testing.T) {
	d := newDetector(t)

	assert.False(t, d.Detect("few.pdf", "", 5).Visual)
	assert.True(t, d.Detect("many.pdf", "", 6).Visual)
}

func TestDetectCachesByFilename(t *testing.T) {
	d := newDetector(t)

	first := d.Detect("same.pdf", "stealth fighter radar specification and schematic for tactical use", 0)
	// Same filename with different content returns the cached vector.
	second := d.Detect("same.pdf", "", 0)
	assert.Equal(t, first, second)
}

func TestPreview(t *testing.T) {
	long := make([]byte, PreviewLength*2)
	for i := range long {
		long[i] = 'a'
	}

	assert.Len(t, Preview(string(long)), PreviewLength)
	assert.Equal(t, "short", Preview("short"))
}

func TestLoadDefaultsWhenNoPath(t *testing.T) {
	rules, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), rules)
}
