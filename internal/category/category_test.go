package category

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, c := range Categories() {
		got, err := Parse(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := Parse("Top Secret")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUnmarshalJSON(t *testing.T) {
	var c Category
	require.NoError(t, json.Unmarshal([]byte(`"Highly Sensitive"`), &c))
	assert.Equal(t, HighlySensitive, c)

	assert.Error(t, json.Unmarshal([]byte(`"secret"`), &c))
	assert.Error(t, json.Unmarshal([]byte(`42`), &c))
}

func TestMostSevere(t *testing.T) {
	tests := []struct {
		name string
		set  []Category
		want Category
	}{
		{"unsafe dominates", []Category{Public, Unsafe}, Unsafe},
		{"highly sensitive over confidential", []Category{Confidential, HighlySensitive}, HighlySensitive},
		{"confidential over public", []Category{Public, Confidential}, Confidential},
		{"single", []Category{Public}, Public},
		{"empty defaults public", nil, Public},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MostSevere(tt.set...))
		})
	}
}
