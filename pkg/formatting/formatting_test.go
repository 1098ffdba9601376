package formatting_test

import (
	"errors"
	"testing"

	"github.com/wardenhq/warden/pkg/formatting"
)

type reply struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
}

func TestParse(t *testing.T) {
	t.Run("direct JSON", func(t *testing.T) {
		got, err := formatting.Parse[reply](`{"classification":"Public","confidence":0.9}`)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if got.Classification != "Public" || got.Confidence != 0.9 {
			t.Errorf("Parse = %+v, want {Public 0.9}", got)
		}
	})

	t.Run("markdown fenced JSON", func(t *testing.T) {
		input := "```json\n{\"classification\":\"Confidential\",\"confidence\":0.8}\n```"
		got, err := formatting.Parse[reply](input)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if got.Classification != "Confidential" {
			t.Errorf("Classification = %q, want Confidential", got.Classification)
		}
	})

	t.Run("fenced without language tag", func(t *testing.T) {
		input := "```\n{\"classification\":\"Public\",\"confidence\":0.5}\n```"
		if _, err := formatting.Parse[reply](input); err != nil {
			t.Fatalf("Parse error: %v", err)
		}
	})

	t.Run("fenced with surrounding prose", func(t *testing.T) {
		input := "Here is my assessment:\n```json\n{\"classification\":\"Public\",\"confidence\":0.7}\n```\nDone."
		got, err := formatting.Parse[reply](input)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if got.Confidence != 0.7 {
			t.Errorf("Confidence = %v, want 0.7", got.Confidence)
		}
	})

	t.Run("invalid content returns ErrParseFailed", func(t *testing.T) {
		_, err := formatting.Parse[reply]("not json at all")
		if !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("error = %v, want ErrParseFailed", err)
		}
	})

	t.Run("empty string returns ErrParseFailed", func(t *testing.T) {
		_, err := formatting.Parse[reply]("")
		if !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("error = %v, want ErrParseFailed", err)
		}
	})

	t.Run("parses into slice type", func(t *testing.T) {
		got, err := formatting.Parse[[]int](`[1,2,3]`)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if len(got) != 3 || got[0] != 1 {
			t.Errorf("got = %v, want [1 2 3]", got)
		}
	})
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"bare bytes", "1024", 1024, false},
		{"kilobytes", "1KB", 1024, false},
		{"megabytes", "50MB", 50 * 1024 * 1024, false},
		{"gigabytes", "2GB", 2 * 1024 * 1024 * 1024, false},
		{"lowercase unit", "10mb", 10 * 1024 * 1024, false},
		{"with space", "100 MB", 100 * 1024 * 1024, false},
		{"empty string", "", 0, true},
		{"unknown unit", "50XX", 0, true},
		{"negative", "-5MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name      string
		n         int64
		precision int
		want      string
	}{
		{"zero", 0, 2, "0 B"},
		{"bytes", 500, 0, "500 B"},
		{"one MB", 1024 * 1024, 0, "1 MB"},
		{"fractional MB", 1536 * 1024, 1, "1.5 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
				t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
			}
		})
	}
}
