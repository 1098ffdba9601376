// Package features detects document characteristics that steer prompt
// planning: PII data shapes, defense and government vocabulary, marketing
// and technical term density. Rule tables are configuration, not code, so
// deployments can tune them without a rebuild.
package features

import (
	"fmt"
	"os"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// Rules holds the detection tables and scoring weights. Loaded from a TOML
// rules file; Default provides the compiled-in tables.
type Rules struct {
	// PIIPatterns are named regular expressions matching actual data
	// shapes (a number that looks like an SSN), not vocabulary.
	PIIPatterns map[string]string `toml:"pii_patterns"`
	// FormIndicators are field labels whose repetition marks a fillable
	// form even without matched data shapes.
	FormIndicators []string `toml:"form_indicators"`
	// FilenamePIIHints flag PII from the filename alone.
	FilenamePIIHints []string `toml:"filename_pii_hints"`

	DefenseTerms    []string `toml:"defense_terms"`
	GovernmentTerms []string `toml:"government_terms"`
	MarketingTerms  []string `toml:"marketing_terms"`
	TechnicalTerms  []string `toml:"technical_terms"`

	Thresholds Thresholds `toml:"thresholds"`
	Weights    Weights    `toml:"weights"`
}

// Thresholds are the minimum term counts that set each feature.
type Thresholds struct {
	FormIndicators int `toml:"form_indicators"`
	Defense        int `toml:"defense"`
	Government     int `toml:"government"`
	Marketing      int `toml:"marketing"`
	Technical      int `toml:"technical"`
	// VisualImageCount is the image count above which the visual
	// analysis stage is planned.
	VisualImageCount int `toml:"visual_image_count"`
}

// Weights adjust the sensitivity score when a feature is set. Marketing is
// negative: promotional material trends public.
type Weights struct {
	PII        float64 `toml:"pii"`
	Defense    float64 `toml:"defense"`
	Government float64 `toml:"government"`
	Marketing  float64 `toml:"marketing"`
	Technical  float64 `toml:"technical"`
}

// Default returns the compiled-in rule tables.
func Default() Rules {
	return Rules{
		PIIPatterns: map[string]string{
			"ssn":            `\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b|\b\d{9}\b`,
			"phone":          `\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b|\b\(\d{3}\)\s*\d{3}[-.\s]?\d{4}\b`,
			"email":          `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			"credit_card":    `\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b|\b\d{13,16}\b`,
			"date_of_birth":  `\b(?:0[1-9]|1[0-2])[/-](?:0[1-9]|[12]\d|3[01])[/-](?:19|20)\d{2}\b|\b(?:0[1-9]|[12]\d|3[01])[/-](?:0[1-9]|1[0-2])[/-](?:19|20)\d{2}\b`,
			"account_number": `(?i)\b(?:acct|account|a/c|#)[:\s#]*\d{6,}\b|\b[A-Z]{2,4}\d{6,}\b`,
			"passport":       `\b[A-Z]{1,2}\d{6,9}\b`,
			"license":        `\b[A-Z]{1,2}\d{5,8}\b|\b\d{8,10}\b`,
		},
		FormIndicators: []string{
			"employee id", "employee number", "student id",
			"patient id", "case number", "reference number",
			"application form", "enrollment form", "registration form",
		},
		FilenamePIIHints: []string{"application", "form", "personal", "employee"},
		DefenseTerms: []string{
			"classified", "secret", "confidential", "proprietary",
			"fighter", "aircraft", "stealth", "weapon", "military",
			"defense", "tactical", "strategic", "missile", "radar",
			"sensor", "prototype", "blueprint", "specification",
			"clearance", "restricted", "controlled", "export",
		},
		GovernmentTerms: []string{
			".gov", "federal", "government", "agency",
			"department of", "bureau", "administration",
			"congressional", "senate", "house of representatives",
			"executive order", "public law", "regulation",
		},
		MarketingTerms: []string{
			"promote", "advertis", "campaign", "launch",
			"product", "sale", "marketing",
		},
		TechnicalTerms: []string{
			"specification", "blueprint", "schematic",
			"technical", "diagram", "part number",
		},
		Thresholds: Thresholds{
			FormIndicators:   2,
			Defense:          3,
			Government:       1,
			Marketing:        3,
			Technical:        2,
			VisualImageCount: 5,
		},
		Weights: Weights{
			PII:        30,
			Defense:    40,
			Government: 20,
			Marketing:  -10,
			Technical:  25,
		},
	}
}

// Load reads rules from a TOML file, filling gaps from Default. An empty
// path returns the defaults.
func Load(path string) (Rules, error) {
	rules := Default()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	var overlay Rules
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}

	rules.merge(overlay)
	if err := rules.validate(); err != nil {
		return Rules{}, err
	}

	return rules, nil
}

func (r *Rules) merge(overlay Rules) {
	if len(overlay.PIIPatterns) > 0 {
		r.PIIPatterns = overlay.PIIPatterns
	}
	if len(overlay.FormIndicators) > 0 {
		r.FormIndicators = overlay.FormIndicators
	}
	if len(overlay.FilenamePIIHints) > 0 {
		r.FilenamePIIHints = overlay.FilenamePIIHints
	}
	if len(overlay.DefenseTerms) > 0 {
		r.DefenseTerms = overlay.DefenseTerms
	}
	if len(overlay.GovernmentTerms) > 0 {
		r.GovernmentTerms = overlay.GovernmentTerms
	}
	if len(overlay.MarketingTerms) > 0 {
		r.MarketingTerms = overlay.MarketingTerms
	}
	if len(overlay.TechnicalTerms) > 0 {
		r.TechnicalTerms = overlay.TechnicalTerms
	}
	if overlay.Thresholds != (Thresholds{}) {
		r.Thresholds = overlay.Thresholds
	}
	if overlay.Weights != (Weights{}) {
		r.Weights = overlay.Weights
	}
}

func (r *Rules) validate() error {
	for name, pattern := range r.PIIPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid pii pattern %q: %w", name, err)
		}
	}
	return nil
}
