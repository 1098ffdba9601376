// Package category defines the sensitivity categories a document can be
// assigned and their severity ordering.
package category

import (
	"encoding/json"
	"errors"
	"slices"
)

// Category is a document sensitivity classification.
type Category string

// The four sensitivity categories, least to most severe.
const (
	Public          Category = "Public"
	Confidential    Category = "Confidential"
	HighlySensitive Category = "Highly Sensitive"
	Unsafe          Category = "Unsafe"
)

// ErrInvalid indicates a value outside the closed category set.
var ErrInvalid = errors.New("invalid classification category")

var categories = []Category{
	Public,
	Confidential,
	HighlySensitive,
	Unsafe,
}

// BySeverity lists categories from most to least severe, used when a
// conservative fallback must pick between disagreeing classifications.
var BySeverity = []Category{
	Unsafe,
	HighlySensitive,
	Confidential,
	Public,
}

// Categories returns the closed set of valid categories.
func Categories() []Category {
	return categories
}

// Parse validates a string as a known category.
func Parse(s string) (Category, error) {
	v := Category(s)
	if !slices.Contains(categories, v) {
		return "", ErrInvalid
	}
	return v, nil
}

// UnmarshalJSON validates that the decoded string is a known category.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// MostSevere returns the most severe category present in the given set,
// defaulting to Public for an empty set.
func MostSevere(set ...Category) Category {
	for _, candidate := range BySeverity {
		if slices.Contains(set, candidate) {
			return candidate
		}
	}
	return Public
}
