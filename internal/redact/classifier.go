package redact

import (
	"fmt"
	"slices"
	"strings"
)

// builtinPattern is always part of the pattern set, regardless of operator
// configuration.
const builtinPattern = "public_key"

// requiredFields are field names the rest of the pipeline depends on for
// record identity. A pattern set that classifies any of them sensitive would
// silently corrupt every record, so it is rejected at startup.
var requiredFields = []string{"arn", "values", "address"}

// Classifier decides whether a field name is inherently sensitive based on
// case-sensitive substring patterns. It is read-only after construction.
type Classifier struct {
	patterns []string
}

// NewClassifier builds a classifier from the builtin pattern plus any
// operator-supplied patterns. Empty strings are discarded and duplicates
// collapsed.
func NewClassifier(extra []string) *Classifier {
	patterns := []string{builtinPattern}
	for _, p := range extra {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(patterns, p) {
			continue
		}
		patterns = append(patterns, p)
	}
	return &Classifier{patterns: patterns}
}

// Sensitive reports whether the field name contains any configured pattern.
func (c *Classifier) Sensitive(field string) bool {
	for _, p := range c.patterns {
		if strings.Contains(field, p) {
			return true
		}
	}
	return false
}

// Validate rejects pattern sets under which a structurally required field
// name would itself be classified sensitive.
func (c *Classifier) Validate() error {
	for _, field := range requiredFields {
		if c.Sensitive(field) {
			return fmt.Errorf("sensitive field patterns match required field %q", field)
		}
	}
	return nil
}

// Patterns returns a copy of the active pattern set.
func (c *Classifier) Patterns() []string {
	return slices.Clone(c.patterns)
}
