package preprocess

import (
	"regexp"
	"strings"
	"unicode"
)

var htmlTagRegex = regexp.MustCompile(`(?s)<[^>]*>`)

type Cleaner struct {
	stripHTML     bool
	removeControl bool
}

type CleanerOption func(*Cleaner)

// WithStripHTML replaces markup tags with a space before normalizing.
func WithStripHTML() CleanerOption {
	return func(c *Cleaner) {
		c.stripHTML = true
	}
}

// WithRemoveControl drops control characters that are not whitespace.
func WithRemoveControl() CleanerOption {
	return func(c *Cleaner) {
		c.removeControl = true
	}
}

func NewCleaner(opts ...CleanerOption) *Cleaner {
	c := &Cleaner{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean collapses every whitespace run to a single space and trims both ends.
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}
	if c.stripHTML {
		text = htmlTagRegex.ReplaceAllString(text, " ")
	}
	if c.removeControl {
		text = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) && !unicode.IsSpace(r) {
				return -1
			}
			return r
		}, text)
	}
	return strings.Join(strings.Fields(text), " ")
}
