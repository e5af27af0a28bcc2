// Package page turns a web page into the context the assistant answers
// questions about.
package page

import (
	"context"
	"unicode/utf8"
)

const (
	// MaxContentRunes caps the extracted body text.
	MaxContentRunes = 10000

	// MaxImages caps the number of image URLs kept in Metadata.
	MaxImages = 20
)

// Context is the page the user is looking at.
type Context struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	SelectedText string    `json:"selectedText,omitempty"`
	Metadata     *Metadata `json:"metadata,omitempty"`
}

// Metadata is optional descriptive data taken from the page head.
type Metadata struct {
	Description   string   `json:"description,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Author        string   `json:"author,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Images        []string `json:"images,omitempty"`
}

// Extractor builds a Context for a URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Context, error)
}

// Description returns the metadata description, or "" when there is none.
func (c *Context) Description() string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	return c.Metadata.Description
}

// TruncateRunes returns s cut to at most n runes without splitting a
// multibyte character.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
