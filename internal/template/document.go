// internal/template/document.go
//
// Content document column codec.
//
// The `data` column holds the full page tree for a site: an ordered list
// of pages, each a slug plus opaque content blocks.  Blocks belong to the
// visual editor and are never interpreted here; they round-trip as raw
// maps.  goccy/go-json handles both directions.
package template

import (
	"database/sql/driver"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// DefaultFirstPage is served when a document has no pages at all.
const DefaultFirstPage = "home"

// Document is the nested pages → blocks structure stored in `data`.
type Document struct {
	Pages []Page `json:"pages"`
}

// Page is one renderable page of a site.  Blocks are opaque to the
// resolution engine.
type Page struct {
	Slug   string           `json:"slug"`
	Title  string           `json:"title,omitempty"`
	Blocks []map[string]any `json:"blocks,omitempty"`
}

// FirstPageSlug returns the slug of the first page, or DefaultFirstPage
// when the document is empty or its first page has no slug.
func (d Document) FirstPageSlug() string {
	if len(d.Pages) == 0 || d.Pages[0].Slug == "" {
		return DefaultFirstPage
	}
	return d.Pages[0].Slug
}

// PageBySlug returns the page with the given slug, or nil.
func (d Document) PageBySlug(slug string) *Page {
	for i := range d.Pages {
		if d.Pages[i].Slug == slug {
			return &d.Pages[i]
		}
	}
	return nil
}

// Value implements driver.Valuer; the document is stored as JSON text.
func (d Document) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("template: encode document: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner.  NULL scans to an empty document.
func (d *Document) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Document{}
		return nil
	case []byte:
		if len(v) == 0 {
			*d = Document{}
			return nil
		}
		return json.Unmarshal(v, d)
	case string:
		if v == "" {
			*d = Document{}
			return nil
		}
		return json.Unmarshal([]byte(v), d)
	default:
		return errors.New("template: unsupported document source type")
	}
}
