// Package detect picks a CSS selector for each semantic field of a comic
// page by probing an ordered table of known site layouts.
package detect

import (
	"strings"
	"unicode/utf8"
)

type Field string

const (
	Title         Field = "title"
	Cover         Field = "cover"
	Description   Field = "description"
	Genres        Field = "genres"
	Status        Field = "status"
	Rating        Field = "rating"
	Author        Field = "author"
	Type          Field = "type"
	ChapterList   Field = "chapterList"
	ChapterImages Field = "chapterImages"
)

// Fields lists the fields in the order a comic page is scraped.
var Fields = []Field{Title, Cover, Description, Genres, Status, Rating, Author, Type, ChapterList, ChapterImages}

// CoverAttrs is the lazy-load priority for cover images.
var CoverAttrs = []string{"src", "data-src", "data-lazy-src"}

type rule struct {
	fallback string
	accept   func(q DocumentQuery, selector string) bool
}

var rules = map[Field]rule{
	Title:         {fallback: "h1", accept: textLen(3, 200)},
	Cover:         {fallback: "img", accept: coverAccepted},
	Description:   {fallback: "p", accept: textLen(50, -1)},
	Genres:        {fallback: ".genre a", accept: present},
	Status:        {fallback: "body", accept: present},
	Rating:        {fallback: ".rating", accept: present},
	Author:        {fallback: ".author", accept: textLen(0, 100)},
	Type:          {fallback: "body", accept: present},
	ChapterList:   {fallback: `a:contains("Chapter")`, accept: present},
	ChapterImages: {fallback: "img", accept: present},
}

// Overrides maps a field to an operator supplied selector.
type Overrides map[Field]string

// Detect returns the first candidate selector for field whose probe finds
// plausible content, or the field's generic fallback. It never fails.
func Detect(q DocumentQuery, field Field) string {
	r, ok := rules[field]
	if !ok {
		return ""
	}

	for _, c := range candidates {
		if c.field != field {
			continue
		}
		if r.accept(q, c.selector) {
			return c.selector
		}
	}

	return r.fallback
}

// Resolve prefers a non-empty override over detection.
func Resolve(q DocumentQuery, field Field, o Overrides) string {
	if sel := strings.TrimSpace(o[field]); sel != "" {
		return sel
	}

	return Detect(q, field)
}

// ResolveAll resolves every field; used for operator previews.
func ResolveAll(q DocumentQuery, o Overrides) map[Field]string {
	out := make(map[Field]string, len(Fields))
	for _, f := range Fields {
		out[f] = Resolve(q, f, o)
	}

	return out
}

// FirstAttr returns the first non-empty attribute among names on the first
// match of selector.
func FirstAttr(q DocumentQuery, selector string, names ...string) string {
	for _, n := range names {
		if v, ok := q.Attr(selector, n); ok && v != "" {
			return v
		}
	}

	return ""
}

func present(q DocumentQuery, selector string) bool {
	return q.Count(selector) > 0
}

// textLen accepts a first-match text whose length is strictly between min
// and max; max < 0 means unbounded.
func textLen(min, max int) func(DocumentQuery, string) bool {
	return func(q DocumentQuery, selector string) bool {
		t, ok := q.Text(selector)
		if !ok {
			return false
		}
		n := utf8.RuneCountInString(t)
		return n > min && (max < 0 || n < max)
	}
}

func coverAccepted(q DocumentQuery, selector string) bool {
	src := FirstAttr(q, selector, CoverAttrs...)
	return len(src) > 10 && !strings.Contains(src, "placeholder")
}
