package detect

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DocumentQuery is the probing surface the detector needs from a parsed page.
// Text and Attr look at the first match only.
type DocumentQuery interface {
	Text(selector string) (string, bool)
	Attr(selector, name string) (string, bool)
	Count(selector string) int
}

// Document adapts a goquery document. Invalid selectors match nothing.
type Document struct {
	doc *goquery.Document
}

func NewDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	return &Document{doc: doc}, nil
}

func Parse(html string) (*Document, error) {
	return NewDocument(strings.NewReader(html))
}

func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

func (d *Document) Text(selector string) (string, bool) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}

	return strings.TrimSpace(sel.Text()), true
}

func (d *Document) Attr(selector, name string) (string, bool) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	v, ok := sel.Attr(name)
	if !ok {
		return "", false
	}

	return strings.TrimSpace(v), true
}

func (d *Document) Count(selector string) int {
	return d.doc.Find(selector).Length()
}

// BodyText is the whole visible text of the page, used as the last resort
// for type detection.
func (d *Document) BodyText() string {
	return d.doc.Find("body").Text()
}
