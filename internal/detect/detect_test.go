package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seriesPage = `<html><body>
<div class="seriestuheader"><h1>Header Title Fallback</h1></div>
<h1 class="entry-title">Solo Leveling</h1>
<div class="thumb"><img src="https://cdn.example.com/placeholder.jpg"></div>
<div class="summary_image"><img data-src="https://cdn.example.com/covers/solo.webp"></div>
<div class="description">Short.</div>
<div class="entry-content" itemprop="description">Ten years ago, after the Gate that connected the real world with the monster world opened, some ordinary people received powers.</div>
<div class="mgen"><a href="/g/action">Action</a><a href="/g/fantasy">Fantasy</a></div>
<div class="imptdt">Status <i>Completed</i></div>
<div class="imptdt">Type <a>Manhwa</a></div>
<div class="rating-prc"><div class="num">8.9</div></div>
<span class="author">Chugong</span>
<div id="chapterlist"><ul>
  <li><a href="/solo-leveling-chapter-3/">Chapter 3</a></li>
  <li><a href="/solo-leveling-chapter-2/">Chapter 2</a></li>
</ul></div>
</body></html>`

func mustParse(t *testing.T, html string) *Document {
	t.Helper()
	doc, err := Parse(html)
	require.NoError(t, err)
	return doc
}

func TestDetectKnownLayout(t *testing.T) {
	doc := mustParse(t, seriesPage)

	want := map[Field]string{
		Title:         "h1.entry-title",
		Cover:         ".summary_image img",
		Description:   `.entry-content[itemprop="description"]`,
		Genres:        ".mgen a",
		Status:        `.imptdt:contains("Status")`,
		Rating:        ".rating-prc",
		Author:        ".author",
		Type:          "body",
		ChapterList:   "#chapterlist li a",
		ChapterImages: "img[data-src]",
	}
	for f, sel := range want {
		assert.Equal(t, sel, Detect(doc, f), "field %s", f)
	}
}

func TestDetectSkipsImplausibleCandidates(t *testing.T) {
	doc := mustParse(t, `<html><body>
		<h1 class="entry-title">AB</h1>
		<div class="series-title"><h1>A Proper Title</h1></div>
		<div class="description">too short to be a synopsis</div>
		<div class="synopsis">` + "A much longer synopsis that easily clears the fifty character threshold." + `</div>
		<span class="author"></span>
		<span itemprop="author">Someone</span>
	</body></html>`)

	assert.Equal(t, ".series-title h1", Detect(doc, Title))
	assert.Equal(t, ".synopsis", Detect(doc, Description))
	assert.Equal(t, `[itemprop="author"]`, Detect(doc, Author))
}

func TestDetectFallsBackOnEmptyDocument(t *testing.T) {
	doc := mustParse(t, `<html><body></body></html>`)

	assert.Equal(t, "h1", Detect(doc, Title))
	assert.Equal(t, "img", Detect(doc, Cover))
	assert.Equal(t, "p", Detect(doc, Description))
	assert.Equal(t, ".genre a", Detect(doc, Genres))
	assert.Equal(t, "body", Detect(doc, Status))
	assert.Equal(t, ".rating", Detect(doc, Rating))
	assert.Equal(t, ".author", Detect(doc, Author))
	assert.Equal(t, `a:contains("Chapter")`, Detect(doc, ChapterList))
	assert.Equal(t, "img", Detect(doc, ChapterImages))
	assert.Equal(t, "", Detect(doc, Field("unknown")))
}

func TestDetectIsDeterministic(t *testing.T) {
	doc := mustParse(t, seriesPage)

	for _, f := range Fields {
		first := Detect(doc, f)
		second := Detect(doc, f)
		assert.Equal(t, first, second, "field %s", f)

		v1, _ := doc.Text(first)
		v2, _ := doc.Text(second)
		assert.Equal(t, v1, v2)
	}
}

func TestResolvePrefersOverride(t *testing.T) {
	doc := mustParse(t, seriesPage)

	o := Overrides{Title: ".seriestuheader h1", Genres: "  "}
	sel := Resolve(doc, Title, o)
	assert.Equal(t, ".seriestuheader h1", sel)

	title, ok := doc.Text(sel)
	require.True(t, ok)
	assert.Equal(t, "Header Title Fallback", title)

	assert.Equal(t, ".mgen a", Resolve(doc, Genres, o), "blank override falls back to detection")
	assert.Equal(t, "h1.entry-title", Resolve(doc, Title, nil))

	all := ResolveAll(doc, o)
	assert.Len(t, all, len(Fields))
	assert.Equal(t, ".seriestuheader h1", all[Title])
}

func TestDocumentQuery(t *testing.T) {
	doc := mustParse(t, seriesPage)

	txt, ok := doc.Text(".author")
	assert.True(t, ok)
	assert.Equal(t, "Chugong", txt)

	_, ok = doc.Text(".missing")
	assert.False(t, ok)

	_, ok = doc.Attr(".thumb img", "data-src")
	assert.False(t, ok)

	assert.Equal(t, 2, doc.Count("#chapterlist li a"))
	assert.Equal(t, 0, doc.Count("[[[not a selector"))
	assert.Equal(t, "https://cdn.example.com/covers/solo.webp",
		FirstAttr(doc, ".summary_image img", CoverAttrs...))
	assert.Contains(t, doc.BodyText(), "Solo Leveling")
}
